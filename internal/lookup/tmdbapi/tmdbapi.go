package tmdbapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

const (
	Name            = "tmdb"
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultLanguage = "it-IT"
	publicSite      = "https://www.themoviedb.org"
	maxCast         = 10
)

// Provider 通过 TMDB v3 详情接口查询电影/剧集。
//
// 约束：
// - 需要 API key（由配置层从环境变量注入，不写入配置文件）
// - pageURL 返回公开的 themoviedb.org 页面，避免 API key 出现在 report 中
// - Fetch/Parse 不做缓存/重试/限速（由上层统一控制）
type Provider struct {
	BaseURL  string
	APIKey   string
	Language string
	// Credits 为 true 时附带 credits，解析出前 10 位演员。
	Credits bool
}

func (Provider) Name() string { return Name }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// DetailURL 返回详情接口地址：{base}/{kind}/{id}?api_key=&language=[&append_to_response=credits]
func (p Provider) DetailURL(kind domain.MediaKind, id domain.ID) string {
	q := url.Values{}
	q.Set("api_key", p.APIKey)
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	q.Set("language", lang)
	if p.Credits {
		q.Set("append_to_response", "credits")
	}
	return p.baseURL() + "/" + string(kind) + "/" + url.PathEscape(string(id)) + "?" + q.Encode()
}

func (p Provider) Fetch(ctx context.Context, kind domain.MediaKind, id domain.ID, c *http.Client) ([]byte, string, error) {
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, "", errors.New("tmdb api key 为空")
	}
	if !kind.Valid() || id == "" {
		return nil, "", fmt.Errorf("非法条目：%s/%s", kind, id)
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	b, err := lookup.Get(ctx, c, p.DetailURL(kind, id), h)
	if err != nil {
		return nil, "", err
	}
	return b, publicSite + "/" + string(kind) + "/" + string(id), nil
}

type detailResponse struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Name         string   `json:"name"`
	PosterPath   string   `json:"poster_path"`
	Overview     string   `json:"overview"`
	VoteAverage  *float64 `json:"vote_average"`
	ReleaseDate  string   `json:"release_date"`
	FirstAirDate string   `json:"first_air_date"`
	Runtime      *int     `json:"runtime"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
	NumberOfSeasons int `json:"number_of_seasons"`
	Seasons         []struct {
		SeasonNumber *int `json:"season_number"`
		EpisodeCount int  `json:"episode_count"`
	} `json:"seasons"`
	Credits *struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
	} `json:"credits"`

	StatusMessage string `json:"status_message"`
}

// Parse 把详情 JSON 解析为 Details。
func (Provider) Parse(kind domain.MediaKind, id domain.ID, body []byte, pageURL string) (domain.Details, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Details{}, errors.New("响应体为空")
	}

	var r detailResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.Details{}, fmt.Errorf("解析 tmdb 响应失败：%w", err)
	}
	if r.ID == 0 && r.StatusMessage != "" {
		return domain.Details{}, fmt.Errorf("tmdb 返回错误：%s", r.StatusMessage)
	}

	d := domain.Details{
		Title:           strings.TrimSpace(r.Title),
		Name:            strings.TrimSpace(r.Name),
		PosterPath:      strings.TrimSpace(r.PosterPath),
		VoteAverage:     r.VoteAverage,
		Overview:        strings.TrimSpace(r.Overview),
		ReleaseDate:     strings.TrimSpace(r.ReleaseDate),
		FirstAirDate:    strings.TrimSpace(r.FirstAirDate),
		NumberOfSeasons: r.NumberOfSeasons,
		Genres:          make([]string, 0, len(r.Genres)),
	}
	if r.Runtime != nil {
		d.Runtime = *r.Runtime
	}
	for _, g := range r.Genres {
		if n := strings.TrimSpace(g.Name); n != "" {
			d.Genres = append(d.Genres, n)
		}
	}
	for _, s := range r.Seasons {
		d.Seasons = append(d.Seasons, domain.SeasonInfo{SeasonNumber: s.SeasonNumber, EpisodeCount: s.EpisodeCount})
	}
	if r.Credits != nil {
		for _, c := range r.Credits.Cast {
			if len(d.Cast) >= maxCast {
				break
			}
			if n := strings.TrimSpace(c.Name); n != "" {
				d.Cast = append(d.Cast, n)
			}
		}
	}
	return d, nil
}
