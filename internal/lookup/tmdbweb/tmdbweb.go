package tmdbweb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

const (
	Name            = "tmdbweb"
	DefaultBaseURL  = "https://www.themoviedb.org"
	DefaultLanguage = "it-IT"
)

// Provider 解析 themoviedb.org 公开详情页（不需要 API key）。
//
// 约束：
// - 只提取页面上稳定可见的字段：标题、海报、简介、类型、用户评分
// - 标题优先取第一个 <h2>，缺失时回退 <title> 的 " - " 前半段
// - Parse 必须是纯函数（依赖输入 html + pageURL）
type Provider struct {
	BaseURL  string
	Language string
}

func (Provider) Name() string { return Name }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

func (p Provider) Fetch(ctx context.Context, kind domain.MediaKind, id domain.ID, c *http.Client) ([]byte, string, error) {
	if !kind.Valid() || id == "" {
		return nil, "", fmt.Errorf("非法条目：%s/%s", kind, id)
	}
	lang := strings.TrimSpace(p.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	pageURL := p.baseURL() + "/" + string(kind) + "/" + url.PathEscape(string(id))

	h := http.Header{}
	h.Set("Accept", "text/html")
	h.Set("Accept-Language", lang)
	b, err := lookup.Get(ctx, c, pageURL+"?language="+url.QueryEscape(lang), h)
	if err != nil {
		return nil, "", err
	}
	return b, pageURL, nil
}

var trailingYearRE = regexp.MustCompile(`\s*\(\d{4}\)\s*$`)

// Parse 把详情页 HTML 解析为 Details。
func (Provider) Parse(kind domain.MediaKind, id domain.ID, html []byte, pageURL string) (domain.Details, error) {
	if len(html) == 0 {
		return domain.Details{}, errors.New("html 为空")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return domain.Details{}, err
	}

	title := pageTitle(doc)
	if title == "" {
		return domain.Details{}, errors.New("页面中未找到标题")
	}

	d := domain.Details{
		Overview: metaContent(doc, "og:description"),
		Genres:   []string{},
	}
	if d.Overview == "" {
		d.Overview = metaContent(doc, "description")
	}
	if kind == domain.KindTV {
		d.Name = title
	} else {
		d.Title = title
	}
	d.PosterURL = resolveURL(pageURL, metaContent(doc, "og:image"))

	seen := map[string]struct{}{}
	doc.Find("span.genres a").Each(func(_ int, s *goquery.Selection) {
		g := normSpace(s.Text())
		if g == "" {
			return
		}
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		d.Genres = append(d.Genres, g)
	})

	// user_score_chart 的 data-percent 是 0-100 的百分比，换算为 0-10 的评分。
	if v, ok := doc.Find(".user_score_chart").First().Attr("data-percent"); ok {
		if pct, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && pct > 0 {
			score := pct / 10
			d.VoteAverage = &score
		}
	}
	return d, nil
}

func pageTitle(doc *goquery.Document) string {
	h2 := doc.Find("h2").First()
	if h2.Length() > 0 {
		t := normSpace(h2.Find("a").First().Text())
		if t == "" {
			t = normSpace(h2.Text())
		}
		t = strings.TrimSpace(trailingYearRE.ReplaceAllString(t, ""))
		if t != "" {
			return t
		}
	}
	raw := normSpace(doc.Find("title").First().Text())
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(raw, " - ", 2)[0])
}

func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(`meta[property="` + name + `"]`).First()
	if sel.Length() == 0 {
		sel = doc.Find(`meta[name="` + name + `"]`).First()
	}
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
