package enrich

import (
	"math"
	"strconv"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
)

const (
	DefaultImageBase     = "https://image.tmdb.org/t/p/w300"
	DefaultMovieTemplate = "https://vixsrc.to/movie/{id}/?"
	DefaultTVTemplate    = "https://vixsrc.to/tv/{id}/{season}/{episode}"
)

// Player 描述播放链接模板；占位符为 {id} {season} {episode}。
type Player struct {
	MovieTemplate string
	TVTemplate    string
}

// Link 生成播放链接。剧集的 season/episode 小于 1 时按 1 处理。
func (p Player) Link(kind domain.MediaKind, id domain.ID, season, episode int) string {
	if kind == domain.KindTV {
		tpl := p.TVTemplate
		if strings.TrimSpace(tpl) == "" {
			tpl = DefaultTVTemplate
		}
		if season < 1 {
			season = 1
		}
		if episode < 1 {
			episode = 1
		}
		return strings.NewReplacer(
			"{id}", string(id),
			"{season}", strconv.Itoa(season),
			"{episode}", strconv.Itoa(episode),
		).Replace(tpl)
	}
	tpl := p.MovieTemplate
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultMovieTemplate
	}
	return strings.ReplaceAll(tpl, "{id}", string(id))
}

// Options 是字段派生所需的全部外部参数。
type Options struct {
	ImageBase string
	Player    Player
	// SkipSpecials 为 true 时丢弃第 0 季（特别篇）。
	SkipSpecials bool
}

// Derive 把 Details 派生为 Record（纯函数）。
//
// 规则：
// - title：Title > Name > "ID {id}"
// - poster：provider 给出的绝对地址优先，否则 ImageBase + PosterPath；都没有则为空
// - rating：四舍五入到 1 位小数，缺失为 0
// - release_year：release_date 或 first_air_date 的前 4 个字符
// - runtime 只对电影保留；seasons / season_episodes 只对剧集计算，电影恒为空
// - season_episodes 跳过季号缺失的条目
func Derive(kind domain.MediaKind, id domain.ID, d domain.Details, opts Options) domain.Record {
	r := domain.Record{
		ID:             id,
		Kind:           kind,
		Title:          firstNonEmpty(d.Title, d.Name, "ID "+string(id)),
		Poster:         posterURL(opts.ImageBase, d),
		Genres:         cleanList(d.Genres),
		Rating:         roundRating(d.VoteAverage),
		Overview:       strings.TrimSpace(d.Overview),
		SeasonEpisodes: map[string]int{},
		Link:           opts.Player.Link(kind, id, 1, 1),
	}

	r.ReleaseDate = firstNonEmpty(d.ReleaseDate, d.FirstAirDate)
	if len(r.ReleaseDate) >= 4 {
		r.ReleaseYear = r.ReleaseDate[:4]
	}

	if len(d.Cast) > 0 {
		r.Cast = cleanList(d.Cast)
	}

	switch kind {
	case domain.KindMovie:
		if d.Runtime > 0 {
			r.RuntimeMinutes = d.Runtime
		}
	case domain.KindTV:
		for _, s := range d.Seasons {
			if s.SeasonNumber == nil || *s.SeasonNumber < 0 {
				continue
			}
			if opts.SkipSpecials && *s.SeasonNumber == 0 {
				continue
			}
			key := strconv.Itoa(*s.SeasonNumber)
			if _, dup := r.SeasonEpisodes[key]; dup {
				continue
			}
			r.SeasonEpisodes[key] = s.EpisodeCount
		}
		r.Seasons = d.NumberOfSeasons
		if r.Seasons <= 0 {
			for k := range r.SeasonEpisodes {
				if k != "0" {
					r.Seasons++
				}
			}
		}
	}
	return r
}

// Placeholder 构造查询失败/不存在时的占位记录。
func Placeholder(kind domain.MediaKind, id domain.ID, opts Options) domain.Record {
	return domain.Record{
		ID:             id,
		Kind:           kind,
		Title:          "ID " + string(id),
		Genres:         []string{},
		SeasonEpisodes: map[string]int{},
		Link:           opts.Player.Link(kind, id, 1, 1),
		Placeholder:    true,
	}
}

func roundRating(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return math.Round(*v*10) / 10
}

func posterURL(base string, d domain.Details) string {
	if u := strings.TrimSpace(d.PosterURL); u != "" {
		return u
	}
	p := strings.TrimSpace(d.PosterPath)
	if p == "" {
		return ""
	}
	base = strings.TrimSpace(base)
	if base == "" {
		base = DefaultImageBase
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			return x
		}
	}
	return ""
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
