package domain

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Catalog 是一次构建的最终产物：按来源顺序拼接的记录 + 派生视图。
type Catalog struct {
	Records []Record
	// Latest 为按发行日期倒序的前 N 条（同日期保持原顺序）。
	Latest []Record
	// Genres 为每种 kind 出现过的类型，按 lang 的本地化排序规则排序。
	Genres map[MediaKind][]string
}

// NewCatalog 组装 Catalog。records 的顺序即输出顺序，不做任何重排。
func NewCatalog(records []Record, latestN int, lang string) Catalog {
	if records == nil {
		records = []Record{}
	}
	return Catalog{
		Records: records,
		Latest:  latest(records, latestN),
		Genres:  genresByKind(records, lang),
	}
}

func latest(records []Record, n int) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Placeholder || strings.TrimSpace(r.ReleaseDate) == "" {
			continue
		}
		out = append(out, r)
	}
	// ISO 日期按字典序比较即按时间比较。
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReleaseDate > out[j].ReleaseDate })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func genresByKind(records []Record, lang string) map[MediaKind][]string {
	seen := map[MediaKind]map[string]struct{}{}
	out := map[MediaKind][]string{KindMovie: {}, KindTV: {}}
	for _, r := range records {
		if seen[r.Kind] == nil {
			seen[r.Kind] = map[string]struct{}{}
		}
		for _, g := range r.Genres {
			g = strings.TrimSpace(g)
			if g == "" {
				continue
			}
			if _, ok := seen[r.Kind][g]; ok {
				continue
			}
			seen[r.Kind][g] = struct{}{}
			out[r.Kind] = append(out[r.Kind], g)
		}
	}

	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		tag = language.Und
	}
	c := collate.New(tag, collate.Loose)
	for k := range out {
		c.SortStrings(out[k])
	}
	return out
}
