package domain

import "strings"

// MediaKind 区分电影与剧集；查询路径、播放链接与派生字段都依赖它。
type MediaKind string

const (
	KindMovie MediaKind = "movie"
	KindTV    MediaKind = "tv"
)

// ParseKind 大小写不敏感地解析 kind；未知值返回 false。
func ParseKind(s string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return KindMovie, true
	case "tv":
		return KindTV, true
	default:
		return "", false
	}
}

func (k MediaKind) Valid() bool {
	return k == KindMovie || k == KindTV
}
