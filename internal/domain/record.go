package domain

// Record 是一条增强后的目录条目，也是页面内嵌 JSON 与历史文件的存储形态。
//
// 约束：
// - 不含任何时间戳：相同上游数据两次构建的序列化结果逐字节一致
// - SeasonEpisodes 的 key 为季号的十进制字符串；电影恒为空 map
// - RuntimeMinutes 只对电影有意义；Seasons 只对剧集有意义
type Record struct {
	ID             ID             `json:"id"`
	Kind           MediaKind      `json:"type"`
	Title          string         `json:"title"`
	Poster         string         `json:"poster,omitempty"`
	Genres         []string       `json:"genres"`
	Rating         float64        `json:"vote"`
	Overview       string         `json:"overview"`
	ReleaseDate    string         `json:"release_date,omitempty"`
	ReleaseYear    string         `json:"year,omitempty"`
	RuntimeMinutes int            `json:"runtime,omitempty"`
	Seasons        int            `json:"seasons,omitempty"`
	SeasonEpisodes map[string]int `json:"season_episodes"`
	Cast           []string       `json:"cast,omitempty"`
	Link           string         `json:"link"`
	Placeholder    bool           `json:"placeholder,omitempty"`
}

// Key 返回该记录的 (kind, id) 键。
func (r Record) Key() string { return Key(r.Kind, r.ID) }

// HistoryEntry 是历史文件中的一条：上次输出的 Record 加上派生它的 Details。
// Details 为空（旧格式或占位）的条目不能复用，只能重新查询。
type HistoryEntry struct {
	Record
	Details *Details `json:"details,omitempty"`
}

// Reusable 表示该条目可以不访问网络、按当前配置重新派生。
func (e HistoryEntry) Reusable() bool {
	return e.Details != nil && !e.Placeholder
}
