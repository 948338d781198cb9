package domain

// Details 是 provider 查询得到的原始元数据（与具体站点无关的最小集合）。
//
// 约束：
// - 字段缺失允许为空，派生规则统一在 enrich 包中实现
// - VoteAverage 为 nil 表示上游没有评分（与 0 分区分）
// - PosterURL 仅在 provider 直接给出绝对地址时使用（例如网页 og:image）
// - 随历史文件持久化：复用时从 Details 按当前配置重新派生 Record
type Details struct {
	Title        string   `json:"title,omitempty"`
	Name         string   `json:"name,omitempty"`
	PosterPath   string   `json:"poster_path,omitempty"`
	PosterURL    string   `json:"poster_url,omitempty"`
	Genres       []string `json:"genres,omitempty"`
	VoteAverage  *float64 `json:"vote_average,omitempty"`
	Overview     string   `json:"overview,omitempty"`
	ReleaseDate  string   `json:"release_date,omitempty"`
	FirstAirDate string   `json:"first_air_date,omitempty"`
	Runtime      int      `json:"runtime,omitempty"`

	NumberOfSeasons int          `json:"number_of_seasons,omitempty"`
	Seasons         []SeasonInfo `json:"seasons,omitempty"`

	Cast []string `json:"cast,omitempty"`
}

// SeasonInfo 描述一季；SeasonNumber 为 nil 表示上游数据缺失。
type SeasonInfo struct {
	SeasonNumber *int `json:"season_number"`
	EpisodeCount int  `json:"episode_count"`
}
