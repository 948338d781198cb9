package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusEnriched = "enriched"
	StatusReused   = "reused"
	StatusAbsent   = "absent"
	StatusFailed   = "failed"
)

const (
	SourceStatusOK     = "ok"
	SourceStatusFailed = "failed"
)

const (
	ErrCodeNotFound            = "not_found"
	ErrCodeLookupFailed        = "lookup_failed"
	ErrCodeParseFailed         = "parse_failed"
	ErrCodeSourceFailed        = "source_failed"
	ErrCodeTargetConflict      = "target_conflict"
	ErrCodeIOFailed            = "io_failed"
	ErrCodeRunLocked           = "run_locked"
	ErrCodeConfigNotFound      = "config_not_found"
	ErrCodeConfigInvalid       = "config_invalid"
	ErrCodeConfigMissingAPIKey = "config_missing_api_key"
)

// RunReport 是对外稳定输出（report 文件 / stdout JSON）的结构。
type RunReport struct {
	RunID  string `json:"run_id"`
	Output string `json:"output"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary  `json:"summary"`
	Sources []SourceResult `json:"sources"`
	Items   []ItemResult   `json:"items"`
}

type ReportSummary struct {
	Records       int `json:"records"`
	Enriched      int `json:"enriched"`
	Reused        int `json:"reused"`
	Absent        int `json:"absent"`
	Failed        int `json:"failed"`
	Placeholders  int `json:"placeholders"`
	SourcesOK     int `json:"sources_ok"`
	SourcesFailed int `json:"sources_failed"`
}

// SourceResult 记录一个列表来源的下载与 ID 提取情况。
type SourceResult struct {
	Kind   string `json:"kind"`
	URL    string `json:"url"`
	Order  string `json:"order"`
	Status string `json:"status"`

	IDs        int `json:"ids"`
	Skipped    int `json:"skipped"`
	Rejected   int `json:"rejected"`
	Duplicates int `json:"duplicates"`

	HTTPStatus int    `json:"http_status,omitempty"`
	ErrorCode  string `json:"error_code"`
	ErrorMsg   string `json:"error_msg"`
}

type ItemResult struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Website  string `json:"website"`

	Status      string `json:"status"`
	Placeholder bool   `json:"placeholder"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`

	Attempts []ProviderAttempt `json:"attempts"`
}

// ProviderAttempt 是一次 provider 尝试的可序列化形式（用于解释回退原因）。
type ProviderAttempt struct {
	Provider  string `json:"provider"`
	Stage     string `json:"stage"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：先 kind，再按数值 id；id=="" 的合成条目排在最后
// 3) summary 由 items/sources 计算得出（Records 由调用方填写）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()
	if r.Sources == nil {
		r.Sources = []SourceResult{}
	}
	if r.Items == nil {
		r.Items = []ItemResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.ID == "" || b.ID == "" {
			return a.ID != "" && b.ID == ""
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return ID(a.ID).Int() < ID(b.ID).Int()
	})

	s := ReportSummary{Records: r.Summary.Records}
	for _, it := range r.Items {
		switch it.Status {
		case StatusEnriched:
			s.Enriched++
		case StatusReused:
			s.Reused++
		case StatusAbsent:
			s.Absent++
		case StatusFailed:
			s.Failed++
		}
		if it.Placeholder {
			s.Placeholders++
		}
	}
	for _, src := range r.Sources {
		switch src.Status {
		case SourceStatusOK:
			s.SourcesOK++
		case SourceStatusFailed:
			s.SourcesFailed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
