package enrich

import (
	"context"
	"errors"
	"net/http"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

// Outcome 是单条查询的结局。
type Outcome string

const (
	OutcomeFound  Outcome = "found"
	OutcomeAbsent Outcome = "absent"
	OutcomeFailed Outcome = "failed"
)

// Enricher 把 (id, kind) 解析为 Record：provider 链查询 + Derive。
type Enricher struct {
	Registry lookup.Registry
	Chain    []string
	Client   *http.Client
	Options  Options
}

// Result 是 Enrich 的完整结果（包含追溯信息）。
type Result struct {
	Record domain.Record
	// Details 为派生 Record 的原始数据（found 时有效），写入历史以便复用时重新派生。
	Details  domain.Details
	Outcome  Outcome
	Provider string
	PageURL  string
	Attempts []lookup.Attempt
}

// Enrich 查询并派生一条记录。
//
// 规则：
// - 成功：Outcome=found，error=nil
// - 上游 404：Outcome=absent，error=nil（不是故障）
// - 其他失败：Outcome=failed，error 为 *lookup.Error（调用方记录并跳过该条）
func (e *Enricher) Enrich(ctx context.Context, id domain.ID, kind domain.MediaKind) (Result, error) {
	res, attempts, err := lookup.Resolve(ctx, e.Registry, e.Chain, kind, id, e.Client)
	if err != nil {
		if lookup.IsNotFound(err) {
			return Result{Outcome: OutcomeAbsent, Attempts: attempts}, nil
		}
		var le *lookup.Error
		if !errors.As(err, &le) {
			err = &lookup.Error{Kind: kind, ID: id, Stage: lookup.StageFetch, Err: err}
		}
		return Result{Outcome: OutcomeFailed, Attempts: attempts}, err
	}

	return Result{
		Record:   Derive(kind, id, res.Details, e.Options),
		Details:  res.Details,
		Outcome:  OutcomeFound,
		Provider: res.Provider,
		PageURL:  res.PageURL,
		Attempts: attempts,
	}, nil
}
