package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/vixcat/internal/app/planner"
	"github.com/John-Robertt/vixcat/internal/config"
	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/enrich"
	"github.com/John-Robertt/vixcat/internal/ids"
	"github.com/John-Robertt/vixcat/internal/infra/httpx"
	"github.com/John-Robertt/vixcat/internal/logging"
	"github.com/John-Robertt/vixcat/internal/lookup"
	"github.com/John-Robertt/vixcat/internal/lookup/tmdbapi"
	"github.com/John-Robertt/vixcat/internal/lookup/tmdbweb"
	"github.com/John-Robertt/vixcat/internal/source"
)

// Deps 是一次运行的可注入依赖。零值字段使用默认实现。
type Deps struct {
	// Client 为 nil 时按 eff 的网络配置构造（代理/超时/重试）。
	Client   *http.Client
	Logger   *slog.Logger
	Observer Observer
}

// Result 是 Build 的产物。
type Result struct {
	Catalog domain.Catalog
	Report  domain.RunReport
	// Listed 为本次所有来源列出的 key（用于 history prune）。
	Listed map[string]struct{}
	// Entries 为本次可写入历史的条目（记录 + 原始 Details），顺序同 Catalog.Records。
	Entries []domain.HistoryEntry
}

// AllSourcesFailed 表示本次没有任何来源可用（此时不应覆盖旧页面）。
func (r Result) AllSourcesFailed() bool {
	return len(r.Report.Sources) > 0 && r.Report.Summary.SourcesOK == 0
}

// NewRegistry 按配置构造 provider 注册表（只注册 provider 链中出现的 provider）。
func NewRegistry(eff config.EffectiveConfig) (lookup.Registry, error) {
	var ps []lookup.Provider
	for _, name := range eff.Providers {
		switch name {
		case tmdbapi.Name:
			ps = append(ps, tmdbapi.Provider{
				BaseURL:  eff.APIBase,
				APIKey:   eff.APIKey,
				Language: eff.Language,
				Credits:  eff.Credits,
			})
		case tmdbweb.Name:
			ps = append(ps, tmdbweb.Provider{BaseURL: eff.WebBase, Language: eff.Language})
		default:
			return lookup.Registry{}, fmt.Errorf("未知 provider：%q", name)
		}
	}
	return lookup.NewRegistry(ps...)
}

// NewClient 按配置构造共享的 HTTP client。
func NewClient(eff config.EffectiveConfig) (*http.Client, error) {
	return httpx.NewClient(httpx.Options{
		ProxyURL: eff.ProxyURL,
		Timeout:  eff.Timeout,
		RetryMax: eff.RetryMax,
	})
}

// Build 拉取全部来源、逐条增强并组装 Catalog（不做任何写入）。
//
// 约束：
// - 单个来源失败只影响该来源；单条失败只影响该条
// - 记录顺序 = 来源顺序 + 来源内 ID 顺序，与并发度无关
// - ctx 取消后不再发起新的查询，未执行的条目记为 failed
// - hist 只在 eff.HistoryReuse=true 时用于复用
func Build(ctx context.Context, eff config.EffectiveConfig, reg lookup.Registry, hist map[string]domain.HistoryEntry, deps Deps) Result {
	started := time.Now().UTC()
	logger := logging.Component(deps.Logger, "run")
	obs := deps.Observer

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Output:    eff.Output,
		StartedAt: started,
		Sources:   make([]domain.SourceResult, 0, len(eff.Sources)),
		Items:     make([]domain.ItemResult, 0, 256),
	}
	logger = logger.With(logging.FieldRunID, rr.RunID)

	client := deps.Client
	if client == nil {
		c, err := NewClient(eff)
		if err != nil {
			// 配置层已校验过 proxy；走到这里说明调用方绕过了 LoadEffective。
			rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("构造 HTTP client 失败：%v", err)))
			rr.FinishedAt = time.Now().UTC()
			rr.Finalize()
			return Result{Catalog: domain.NewCatalog(nil, eff.PageLatest, eff.PageLang), Report: rr, Listed: map[string]struct{}{}}
		}
		client = c
	}

	// 1) 来源：逐个拉取 + 提取 ID + 规划
	srcStarted := time.Now()
	seen := map[string]struct{}{}
	plans := make([]domain.ItemPlan, 0, 256)
	totalIDs := 0
	for i, src := range eff.Sources {
		sr, ps := readSource(ctx, client, logger, i, src, hist, eff.HistoryReuse, seen)
		rr.Sources = append(rr.Sources, sr)
		plans = append(plans, ps...)
		totalIDs += sr.IDs
	}
	if obs != nil {
		ok, failed := 0, 0
		for _, s := range rr.Sources {
			if s.Status == domain.SourceStatusOK {
				ok++
			} else {
				failed++
			}
		}
		obs.OnPhaseDone(PhaseSources, map[string]any{
			"sources": len(rr.Sources),
			"ok":      ok,
			"failed":  failed,
			"ids":     totalIDs,
		}, time.Since(srcStarted))
	}

	lookups := 0
	for _, p := range plans {
		if p.NeedLookup {
			lookups++
		}
	}
	if obs != nil {
		obs.OnPhaseDone(PhasePlan, map[string]any{
			"items":   len(plans),
			"reuse":   len(plans) - lookups,
			"lookups": lookups,
		}, 0)
	}

	// 2) 执行：concurrency=1 时严格串行；>1 时有界并发，结果按计划下标回填。
	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone(PhaseExec, map[string]any{
			"workers":     workers,
			"total_items": len(plans),
		}, 0)
	}

	ex := &executor{
		enricher: &enrich.Enricher{
			Registry: reg,
			Chain:    reg.Names(),
			Client:   client,
			Options: enrich.Options{
				ImageBase:    eff.ImageBase,
				Player:       enrich.Player{MovieTemplate: eff.PlayerMovie, TVTemplate: eff.PlayerTV},
				SkipSpecials: eff.SkipSpecials,
			},
		},
		limiter:     newLimiter(eff.Throttle, eff.RequestsPerSecond),
		placeholder: eff.Missing == config.MissingPlaceholder,
		logger:      logger,
	}

	outs := make([]itemOutcome, len(plans))
	var done atomic.Int64
	runOne := func(i int) {
		oneStarted := time.Now()
		outs[i] = ex.one(ctx, plans[i])
		if obs != nil {
			obs.OnItemDone(int(done.Add(1)), len(plans), outs[i].item, time.Since(oneStarted))
		}
	}

	if workers == 1 {
		for i := range plans {
			runOne(i)
		}
	} else {
		p := pool.New().WithMaxGoroutines(workers)
		for i := range plans {
			p.Go(func() { runOne(i) })
		}
		p.Wait()
	}

	// 3) 组装：按计划顺序拼接
	records := make([]domain.Record, 0, len(plans))
	entries := make([]domain.HistoryEntry, 0, len(plans))
	for _, o := range outs {
		rr.Items = append(rr.Items, o.item)
		if o.record != nil {
			records = append(records, *o.record)
			if o.details != nil {
				entries = append(entries, domain.HistoryEntry{Record: *o.record, Details: o.details})
			}
		}
	}

	cat := domain.NewCatalog(records, eff.PageLatest, eff.PageLang)
	rr.Summary.Records = len(records)
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	logger.Info("构建完成",
		"records", rr.Summary.Records,
		"enriched", rr.Summary.Enriched,
		"reused", rr.Summary.Reused,
		"absent", rr.Summary.Absent,
		"failed", rr.Summary.Failed,
		"sources_failed", rr.Summary.SourcesFailed,
	)

	return Result{Catalog: cat, Report: rr, Listed: planner.Listed(plans), Entries: entries}
}

func readSource(ctx context.Context, c *http.Client, logger *slog.Logger, idx int, src source.Source, hist map[string]domain.HistoryEntry, reuse bool, seen map[string]struct{}) (domain.SourceResult, []domain.ItemPlan) {
	sr := domain.SourceResult{
		Kind:   string(src.Kind),
		URL:    lookup.RedactURL(src.URL),
		Order:  string(src.Order),
		Status: domain.SourceStatusOK,
	}
	log := logger.With(logging.FieldSource, sr.URL, logging.FieldKind, sr.Kind)

	items, err := source.Fetch(ctx, c, src)
	if err != nil {
		sr.Status = domain.SourceStatusFailed
		sr.ErrorCode = domain.ErrCodeSourceFailed
		sr.ErrorMsg = err.Error()
		var se *source.Error
		if errors.As(err, &se) {
			sr.HTTPStatus = se.Status()
		}
		log.Error("来源不可用，已跳过", "http_status", sr.HTTPStatus, logging.Err(err))
		return sr, nil
	}

	ex, err := ids.Extract(items, src.Order, src.Keys...)
	if err != nil {
		sr.Status = domain.SourceStatusFailed
		sr.ErrorCode = domain.ErrCodeSourceFailed
		sr.ErrorMsg = err.Error()
		log.Error("来源 ID 提取失败", logging.Err(err))
		return sr, nil
	}
	for _, rj := range ex.Rejected {
		log.Warn("条目 ID 不是合法数字，已排除",
			"index", rj.Index,
			"key", rj.Key,
			"value", rj.Value,
			"reason", rj.Reason,
		)
	}

	plans, dup := planner.PlanSource(src.Kind, ex.IDs, idx, hist, planner.Options{Reuse: reuse}, seen)
	sr.IDs = len(ex.IDs)
	sr.Skipped = ex.Skipped
	sr.Rejected = len(ex.Rejected)
	sr.Duplicates = ex.Duplicates + dup
	log.Info("来源已读取",
		"items", len(items),
		"ids", sr.IDs,
		"skipped", sr.Skipped,
		"rejected", sr.Rejected,
		"duplicates", sr.Duplicates,
	)
	return sr, plans
}

type itemOutcome struct {
	record  *domain.Record
	details *domain.Details
	item    domain.ItemResult
}

type executor struct {
	enricher    *enrich.Enricher
	limiter     *rate.Limiter
	placeholder bool
	logger      *slog.Logger
}

func (e *executor) one(ctx context.Context, p domain.ItemPlan) itemOutcome {
	item := domain.ItemResult{
		Kind:     string(p.Kind),
		ID:       string(p.ID),
		Attempts: []domain.ProviderAttempt{},
	}
	log := e.logger.With(logging.FieldKind, item.Kind, logging.FieldID, item.ID)

	if !p.NeedLookup && p.Cached != nil && p.Cached.Reusable() {
		// 从原始 Details 重新派生：海报、特别篇、播放链接都以当前配置为准。
		d := *p.Cached.Details
		rec := enrich.Derive(p.Kind, p.ID, d, e.enricher.Options)
		item.Status = domain.StatusReused
		return itemOutcome{record: &rec, details: &d, item: item}
	}

	if err := ctx.Err(); err != nil {
		return e.miss(p, item, domain.StatusFailed, domain.ErrCodeLookupFailed, fmt.Sprintf("已取消：%v", err), 0)
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.miss(p, item, domain.StatusFailed, domain.ErrCodeLookupFailed, fmt.Sprintf("已取消：%v", err), 0)
		}
	}

	res, err := e.enricher.Enrich(ctx, p.ID, p.Kind)
	item.Attempts = toAttempts(res.Attempts)
	item.Provider = res.Provider
	item.Website = res.PageURL

	switch res.Outcome {
	case enrich.OutcomeFound:
		item.Status = domain.StatusEnriched
		rec, d := res.Record, res.Details
		return itemOutcome{record: &rec, details: &d, item: item}
	case enrich.OutcomeAbsent:
		log.Info("上游不存在该条目")
		return e.miss(p, item, domain.StatusAbsent, domain.ErrCodeNotFound, "上游返回 404", http.StatusNotFound)
	default:
		code, status := domain.ErrCodeLookupFailed, 0
		var le *lookup.Error
		if errors.As(err, &le) {
			if le.Stage == lookup.StageParse {
				code = domain.ErrCodeParseFailed
			}
			status = le.Status()
			if item.Provider == "" {
				item.Provider = le.Provider
			}
		}
		msg := "查询失败"
		if err != nil {
			msg = lookup.RedactURL(err.Error())
		}
		log.Warn("查询失败，已跳过", logging.FieldErrorCode, code, "http_status", status, "error", msg)
		return e.miss(p, item, domain.StatusFailed, code, msg, status)
	}
}

// miss 处理 absent/failed：按 missing 策略决定是否放入占位记录。
func (e *executor) miss(p domain.ItemPlan, item domain.ItemResult, status, code, msg string, httpStatus int) itemOutcome {
	item.Status = status
	item.ErrorCode = code
	item.ErrorMsg = msg
	item.HTTPStatus = httpStatus
	if !e.placeholder {
		return itemOutcome{item: item}
	}
	rec := enrich.Placeholder(p.Kind, p.ID, e.enricher.Options)
	item.Placeholder = true
	return itemOutcome{record: &rec, item: item}
}

func toAttempts(in []lookup.Attempt) []domain.ProviderAttempt {
	out := make([]domain.ProviderAttempt, 0, len(in))
	for _, a := range in {
		pa := domain.ProviderAttempt{Provider: a.Provider, Stage: a.Stage}
		if a.Err != nil {
			pa.ErrorMsg = lookup.RedactURL(a.Err.Error())
			switch {
			case lookup.IsNotFound(a.Err):
				pa.ErrorCode = domain.ErrCodeNotFound
			case a.Stage == lookup.StageParse:
				pa.ErrorCode = domain.ErrCodeParseFailed
			default:
				pa.ErrorCode = domain.ErrCodeLookupFailed
			}
		}
		out = append(out, pa)
	}
	return out
}

// newLimiter 合并 throttle（最小间隔）与 requests_per_second，取更严格者。都未配置返回 nil。
func newLimiter(throttle time.Duration, rps float64) *rate.Limiter {
	limit := rate.Inf
	if throttle > 0 {
		limit = rate.Every(throttle)
	}
	if rps > 0 && rate.Limit(rps) < limit {
		limit = rate.Limit(rps)
	}
	if limit == rate.Inf {
		return nil
	}
	return rate.NewLimiter(limit, 1)
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.ProviderAttempt{},
	}
}
