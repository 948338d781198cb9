package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/vixcat/internal/config"
	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/infra/fsx"
	"github.com/John-Robertt/vixcat/internal/infra/history"
	"github.com/John-Robertt/vixcat/internal/logging"
	"github.com/John-Robertt/vixcat/internal/lookup"
	"github.com/John-Robertt/vixcat/internal/render"
)

// ErrAllSourcesFailed 表示所有来源都不可用；此时旧页面保持不变。
var ErrAllSourcesFailed = errors.New("所有来源都不可用，未覆盖输出页面")

// Error 是运行期的致命错误（带 error_code）。出现时 CLI 以非 0 退出。
type Error struct {
	Code string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s：%v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s：%s：%v", e.Code, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Execute 执行一次完整构建：读历史 → Build → 渲染 → 写页面 → 写历史 → 写报告。
//
// 约束：
// - 页面先完整渲染到内存，再原子替换；任何失败都不会留下半截页面
// - 所有来源都失败时不覆盖旧页面（返回 ErrAllSourcesFailed）
// - 历史只在页面写入成功后才重写
// - dry-run：历史只读且不加锁，不写任何文件
//
// 返回的 RunReport 总是可用的（即使 error 非 nil）。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg lookup.Registry, deps Deps) (domain.RunReport, error) {
	logger := logging.Component(deps.Logger, "run")
	if deps.Observer != nil {
		deps.Observer.OnStart(eff)
	}

	var (
		store *history.Store
		hist  = map[string]domain.HistoryEntry{}
	)
	if eff.HistoryPath != "" {
		s, err := history.Open(eff.HistoryPath, eff.DryRun)
		if err != nil {
			code := domain.ErrCodeIOFailed
			if errors.Is(err, history.ErrLocked) {
				code = domain.ErrCodeRunLocked
			}
			return failedReport(eff, code, err.Error()), &Error{Code: code, Op: "打开历史文件", Err: err}
		}
		defer s.Close()
		store = s

		h, err := s.Load()
		if err != nil {
			var ce *history.CorruptError
			if errors.As(err, &ce) {
				logger.Warn("历史文件已损坏，按空历史处理（结束时会整体重写）", "path", ce.Path, logging.Err(ce.Err))
			} else {
				logger.Warn("读取历史文件失败，按空历史处理", "path", eff.HistoryPath, logging.Err(err))
			}
		}
		hist = h
	}

	res := Build(ctx, eff, reg, hist, deps)
	rr := res.Report

	if res.AllSourcesFailed() {
		logger.Error("所有来源都不可用，保留旧页面", "output", eff.Output)
		if err := writeReport(eff, &rr); err != nil {
			logger.Error("写入报告失败", logging.Err(err))
		}
		return rr, &Error{Code: domain.ErrCodeSourceFailed, Err: ErrAllSourcesFailed}
	}

	if eff.DryRun {
		logger.Info("dry-run：不写入任何文件", "records", rr.Summary.Records)
		return rr, nil
	}

	writeStarted := time.Now()
	page, err := render.Bytes(res.Catalog, render.Options{
		Title:           eff.PageTitle,
		Lang:            eff.PageLang,
		Step:            eff.PageStep,
		BlockedPrefixes: eff.BlockedPrefixes,
		TVTemplate:      eff.PlayerTV,
	})
	if err != nil {
		return fatal(eff, &rr, domain.ErrCodeIOFailed, "渲染页面", err)
	}
	if err := fsx.WriteFile(eff.Output, page); err != nil {
		code := domain.ErrCodeIOFailed
		if fsx.IsPathTypeConflict(err) {
			code = domain.ErrCodeTargetConflict
		}
		return fatal(eff, &rr, code, "写入页面", err)
	}
	logger.Info("页面已写入", "output", eff.Output, "bytes", len(page), "records", rr.Summary.Records)

	historyEntries := 0
	if store != nil {
		// 有来源失败时不 prune：该来源的旧记录只是本次没被列出。
		prune := eff.HistoryPrune && rr.Summary.SourcesFailed == 0
		merged := history.Merge(hist, res.Entries, res.Listed, prune)
		if err := store.Save(merged); err != nil {
			code := domain.ErrCodeIOFailed
			if fsx.IsPathTypeConflict(err) {
				code = domain.ErrCodeTargetConflict
			}
			return fatal(eff, &rr, code, "写入历史文件", err)
		}
		historyEntries = len(merged)
	}

	if err := writeReport(eff, &rr); err != nil {
		return fatal(eff, &rr, domain.ErrCodeIOFailed, "写入报告", err)
	}

	if deps.Observer != nil {
		deps.Observer.OnPhaseDone(PhaseWrite, map[string]any{
			"output":  eff.Output,
			"bytes":   len(page),
			"history": historyEntries,
		}, time.Since(writeStarted))
	}
	return rr, nil
}

// fatal 把致命错误追加为合成条目（id 为空，排在最后），并返回 *Error。
func fatal(eff config.EffectiveConfig, rr *domain.RunReport, code, op string, err error) (domain.RunReport, error) {
	rr.Items = append(rr.Items, syntheticFailed(code, fmt.Sprintf("%s失败：%v", op, err)))
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	if werr := writeReport(eff, rr); werr != nil && op != "写入报告" {
		err = errors.Join(err, werr)
	}
	return *rr, &Error{Code: code, Op: op, Err: err}
}

func failedReport(eff config.EffectiveConfig, code, msg string) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Output:     eff.Output,
		StartedAt:  now,
		FinishedAt: now,
		Items:      []domain.ItemResult{syntheticFailed(code, msg)},
	}
	rr.Finalize()
	return rr
}

func writeReport(eff config.EffectiveConfig, rr *domain.RunReport) error {
	if eff.Report == "" || eff.DryRun {
		return nil
	}
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	return fsx.WriteFile(eff.Report, append(b, '\n'))
}
