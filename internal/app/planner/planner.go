package planner

import (
	"github.com/John-Robertt/vixcat/internal/domain"
)

// Options 控制历史记录的复用方式。
type Options struct {
	// Reuse=true 时，历史中带 Details 的非占位条目直接复用，不再访问网络。
	Reuse bool
}

// PlanSource 基于一个来源的 ID 列表与历史记录生成确定性的执行计划（不做任何网络访问）。
//
// 约束：
// - 输出顺序与 ids 一致
// - seen 跨来源共享：同一 (kind, id) 只计划一次，后出现的计入 duplicates
// - 占位记录与缺少 Details 的旧条目永远不会被复用
func PlanSource(kind domain.MediaKind, ids []domain.ID, src int, hist map[string]domain.HistoryEntry, opts Options, seen map[string]struct{}) (plans []domain.ItemPlan, duplicates int) {
	plans = make([]domain.ItemPlan, 0, len(ids))
	for _, id := range ids {
		key := domain.Key(kind, id)
		if seen != nil {
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
		}

		p := domain.ItemPlan{Kind: kind, ID: id, Source: src, NeedLookup: true}
		if opts.Reuse {
			if e, ok := hist[key]; ok && e.Reusable() && e.ID == id && e.Kind == kind {
				p.Cached = &e
				p.NeedLookup = false
			}
		}
		plans = append(plans, p)
	}
	return plans, duplicates
}

// Listed 返回计划中出现过的所有 key（用于 history prune）。
func Listed(plans []domain.ItemPlan) map[string]struct{} {
	out := make(map[string]struct{}, len(plans))
	for _, p := range plans {
		out[domain.Key(p.Kind, p.ID)] = struct{}{}
	}
	return out
}
