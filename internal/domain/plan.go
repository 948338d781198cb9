package domain

// ItemPlan 是对某个 (kind, id) 的最小执行计划。
//
// Cached 非空且 NeedLookup=false 时从历史中的 Details 重新派生，不访问网络。
type ItemPlan struct {
	Kind   MediaKind
	ID     ID
	Source int // 来源在配置中的下标，用于保持输出顺序

	Cached     *HistoryEntry
	NeedLookup bool
}
