package planner

import (
	"testing"

	"github.com/John-Robertt/vixcat/internal/domain"
)

func TestPlanSource_ReuseOnlyWhenEnabled(t *testing.T) {
	hist := map[string]domain.HistoryEntry{
		"movie:1": {Record: domain.Record{ID: "1", Kind: domain.KindMovie, Title: "Alpha"}, Details: &domain.Details{Title: "Alpha"}},
		"movie:2": {Record: domain.Record{ID: "2", Kind: domain.KindMovie, Title: "ID 2", Placeholder: true}},
		// 旧格式：没有 details，无法按当前配置重新派生。
		"movie:3": {Record: domain.Record{ID: "3", Kind: domain.KindMovie, Title: "Gamma"}},
	}
	ids := []domain.ID{"1", "2", "3", "4"}

	plans, dup := PlanSource(domain.KindMovie, ids, 0, hist, Options{Reuse: false}, nil)
	if dup != 0 || len(plans) != 4 {
		t.Fatalf("期望 4 条计划，实际 %d (dup=%d)", len(plans), dup)
	}
	for _, p := range plans {
		if !p.NeedLookup || p.Cached != nil {
			t.Fatalf("reuse=false 时不应复用：%+v", p)
		}
	}

	plans, _ = PlanSource(domain.KindMovie, ids, 0, hist, Options{Reuse: true}, nil)
	if plans[0].NeedLookup || plans[0].Cached == nil || plans[0].Cached.Title != "Alpha" {
		t.Fatalf("期望复用 movie:1，实际 %+v", plans[0])
	}
	if !plans[1].NeedLookup {
		t.Fatalf("占位记录不应被复用：%+v", plans[1])
	}
	if !plans[2].NeedLookup {
		t.Fatalf("缺少 details 的旧条目必须重新查询：%+v", plans[2])
	}
	if !plans[3].NeedLookup {
		t.Fatalf("历史中不存在的条目必须查询：%+v", plans[3])
	}
}

func TestPlanSource_OrderAndCrossSourceDedup(t *testing.T) {
	seen := map[string]struct{}{}

	a, dup := PlanSource(domain.KindMovie, []domain.ID{"5", "2"}, 0, nil, Options{}, seen)
	if dup != 0 || a[0].ID != "5" || a[1].ID != "2" {
		t.Fatalf("顺序应与输入一致：%+v", a)
	}

	b, dup := PlanSource(domain.KindMovie, []domain.ID{"2", "7"}, 1, nil, Options{}, seen)
	if dup != 1 || len(b) != 1 || b[0].ID != "7" || b[0].Source != 1 {
		t.Fatalf("跨来源重复应被跳过：%+v dup=%d", b, dup)
	}

	// 同一 id 不同 kind 不算重复。
	c, dup := PlanSource(domain.KindTV, []domain.ID{"2"}, 2, nil, Options{}, seen)
	if dup != 0 || len(c) != 1 {
		t.Fatalf("tv:2 与 movie:2 是不同条目：%+v dup=%d", c, dup)
	}

	listed := Listed(append(append(a, b...), c...))
	for _, k := range []string{"movie:5", "movie:2", "movie:7", "tv:2"} {
		if _, ok := listed[k]; !ok {
			t.Fatalf("Listed 缺少 %q：%v", k, listed)
		}
	}
}
