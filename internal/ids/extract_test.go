package ids

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/John-Robertt/vixcat/internal/domain"
)

func mustUnwrap(t *testing.T, s string) []json.RawMessage {
	t.Helper()
	items, err := Unwrap([]byte(s))
	if err != nil {
		t.Fatalf("Unwrap 失败：%v", err)
	}
	return items
}

func idsOf(r Result) []string {
	out := make([]string, 0, len(r.IDs))
	for _, id := range r.IDs {
		out = append(out, string(id))
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExtract_DedupAcrossKeys(t *testing.T) {
	items := mustUnwrap(t, `[{"tmdb_id":7},{"id":7},{"tmdbId":"7"}]`)

	res, err := Extract(items, OrderNumeric)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(res); !equal(got, []string{"7"}) {
		t.Fatalf("期望 [7]，实际 %v", got)
	}
	if res.Duplicates != 2 {
		t.Fatalf("期望 duplicates=2，实际 %d", res.Duplicates)
	}
}

func TestExtract_KeyPriority(t *testing.T) {
	// tmdb_id 优先于 id；空值继续探测下一个字段。
	items := mustUnwrap(t, `[{"tmdb_id":5,"id":99},{"tmdb_id":null,"tmdbId":"","id":6},{"tmdb_id":0,"id":8}]`)

	res, err := Extract(items, OrderUpstream)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(res); !equal(got, []string{"5", "6", "8"}) {
		t.Fatalf("期望 [5 6 8]，实际 %v", got)
	}
}

func TestExtract_SkipsNonObjectsAndMissingKeys(t *testing.T) {
	items := mustUnwrap(t, `[{"name":"x"}, 3, "s", null, {"id":2}]`)

	res, err := Extract(items, OrderNumeric)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(res); !equal(got, []string{"2"}) {
		t.Fatalf("期望 [2]，实际 %v", got)
	}
	if res.Skipped != 4 {
		t.Fatalf("期望 skipped=4，实际 %d", res.Skipped)
	}
}

func TestExtract_NonNumericRejected(t *testing.T) {
	items := mustUnwrap(t, `[{"id":"abc"},{"id":1.5},{"id":-4},{"id":true},{"id":"12"},{"id":3.0}]`)

	res, err := Extract(items, OrderNumeric)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(res); !equal(got, []string{"3", "12"}) {
		t.Fatalf("期望 [3 12]，实际 %v", got)
	}
	if len(res.Rejected) != 4 {
		t.Fatalf("期望 4 个 rejected，实际 %+v", res.Rejected)
	}
	if res.Rejected[0].Index != 0 || res.Rejected[0].Key != "id" {
		t.Fatalf("rejected 定位信息不正确：%+v", res.Rejected[0])
	}
}

func TestExtract_OrderModes(t *testing.T) {
	items := mustUnwrap(t, `{"results":[{"id":30},{"id":4},{"id":100}]}`)

	num, err := Extract(items, OrderNumeric)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(num); !equal(got, []string{"4", "30", "100"}) {
		t.Fatalf("numeric：期望 [4 30 100]，实际 %v", got)
	}

	up, err := Extract(items, OrderUpstream)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := idsOf(up); !equal(got, []string{"30", "4", "100"}) {
		t.Fatalf("upstream：期望 [30 4 100]，实际 %v", got)
	}

	if _, err := Extract(items, ""); err == nil {
		t.Fatalf("期望未指定 order 时报错")
	}
}

func TestExtract_CustomKeys(t *testing.T) {
	items := mustUnwrap(t, `[{"tmdb":"11","id":1}]`)
	res, err := Extract(items, OrderNumeric, "tmdb")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(res.IDs) != 1 || res.IDs[0] != domain.ID("11") {
		t.Fatalf("期望 [11]，实际 %v", res.IDs)
	}
}

func TestUnwrap_Envelopes(t *testing.T) {
	if items := mustUnwrap(t, `{"result":[{"id":1}]}`); len(items) != 1 {
		t.Fatalf("期望 result 包装被解开，实际 %d 条", len(items))
	}
	if items := mustUnwrap(t, `{"results":"x","result":[{"id":1},{"id":2}]}`); len(items) != 2 {
		t.Fatalf("results 非数组时应回退到 result，实际 %d 条", len(items))
	}
	if _, err := Unwrap([]byte(`{"data":[]}`)); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("期望 ErrBadEnvelope，实际 %v", err)
	}
	if _, err := Unwrap([]byte(`42`)); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("期望 ErrBadEnvelope，实际 %v", err)
	}
}

func TestParseOrder(t *testing.T) {
	if o, err := ParseOrder("Numeric"); err != nil || o != OrderNumeric {
		t.Fatalf("期望 numeric，实际 %q err=%v", o, err)
	}
	if _, err := ParseOrder(""); err == nil {
		t.Fatalf("期望空 order 报错")
	}
	if _, err := ParseOrder("random"); err == nil {
		t.Fatalf("期望非法 order 报错")
	}
}
