package lookup

import (
	"slices"
	"testing"
)

func TestRegistry_NamesKeepChainOrder(t *testing.T) {
	web := &stubProvider{name: " TMDBWeb"}
	api := &stubProvider{name: "tmdb"}
	reg, err := NewRegistry(web, api)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := reg.Names(); !slices.Equal(got, []string{"tmdbweb", "tmdb"}) {
		t.Fatalf("期望查询链 [tmdbweb tmdb]，实际 %v", got)
	}

	names := reg.Names()
	names[0] = "changed"
	if reg.Names()[0] != "tmdbweb" {
		t.Fatalf("Names 返回值被修改后不应影响注册表")
	}

	if p, ok := reg.Get("TMDBWEB "); !ok || p != web {
		t.Fatalf("期望按忽略大小写的名字取到 tmdbweb")
	}
	if _, ok := reg.Get("imdb"); ok {
		t.Fatalf("期望未注册的 provider 返回 ok=false")
	}
}

func TestNewRegistry_RejectsNilAndUnnamed(t *testing.T) {
	if _, err := NewRegistry(&stubProvider{name: "tmdb"}, nil); err == nil {
		t.Fatalf("期望 nil provider 报错")
	}
	if _, err := NewRegistry(&stubProvider{name: "  "}); err == nil {
		t.Fatalf("期望空名字报错")
	}
}

func TestRegistry_ZeroValue(t *testing.T) {
	var reg Registry
	if _, ok := reg.Get("tmdb"); ok {
		t.Fatalf("零值注册表不应包含任何 provider")
	}
	if len(reg.Names()) != 0 {
		t.Fatalf("零值注册表的查询链应为空")
	}
}
