package lookup

import (
	"fmt"
	"slices"
	"strings"
)

// Registry 记录本次运行可用的元数据源，并保留注册顺序。
//
// 注册顺序就是查询链：配置里 providers = ["tmdb", "tmdbweb"] 时，
// 先查 API，API 不可用或解析失败再退到网页源；404 则整条链终止（见 Resolve）。
type Registry struct {
	byName map[string]Provider
	order  []string
}

// NewRegistry 按传入顺序注册 provider。
//
// 约束：
// - name 忽略大小写与首尾空白（"TMDB " 与 "tmdb" 是同一个源）
// - nil provider、空 name、重复 name 都是构造错误，不会静默覆盖
func NewRegistry(providers ...Provider) (Registry, error) {
	r := Registry{
		byName: make(map[string]Provider, len(providers)),
		order:  make([]string, 0, len(providers)),
	}
	for i, p := range providers {
		if p == nil {
			return Registry{}, fmt.Errorf("第 %d 个 provider 为空", i+1)
		}
		name := providerKey(p.Name())
		if name == "" {
			return Registry{}, fmt.Errorf("第 %d 个 provider 缺少名字", i+1)
		}
		if _, ok := r.byName[name]; ok {
			return Registry{}, fmt.Errorf("provider %q 在查询链中出现了两次", name)
		}
		r.byName[name] = p
		r.order = append(r.order, name)
	}
	return r, nil
}

// Get 按名字取 provider。未注册时 ok=false，Resolve 把它记为一次 fetch 失败后继续下一个。
func (r Registry) Get(name string) (Provider, bool) {
	p, ok := r.byName[providerKey(name)]
	return p, ok
}

// Names 返回注册顺序的 provider 名（小写），即默认查询链。
func (r Registry) Names() []string {
	return slices.Clone(r.order)
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
