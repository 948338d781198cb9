package lookup

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
)

const (
	StageFetch = "fetch"
	StageParse = "parse"
	StageOK    = "ok"
)

// Attempt 记录一次 provider 尝试（用于解释 fallback/降级原因）。
type Attempt struct {
	Provider string // provider name（小写）
	Stage    string // "fetch" / "parse" / "ok"
	Err      error  // nil when Stage=="ok"
}

// Error 是查询阶段的可追溯错误（LookupError）。
// 上层据此把失败归类为 not_found / lookup_failed / parse_failed，并写入 report。
type Error struct {
	Provider string
	Kind     domain.MediaKind
	ID       domain.ID
	Stage    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s %s/%s stage=%s: %v", e.Provider, e.Kind, e.ID, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Status 返回底层 HTTP 状态码（未知为 0）。
func (e *Error) Status() int { return StatusOf(e.Err) }

// Result 是一次成功查询的结果。
type Result struct {
	Details  domain.Details
	Provider string
	PageURL  string
}

// Resolve 按 chain 顺序查询 (kind, id) 的元数据。
//
// 规则：
// - 某个 provider 成功：立即返回
// - Fetch 返回 ErrNotFound：终止整条链，返回包装了 ErrNotFound 的 *Error
// - 其他 fetch/parse 失败：记录 attempt，尝试下一个 provider
// - ctx 已取消：不再尝试后续 provider
//
// 返回的 attempts 总是完整的尝试链路（成功时最后一条为 "ok"）。
func Resolve(ctx context.Context, reg Registry, chain []string, kind domain.MediaKind, id domain.ID, c *http.Client) (Result, []Attempt, error) {
	if !kind.Valid() {
		return Result{}, nil, fmt.Errorf("非法 kind：%q", kind)
	}
	if id == "" {
		return Result{}, nil, fmt.Errorf("id 不能为空")
	}
	if len(chain) == 0 {
		return Result{}, nil, fmt.Errorf("provider 链为空")
	}

	var (
		attempts []Attempt
		lastErr  error
	)
	for _, raw := range chain {
		name := strings.ToLower(strings.TrimSpace(raw))
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = &Error{Provider: name, Kind: kind, ID: id, Stage: StageFetch, Err: err}
			}
			break
		}

		p, ok := reg.Get(name)
		if !ok {
			err := fmt.Errorf("provider 未注册：%q", name)
			lastErr = &Error{Provider: name, Kind: kind, ID: id, Stage: StageFetch, Err: err}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: err})
			continue
		}

		body, pageURL, ferr := p.Fetch(ctx, kind, id, c)
		if ferr != nil {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: ferr})
			lastErr = &Error{Provider: name, Kind: kind, ID: id, Stage: StageFetch, Err: ferr}
			if IsNotFound(ferr) {
				return Result{}, attempts, lastErr
			}
			continue
		}

		d, perr := p.Parse(kind, id, body, pageURL)
		if perr != nil {
			attempts = append(attempts, Attempt{Provider: name, Stage: StageParse, Err: perr})
			lastErr = &Error{Provider: name, Kind: kind, ID: id, Stage: StageParse, Err: perr}
			continue
		}

		attempts = append(attempts, Attempt{Provider: name, Stage: StageOK})
		return Result{Details: d, Provider: name, PageURL: pageURL}, attempts, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("无可用 provider")
	}
	return Result{}, attempts, lastErr
}
