package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/John-Robertt/vixcat/internal/domain"
	"github.com/John-Robertt/vixcat/internal/ids"
	"github.com/John-Robertt/vixcat/internal/lookup"
)

const (
	DefaultMovieURL = "https://vixsrc.to/api/list/movie?lang=it"
	DefaultTVURL    = "https://vixsrc.to/api/list/tv?lang=it"
)

// Source 是一个目录列表来源。
//
// 约束：Order 必须显式给出；Keys 为空时使用 ids.DefaultKeys。
type Source struct {
	Kind  domain.MediaKind
	URL   string
	Order ids.Order
	Keys  []string
}

// Defaults 返回内置的电影 + 剧集来源（数值升序，便于 diff）。
func Defaults() []Source {
	return []Source{
		{Kind: domain.KindMovie, URL: DefaultMovieURL, Order: ids.OrderNumeric},
		{Kind: domain.KindTV, URL: DefaultTVURL, Order: ids.OrderNumeric},
	}
}

// Error 表示整个来源不可用；只影响该来源，不影响其他来源。
type Error struct {
	Kind domain.MediaKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("来源 %s（%s）不可用：%v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Status 返回底层 HTTP 状态码（未知为 0）。
func (e *Error) Status() int { return lookup.StatusOf(e.Err) }

// Fetch 下载来源列表并解开 results/result 包装。任何失败都返回 *Error。
func Fetch(ctx context.Context, c *http.Client, src Source) ([]json.RawMessage, error) {
	if strings.TrimSpace(src.URL) == "" {
		return nil, &Error{Kind: src.Kind, URL: src.URL, Err: fmt.Errorf("url 为空")}
	}

	h := http.Header{}
	h.Set("Accept", "application/json")
	b, err := lookup.Get(ctx, c, src.URL, h)
	if err != nil {
		return nil, &Error{Kind: src.Kind, URL: src.URL, Err: err}
	}

	items, err := ids.Unwrap(b)
	if err != nil {
		return nil, &Error{Kind: src.Kind, URL: src.URL, Err: err}
	}
	return items, nil
}
