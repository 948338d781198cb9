package lookup

import (
	"context"
	"errors"
	"net/http"

	"github.com/John-Robertt/vixcat/internal/domain"
)

// Provider 把“元数据源变化”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 Details。
//
// 约束：
// - Fetch 不做缓存、不做重试、不做限速（这些由 httpx 与 run 层统一实现）
// - Fetch 遇到 HTTP 404 必须返回 ErrNotFound（条目在上游不存在，不是故障）
// - Parse 必须是纯函数：相同输入 => 相同输出
// - pageURL 是可追溯的来源地址（写入 report）；不得包含 API key
type Provider interface {
	Name() string
	Fetch(ctx context.Context, kind domain.MediaKind, id domain.ID, c *http.Client) (body []byte, pageURL string, err error)
	Parse(kind domain.MediaKind, id domain.ID, body []byte, pageURL string) (domain.Details, error)
}

// ErrNotFound 表示上游确认该条目不存在（HTTP 404）。
// 它终止 provider 链：同一 ID 换一个来源也不会存在。
var ErrNotFound = errors.New("条目不存在（HTTP 404）")

// IsNotFound 判断 err 是否表示条目不存在。
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
