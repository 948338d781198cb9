package lookup

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError 表示上游返回了非 2xx（且非 404）的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// StatusOf 从错误链中提取 HTTP 状态码；ErrNotFound 视为 404，其余返回 0。
func StatusOf(err error) int {
	var hs *HTTPStatusError
	if errors.As(err, &hs) {
		return hs.StatusCode
	}
	if errors.Is(err, ErrNotFound) {
		return 404
	}
	return 0
}
