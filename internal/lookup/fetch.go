package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
)

const maxBodyBytes = 8 << 20

// Get 发起 GET 并返回响应体；供各 provider 复用统一的状态码语义。
//
// 规则：404 => ErrNotFound；其他非 2xx => *HTTPStatusError；响应体超过 8 MiB 视为错误。
func Get(ctx context.Context, c *http.Client, url string, header http.Header) ([]byte, error) {
	if c == nil {
		return nil, errors.New("http client 为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.Do(req)
	if err != nil {
		var ue *neturl.Error
		if errors.As(err, &ue) {
			ue.URL = RedactURL(ue.URL)
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{
			URL:        RedactURL(url),
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxBodyBytes {
		return nil, fmt.Errorf("响应体超过 %d 字节", maxBodyBytes)
	}
	return b, nil
}
