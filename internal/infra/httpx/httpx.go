package httpx

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	DefaultTimeout    = 20 * time.Second
	DefaultRetryMax   = 2
	DefaultRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 5 * time.Second
)

// Options 描述一个 HTTP client 的网络策略。零值字段使用默认值。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	// RetryMax 为最大重试次数（不含首次尝试）；0 表示不重试，负数使用默认值。
	RetryMax   int
	RetryDelay time.Duration
}

// Transport 把“UA 池 + 代理 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 设计目标：provider/source 只负责“定位资源 + 解析响应”，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	RetryMax int
	// RetryDelay 是指数退避的起始间隔。
	RetryDelay time.Duration

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	// 真正禁用 keep-alive 依赖 Base.DisableKeepAlives。
	DisableKeepAlives bool
}

// retryableStatusError 仅在 Transport 内部流转：触发重试但不会返回给调用方。
type retryableStatusError struct{ code int }

func (e *retryableStatusError) Error() string { return fmt.Sprintf("HTTP %d", e.code) }

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}
	delay := t.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	attempt := 0
	return retry.DoWithData(
		func() (*http.Response, error) {
			attempt++
			r := req.Clone(req.Context())
			if r.Header.Get("User-Agent") == "" {
				r.Header.Set("User-Agent", t.ua.random())
			}
			if t.DisableKeepAlives {
				r.Close = true
			}

			resp, err := t.Base.RoundTrip(r)
			if err != nil {
				return nil, err
			}
			// 最后一次尝试：原样返回响应，让调用方看到真实状态码。
			if attempt <= max && retryableStatus(resp.StatusCode) {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
				_ = resp.Body.Close()
				return nil, &retryableStatusError{code: resp.StatusCode}
			}
			return resp, nil
		},
		retry.Context(req.Context()),
		retry.Attempts(uint(max+1)),
		retry.Delay(delay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// ctx 已取消：不再重试，直接返回最后错误（更可解释）。
			return req.Context().Err() == nil
		}),
	)
}

// retryableStatus 判断状态码是否值得重试：限流与服务端错误。
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// NewClient 构造用于列表下载与元数据查询的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 池：每个请求随机 UA
// - 有界重试（传输错误、429、5xx）+ 总超时
func NewClient(opts Options) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL := strings.TrimSpace(opts.ProxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("proxy url 缺少 scheme 或 host：%q", proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = DefaultRetryMax
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		RetryMax:          retryMax,
		RetryDelay:        opts.RetryDelay,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   timeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
