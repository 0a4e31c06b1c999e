package httpx

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultUserAgent = "feed2pod/1.0 (+https://github.com/John-Robertt/feed2pod)"
	DefaultTimeout   = 30 * time.Second
)

// Transport 把“固定 UA + 代理 + 有界重试”固化为统一策略。
//
// 抓取方只关心 URL 与响应，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	UserAgent string

	// RetryMax 表示最大重试次数（不含首次尝试）。默认 0，即不重试。
	RetryMax int
}

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

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		// Clone 复制 Header，避免在 RoundTripper 内部“污染”调用方的 request。
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.UserAgent != "" {
			r.Header.Set("User-Agent", t.UserAgent)
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消：不再重试，直接返回最后错误。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// ClientOptions 是构造抓取 client 所需的网络参数（来自 EffectiveConfig）。
type ClientOptions struct {
	UserAgent string
	Timeout   time.Duration
	RetryMax  int
	ProxyURL  string
}

// NewClient 构造抓取 feed 用的 HTTP client。
//
// 规则：
// - ProxyURL 非空：必须是合法 URL，请求全部走代理
// - ProxyURL 为空：遵循 HTTP(S)_PROXY 环境变量
// - UserAgent/Timeout 为空值时使用默认值
func NewClient(opts ClientOptions) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}

	if p := strings.TrimSpace(opts.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy_url 必须是绝对 URL（例如 http://127.0.0.1:8080）")
		}
		base.Proxy = http.ProxyURL(u)
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: &Transport{
			Base:      base,
			UserAgent: ua,
			RetryMax:  opts.RetryMax,
		},
		Timeout: timeout,
	}, nil
}
