package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/i474232898/air-quality-aggregation/internal/common"
)

// Transport performs a single outbound GET and returns the response body.
// Non-2xx responses are reported as errors.
type Transport interface {
	Get(ctx context.Context, rawURL string, header map[string]string) ([]byte, error)
}

var (
	errNoProxies        = errors.New("no CORS proxies configured")
	errAllProxiesFailed = errors.New("all CORS proxies failed")
)

// DirectTransport calls upstream endpoints directly.
type DirectTransport struct {
	client *resty.Client
}

// NewDirectTransport wraps client. A nil client gets resty defaults.
func NewDirectTransport(client *resty.Client) *DirectTransport {
	if client == nil {
		client = resty.New()
	}
	return &DirectTransport{client: client}
}

func (t *DirectTransport) Get(ctx context.Context, rawURL string, header map[string]string) ([]byte, error) {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeaders(header).
		Get(rawURL)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp.StatusCode()); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// ProxiedTransport routes calls through CORS proxies, trying each in order
// until one answers with a 2xx.
type ProxiedTransport struct {
	client  *resty.Client
	proxies []string
}

// NewProxiedTransport creates a transport over the given proxy prefixes,
// e.g. "https://corsproxy.io/?" or "https://api.allorigins.win/get?url=".
func NewProxiedTransport(client *resty.Client, proxies []string) *ProxiedTransport {
	if client == nil {
		client = resty.New()
	}
	return &ProxiedTransport{client: client, proxies: proxies}
}

func (t *ProxiedTransport) Get(ctx context.Context, rawURL string, header map[string]string) ([]byte, error) {
	if len(t.proxies) == 0 {
		return nil, errNoProxies
	}

	var lastErr error
	for _, proxy := range t.proxies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// allorigins expects an escaped target and wraps the body in {"contents": ...}.
		wrapped := common.HasAny(proxy, "allorigins")
		target := proxy + rawURL
		if wrapped {
			target = proxy + url.QueryEscape(rawURL)
		}

		resp, err := t.client.R().
			SetContext(ctx).
			SetHeaders(header).
			Get(target)
		if err != nil {
			lastErr = err
			continue
		}
		if err := checkStatus(resp.StatusCode()); err != nil {
			lastErr = fmt.Errorf("proxy %s: %w", proxy, err)
			continue
		}

		body := resp.Body()
		if wrapped {
			body = unwrapContents(body)
		}
		return body, nil
	}

	return nil, fmt.Errorf("%w: %w", errAllProxiesFailed, lastErr)
}

// unwrapContents extracts the proxied body from an allorigins envelope.
// Bodies without the envelope are returned unchanged.
func unwrapContents(body []byte) []byte {
	var envelope struct {
		Contents *string `json:"contents"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Contents == nil {
		return body
	}
	return []byte(*envelope.Contents)
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return errRateLimited
	case code >= 500:
		return errServerError
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: %d", errUnexpected, code)
	}
	return nil
}
