package origin

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

const maxResponseBytes = 10 << 20

// Hop-by-hop headers must not be forwarded upstream.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

type Client struct {
	base       *url.URL
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse origin base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("origin base url has no host")
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		base:       parsed,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Host() string {
	return c.base.Host
}

func (c *Client) Fetch(ctx context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error) {
	resolved, err := c.resolve(target)
	if err != nil {
		return cache.Entry{}, err
	}
	if strings.TrimSpace(method) == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), resolved, reader)
	if err != nil {
		return cache.Entry{}, fmt.Errorf("build origin request: %w", err)
	}
	copyForwardHeaders(req.Header, header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cache.Entry{}, fmt.Errorf("origin fetch %s %s: %w", req.Method, target, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return cache.Entry{}, fmt.Errorf("read origin response: %w", err)
	}

	return cache.Entry{
		Status:   resp.StatusCode,
		Header:   cloneResponseHeader(resp.Header),
		Body:     payload,
		CachedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) resolve(target string) (string, error) {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return "", fmt.Errorf("fetch target is required")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed, nil
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse fetch target: %w", err)
	}
	return c.base.ResolveReference(ref).String(), nil
}

func copyForwardHeaders(dst http.Header, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func cloneResponseHeader(src http.Header) map[string][]string {
	out := make(map[string][]string, len(src))
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

func isHopByHop(key string) bool {
	for _, name := range hopByHopHeaders {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}
