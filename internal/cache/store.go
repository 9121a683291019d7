package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

type Entry struct {
	Status   int                 `json:"status_code"`
	Header   map[string][]string `json:"headers,omitempty"`
	Body     []byte              `json:"body"`
	CachedAt time.Time           `json:"cached_at"`
}

func (e Entry) Clone() Entry {
	cloned := e
	cloned.Body = append([]byte(nil), e.Body...)
	cloned.Header = cloneHeader(e.Header)
	return cloned
}

func (e Entry) ContentType() string {
	for key, values := range e.Header {
		if strings.EqualFold(key, "Content-Type") && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

type Store interface {
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)
	Put(ctx context.Context, namespace, key string, entry Entry) error
	Keys(ctx context.Context, namespace string) ([]string, error)
	Namespaces(ctx context.Context) ([]string, error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

func Key(method, target string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}
	return method + " " + strings.TrimSpace(target)
}

func normalizeIdentity(namespace, key string) (string, string, error) {
	namespace = strings.TrimSpace(namespace)
	key = strings.TrimSpace(key)
	if namespace == "" {
		return "", "", errors.New("namespace is required")
	}
	if key == "" {
		return "", "", errors.New("key is required")
	}
	return namespace, key, nil
}

func cloneHeader(src map[string][]string) map[string][]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]string, len(src))
	for key, values := range src {
		out[key] = append([]string(nil), values...)
	}
	return out
}
