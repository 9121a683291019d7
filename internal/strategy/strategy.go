package strategy

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

type Fetcher interface {
	Fetch(ctx context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error)
}

type Request struct {
	Method     string
	Target     string
	Header     http.Header
	Body       []byte
	Navigation bool
}

type Mode string

const (
	ModeDynamic    Mode = "dynamic"
	ModeStatic     Mode = "static"
	ModeNavigation Mode = "navigation"
)

type Outcome string

const (
	OutcomeLive         Outcome = "live"
	OutcomeCache        Outcome = "cache"
	OutcomeOfflineJSON  Outcome = "offline_json"
	OutcomeOfflinePage  Outcome = "offline_page"
	OutcomeRootFallback Outcome = "root_fallback"
	OutcomeUnavailable  Outcome = "unavailable"
)

type Served struct {
	Entry   cache.Entry
	Mode    Mode
	Outcome Outcome
}

type Config struct {
	Namespace  string
	APIPrefix  string
	OriginHost string
}

type Engine struct {
	store      cache.Store
	fetch      Fetcher
	cfg        Config
	background func(func())
	logger     *log.Logger
	stats      Stats
}

func New(store cache.Store, fetch Fetcher, cfg Config, background func(func()), logger *log.Logger) *Engine {
	if strings.TrimSpace(cfg.APIPrefix) == "" {
		cfg.APIPrefix = "/api/"
	}
	if background == nil {
		background = func(fn func()) { fn() }
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:      store,
		fetch:      fetch,
		cfg:        cfg,
		background: background,
		logger:     logger,
	}
}

// Handle always produces a response. Network and cache failures degrade to
// the synthesized offline fallbacks instead of propagating.
func (e *Engine) Handle(ctx context.Context, req Request) Served {
	req.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Target = strings.TrimSpace(req.Target)

	if e.isDynamic(req.Target) {
		e.stats.DynamicRequests.Add(1)
		return e.networkFirst(ctx, req)
	}
	if req.Navigation {
		e.stats.NavigationRequests.Add(1)
	} else {
		e.stats.StaticRequests.Add(1)
	}
	return e.cacheFirst(ctx, req)
}

func (e *Engine) networkFirst(ctx context.Context, req Request) Served {
	key := cache.Key(req.Method, req.Target)

	live, err := e.fetch.Fetch(ctx, req.Method, req.Target, req.Header, req.Body)
	if err == nil {
		if live.Status >= 200 && live.Status < 300 {
			e.writeThrough(key, live)
		}
		e.stats.LiveResponses.Add(1)
		return Served{Entry: live, Mode: ModeDynamic, Outcome: OutcomeLive}
	}
	e.logger.Printf("network-first fetch failed: %s %s err=%v", req.Method, req.Target, err)

	cached, ok, cerr := e.store.Get(ctx, e.cfg.Namespace, key)
	if cerr != nil {
		e.logger.Printf("cache read failed: key=%q err=%v", key, cerr)
	}
	if ok {
		e.stats.CacheHits.Add(1)
		return Served{Entry: cached, Mode: ModeDynamic, Outcome: OutcomeCache}
	}

	e.stats.OfflineJSONResponses.Add(1)
	return Served{Entry: offlineJSONEntry(), Mode: ModeDynamic, Outcome: OutcomeOfflineJSON}
}

func (e *Engine) cacheFirst(ctx context.Context, req Request) Served {
	mode := ModeStatic
	if req.Navigation {
		mode = ModeNavigation
	}
	key := cache.Key(req.Method, req.Target)

	cached, ok, cerr := e.store.Get(ctx, e.cfg.Namespace, key)
	if cerr != nil {
		e.logger.Printf("cache read failed: key=%q err=%v", key, cerr)
	}
	if ok {
		e.stats.CacheHits.Add(1)
		return Served{Entry: cached, Mode: mode, Outcome: OutcomeCache}
	}

	live, err := e.fetch.Fetch(ctx, req.Method, req.Target, req.Header, req.Body)
	if err == nil {
		if live.Status == http.StatusOK && req.Method == http.MethodGet && e.sameOrigin(req.Target) {
			e.writeThrough(key, live)
		}
		e.stats.LiveResponses.Add(1)
		return Served{Entry: live, Mode: mode, Outcome: OutcomeLive}
	}
	e.logger.Printf("cache-first fetch failed: %s %s err=%v", req.Method, req.Target, err)

	if req.Navigation {
		root, ok, rerr := e.store.Get(ctx, e.cfg.Namespace, cache.Key(http.MethodGet, "/"))
		if rerr != nil {
			e.logger.Printf("cache read failed: key=%q err=%v", "GET /", rerr)
		}
		if ok {
			e.stats.RootFallbacks.Add(1)
			return Served{Entry: root, Mode: mode, Outcome: OutcomeRootFallback}
		}
		e.stats.OfflinePageResponses.Add(1)
		return Served{Entry: offlinePageEntry(), Mode: mode, Outcome: OutcomeOfflinePage}
	}

	e.stats.UnavailableResponses.Add(1)
	return Served{Entry: unavailableEntry(), Mode: mode, Outcome: OutcomeUnavailable}
}

// Cache writes ride on the keep-alive group with a detached context so a
// canceled request cannot abort them.
func (e *Engine) writeThrough(key string, entry cache.Entry) {
	snapshot := entry.Clone()
	namespace := e.cfg.Namespace
	e.background(func() {
		if err := e.store.Put(context.Background(), namespace, key, snapshot); err != nil {
			e.stats.CacheWriteFailures.Add(1)
			e.logger.Printf("cache write failed: key=%q err=%v", key, err)
		}
	})
}

func (e *Engine) isDynamic(target string) bool {
	return e.sameOrigin(target) && strings.HasPrefix(requestPath(target), e.cfg.APIPrefix)
}

func (e *Engine) sameOrigin(target string) bool {
	trimmed := strings.TrimSpace(target)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return true
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	return parsed.Host == e.cfg.OriginHost
}

func requestPath(target string) string {
	parsed, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return target
	}
	return parsed.Path
}

func IsNavigation(method string, header http.Header) bool {
	if !strings.EqualFold(strings.TrimSpace(method), http.MethodGet) {
		return false
	}
	if mode := header.Get("Sec-Fetch-Mode"); mode != "" {
		return strings.EqualFold(mode, "navigate")
	}
	return strings.Contains(header.Get("Accept"), "text/html")
}
