package origin

import (
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

type Fetcher interface {
	Fetch(ctx context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error)
}

type WatcherConfig struct {
	ProbePath    string
	Interval     time.Duration
	ProbeTimeout time.Duration
}

type Watcher struct {
	fetch    Fetcher
	cfg      WatcherConfig
	logger   *log.Logger
	onOnline func(context.Context)

	mu     sync.Mutex
	online bool
}

func NewWatcher(fetch Fetcher, cfg WatcherConfig, onOnline func(context.Context), logger *log.Logger) *Watcher {
	if strings.TrimSpace(cfg.ProbePath) == "" {
		cfg.ProbePath = "/api/status"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{
		fetch:    fetch,
		cfg:      cfg,
		logger:   logger,
		onOnline: onOnline,
		online:   true,
	}
}

func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.logger.Printf("connectivity watcher started: probe=%s interval=%s", w.cfg.ProbePath, w.cfg.Interval)

	w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

func (w *Watcher) Probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
	defer cancel()

	_, err := w.fetch.Fetch(probeCtx, http.MethodGet, w.cfg.ProbePath, nil, nil)
	reachable := err == nil

	w.mu.Lock()
	was := w.online
	w.online = reachable
	w.mu.Unlock()

	switch {
	case !was && reachable:
		w.logger.Printf("origin reachable again, requesting sync replay")
		if w.onOnline != nil {
			w.onOnline(ctx)
		}
	case was && !reachable:
		w.logger.Printf("origin unreachable: %v", err)
	}
}
