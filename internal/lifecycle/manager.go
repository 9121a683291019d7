package lifecycle

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

type Fetcher interface {
	Fetch(ctx context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error)
}

type Claimer interface {
	Claim(ctx context.Context) error
}

type Config struct {
	CacheName    string
	CacheVersion string
}

type Manager struct {
	store   cache.Store
	fetch   Fetcher
	claimer Claimer
	cfg     Config
	logger  *log.Logger

	skipOnce sync.Once
	skipCh   chan struct{}
}

func NewManager(store cache.Store, fetch Fetcher, claimer Claimer, cfg Config, logger *log.Logger) *Manager {
	if strings.TrimSpace(cfg.CacheName) == "" {
		cfg.CacheName = "attendance-tracker"
	}
	if strings.TrimSpace(cfg.CacheVersion) == "" {
		cfg.CacheVersion = "v1.0.0"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		store:   store,
		fetch:   fetch,
		claimer: claimer,
		cfg:     cfg,
		logger:  logger,
		skipCh:  make(chan struct{}),
	}
}

func (m *Manager) Namespace() string {
	return m.cfg.CacheName + "-" + m.cfg.CacheVersion
}

func (m *Manager) Prefix() string {
	return m.cfg.CacheName + "-"
}

func (m *Manager) SkipWaiting() {
	m.skipOnce.Do(func() {
		close(m.skipCh)
		m.logger.Printf("skip waiting requested: namespace=%s", m.Namespace())
	})
}

func (m *Manager) SkipRequested() <-chan struct{} {
	return m.skipCh
}

// Install stages every manifest fetch before the first write so a failed
// fetch never leaves a partially populated namespace behind.
func (m *Manager) Install(ctx context.Context, manifest []string) error {
	if len(manifest) == 0 {
		return fmt.Errorf("install manifest is empty")
	}
	namespace := m.Namespace()

	staged := make([]cache.Entry, 0, len(manifest))
	for _, target := range manifest {
		entry, err := m.fetch.Fetch(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			return fmt.Errorf("install fetch %s: %w", target, err)
		}
		if entry.Status < 200 || entry.Status >= 300 {
			return fmt.Errorf("install fetch %s returned status %d", target, entry.Status)
		}
		staged = append(staged, entry)
	}

	for i, target := range manifest {
		if err := m.store.Put(ctx, namespace, cache.Key(http.MethodGet, target), staged[i]); err != nil {
			if derr := m.store.DeleteNamespace(ctx, namespace); derr != nil {
				m.logger.Printf("install cleanup failed: namespace=%s err=%v", namespace, derr)
			}
			return fmt.Errorf("install write %s: %w", target, err)
		}
	}

	m.logger.Printf("install complete: namespace=%s entries=%d", namespace, len(manifest))
	m.SkipWaiting()
	return nil
}

func (m *Manager) Activate(ctx context.Context) error {
	current := m.Namespace()
	namespaces, err := m.store.Namespaces(ctx)
	if err != nil {
		return fmt.Errorf("activate list namespaces: %w", err)
	}

	purged := 0
	for _, name := range namespaces {
		if name == current || !strings.HasPrefix(name, m.Prefix()) {
			continue
		}
		if err := m.store.DeleteNamespace(ctx, name); err != nil {
			return fmt.Errorf("activate purge %s: %w", name, err)
		}
		m.logger.Printf("purged stale cache namespace: %s", name)
		purged++
	}

	if m.claimer != nil {
		if err := m.claimer.Claim(ctx); err != nil {
			m.logger.Printf("client claim failed: %v", err)
		}
	}

	m.logger.Printf("activation complete: namespace=%s purged=%d", current, purged)
	return nil
}
