package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/khaledaj/attendance-gateway/internal/api"
	"github.com/khaledaj/attendance-gateway/internal/cache"
	"github.com/khaledaj/attendance-gateway/internal/config"
	"github.com/khaledaj/attendance-gateway/internal/engine"
	"github.com/khaledaj/attendance-gateway/internal/lifecycle"
	"github.com/khaledaj/attendance-gateway/internal/notify"
	"github.com/khaledaj/attendance-gateway/internal/origin"
	"github.com/khaledaj/attendance-gateway/internal/shell"
	"github.com/khaledaj/attendance-gateway/internal/strategy"
	"github.com/khaledaj/attendance-gateway/internal/syncqueue"
)

func main() {
	cfg := config.Load()
	log.Printf("config loaded: origin=%s namespace=%s-%s backend=%s", cfg.OriginURL, cfg.CacheName, cfg.CacheVersion, cfg.CacheBackend)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("cache store init failed: %v", err)
	}
	defer closeStore()

	journal, closeJournal, err := openJournal(ctx, cfg)
	if err != nil {
		log.Fatalf("sync journal init failed: %v", err)
	}
	defer closeJournal()

	client, err := origin.NewClient(cfg.OriginURL, cfg.OriginTimeout)
	if err != nil {
		log.Fatalf("origin client init failed: %v", err)
	}

	hub := shell.NewHub(nil)
	dispatcher := notify.NewDispatcher(hub, hub, nil)
	manager := lifecycle.NewManager(store, client, hub, lifecycle.Config{
		CacheName:    cfg.CacheName,
		CacheVersion: cfg.CacheVersion,
	}, nil)

	work := engine.NewWorkGroup()
	strategyEngine := strategy.New(store, client, strategy.Config{
		Namespace:  manager.Namespace(),
		APIPrefix:  cfg.APIPrefix,
		OriginHost: client.Host(),
	}, work.Go, nil)

	queue := syncqueue.New(journal, client, cfg.SyncTag, nil)

	eng := engine.New(manager, strategyEngine, queue, dispatcher, hub, work, engine.Config{
		Manifest:     cfg.Precache,
		PollInterval: cfg.ActivationPoll,
	}, nil)

	hub.OnControlMessage = func(ctx context.Context, messageType string) {
		_ = eng.Dispatch(ctx, engine.Event{Kind: engine.EventMessage, Message: engine.Message{Type: messageType}})
	}
	hub.OnNotificationClick = func(ctx context.Context, tag, action string) {
		_ = eng.Dispatch(ctx, engine.Event{Kind: engine.EventNotificationClick, Click: notify.Click{Tag: tag, Action: action}})
	}

	watcher := origin.NewWatcher(client, origin.WatcherConfig{
		ProbePath: cfg.ProbePath,
		Interval:  cfg.ProbeInterval,
	}, func(ctx context.Context) {
		if err := eng.Dispatch(ctx, engine.Event{Kind: engine.EventSync, Tag: cfg.SyncTag}); err != nil {
			log.Printf("sync replay failed, actions stay journaled: %v", err)
		}
	}, nil)

	feed := origin.NewFeed(origin.FeedConfig{
		URL:       feedURL(cfg),
		RetryBase: cfg.FeedRetryBase,
		RetryMax:  cfg.FeedRetryMax,
	}, func(ctx context.Context, payload []byte) {
		_ = eng.Dispatch(ctx, engine.Event{Kind: engine.EventPush, Payload: payload})
	}, nil)

	server := api.NewServer(eng, strategyEngine, queue, dispatcher, store, hub, manager, watcher, feed, cfg.AdminKey, nil)

	// A failed install leaves the gateway serving passthrough; /internal/install retries it.
	if err := eng.Dispatch(ctx, engine.Event{Kind: engine.EventInstall}); err != nil {
		log.Printf("install failed, serving without precache: %v", err)
	}
	eng.RunActivation(ctx)

	if depth, err := queue.Depth(ctx); err == nil && depth > 0 {
		log.Printf("replaying %d journaled actions from a previous run", depth)
		if err := eng.Dispatch(ctx, engine.Event{Kind: engine.EventSync, Tag: cfg.SyncTag}); err != nil {
			log.Printf("boot replay failed, actions stay journaled: %v", err)
		}
	}

	go watcher.Run(ctx)
	go feed.Run(ctx)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Printf("gateway listening on %s (origin %s)", cfg.HTTPAddr, client.Host())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("event drain error: %v", err)
	}
	hub.Drain()
}

func openStore(cfg config.Config) (cache.Store, func(), error) {
	switch cfg.CacheBackend {
	case "memory":
		log.Printf("cache store: in-memory")
		return cache.NewInMemoryStore(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		log.Printf("cache store: redis at %s", cfg.RedisAddr)
		return cache.NewRedisStore(client, ""), func() { _ = client.Close() }, nil
	default:
		store, err := cache.OpenBolt(cfg.CachePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("cache store: bolt at %s", cfg.CachePath)
		return store, func() { _ = store.Close() }, nil
	}
}

func openJournal(ctx context.Context, cfg config.Config) (syncqueue.Journal, func(), error) {
	if cfg.PostgresDSN == "" {
		log.Printf("sync journal: in-memory (set POSTGRES_DSN for a durable journal)")
		return syncqueue.NewMemoryJournal(), func() {}, nil
	}
	journal, err := syncqueue.NewPostgresJournal(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("sync journal: postgres")
	return journal, journal.Close, nil
}

func feedURL(cfg config.Config) string {
	if !cfg.FeedEnabled {
		return ""
	}
	raw := strings.TrimSpace(cfg.OriginURL)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ""
	}
	if parsed.Scheme == "https" {
		parsed.Scheme = "wss"
	} else {
		parsed.Scheme = "ws"
	}
	path := strings.TrimSpace(cfg.FeedPath)
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	parsed.Path = path
	parsed.RawQuery = ""
	return parsed.String()
}
