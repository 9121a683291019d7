package api

import (
	"log"
	"net/http"
	"time"

	"github.com/khaledaj/attendance-gateway/internal/cache"
	"github.com/khaledaj/attendance-gateway/internal/engine"
	"github.com/khaledaj/attendance-gateway/internal/lifecycle"
	"github.com/khaledaj/attendance-gateway/internal/notify"
	"github.com/khaledaj/attendance-gateway/internal/shell"
	"github.com/khaledaj/attendance-gateway/internal/strategy"
	"github.com/khaledaj/attendance-gateway/internal/syncqueue"
	"github.com/khaledaj/attendance-gateway/pkg/httpx"
)

// ConnectivityProbe reports whether the origin is currently reachable.
type ConnectivityProbe interface {
	Online() bool
}

// FeedState reports whether the origin event feed is attached.
type FeedState interface {
	Connected() bool
}

type Server struct {
	engine     *engine.Engine
	strategy   *strategy.Engine
	queue      *syncqueue.Queue
	dispatcher *notify.Dispatcher
	store      cache.Store
	hub        *shell.Hub
	lifecycle  *lifecycle.Manager
	probe      ConnectivityProbe
	feed       FeedState
	adminKey   string
	limiter    *fixedWindowLimiter
	logger     *log.Logger
}

func NewServer(
	eng *engine.Engine,
	st *strategy.Engine,
	queue *syncqueue.Queue,
	dispatcher *notify.Dispatcher,
	store cache.Store,
	hub *shell.Hub,
	lc *lifecycle.Manager,
	probe ConnectivityProbe,
	feed FeedState,
	adminKey string,
	logger *log.Logger,
) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		engine:     eng,
		strategy:   st,
		queue:      queue,
		dispatcher: dispatcher,
		store:      store,
		hub:        hub,
		lifecycle:  lc,
		probe:      probe,
		feed:       feed,
		adminKey:   adminKey,
		limiter:    newFixedWindowLimiter(controlRatePerMinute, time.Minute),
		logger:     logger,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/internal/status", s.handleStatus)
	mux.HandleFunc("/internal/events", s.handleEvents)
	mux.HandleFunc("/internal/message", s.handleControlMessage)
	mux.HandleFunc("/internal/install", s.handleInstall)
	mux.HandleFunc("/internal/sync", s.handleSync)
	mux.HandleFunc("/internal/push", s.handlePush)
	mux.HandleFunc("/internal/cache", s.handleCacheIndex)
	mux.HandleFunc("/internal/cache/", s.handleCacheByNamespace)
	mux.HandleFunc("/", s.handleFetch)

	return s.withControlSecurity(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	pending, err := s.queue.Depth(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "status_failed", err.Error())
		return
	}

	online := true
	if s.probe != nil {
		online = s.probe.Online()
	}
	feedConnected := s.feed != nil && s.feed.Connected()

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"namespace":      s.lifecycle.Namespace(),
		"installed":      s.engine.Installed(),
		"activated":      s.engine.Activated(),
		"online":         online,
		"feed_connected": feedConnected,
		"active_clients": s.hub.ActiveClients(),
		"pending_sync":   pending,
		"event_errors":   s.engine.ErrorCount(),
	})
}
