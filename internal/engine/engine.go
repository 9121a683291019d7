package engine

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/khaledaj/attendance-gateway/internal/lifecycle"
	"github.com/khaledaj/attendance-gateway/internal/notify"
	"github.com/khaledaj/attendance-gateway/internal/strategy"
	"github.com/khaledaj/attendance-gateway/internal/syncqueue"
)

type EventKind string

const (
	EventInstall           EventKind = "install"
	EventActivate          EventKind = "activate"
	EventSync              EventKind = "sync"
	EventPush              EventKind = "push"
	EventNotificationClick EventKind = "notificationclick"
	EventMessage           EventKind = "message"
)

const MessageSkipWaiting = "SKIP_WAITING"

type Message struct {
	Type string `json:"type"`
}

type Event struct {
	Kind    EventKind
	Tag     string
	Payload []byte
	Click   notify.Click
	Message Message
}

type ClientCounter interface {
	ActiveClients() int
}

type Config struct {
	Manifest     []string
	PollInterval time.Duration
}

type Engine struct {
	lifecycle *lifecycle.Manager
	strategy  *strategy.Engine
	queue     *syncqueue.Queue
	notify    *notify.Dispatcher
	clients   ClientCounter
	work      *WorkGroup
	cfg       Config
	logger    *log.Logger

	handlers  map[EventKind]func(context.Context, Event) error
	installed atomic.Bool
	activated atomic.Bool
	errors    atomic.Int64
}

func New(lc *lifecycle.Manager, st *strategy.Engine, queue *syncqueue.Queue, dispatcher *notify.Dispatcher, clients ClientCounter, work *WorkGroup, cfg Config, logger *log.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if work == nil {
		work = NewWorkGroup()
	}
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{
		lifecycle: lc,
		strategy:  st,
		queue:     queue,
		notify:    dispatcher,
		clients:   clients,
		work:      work,
		cfg:       cfg,
		logger:    logger,
	}
	e.handlers = map[EventKind]func(context.Context, Event) error{
		EventInstall:           e.handleInstall,
		EventActivate:          e.handleActivate,
		EventSync:              e.handleSync,
		EventPush:              e.handlePush,
		EventNotificationClick: e.handleNotificationClick,
		EventMessage:           e.handleMessage,
	}
	return e
}

func (e *Engine) Dispatch(ctx context.Context, event Event) error {
	handler, ok := e.handlers[event.Kind]
	if !ok {
		e.logger.Printf("unhandled event kind: %q", event.Kind)
		return nil
	}
	return e.work.Track(func() error {
		err := handler(ctx, event)
		if err != nil {
			e.ReportError(fmt.Errorf("%s event: %w", event.Kind, err))
		}
		return err
	})
}

// HandleFetch always answers. When a write lands on the offline JSON
// fallback, the action is journaled for background sync before responding.
func (e *Engine) HandleFetch(ctx context.Context, req strategy.Request) strategy.Served {
	var served strategy.Served
	_ = e.work.Track(func() error {
		served = e.strategy.Handle(ctx, req)

		method := strings.ToUpper(strings.TrimSpace(req.Method))
		if served.Outcome == strategy.OutcomeOfflineJSON && method != "" && method != http.MethodGet {
			if action, err := e.queue.Register(context.Background(), method, req.Target, req.Header, req.Body); err != nil {
				e.ReportError(fmt.Errorf("queue offline action: %w", err))
			} else {
				e.logger.Printf("offline write queued for replay: id=%s", action.ID)
			}
		}
		return nil
	})
	return served
}

// RunActivation defers activation until skip waiting is requested or no
// clients remain connected, then dispatches it once.
func (e *Engine) RunActivation(ctx context.Context) {
	e.work.Go(func() {
		ticker := time.NewTicker(e.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-e.lifecycle.SkipRequested():
				e.logger.Printf("activation unblocked: reason=skip_waiting")
				_ = e.Dispatch(ctx, Event{Kind: EventActivate})
				return
			case <-ticker.C:
				if e.clients == nil || e.clients.ActiveClients() == 0 {
					e.logger.Printf("activation unblocked: reason=no_clients")
					_ = e.Dispatch(ctx, Event{Kind: EventActivate})
					return
				}
			}
		}
	})
}

func (e *Engine) Installed() bool {
	return e.installed.Load()
}

func (e *Engine) Activated() bool {
	return e.activated.Load()
}

// ReportError is the terminal error sink. Failures are logged and counted,
// never rethrown into request handling.
func (e *Engine) ReportError(err error) {
	if err == nil {
		return
	}
	e.errors.Add(1)
	e.logger.Printf("engine error: %v", err)
}

func (e *Engine) ErrorCount() int64 {
	return e.errors.Load()
}

func (e *Engine) Shutdown(ctx context.Context) error {
	return e.work.Wait(ctx)
}

func (e *Engine) handleInstall(ctx context.Context, _ Event) error {
	if err := e.lifecycle.Install(ctx, e.cfg.Manifest); err != nil {
		return err
	}
	e.installed.Store(true)
	return nil
}

func (e *Engine) handleActivate(ctx context.Context, _ Event) error {
	if err := e.lifecycle.Activate(ctx); err != nil {
		return err
	}
	e.activated.Store(true)
	return nil
}

func (e *Engine) handleSync(ctx context.Context, event Event) error {
	return e.queue.Replay(ctx, event.Tag)
}

func (e *Engine) handlePush(ctx context.Context, event Event) error {
	return e.notify.HandlePush(ctx, event.Payload)
}

func (e *Engine) handleNotificationClick(ctx context.Context, event Event) error {
	return e.notify.HandleClick(ctx, event.Click)
}

func (e *Engine) handleMessage(_ context.Context, event Event) error {
	if event.Message.Type == MessageSkipWaiting {
		e.lifecycle.SkipWaiting()
		return nil
	}
	e.logger.Printf("ignoring control message: type=%q", event.Message.Type)
	return nil
}
