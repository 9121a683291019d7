package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

const (
	defaultTitle    = "Attendance Tracker"
	defaultBody     = "Attendance reminder"
	defaultIcon     = "/static/icon-192.png"
	defaultBadge    = "/static/icon-192.png"
	notificationTag = "attendance-reminder"

	ActionCheckIn  = "check-in"
	ActionCheckOut = "check-out"
)

var defaultVibration = []int{200, 100, 200}

type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

type Request struct {
	Tag     string            `json:"tag"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Icon    string            `json:"icon,omitempty"`
	Badge   string            `json:"badge,omitempty"`
	Vibrate []int             `json:"vibrate,omitempty"`
	Data    map[string]string `json:"data,omitempty"`
	Actions []Action          `json:"actions,omitempty"`
}

type Click struct {
	Tag    string `json:"tag"`
	Action string `json:"action,omitempty"`
}

type Surface interface {
	Show(ctx context.Context, req Request) error
	Close(ctx context.Context, tag string) error
}

type WindowOpener interface {
	OpenWindow(ctx context.Context, target string) error
}

type Dispatcher struct {
	surface Surface
	windows WindowOpener
	logger  *log.Logger

	shown   atomic.Int64
	clicked atomic.Int64
}

func NewDispatcher(surface Surface, windows WindowOpener, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		surface: surface,
		windows: windows,
		logger:  logger,
	}
}

func (d *Dispatcher) HandlePush(ctx context.Context, payload []byte) error {
	body := strings.TrimSpace(string(payload))
	if body == "" {
		body = defaultBody
	}

	req := Request{
		Tag:     notificationTag,
		Title:   defaultTitle,
		Body:    body,
		Icon:    defaultIcon,
		Badge:   defaultBadge,
		Vibrate: append([]int(nil), defaultVibration...),
		Data:    map[string]string{"url": "/"},
		Actions: []Action{
			{ID: ActionCheckIn, Label: "Check In", Icon: defaultIcon},
			{ID: ActionCheckOut, Label: "Check Out", Icon: defaultIcon},
		},
	}
	if err := d.surface.Show(ctx, req); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	d.shown.Add(1)
	d.logger.Printf("notification shown: tag=%s body=%q", req.Tag, body)
	return nil
}

// HandleClick always closes the notification first, then routes exactly one
// navigation intent from the clicked action.
func (d *Dispatcher) HandleClick(ctx context.Context, click Click) error {
	d.clicked.Add(1)

	tag := strings.TrimSpace(click.Tag)
	if tag == "" {
		tag = notificationTag
	}
	if err := d.surface.Close(ctx, tag); err != nil {
		d.logger.Printf("notification close failed: tag=%s err=%v", tag, err)
	}

	target := ClickTarget(click.Action)
	if err := d.windows.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("open window %s: %w", target, err)
	}
	d.logger.Printf("notification click routed: action=%q target=%s", click.Action, target)
	return nil
}

func ClickTarget(action string) string {
	switch strings.TrimSpace(action) {
	case ActionCheckIn:
		return "/?action=checkin"
	case ActionCheckOut:
		return "/?action=checkout"
	default:
		return "/"
	}
}

type StatsSnapshot struct {
	Shown   int64
	Clicked int64
}

func (d *Dispatcher) Stats() StatsSnapshot {
	return StatsSnapshot{
		Shown:   d.shown.Load(),
		Clicked: d.clicked.Load(),
	}
}
