package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/khaledaj/attendance-gateway/internal/notify"
)

const (
	FrameNotification      = "notification"
	FrameNotificationClose = "notification-close"
	FrameNotificationClick = "notification-click"
	FrameNavigate          = "navigate"
	FrameClaim             = "claim"
)

type Frame struct {
	Kind         string          `json:"kind"`
	Notification *notify.Request `json:"notification,omitempty"`
	Tag          string          `json:"tag,omitempty"`
	Target       string          `json:"target,omitempty"`
}

type inboundFrame struct {
	Kind   string `json:"kind,omitempty"`
	Type   string `json:"type,omitempty"`
	Tag    string `json:"tag,omitempty"`
	Action string `json:"action,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

type Hub struct {
	OnControlMessage    func(ctx context.Context, messageType string)
	OnNotificationClick func(ctx context.Context, tag, action string)

	logger       *log.Logger
	writeTimeout time.Duration

	mu    sync.Mutex
	conns map[string]*client
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		logger:       logger,
		writeTimeout: 5 * time.Second,
		conns:        make(map[string]*client),
	}
}

func (h *Hub) Accept(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Printf("shell accept failed: %v", err)
		return
	}
	conn.SetReadLimit(1 << 20)

	id := "shell_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	c := &client{id: id, conn: conn}
	h.register(c)
	h.logger.Printf("shell client connected: id=%s clients=%d", id, h.ActiveClients())

	defer func() {
		h.unregister(id)
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
		h.logger.Printf("shell client disconnected: id=%s clients=%d", id, h.ActiveClients())
	}()

	h.readLoop(r.Context(), c)
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, message, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			h.logger.Printf("shell frame skipped: id=%s err=%v", c.id, err)
			continue
		}
		switch {
		case frame.Kind == FrameNotificationClick:
			if h.OnNotificationClick != nil {
				h.OnNotificationClick(ctx, frame.Tag, frame.Action)
			}
		case strings.TrimSpace(frame.Type) != "":
			if h.OnControlMessage != nil {
				h.OnControlMessage(ctx, frame.Type)
			}
		default:
			h.logger.Printf("shell frame ignored: id=%s", c.id)
		}
	}
}

func (h *Hub) ActiveClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) Show(ctx context.Context, req notify.Request) error {
	return h.broadcast(ctx, Frame{Kind: FrameNotification, Notification: &req})
}

func (h *Hub) Close(ctx context.Context, tag string) error {
	return h.broadcast(ctx, Frame{Kind: FrameNotificationClose, Tag: tag})
}

func (h *Hub) OpenWindow(ctx context.Context, target string) error {
	return h.broadcast(ctx, Frame{Kind: FrameNavigate, Target: target})
}

func (h *Hub) Claim(ctx context.Context) error {
	return h.broadcast(ctx, Frame{Kind: FrameClaim})
}

// Drain closes every shell connection, typically during gateway shutdown.
func (h *Hub) Drain() {
	h.mu.Lock()
	conns := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "gateway shutting down")
	}
}

func (h *Hub) broadcast(ctx context.Context, frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode shell frame: %w", err)
	}

	h.mu.Lock()
	conns := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	if len(conns) == 0 {
		return errors.New("no shell clients connected")
	}

	delivered := 0
	var lastErr error
	for _, c := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		err := c.write(writeCtx, payload)
		cancel()
		if err != nil {
			lastErr = err
			h.logger.Printf("shell write failed: id=%s kind=%s err=%v", c.id, frame.Kind, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return fmt.Errorf("broadcast %s frame: %w", frame.Kind, lastErr)
	}
	return nil
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.id] = c
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}
