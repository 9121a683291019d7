package origin

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

type FeedConfig struct {
	URL       string
	RetryBase time.Duration
	RetryMax  time.Duration
}

type Feed struct {
	cfg       FeedConfig
	onPush    func(context.Context, []byte)
	logger    *log.Logger
	connected atomic.Bool
}

type feedEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewFeed(cfg FeedConfig, onPush func(context.Context, []byte), logger *log.Logger) *Feed {
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Feed{
		cfg:    cfg,
		onPush: onPush,
		logger: logger,
	}
}

func (f *Feed) Connected() bool {
	return f.connected.Load()
}

func (f *Feed) Run(ctx context.Context) {
	if strings.TrimSpace(f.cfg.URL) == "" {
		f.logger.Printf("origin feed disabled: no url configured")
		return
	}

	delay := f.cfg.RetryBase
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.Dial(ctx, f.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Printf("origin feed dial failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > f.cfg.RetryMax {
				delay = f.cfg.RetryMax
			}
			continue
		}
		conn.SetReadLimit(1 << 20)
		delay = f.cfg.RetryBase
		f.connected.Store(true)
		f.logger.Printf("origin feed connected: %s", f.cfg.URL)

		err = f.consume(ctx, conn)
		f.connected.Store(false)
		_ = conn.Close(websocket.StatusNormalClosure, "closing")
		if ctx.Err() != nil {
			return
		}
		f.logger.Printf("origin feed disconnected: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (f *Feed) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, message, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var env feedEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.logger.Printf("origin feed skipping malformed frame: %v", err)
			continue
		}
		if f.onPush != nil {
			f.onPush(ctx, pushPayload(env.Data))
		}
	}
}

func pushPayload(raw json.RawMessage) []byte {
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &withMessage); err == nil && strings.TrimSpace(withMessage.Message) != "" {
		return []byte(withMessage.Message)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text)
	}
	return append([]byte(nil), raw...)
}
