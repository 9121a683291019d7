package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

const DefaultTag = "attendance-sync"

var ErrActionNotFound = errors.New("sync action not found")

type Action struct {
	ID        string              `json:"id"`
	Tag       string              `json:"tag"`
	Method    string              `json:"method"`
	Target    string              `json:"target"`
	Header    map[string][]string `json:"header,omitempty"`
	Body      []byte              `json:"body,omitempty"`
	Attempts  int                 `json:"attempts"`
	CreatedAt time.Time           `json:"created_at"`
}

type Journal interface {
	Append(ctx context.Context, action Action) error
	Pending(ctx context.Context, tag string) ([]Action, error)
	MarkAttempt(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error)
}

type Queue struct {
	journal Journal
	fetch   Fetcher
	tag     string
	logger  *log.Logger

	registered atomic.Int64
	replayed   atomic.Int64
	failures   atomic.Int64
}

func New(journal Journal, fetch Fetcher, tag string, logger *log.Logger) *Queue {
	if strings.TrimSpace(tag) == "" {
		tag = DefaultTag
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		journal: journal,
		fetch:   fetch,
		tag:     tag,
		logger:  logger,
	}
}

func (q *Queue) Tag() string {
	return q.tag
}

func (q *Queue) Register(ctx context.Context, method, target string, header http.Header, body []byte) (Action, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return Action{}, errors.New("method is required")
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return Action{}, errors.New("target is required")
	}

	action := Action{
		ID:        "act_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Tag:       q.tag,
		Method:    method,
		Target:    target,
		Header:    cloneHeader(header),
		Body:      append([]byte(nil), body...),
		CreatedAt: time.Now().UTC(),
	}
	if err := q.journal.Append(ctx, action); err != nil {
		return Action{}, fmt.Errorf("journal offline action: %w", err)
	}
	q.registered.Add(1)
	q.logger.Printf("queued offline action: id=%s %s %s", action.ID, action.Method, action.Target)
	return action, nil
}

// Replay resolves pending actions in registration order. A network failure
// stops the pass and leaves the failed action and everything after it
// journaled for the next sync. Any completed HTTP exchange consumes the
// action regardless of status, matching resolved-fetch semantics.
func (q *Queue) Replay(ctx context.Context, tag string) error {
	if tag != q.tag {
		q.logger.Printf("ignoring sync for unknown tag: %q", tag)
		return nil
	}

	pending, err := q.journal.Pending(ctx, q.tag)
	if err != nil {
		return fmt.Errorf("list pending actions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	q.logger.Printf("sync replay started: tag=%s pending=%d", q.tag, len(pending))

	for _, action := range pending {
		if err := q.journal.MarkAttempt(ctx, action.ID); err != nil && !errors.Is(err, ErrActionNotFound) {
			q.logger.Printf("mark attempt failed: id=%s err=%v", action.ID, err)
		}

		header := http.Header(cloneHeader(action.Header))
		if header == nil {
			header = http.Header{}
		}
		header.Set("Idempotency-Key", action.ID)

		entry, err := q.fetch.Fetch(ctx, action.Method, action.Target, header, action.Body)
		if err != nil {
			q.failures.Add(1)
			return fmt.Errorf("replay %s %s (action %s): %w", action.Method, action.Target, action.ID, err)
		}
		if err := q.journal.Complete(ctx, action.ID); err != nil && !errors.Is(err, ErrActionNotFound) {
			return fmt.Errorf("complete action %s: %w", action.ID, err)
		}
		q.replayed.Add(1)
		q.logger.Printf("replayed offline action: id=%s %s %s status=%d", action.ID, action.Method, action.Target, entry.Status)
	}
	return nil
}

func (q *Queue) Depth(ctx context.Context) (int, error) {
	pending, err := q.journal.Pending(ctx, q.tag)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

type StatsSnapshot struct {
	Registered int64
	Replayed   int64
	Failures   int64
}

func (q *Queue) Stats() StatsSnapshot {
	return StatsSnapshot{
		Registered: q.registered.Load(),
		Replayed:   q.replayed.Load(),
		Failures:   q.failures.Load(),
	}
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
