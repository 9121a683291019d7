package syncqueue

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

type replayCall struct {
	method string
	target string
	idem   string
	body   string
}

type replayFetcher struct {
	calls       []replayCall
	failTargets map[string]error
	statuses    map[string]int
}

func (f *replayFetcher) Fetch(_ context.Context, method, target string, header http.Header, body []byte) (cache.Entry, error) {
	f.calls = append(f.calls, replayCall{
		method: method,
		target: target,
		idem:   header.Get("Idempotency-Key"),
		body:   string(body),
	})
	if err, ok := f.failTargets[target]; ok {
		return cache.Entry{}, err
	}
	status := 200
	if s, ok := f.statuses[target]; ok {
		status = s
	}
	return cache.Entry{Status: status}, nil
}

func TestRegisterJournalsAction(t *testing.T) {
	journal := NewMemoryJournal()
	queue := New(journal, &replayFetcher{}, "attendance-sync", nil)

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	body := []byte(`{"note":"onsite"}`)
	action, err := queue.Register(context.Background(), "post", "/api/checkin", header, body)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasPrefix(action.ID, "act_") {
		t.Fatalf("unexpected action id: %q", action.ID)
	}
	if action.Method != "POST" || action.Tag != "attendance-sync" {
		t.Fatalf("unexpected action: %+v", action)
	}

	body[0] = 'X'
	header.Set("Content-Type", "text/plain")

	pending, err := journal.Pending(context.Background(), "attendance-sync")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending action, got %d", len(pending))
	}
	if string(pending[0].Body) != `{"note":"onsite"}` {
		t.Fatalf("journaled body aliases caller: %q", pending[0].Body)
	}
	if pending[0].Header["Content-Type"][0] != "application/json" {
		t.Fatalf("journaled header aliases caller: %#v", pending[0].Header)
	}

	depth, err := queue.Depth(context.Background())
	if err != nil || depth != 1 {
		t.Fatalf("depth: %d err=%v", depth, err)
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	queue := New(NewMemoryJournal(), &replayFetcher{}, "", nil)
	if queue.Tag() != DefaultTag {
		t.Fatalf("expected default tag, got %q", queue.Tag())
	}
	if _, err := queue.Register(context.Background(), "", "/api/checkin", nil, nil); err == nil {
		t.Fatalf("expected error for empty method")
	}
	if _, err := queue.Register(context.Background(), "POST", " ", nil, nil); err == nil {
		t.Fatalf("expected error for empty target")
	}
}

func TestReplayResolvesActionsInOrder(t *testing.T) {
	journal := NewMemoryJournal()
	fetcher := &replayFetcher{}
	queue := New(journal, fetcher, "attendance-sync", nil)
	ctx := context.Background()

	first, err := queue.Register(ctx, "POST", "/api/checkin", nil, []byte(`{"t":"09:00"}`))
	if err != nil {
		t.Fatalf("register first: %v", err)
	}
	second, err := queue.Register(ctx, "POST", "/api/checkout", nil, []byte(`{"t":"17:00"}`))
	if err != nil {
		t.Fatalf("register second: %v", err)
	}

	if err := queue.Replay(ctx, "attendance-sync"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(fetcher.calls) != 2 {
		t.Fatalf("expected two replays, got %d", len(fetcher.calls))
	}
	if fetcher.calls[0].target != "/api/checkin" || fetcher.calls[1].target != "/api/checkout" {
		t.Fatalf("replay out of order: %+v", fetcher.calls)
	}
	if fetcher.calls[0].idem != first.ID || fetcher.calls[1].idem != second.ID {
		t.Fatalf("missing idempotency keys: %+v", fetcher.calls)
	}
	if fetcher.calls[0].body != `{"t":"09:00"}` {
		t.Fatalf("body not replayed: %+v", fetcher.calls[0])
	}

	depth, err := queue.Depth(ctx)
	if err != nil || depth != 0 {
		t.Fatalf("expected drained queue, depth=%d err=%v", depth, err)
	}

	stats := queue.Stats()
	if stats.Registered != 2 || stats.Replayed != 2 || stats.Failures != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestReplayStopsAtFirstNetworkFailure(t *testing.T) {
	journal := NewMemoryJournal()
	fetcher := &replayFetcher{
		failTargets: map[string]error{"/api/checkout": errors.New("connection refused")},
	}
	queue := New(journal, fetcher, "attendance-sync", nil)
	ctx := context.Background()

	if _, err := queue.Register(ctx, "POST", "/api/checkin", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := queue.Register(ctx, "POST", "/api/checkout", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := queue.Register(ctx, "POST", "/api/checkin", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	err := queue.Replay(ctx, "attendance-sync")
	if err == nil {
		t.Fatalf("expected replay error")
	}

	depth, derr := queue.Depth(ctx)
	if derr != nil {
		t.Fatalf("depth: %v", derr)
	}
	if depth != 2 {
		t.Fatalf("expected failed and following actions to remain, depth=%d", depth)
	}

	fetcher.failTargets = nil
	if err := queue.Replay(ctx, "attendance-sync"); err != nil {
		t.Fatalf("second replay: %v", err)
	}
	depth, _ = queue.Depth(ctx)
	if depth != 0 {
		t.Fatalf("expected drained after recovery, depth=%d", depth)
	}

	pending, _ := journal.Pending(ctx, "attendance-sync")
	if len(pending) != 0 {
		t.Fatalf("journal not drained: %+v", pending)
	}
}

func TestReplayConsumesHTTPErrors(t *testing.T) {
	journal := NewMemoryJournal()
	fetcher := &replayFetcher{statuses: map[string]int{"/api/checkin": 400}}
	queue := New(journal, fetcher, "attendance-sync", nil)
	ctx := context.Background()

	if _, err := queue.Register(ctx, "POST", "/api/checkin", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := queue.Replay(ctx, "attendance-sync"); err != nil {
		t.Fatalf("replay: %v", err)
	}
	depth, _ := queue.Depth(ctx)
	if depth != 0 {
		t.Fatalf("resolved exchange must consume the action, depth=%d", depth)
	}
}

func TestReplayIgnoresUnknownTag(t *testing.T) {
	fetcher := &replayFetcher{}
	queue := New(NewMemoryJournal(), fetcher, "attendance-sync", nil)
	ctx := context.Background()

	if _, err := queue.Register(ctx, "POST", "/api/checkin", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := queue.Replay(ctx, "some-other-tag"); err != nil {
		t.Fatalf("unknown tag must be a no-op: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("unexpected fetches for unknown tag: %+v", fetcher.calls)
	}
	depth, _ := queue.Depth(ctx)
	if depth != 1 {
		t.Fatalf("action must remain pending, depth=%d", depth)
	}
}

func TestReplayRecordsAttempts(t *testing.T) {
	journal := NewMemoryJournal()
	fetcher := &replayFetcher{failTargets: map[string]error{"/api/checkin": errors.New("offline")}}
	queue := New(journal, fetcher, "attendance-sync", nil)
	ctx := context.Background()

	if _, err := queue.Register(ctx, "POST", "/api/checkin", nil, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = queue.Replay(ctx, "attendance-sync")
	_ = queue.Replay(ctx, "attendance-sync")

	pending, err := journal.Pending(ctx, "attendance-sync")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 2 {
		t.Fatalf("expected two recorded attempts: %+v", pending)
	}
}

func TestMemoryJournalRejectsDuplicates(t *testing.T) {
	journal := NewMemoryJournal()
	ctx := context.Background()

	action := Action{ID: "act_1", Tag: "attendance-sync", Method: "POST", Target: "/api/checkin"}
	if err := journal.Append(ctx, action); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := journal.Append(ctx, action); err == nil {
		t.Fatalf("expected duplicate append to fail")
	}
	if err := journal.MarkAttempt(ctx, "act_missing"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
	if err := journal.Complete(ctx, "act_missing"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}
