package origin

import (
	"context"
	"errors"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/khaledaj/attendance-gateway/internal/cache"
)

type flakyFetcher struct {
	fail bool
}

func (f *flakyFetcher) Fetch(_ context.Context, _, _ string, _ http.Header, _ []byte) (cache.Entry, error) {
	if f.fail {
		return cache.Entry{}, errors.New("connection refused")
	}
	return cache.Entry{Status: 200}, nil
}

func TestWatcherFiresOnOfflineOnlineEdge(t *testing.T) {
	fetcher := &flakyFetcher{fail: true}
	fired := 0
	watcher := NewWatcher(fetcher, WatcherConfig{
		Interval:     time.Minute,
		ProbeTimeout: time.Second,
	}, func(context.Context) { fired++ }, log.Default())

	ctx := context.Background()

	watcher.Probe(ctx)
	if watcher.Online() {
		t.Fatalf("expected offline after failed probe")
	}
	if fired != 0 {
		t.Fatalf("callback fired while still offline")
	}

	watcher.Probe(ctx)
	if fired != 0 {
		t.Fatalf("callback fired without an edge")
	}

	fetcher.fail = false
	watcher.Probe(ctx)
	if !watcher.Online() {
		t.Fatalf("expected online after successful probe")
	}
	if fired != 1 {
		t.Fatalf("expected one callback after offline->online edge, got %d", fired)
	}

	watcher.Probe(ctx)
	if fired != 1 {
		t.Fatalf("callback fired while staying online, got %d", fired)
	}
}

func TestWatcherStartsOptimistic(t *testing.T) {
	fetcher := &flakyFetcher{}
	fired := 0
	watcher := NewWatcher(fetcher, WatcherConfig{Interval: time.Minute}, func(context.Context) { fired++ }, nil)

	watcher.Probe(context.Background())
	if fired != 0 {
		t.Fatalf("first successful probe should not fire sync, got %d", fired)
	}
}
