package strategy

import "sync/atomic"

type Stats struct {
	DynamicRequests      atomic.Int64
	StaticRequests       atomic.Int64
	NavigationRequests   atomic.Int64
	LiveResponses        atomic.Int64
	CacheHits            atomic.Int64
	OfflineJSONResponses atomic.Int64
	OfflinePageResponses atomic.Int64
	RootFallbacks        atomic.Int64
	UnavailableResponses atomic.Int64
	CacheWriteFailures   atomic.Int64
}

type StatsSnapshot struct {
	DynamicRequests      int64
	StaticRequests       int64
	NavigationRequests   int64
	LiveResponses        int64
	CacheHits            int64
	OfflineJSONResponses int64
	OfflinePageResponses int64
	RootFallbacks        int64
	UnavailableResponses int64
	CacheWriteFailures   int64
}

func (e *Engine) Stats() StatsSnapshot {
	return StatsSnapshot{
		DynamicRequests:      e.stats.DynamicRequests.Load(),
		StaticRequests:       e.stats.StaticRequests.Load(),
		NavigationRequests:   e.stats.NavigationRequests.Load(),
		LiveResponses:        e.stats.LiveResponses.Load(),
		CacheHits:            e.stats.CacheHits.Load(),
		OfflineJSONResponses: e.stats.OfflineJSONResponses.Load(),
		OfflinePageResponses: e.stats.OfflinePageResponses.Load(),
		RootFallbacks:        e.stats.RootFallbacks.Load(),
		UnavailableResponses: e.stats.UnavailableResponses.Load(),
		CacheWriteFailures:   e.stats.CacheWriteFailures.Load(),
	}
}
