package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/khaledaj/attendance-gateway/pkg/httpx"
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	namespaces, err := s.store.Namespaces(r.Context())
	if err != nil {
		http.Error(w, "cache metrics failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	entryCounts := make(map[string]int64, len(namespaces))
	for _, namespace := range namespaces {
		keys, err := s.store.Keys(r.Context(), namespace)
		if err != nil {
			http.Error(w, "cache metrics failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		entryCounts[namespace] = int64(len(keys))
	}
	pending, err := s.queue.Depth(r.Context())
	if err != nil {
		http.Error(w, "sync metrics failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	fetch := s.strategy.Stats()
	modeCounts := map[string]int64{
		"dynamic":    fetch.DynamicRequests,
		"static":     fetch.StaticRequests,
		"navigation": fetch.NavigationRequests,
	}
	outcomeCounts := map[string]int64{
		"live":          fetch.LiveResponses,
		"cache":         fetch.CacheHits,
		"offline_json":  fetch.OfflineJSONResponses,
		"offline_page":  fetch.OfflinePageResponses,
		"root_fallback": fetch.RootFallbacks,
		"unavailable":   fetch.UnavailableResponses,
	}
	sync := s.queue.Stats()
	notifications := s.dispatcher.Stats()

	installed := int64(0)
	if s.engine.Installed() {
		installed = 1
	}
	activated := int64(0)
	if s.engine.Activated() {
		activated = 1
	}
	online := int64(1)
	if s.probe != nil && !s.probe.Online() {
		online = 0
	}
	feedConnected := int64(0)
	if s.feed != nil && s.feed.Connected() {
		feedConnected = 1
	}

	var b strings.Builder
	fmt.Fprintln(&b, "# HELP attendance_gateway_fetch_requests_total Intercepted requests by strategy mode")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_fetch_requests_total counter")
	for _, key := range sortedCountKeys(modeCounts) {
		fmt.Fprintf(&b, "attendance_gateway_fetch_requests_total{mode=%q} %d\n", metricLabelEscape(key), modeCounts[key])
	}

	fmt.Fprintln(&b, "# HELP attendance_gateway_fetch_outcomes_total Served responses by outcome")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_fetch_outcomes_total counter")
	for _, key := range sortedCountKeys(outcomeCounts) {
		fmt.Fprintf(&b, "attendance_gateway_fetch_outcomes_total{outcome=%q} %d\n", metricLabelEscape(key), outcomeCounts[key])
	}

	fmt.Fprintln(&b, "# HELP attendance_gateway_cache_write_failures_total Background cache writes that failed")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_cache_write_failures_total counter")
	fmt.Fprintf(&b, "attendance_gateway_cache_write_failures_total %d\n", fetch.CacheWriteFailures)

	fmt.Fprintln(&b, "# HELP attendance_gateway_cache_namespaces Cache namespaces currently stored")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_cache_namespaces gauge")
	fmt.Fprintf(&b, "attendance_gateway_cache_namespaces %d\n", len(namespaces))
	fmt.Fprintln(&b, "# HELP attendance_gateway_cache_entries Cached entries by namespace")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_cache_entries gauge")
	for _, key := range sortedCountKeys(entryCounts) {
		fmt.Fprintf(&b, "attendance_gateway_cache_entries{namespace=%q} %d\n", metricLabelEscape(key), entryCounts[key])
	}

	fmt.Fprintln(&b, "# HELP attendance_gateway_sync_registered_total Actions registered on the sync queue")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_sync_registered_total counter")
	fmt.Fprintf(&b, "attendance_gateway_sync_registered_total %d\n", sync.Registered)
	fmt.Fprintln(&b, "# HELP attendance_gateway_sync_replayed_total Actions replayed against the origin")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_sync_replayed_total counter")
	fmt.Fprintf(&b, "attendance_gateway_sync_replayed_total %d\n", sync.Replayed)
	fmt.Fprintln(&b, "# HELP attendance_gateway_sync_failures_total Replay attempts stopped by a network failure")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_sync_failures_total counter")
	fmt.Fprintf(&b, "attendance_gateway_sync_failures_total %d\n", sync.Failures)
	fmt.Fprintln(&b, "# HELP attendance_gateway_sync_pending Actions waiting for replay")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_sync_pending gauge")
	fmt.Fprintf(&b, "attendance_gateway_sync_pending %d\n", pending)

	fmt.Fprintln(&b, "# HELP attendance_gateway_notifications_shown_total Notifications delivered to shell clients")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_notifications_shown_total counter")
	fmt.Fprintf(&b, "attendance_gateway_notifications_shown_total %d\n", notifications.Shown)
	fmt.Fprintln(&b, "# HELP attendance_gateway_notifications_clicked_total Notification clicks routed to a window target")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_notifications_clicked_total counter")
	fmt.Fprintf(&b, "attendance_gateway_notifications_clicked_total %d\n", notifications.Clicked)

	fmt.Fprintln(&b, "# HELP attendance_gateway_shell_clients Connected shell websocket clients")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_shell_clients gauge")
	fmt.Fprintf(&b, "attendance_gateway_shell_clients %d\n", s.hub.ActiveClients())

	fmt.Fprintln(&b, "# HELP attendance_gateway_lifecycle_installed Whether the precache install has completed")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_lifecycle_installed gauge")
	fmt.Fprintf(&b, "attendance_gateway_lifecycle_installed %d\n", installed)
	fmt.Fprintln(&b, "# HELP attendance_gateway_lifecycle_activated Whether activation has completed")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_lifecycle_activated gauge")
	fmt.Fprintf(&b, "attendance_gateway_lifecycle_activated %d\n", activated)

	fmt.Fprintln(&b, "# HELP attendance_gateway_origin_online Whether the origin answered the last connectivity probe")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_origin_online gauge")
	fmt.Fprintf(&b, "attendance_gateway_origin_online %d\n", online)

	fmt.Fprintln(&b, "# HELP attendance_gateway_feed_connected Whether the origin event feed is attached")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_feed_connected gauge")
	fmt.Fprintf(&b, "attendance_gateway_feed_connected %d\n", feedConnected)

	fmt.Fprintln(&b, "# HELP attendance_gateway_event_errors_total Event handler failures reported to the error sink")
	fmt.Fprintln(&b, "# TYPE attendance_gateway_event_errors_total counter")
	fmt.Fprintf(&b, "attendance_gateway_event_errors_total %d\n", s.engine.ErrorCount())

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func sortedCountKeys(values map[string]int64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func metricLabelEscape(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(escaped, `"`, `\"`)
}
