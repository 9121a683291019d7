package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/khaledaj/attendance-gateway/internal/strategy"
	"github.com/khaledaj/attendance-gateway/pkg/httpx"
)

const maxProxyBodyBytes = 10 << 20

// handleFetch is the interception surface: every request that is not part of
// the gateway's own control plane becomes a fetch event.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/internal/") {
		http.NotFound(w, r)
		return
	}

	var body []byte
	if r.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBodyBytes))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "request body could not be read")
			return
		}
		body = raw
	}

	served := s.engine.HandleFetch(r.Context(), strategy.Request{
		Method:     r.Method,
		Target:     r.URL.RequestURI(),
		Header:     r.Header.Clone(),
		Body:       body,
		Navigation: strategy.IsNavigation(r.Method, r.Header),
	})

	w.Header().Set("X-Gateway-Outcome", string(served.Outcome))
	httpx.CopyResponse(w, http.Header(served.Entry.Header), served.Entry.Status, served.Entry.Body)
}
