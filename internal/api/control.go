package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/khaledaj/attendance-gateway/internal/engine"
	"github.com/khaledaj/attendance-gateway/pkg/httpx"
)

const maxPushPayloadBytes = 64 << 10

type controlMessageRequest struct {
	Type string `json:"type"`
}

func (s *Server) handleControlMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req controlMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	messageType := strings.TrimSpace(req.Type)
	if messageType == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_message", "message type is required")
		return
	}

	if err := s.engine.Dispatch(r.Context(), engine.Event{
		Kind:    engine.EventMessage,
		Message: engine.Message{Type: messageType},
	}); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "message_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := s.engine.Dispatch(r.Context(), engine.Event{Kind: engine.EventInstall}); err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "install_failed", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "installed",
		"namespace": s.lifecycle.Namespace(),
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		tag = s.queue.Tag()
	}

	if err := s.engine.Dispatch(r.Context(), engine.Event{Kind: engine.EventSync, Tag: tag}); err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "sync_failed", err.Error())
		return
	}

	pending, err := s.queue.Depth(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "sync_failed", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"tag":     tag,
		"pending": pending,
	})
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPushPayloadBytes))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "push payload could not be read")
		return
	}

	if err := s.engine.Dispatch(r.Context(), engine.Event{Kind: engine.EventPush, Payload: payload}); err != nil {
		httpx.WriteError(w, http.StatusBadGateway, "push_failed", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "shown"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	s.hub.Accept(w, r)
}
