package api

import (
	"net/http"
	"strings"

	"github.com/khaledaj/attendance-gateway/pkg/httpx"
)

type namespaceSummary struct {
	Namespace string `json:"namespace"`
	Entries   int    `json:"entries"`
	Current   bool   `json:"current"`
}

func (s *Server) handleCacheIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	namespaces, err := s.store.Namespaces(r.Context())
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "cache_list_failed", err.Error())
		return
	}

	current := s.lifecycle.Namespace()
	summaries := make([]namespaceSummary, 0, len(namespaces))
	for _, namespace := range namespaces {
		keys, err := s.store.Keys(r.Context(), namespace)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "cache_list_failed", err.Error())
			return
		}
		summaries = append(summaries, namespaceSummary{
			Namespace: namespace,
			Entries:   len(keys),
			Current:   namespace == current,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"namespaces": summaries})
}

func (s *Server) handleCacheByNamespace(w http.ResponseWriter, r *http.Request) {
	namespace := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/internal/cache/"))
	if namespace == "" || strings.Contains(namespace, "/") {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_namespace", "cache namespace is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		keys, err := s.store.Keys(r.Context(), namespace)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "cache_list_failed", err.Error())
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"namespace": namespace,
			"keys":      keys,
		})
	case http.MethodDelete:
		if err := s.store.DeleteNamespace(r.Context(), namespace); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "cache_delete_failed", err.Error())
			return
		}
		s.logger.Printf("cache namespace purged by admin: %s", namespace)
		w.WriteHeader(http.StatusNoContent)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
