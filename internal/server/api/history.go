package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/paperframe/internal/store"
)

// HistoryHandler serves the refresh history.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type historyEntry struct {
	InstanceID string `json:"instance_id"`
	PluginID   string `json:"plugin_id"`
	Reason     string `json:"reason"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	StartedAt  string `json:"started_at"`
}

// ServeHTTP handles GET /api/history?limit=n, newest first.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			WriteError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	recs, err := h.store.History().Recent(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	entries := make([]historyEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, historyEntry{
			InstanceID: rec.InstanceID,
			PluginID:   rec.PluginID,
			Reason:     rec.Reason,
			Outcome:    rec.Outcome,
			Error:      rec.Error,
			DurationMs: rec.Duration.Milliseconds(),
			StartedAt:  rec.StartedAt.Format(time.RFC3339),
		})
	}

	WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
}
