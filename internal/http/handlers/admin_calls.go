package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mlaurent/clinic-voice-agent/internal/calllog"
	"github.com/mlaurent/clinic-voice-agent/internal/session"
	"github.com/mlaurent/clinic-voice-agent/pkg/logging"
)

type callLister interface {
	ListRecent(ctx context.Context, limit int) ([]calllog.CallRecord, error)
}

// AdminHandler serves the read-only admin endpoints: recent call
// records from Postgres and live session state from the session store.
type AdminHandler struct {
	calls    callLister
	sessions session.Store
	logger   *logging.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(calls callLister, sessions session.Store, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{calls: calls, sessions: sessions, logger: logger}
}

// HandleListCalls is the HTTP handler for GET /admin/calls.
func (h *AdminHandler) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	if h.calls == nil {
		http.Error(w, "call log not configured", http.StatusNotImplemented)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.calls.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("admin call list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []calllog.CallRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": records})
}

// HandleGetSession is the HTTP handler for GET /admin/sessions/{callID}.
func (h *AdminHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	if callID == "" {
		http.Error(w, "call id required", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Get(r.Context(), callID)
	if err != nil {
		h.logger.Error("admin session load failed", "call_id", callID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if sess == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	transcript, err := h.sessions.Transcript(r.Context(), callID)
	if err != nil {
		h.logger.Error("admin transcript load failed", "call_id", callID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Mask before it leaves the service.
	sess.CallerPhone = logging.MaskPhone(sess.CallerPhone)
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    sess,
		"transcript": transcript,
	})
}
