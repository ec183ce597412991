package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/docchat/docchat/internal/log"
)

// Resetter clears conversation history.
type Resetter interface {
	Reset(ctx context.Context, sessionID uuid.UUID) error
	ResetAll(ctx context.Context) error
}

// MemoryHandler handles conversation reset endpoints.
type MemoryHandler struct {
	resetter Resetter
	logger   log.Logger
}

// NewMemoryHandler creates a memory handler.
func NewMemoryHandler(resetter Resetter, logger log.Logger) *MemoryHandler {
	return &MemoryHandler{resetter: resetter, logger: logger}
}

// RegisterRoutes registers memory routes on the given mux.
func (h *MemoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /reset_memory", h.handleResetAll)
	mux.HandleFunc("POST /clear_history", h.handleClearHistory)
}

// handleResetAll wipes every conversation.
func (h *MemoryHandler) handleResetAll(w http.ResponseWriter, r *http.Request) {
	if err := h.resetter.ResetAll(r.Context()); err != nil {
		h.logger.Error("resetting memory failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reset_failed", "failed to reset memory")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "success"})
}

// ClearHistoryRequest optionally names the session to clear. An empty
// body clears the default session.
type ClearHistoryRequest struct {
	SessionID string `json:"sessionId,omitempty"`
}

// handleClearHistory resets one conversation, the default session
// unless the body names another.
func (h *MemoryHandler) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := DefaultSessionID

	var req ClearHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.SessionID != "" {
		id, err := uuid.Parse(req.SessionID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid sessionId")
			return
		}
		sessionID = id
	}

	if err := h.resetter.Reset(r.Context(), sessionID); err != nil {
		h.logger.Error("clearing history failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "clear_failed", "failed to clear history")
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:  "success",
		Message: "conversation history cleared",
	})
}
