package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/docchat/docchat/internal/answer"
	"github.com/docchat/docchat/internal/log"
)

// DefaultSessionID is used when a request carries no sessionId, giving
// clients that never manage sessions one shared conversation.
var DefaultSessionID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Chatter answers questions, blocking or streaming.
type Chatter interface {
	Answer(ctx context.Context, sessionID uuid.UUID, query string) (string, error)
	AnswerStream(ctx context.Context, sessionID uuid.UUID, query string) (*answer.Stream, error)
}

// ChatHandler handles the chat endpoints.
type ChatHandler struct {
	chatter Chatter
	logger  log.Logger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(chatter Chatter, logger log.Logger) *ChatHandler {
	return &ChatHandler{chatter: chatter, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("POST /chat_stream", h.handleChatStream)
}

// ChatRequest is the body for /chat and /chat_stream.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Response string `json:"response"`
}

// parseChatRequest decodes and validates the request body, resolving
// the session ID.
func parseChatRequest(r *http.Request) (uuid.UUID, string, error) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid request body: %w", err)
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return uuid.Nil, "", fmt.Errorf("query is required")
	}
	if req.SessionID == "" {
		return DefaultSessionID, query, nil
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid sessionId: %w", err)
	}
	return sessionID, query, nil
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID, query, err := parseChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	text, err := h.chatter.Answer(r.Context(), sessionID, query)
	if err != nil {
		h.logger.Error("chat turn failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "chat_failed", "failed to generate an answer")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: text})
}

// handleChatStream streams the answer as Server-Sent Events. Each delta
// is one "data:" event; the stream ends with "data: [DONE]" on success
// or "data: [ERROR] ..." on failure.
func (h *ChatHandler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sessionID, query, err := parseChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stream, err := h.chatter.AnswerStream(r.Context(), sessionID, query)
	if err != nil {
		h.logger.Error("chat stream setup failed", "session", sessionID, "error", err)
		writeSSEData(w, flusher, "[ERROR] failed to start answer stream")
		return
	}

	for delta := range stream.Chunks() {
		writeSSEData(w, flusher, delta)
	}

	if err := stream.Err(); err != nil {
		h.logger.Error("chat stream failed",
			"session", sessionID,
			"state", stream.State().String(),
			"error", err)
		writeSSEData(w, flusher, "[ERROR] failed to generate an answer")
		return
	}

	writeSSEData(w, flusher, "[DONE]")
}

// writeSSEData writes one SSE event. Newlines inside the payload become
// additional data lines of the same event, per the SSE framing rules.
func writeSSEData(w http.ResponseWriter, flusher http.Flusher, payload string) {
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
	flusher.Flush()
}
