package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/emporda/minairo/internal/chat"
	"github.com/emporda/minairo/internal/session"
)

// maxRequestBody caps the chat request body size.
const maxRequestBody = 64 << 10

// Responder produces a reply for one conversation turn.
type Responder interface {
	Respond(ctx context.Context, conversationID, message string) (*chat.Reply, error)
}

// chatRequest is the wire shape of a turn. ConversationID is optional;
// an empty one starts a new conversation.
type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// chatResponse is the wire shape of a reply.
type chatResponse struct {
	ConversationID string  `json:"conversation_id"`
	Response       string  `json:"response"`
	Language       string  `json:"language"`
	Sentiment      float64 `json:"sentiment"`
	Degraded       bool    `json:"degraded,omitempty"`
}

// chatHandler serves POST /api/v1/chat.
type chatHandler struct {
	responder Responder
	logger    *slog.Logger
}

func (h *chatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "invalid_input", "request body too large", h.logger)
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "invalid_input", "empty request body", h.logger)
		default:
			writeError(w, http.StatusBadRequest, "invalid_input", "malformed JSON body", h.logger)
		}
		return
	}

	reply, err := h.responder.Respond(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.writeRespondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: reply.ConversationID,
		Response:       reply.Response,
		Language:       reply.Language,
		Sentiment:      reply.Sentiment,
		Degraded:       reply.Degraded,
	}, h.logger)
}

// writeRespondError maps coordinator errors onto the wire envelope.
func (h *chatHandler) writeRespondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "message is empty or malformed", h.logger)
	case errors.Is(err, session.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_input", "conversation id is malformed", h.logger)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "conversation does not exist or has expired", h.logger)
	case errors.Is(err, session.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "session_busy", "conversation is handling another message", h.logger)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		h.logger.Debug("chat request canceled", "request_id", requestIDFromContext(r.Context()))
	default:
		h.logger.Error("chat turn failed",
			"error", err,
			"request_id", requestIDFromContext(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", h.logger)
	}
}
