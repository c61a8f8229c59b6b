package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Unit659z/Clover-studio/internal/platform/auth"
	"github.com/Unit659z/Clover-studio/internal/platform/httpx"
	"github.com/Unit659z/Clover-studio/internal/services"
)

// MessageHandlers exposes direct messages between users. Every route needs a caller.
type MessageHandlers struct {
	authn    *auth.Authenticator
	messages services.MessageService
	guard    func(http.Handler) http.Handler
}

func NewMessageHandlers(authn *auth.Authenticator, messages services.MessageService) *MessageHandlers {
	return &MessageHandlers{authn: authn, messages: messages}
}

// WithIdempotency guards sending with the given middleware.
func (h *MessageHandlers) WithIdempotency(mw func(http.Handler) http.Handler) *MessageHandlers {
	h.guard = mw
	return h
}

// Routes registers the /messages endpoints.
func (h *MessageHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listMessages)
	guarded(r, h.guard).Post("/", h.sendMessage)
	r.Get("/{messageID}", h.getMessage)
	r.Post("/{messageID}:mark-read", h.markRead)
	r.Delete("/{messageID}", h.deleteMessage)
}

type messagePayload struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	SentAt     string `json:"sent_at"`
	IsRead     bool   `json:"is_read"`
}

type messageListResponse struct {
	Items         []messagePayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required,max=4000"`
}

func (h *MessageHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		writeUnavailable(ctx, w, "message")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	params, ok := paginationFromRequest(ctx, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.MessageListFilter{
		SenderID:   strings.TrimSpace(query.Get("sender_id")),
		ReceiverID: strings.TrimSpace(query.Get("receiver_id")),
		Pagination: pageOf(params),
	}
	if raw := strings.TrimSpace(query.Get("is_read")); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "is_read must be true or false", http.StatusBadRequest))
			return
		}
		filter.IsRead = &read
	}

	page, err := h.messages.ListMessages(ctx, actor, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]messagePayload, 0, len(page.Items))
	for _, msg := range page.Items {
		items = append(items, buildMessagePayload(msg))
	}
	httpx.WriteJSON(w, http.StatusOK, messageListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *MessageHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		writeUnavailable(ctx, w, "message")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	msg, err := h.messages.SendMessage(ctx, services.SendMessageCommand{
		Actor:      actor,
		ReceiverID: req.ReceiverID,
		Content:    req.Content,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildMessagePayload(msg))
}

func (h *MessageHandlers) getMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		writeUnavailable(ctx, w, "message")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	msg, err := h.messages.GetMessage(ctx, actor, chi.URLParam(r, "messageID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildMessagePayload(msg))
}

func (h *MessageHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		writeUnavailable(ctx, w, "message")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	msg, err := h.messages.MarkRead(ctx, actor, chi.URLParam(r, "messageID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildMessagePayload(msg))
}

func (h *MessageHandlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.messages == nil {
		writeUnavailable(ctx, w, "message")
		return
	}
	actor, ok := actorFromRequest(ctx, w)
	if !ok {
		return
	}
	if err := h.messages.DeleteMessage(ctx, actor, chi.URLParam(r, "messageID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func buildMessagePayload(msg services.Message) messagePayload {
	return messagePayload{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Content:    msg.Content,
		SentAt:     formatTime(msg.SentAt),
		IsRead:     msg.IsRead,
	}
}
