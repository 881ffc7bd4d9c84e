package handlers

import (
	"courier/internal/core/domain"
	"courier/internal/core/services"
	"courier/pkg/middleware"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/text/language"
)

// MessageHandler exposes the forward/read/archive/recover/delete commands
// and the sent-message queries over HTTP. Mutations answer 204 whether they
// applied or were silently ignored, so callers cannot probe for other
// accounts' message ids.
type MessageHandler struct {
	log          *slog.Logger
	subscription *services.SubscriptionService
	broadcast    *services.BroadcastService
}

func NewMessageHandler(
	log *slog.Logger,
	subscription *services.SubscriptionService,
	broadcast *services.BroadcastService,
) *MessageHandler {
	return &MessageHandler{
		log:          log,
		subscription: subscription,
		broadcast:    broadcast,
	}
}

type forwardSubscriptionRequest struct {
	ReceiverAccountID int64  `json:"receiverAccountId"`
	Message           string `json:"message"`
}

type forwardBroadcastRequest struct {
	ReceiverAccountIDs []int64 `json:"receiverAccountIds,omitempty"`
	Message            string  `json:"message"`
}

type forwardResponse struct {
	ID int64 `json:"id"`
}

func (h *MessageHandler) ForwardSubscription(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req forwardSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.subscription.Forward(r.Context(), caller, req.ReceiverAccountID, req.Message)
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, forwardResponse{ID: id})
}

func (h *MessageHandler) ForwardBroadcast(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req forwardBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id, err := h.broadcast.Forward(r.Context(), caller, req.Message, req.ReceiverAccountIDs)
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, forwardResponse{ID: id})
}

// command adapts the shared shape of the state-machine endpoints: parse the
// id, resolve the caller, run, answer 204.
func (h *MessageHandler) command(fn func(r *http.Request, id, caller int64) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := middleware.AccountID(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id == 0 {
			http.Error(w, "invalid message id", http.StatusBadRequest)
			return
		}
		if _, err := fn(r, id, caller); err != nil {
			h.writeCommandError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *MessageHandler) ReadSubscription() http.HandlerFunc {
	return h.command(func(r *http.Request, id, caller int64) (bool, error) {
		return h.subscription.MarkRead(r.Context(), id, caller)
	})
}

func (h *MessageHandler) ReadBroadcast() http.HandlerFunc {
	return h.command(func(r *http.Request, id, caller int64) (bool, error) {
		return h.broadcast.MarkRead(r.Context(), id, caller)
	})
}

func (h *MessageHandler) ArchiveSubscription() http.HandlerFunc {
	return h.command(func(r *http.Request, id, _ int64) (bool, error) {
		return h.subscription.Archive(r.Context(), id)
	})
}

func (h *MessageHandler) ArchiveBroadcast() http.HandlerFunc {
	return h.command(func(r *http.Request, id, _ int64) (bool, error) {
		return h.broadcast.Archive(r.Context(), id)
	})
}

func (h *MessageHandler) RecoverSubscription() http.HandlerFunc {
	return h.command(func(r *http.Request, id, _ int64) (bool, error) {
		return h.subscription.Recover(r.Context(), id)
	})
}

func (h *MessageHandler) RecoverBroadcast() http.HandlerFunc {
	return h.command(func(r *http.Request, id, _ int64) (bool, error) {
		return h.broadcast.Recover(r.Context(), id)
	})
}

func (h *MessageHandler) DeleteSubscription() http.HandlerFunc {
	return h.command(func(r *http.Request, id, caller int64) (bool, error) {
		return h.subscription.Delete(r.Context(), id, caller)
	})
}

func (h *MessageHandler) DeleteBroadcast() http.HandlerFunc {
	return h.command(func(r *http.Request, id, caller int64) (bool, error) {
		return h.broadcast.Delete(r.Context(), id, caller)
	})
}

type subscriptionMessageView struct {
	ID                int64  `json:"id"`
	SenderAccountID   int64  `json:"senderAccountId"`
	ReceiverAccountID int64  `json:"receiverAccountId"`
	Message           string `json:"message"`
	MessageStatus     string `json:"messageStatus"`
	CreationTime      string `json:"creationTime"`
}

type broadcastMessageView struct {
	ID                 int64   `json:"id"`
	SenderAccountID    int64   `json:"senderAccountId"`
	ReceiverAccountIDs []int64 `json:"receiverAccountIds"`
	ReadReceiverIDs    []int64 `json:"readReceiverIds"`
	UnreadReceiverIDs  []int64 `json:"unreadReceiverIds"`
	ReadQuantity       int64   `json:"readQuantity"`
	UnreadQuantity     int64   `json:"unreadQuantity"`
	Message            string  `json:"message"`
	MessageStatus      string  `json:"messageStatus"`
	CreationTime       string  `json:"creationTime"`
}

type pageView[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func (h *MessageHandler) SentSubscription(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	msgs, total, err := h.subscription.FindSentByMe(
		r.Context(), caller, parseFilter(r), parsePage(r), acceptLanguage(r))
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	page := pageView[subscriptionMessageView]{Items: make([]subscriptionMessageView, 0, len(msgs)), Total: total}
	for _, m := range msgs {
		page.Items = append(page.Items, subscriptionView(m))
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) SentBroadcast(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	msgs, total, err := h.broadcast.FindSentByMe(
		r.Context(), caller, parseFilter(r), parsePage(r), acceptLanguage(r))
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	page := pageView[broadcastMessageView]{Items: make([]broadcastMessageView, 0, len(msgs)), Total: total}
	for _, m := range msgs {
		page.Items = append(page.Items, broadcastMessageView{
			ID:                 m.ID,
			SenderAccountID:    m.SenderID,
			ReceiverAccountIDs: m.ReceiverIDs,
			ReadReceiverIDs:    m.ReadReceiverIDs,
			UnreadReceiverIDs:  m.UnreadReceiverIDs,
			ReadQuantity:       m.ReadQuantity,
			UnreadQuantity:     m.UnreadQuantity,
			Message:            m.Message,
			MessageStatus:      string(m.Status),
			CreationTime:       m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) RecordWith(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.AccountID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	otherID, err := strconv.ParseInt(r.PathValue("accountId"), 10, 64)
	if err != nil || otherID == 0 {
		http.Error(w, "invalid account id", http.StatusBadRequest)
		return
	}
	msgs, total, err := h.subscription.FindRecordWith(
		r.Context(), caller, otherID, parsePage(r), acceptLanguage(r))
	if err != nil {
		h.writeCommandError(w, r, err)
		return
	}
	page := pageView[subscriptionMessageView]{Items: make([]subscriptionMessageView, 0, len(msgs)), Total: total}
	for _, m := range msgs {
		page.Items = append(page.Items, subscriptionView(m))
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) writeCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidAccountID),
		errors.Is(err, domain.ErrInvalidMessageID):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.log.ErrorContext(r.Context(), "messages - command failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func subscriptionView(m domain.SubscriptionMessage) subscriptionMessageView {
	return subscriptionMessageView{
		ID:                m.ID,
		SenderAccountID:   m.SenderID,
		ReceiverAccountID: m.ReceiverID,
		Message:           m.Message,
		MessageStatus:     string(m.Status),
		CreationTime:      m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func parseFilter(r *http.Request) domain.MessageFilter {
	filter := domain.MessageFilter{
		Message: r.URL.Query().Get("message"),
	}
	switch r.URL.Query().Get("status") {
	case "READ":
		filter.Status = domain.StatusRead
	case "UNREAD":
		filter.Status = domain.StatusUnread
	}
	return filter
}

func parsePage(r *http.Request) domain.PageRequest {
	page := domain.PageRequest{}
	if n, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Number = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		page.Size = n
	}
	return page
}

// acceptLanguage picks the caller's preferred language tag for best-effort
// translation of query results.
func acceptLanguage(r *http.Request) string {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
