package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier/internal/app/registry"
	"courier/internal/core/domain"
	"courier/internal/core/services"
	"courier/pkg/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSubscriptionRepo struct {
	msgs map[int64]*domain.SubscriptionMessage
}

func (r *memSubscriptionRepo) Save(_ context.Context, msg *domain.SubscriptionMessage) error {
	cp := *msg
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *memSubscriptionRepo) MarkRead(_ context.Context, id, receiverID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.ReceiverID != receiverID || m.Status != domain.StatusUnread {
		return false, nil
	}
	m.Status = domain.StatusRead
	return true, nil
}

func (r *memSubscriptionRepo) SetArchived(_ context.Context, id int64, archived bool) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.Archived == archived {
		return false, nil
	}
	m.Archived = archived
	return true, nil
}

func (r *memSubscriptionRepo) Delete(_ context.Context, id, senderID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *memSubscriptionRepo) PurgeArchived(_ context.Context, id int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || !m.Archived {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *memSubscriptionRepo) FindSentBy(_ context.Context, senderID int64, _ domain.MessageFilter, _ domain.PageRequest) ([]domain.SubscriptionMessage, int64, error) {
	var out []domain.SubscriptionMessage
	for _, m := range r.msgs {
		if m.SenderID == senderID && !m.Archived {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memSubscriptionRepo) FindRecordWith(_ context.Context, accountID, otherID int64, _ domain.PageRequest) ([]domain.SubscriptionMessage, int64, error) {
	var out []domain.SubscriptionMessage
	for _, m := range r.msgs {
		if (m.SenderID == accountID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == accountID) {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

type seqIDs struct{ next int64 }

func (f *seqIDs) NextID(context.Context) (int64, error) {
	f.next++
	return f.next, nil
}

type noTranslate struct{}

func (noTranslate) TranslateIfPossible(_ context.Context, text, _ string) (string, bool) {
	return text, false
}

type noSchedule struct{}

func (noSchedule) Schedule(context.Context, string, int64, time.Time) error { return nil }
func (noSchedule) Cancel(context.Context, string, int64) error              { return nil }
func (noSchedule) Due(context.Context, string, time.Time) ([]int64, error)  { return nil, nil }
func (noSchedule) Done(context.Context, string, int64) error                { return nil }

type bareTx struct{}

func (bareTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newMessagesFixture(t *testing.T) (*MessageHandler, *memSubscriptionRepo) {
	t.Helper()
	log := testLogger()
	repo := &memSubscriptionRepo{msgs: make(map[int64]*domain.SubscriptionMessage)}
	hub := registry.NewRegistry()
	subscriptionSvc := services.NewSubscriptionService(
		log, repo, hub, &seqIDs{}, noTranslate{}, noSchedule{}, bareTx{}, time.Hour)
	broadcastSvc := services.NewBroadcastService(
		log, nil, hub, &seqIDs{}, noTranslate{}, noSchedule{}, bareTx{}, time.Hour)
	return NewMessageHandler(log, subscriptionSvc, broadcastSvc), repo
}

func asAccount(r *http.Request, accountID int64) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.AccountIDKey, accountID)
	return r.WithContext(ctx)
}

func TestForwardSubscription(t *testing.T) {
	h, repo := newMessagesFixture(t)

	body := bytes.NewBufferString(`{"receiverAccountId": 2, "message": "hello"}`)
	r := asAccount(httptest.NewRequest(http.MethodPost, "/subscription/forward", body), 1)
	w := httptest.NewRecorder()
	h.ForwardSubscription(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	require.NotNil(t, repo.msgs[resp.ID])
	assert.Equal(t, int64(1), repo.msgs[resp.ID].SenderID)
}

func TestForwardSubscription_EmptyMessageRejected(t *testing.T) {
	h, _ := newMessagesFixture(t)

	body := bytes.NewBufferString(`{"receiverAccountId": 2, "message": ""}`)
	r := asAccount(httptest.NewRequest(http.MethodPost, "/subscription/forward", body), 1)
	w := httptest.NewRecorder()
	h.ForwardSubscription(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForwardSubscription_NoAccountIs401(t *testing.T) {
	h, _ := newMessagesFixture(t)

	body := bytes.NewBufferString(`{"receiverAccountId": 2, "message": "hello"}`)
	r := httptest.NewRequest(http.MethodPost, "/subscription/forward", body)
	w := httptest.NewRecorder()
	h.ForwardSubscription(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReadSubscription_SilentNoOpIs204(t *testing.T) {
	h, repo := newMessagesFixture(t)
	repo.msgs[7] = &domain.SubscriptionMessage{
		ID: 7, SenderID: 1, ReceiverID: 2, Message: "hi", Status: domain.StatusUnread,
	}

	do := func(caller int64, id string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPut, "/subscription/read/"+id, nil)
		r.SetPathValue("id", id)
		w := httptest.NewRecorder()
		h.ReadSubscription()(w, asAccount(r, caller))
		return w
	}

	// Wrong caller: still 204, nothing changed.
	w := do(1, "7")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, domain.StatusUnread, repo.msgs[7].Status)

	// Intended receiver: applied.
	w = do(2, "7")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, domain.StatusRead, repo.msgs[7].Status)

	// Unknown id: still 204.
	w = do(2, "999")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestReadSubscription_BadIDIs400(t *testing.T) {
	h, _ := newMessagesFixture(t)

	r := httptest.NewRequest(http.MethodPut, "/subscription/read/abc", nil)
	r.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	h.ReadSubscription()(w, asAccount(r, 2))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSentSubscription(t *testing.T) {
	h, repo := newMessagesFixture(t)
	repo.msgs[7] = &domain.SubscriptionMessage{
		ID: 7, SenderID: 1, ReceiverID: 2, Message: "hi",
		Status: domain.StatusUnread, CreatedAt: time.Now(),
	}

	r := asAccount(httptest.NewRequest(http.MethodGet, "/subscription/sent?page=1&size=10", nil), 1)
	r.Header.Set("Accept-Language", "fr-CA, en;q=0.8")
	w := httptest.NewRecorder()
	h.SentSubscription(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []struct {
			ID            int64  `json:"id"`
			MessageStatus string `json:"messageStatus"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.Equal(t, "UNREAD", page.Items[0].MessageStatus)
}

func TestAcceptLanguage(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, acceptLanguage(r))

	r.Header.Set("Accept-Language", "fr-CA, en;q=0.8")
	assert.Equal(t, "fr-CA", acceptLanguage(r))

	r.Header.Set("Accept-Language", ";;;")
	assert.Empty(t, acceptLanguage(r))
}
