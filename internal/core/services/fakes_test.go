package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"courier/internal/core/contracts"
	"courier/internal/core/domain"

	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// passTx runs the function on the bare context. Transactional behavior is
// covered by the postgres package tests.
type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeIDs struct {
	next int64
	err  error
}

func (f *fakeIDs) NextID(context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return f.next, nil
}

type fakeTranslator struct {
	prefix string
}

func (f *fakeTranslator) TranslateIfPossible(_ context.Context, text, _ string) (string, bool) {
	if f.prefix == "" {
		return text, false
	}
	return f.prefix + text, true
}

type scheduleEntry struct {
	kind string
	id   int64
	at   time.Time
}

type fakeSchedule struct {
	entries   []scheduleEntry
	cancelled []scheduleEntry
}

func (f *fakeSchedule) Schedule(_ context.Context, kind string, id int64, at time.Time) error {
	f.entries = append(f.entries, scheduleEntry{kind: kind, id: id, at: at})
	return nil
}

func (f *fakeSchedule) Cancel(_ context.Context, kind string, id int64) error {
	f.cancelled = append(f.cancelled, scheduleEntry{kind: kind, id: id})
	for i, e := range f.entries {
		if e.kind == kind && e.id == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeSchedule) Due(_ context.Context, kind string, now time.Time) ([]int64, error) {
	var ids []int64
	for _, e := range f.entries {
		if e.kind == kind && !e.at.After(now) {
			ids = append(ids, e.id)
		}
	}
	return ids, nil
}

func (f *fakeSchedule) Done(_ context.Context, kind string, id int64) error {
	for i, e := range f.entries {
		if e.kind == kind && e.id == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	return nil
}

type fakeConn struct {
	id      uuid.UUID
	sent    []string
	sendErr error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(_ context.Context, text string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

type subKey struct {
	receiverID int64
	senderID   int64
}

type fakeRegistry struct {
	broadcast    map[int64]contracts.Conn
	subscription map[subKey]contracts.Conn
	dropped      []uuid.UUID
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		broadcast:    make(map[int64]contracts.Conn),
		subscription: make(map[subKey]contracts.Conn),
	}
}

func (r *fakeRegistry) Track(contracts.Conn) {}

func (r *fakeRegistry) Bind(c contracts.Conn, hs domain.Handshake) bool {
	switch hs.Kind {
	case domain.KindSubscription:
		r.subscription[subKey{hs.ReceiverID, hs.SenderID}] = c
	default:
		r.broadcast[hs.ReceiverID] = c
	}
	return true
}

func (r *fakeRegistry) Drop(c contracts.Conn) {
	r.dropped = append(r.dropped, c.ID())
	for k, v := range r.subscription {
		if v.ID() == c.ID() {
			delete(r.subscription, k)
		}
	}
	for k, v := range r.broadcast {
		if v.ID() == c.ID() {
			delete(r.broadcast, k)
		}
	}
}

func (r *fakeRegistry) Subscription(receiverID, senderID int64) (contracts.Conn, bool) {
	c, ok := r.subscription[subKey{receiverID, senderID}]
	return c, ok
}

func (r *fakeRegistry) Broadcast(receiverID int64) (contracts.Conn, bool) {
	c, ok := r.broadcast[receiverID]
	return c, ok
}

func (r *fakeRegistry) BroadcastReceivers() []int64 {
	ids := make([]int64, 0, len(r.broadcast))
	for id := range r.broadcast {
		ids = append(ids, id)
	}
	return ids
}

type fakeSubscriptionRepo struct {
	msgs    map[int64]*domain.SubscriptionMessage
	saveErr error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{msgs: make(map[int64]*domain.SubscriptionMessage)}
}

func (r *fakeSubscriptionRepo) Save(_ context.Context, msg *domain.SubscriptionMessage) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *msg
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *fakeSubscriptionRepo) MarkRead(_ context.Context, id, receiverID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.ReceiverID != receiverID || m.Status != domain.StatusUnread {
		return false, nil
	}
	m.Status = domain.StatusRead
	return true, nil
}

func (r *fakeSubscriptionRepo) SetArchived(_ context.Context, id int64, archived bool) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.Archived == archived {
		return false, nil
	}
	m.Archived = archived
	return true, nil
}

func (r *fakeSubscriptionRepo) Delete(_ context.Context, id, senderID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *fakeSubscriptionRepo) PurgeArchived(_ context.Context, id int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || !m.Archived {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *fakeSubscriptionRepo) FindSentBy(_ context.Context, senderID int64, filter domain.MessageFilter, _ domain.PageRequest) ([]domain.SubscriptionMessage, int64, error) {
	var out []domain.SubscriptionMessage
	for _, m := range r.msgs {
		if m.SenderID != senderID || m.Archived {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSubscriptionRepo) FindRecordWith(_ context.Context, accountID, otherID int64, _ domain.PageRequest) ([]domain.SubscriptionMessage, int64, error) {
	var out []domain.SubscriptionMessage
	for _, m := range r.msgs {
		if m.Archived {
			continue
		}
		if (m.SenderID == accountID && m.ReceiverID == otherID) ||
			(m.SenderID == otherID && m.ReceiverID == accountID) {
			out = append(out, *m)
		}
	}
	return out, int64(len(out)), nil
}

type fakeBroadcastRepo struct {
	msgs    map[int64]*domain.BroadcastMessage
	saveErr error
}

func newFakeBroadcastRepo() *fakeBroadcastRepo {
	return &fakeBroadcastRepo{msgs: make(map[int64]*domain.BroadcastMessage)}
}

func (r *fakeBroadcastRepo) Save(_ context.Context, msg *domain.BroadcastMessage) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *msg
	cp.ReceiverIDs = slices.Clone(msg.ReceiverIDs)
	cp.UnreadReceiverIDs = slices.Clone(msg.UnreadReceiverIDs)
	r.msgs[msg.ID] = &cp
	return nil
}

func (r *fakeBroadcastRepo) MarkRead(_ context.Context, id, receiverID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok {
		return false, nil
	}
	i := slices.Index(m.UnreadReceiverIDs, receiverID)
	if i < 0 {
		return false, nil
	}
	m.UnreadReceiverIDs = slices.Delete(m.UnreadReceiverIDs, i, i+1)
	m.ReadReceiverIDs = append(m.ReadReceiverIDs, receiverID)
	m.UnreadQuantity--
	m.ReadQuantity++
	if m.UnreadQuantity == 0 {
		m.Status = domain.StatusRead
	}
	return true, nil
}

func (r *fakeBroadcastRepo) SetArchived(_ context.Context, id int64, archived bool) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.Archived == archived {
		return false, nil
	}
	m.Archived = archived
	return true, nil
}

func (r *fakeBroadcastRepo) Delete(_ context.Context, id, senderID int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || m.SenderID != senderID {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *fakeBroadcastRepo) PurgeArchived(_ context.Context, id int64) (bool, error) {
	m, ok := r.msgs[id]
	if !ok || !m.Archived {
		return false, nil
	}
	delete(r.msgs, id)
	return true, nil
}

func (r *fakeBroadcastRepo) FindSentBy(_ context.Context, senderID int64, filter domain.MessageFilter, _ domain.PageRequest) ([]domain.BroadcastMessage, int64, error) {
	var out []domain.BroadcastMessage
	for _, m := range r.msgs {
		if m.SenderID != senderID || m.Archived {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

var errBoom = errors.New("boom")
