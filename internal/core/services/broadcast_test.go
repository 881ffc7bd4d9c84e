package services

import (
	"context"
	"testing"
	"time"

	"courier/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBroadcastFixture() (*BroadcastService, *fakeBroadcastRepo, *fakeRegistry, *fakeSchedule) {
	repo := newFakeBroadcastRepo()
	reg := newFakeRegistry()
	schedule := &fakeSchedule{}
	svc := NewBroadcastService(
		testLogger(), repo, reg, &fakeIDs{}, &fakeTranslator{}, schedule, passTx{}, 30*24*time.Hour)
	return svc, repo, reg, schedule
}

func TestBroadcastForward_ExplicitReceivers(t *testing.T) {
	svc, repo, reg, _ := newBroadcastFixture()
	online := newFakeConn()
	reg.Bind(online, domain.Handshake{Kind: domain.KindBroadcast, ReceiverID: 2})

	id, err := svc.Forward(context.Background(), 1, "news", []int64{2, 3})
	require.NoError(t, err)

	msg := repo.msgs[id]
	require.NotNil(t, msg)
	assert.ElementsMatch(t, []int64{2, 3}, msg.ReceiverIDs)
	assert.ElementsMatch(t, []int64{2, 3}, msg.UnreadReceiverIDs)
	assert.Equal(t, int64(2), msg.UnreadQuantity)
	assert.Equal(t, domain.StatusUnread, msg.Status)

	// Only the online receiver got a push; the offline one reads it later.
	assert.Equal(t, []string{"news"}, online.sent)
}

func TestBroadcastForward_DefaultsToRegisteredReceivers(t *testing.T) {
	svc, repo, reg, _ := newBroadcastFixture()
	a, b := newFakeConn(), newFakeConn()
	reg.Bind(a, domain.Handshake{Kind: domain.KindBroadcast, ReceiverID: 10})
	reg.Bind(b, domain.Handshake{Kind: domain.KindBroadcast, ReceiverID: 11})

	id, err := svc.Forward(context.Background(), 1, "news", nil)
	require.NoError(t, err)

	msg := repo.msgs[id]
	require.NotNil(t, msg)
	assert.ElementsMatch(t, []int64{10, 11}, msg.ReceiverIDs)
	assert.Equal(t, []string{"news"}, a.sent)
	assert.Equal(t, []string{"news"}, b.sent)
}

func TestBroadcastForward_OneBadConnDoesNotStopTheRest(t *testing.T) {
	svc, repo, reg, _ := newBroadcastFixture()
	bad, good := newFakeConn(), newFakeConn()
	bad.sendErr = errBoom
	reg.Bind(bad, domain.Handshake{Kind: domain.KindBroadcast, ReceiverID: 2})
	reg.Bind(good, domain.Handshake{Kind: domain.KindBroadcast, ReceiverID: 3})

	id, err := svc.Forward(context.Background(), 1, "news", []int64{2, 3})
	require.NoError(t, err)
	assert.NotNil(t, repo.msgs[id])
	assert.True(t, bad.closed)
	assert.Contains(t, reg.dropped, bad.ID())
	assert.Equal(t, []string{"news"}, good.sent)
}

func TestBroadcastForward_ValidationErrors(t *testing.T) {
	svc, repo, _, _ := newBroadcastFixture()

	_, err := svc.Forward(context.Background(), 0, "news", []int64{2})
	assert.ErrorIs(t, err, domain.ErrInvalidAccountID)
	_, err = svc.Forward(context.Background(), 1, "", []int64{2})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, repo.msgs)
}

func TestBroadcastMarkRead_PerReceiverAccounting(t *testing.T) {
	svc, repo, _, _ := newBroadcastFixture()
	id, err := svc.Forward(context.Background(), 1, "news", []int64{2, 3})
	require.NoError(t, err)

	applied, err := svc.MarkRead(context.Background(), id, 2)
	require.NoError(t, err)
	require.True(t, applied)

	msg := repo.msgs[id]
	assert.ElementsMatch(t, []int64{2}, msg.ReadReceiverIDs)
	assert.ElementsMatch(t, []int64{3}, msg.UnreadReceiverIDs)
	assert.Equal(t, int64(1), msg.ReadQuantity)
	assert.Equal(t, int64(1), msg.UnreadQuantity)
	assert.Equal(t, domain.StatusUnread, msg.Status, "parent stays unread while any receiver is pending")

	// A repeat read does not double count.
	applied, err = svc.MarkRead(context.Background(), id, 2)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, int64(1), repo.msgs[id].ReadQuantity)

	// A caller outside the receiver set changes nothing.
	applied, err = svc.MarkRead(context.Background(), id, 99)
	require.NoError(t, err)
	assert.False(t, applied)

	// The last receiver flips the parent to read.
	applied, err = svc.MarkRead(context.Background(), id, 3)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, domain.StatusRead, repo.msgs[id].Status)
}

func TestBroadcastArchiveRecoverDelete(t *testing.T) {
	svc, repo, _, schedule := newBroadcastFixture()
	id, err := svc.Forward(context.Background(), 1, "news", []int64{2})
	require.NoError(t, err)

	applied, err := svc.Archive(context.Background(), id)
	require.NoError(t, err)
	require.True(t, applied)
	require.Len(t, schedule.entries, 1)
	assert.Equal(t, domain.KindLabelBroadcast, schedule.entries[0].kind)

	applied, err = svc.Recover(context.Background(), id)
	require.NoError(t, err)
	require.True(t, applied)
	assert.Empty(t, schedule.entries)

	applied, err = svc.Delete(context.Background(), id, 1)
	require.NoError(t, err)
	require.True(t, applied)
	assert.NotContains(t, repo.msgs, id)
}

func TestBroadcastFindSentByMe_StatusFilter(t *testing.T) {
	svc, _, _, _ := newBroadcastFixture()
	id, err := svc.Forward(context.Background(), 1, "news", []int64{2})
	require.NoError(t, err)
	_, err = svc.Forward(context.Background(), 1, "more", []int64{2})
	require.NoError(t, err)
	_, err = svc.MarkRead(context.Background(), id, 2)
	require.NoError(t, err)

	msgs, total, err := svc.FindSentByMe(
		context.Background(), 1, domain.MessageFilter{Status: domain.StatusRead}, domain.PageRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
}
