package domain

import (
	"context"
)

// SubscriptionMessageRepository is the durable store for point-to-point
// messages. Mutations carry their authorization predicate and report whether
// a row was actually touched, so callers can treat misses as silent no-ops.
type SubscriptionMessageRepository interface {
	Save(ctx context.Context, msg *SubscriptionMessage) error
	// MarkRead flips UNREAD to READ for the intended receiver only.
	MarkRead(ctx context.Context, id, receiverID int64) (bool, error)
	// SetArchived flips the archived flag, guarded only by existence.
	SetArchived(ctx context.Context, id int64, archived bool) (bool, error)
	// Delete removes the sender's own message.
	Delete(ctx context.Context, id, senderID int64) (bool, error)
	// PurgeArchived removes a message only while it is still archived.
	PurgeArchived(ctx context.Context, id int64) (bool, error)
	FindSentBy(ctx context.Context, senderID int64, filter MessageFilter, page PageRequest) ([]SubscriptionMessage, int64, error)
	// FindRecordWith returns the two-way history between two accounts.
	FindRecordWith(ctx context.Context, accountID, otherID int64, page PageRequest) ([]SubscriptionMessage, int64, error)
}

// BroadcastMessageRepository is the durable store for fan-out messages and
// their per-receiver read state.
type BroadcastMessageRepository interface {
	Save(ctx context.Context, msg *BroadcastMessage) error
	// MarkRead moves the receiver from the unread set to the read set.
	// Receivers outside the message's resolved set are ignored.
	MarkRead(ctx context.Context, id, receiverID int64) (bool, error)
	SetArchived(ctx context.Context, id int64, archived bool) (bool, error)
	Delete(ctx context.Context, id, senderID int64) (bool, error)
	PurgeArchived(ctx context.Context, id int64) (bool, error)
	FindSentBy(ctx context.Context, senderID int64, filter MessageFilter, page PageRequest) ([]BroadcastMessage, int64, error)
}
