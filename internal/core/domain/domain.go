package domain

import (
	"time"
)

type MessageStatus string

const (
	StatusUnread MessageStatus = "UNREAD"
	StatusRead   MessageStatus = "READ"
)

// Message kind labels, shared by the purge schedule and metrics.
const (
	KindLabelSubscription = "subscription"
	KindLabelBroadcast    = "broadcast"
)

// SubscriptionMessage is a point-to-point text message between two accounts.
// Live delivery is a side effect of forwarding; the stored row is the source
// of truth.
type SubscriptionMessage struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Message    string
	Status     MessageStatus
	Archived   bool
	CreatedAt  time.Time
}

// BroadcastMessage is a fan-out text message. The receiver set is resolved
// once at forward time and never changes afterwards; each receiver carries
// its own read flag.
type BroadcastMessage struct {
	ID                int64
	SenderID          int64
	ReceiverIDs       []int64
	ReadReceiverIDs   []int64
	UnreadReceiverIDs []int64
	ReadQuantity      int64
	UnreadQuantity    int64
	Message           string
	Status            MessageStatus
	Archived          bool
	CreatedAt         time.Time
}

// MessageFilter narrows sent-message queries. Zero values mean "no filter".
type MessageFilter struct {
	Message string
	Status  MessageStatus
}

// PageRequest is a 1-based page selector.
type PageRequest struct {
	Number int
	Size   int
}

func (p PageRequest) Limit() int {
	if p.Size < 1 {
		return 20
	}
	return p.Size
}

func (p PageRequest) Offset() int {
	n := p.Number
	if n < 1 {
		n = 1
	}
	return (n - 1) * p.Limit()
}
