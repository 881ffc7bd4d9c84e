package contracts

import (
	"context"
	"courier/internal/core/domain"

	"github.com/google/uuid"
)

// Registry tracks which live connections belong to which accounts. It is the
// only shared mutable state in the process, constructed once and passed to
// the websocket handler and the routing services.
type Registry interface {
	// Track adds a freshly upgraded connection to the open set. No account
	// association happens until Bind.
	Track(c Conn)
	// Bind registers a connection under its handshake identity. Returns false
	// when another connection already holds that key (first-registered-wins);
	// the loser stays open but unregistered.
	Bind(c Conn, hs domain.Handshake) bool
	// Drop removes the connection from the open set and from whichever view
	// it was bound into. Idempotent; safe to race a reconnect for the same
	// key because removal is identity-checked.
	Drop(c Conn)
	// Subscription returns the live connection for a (receiver, sender) pair.
	Subscription(receiverID, senderID int64) (Conn, bool)
	// Broadcast returns the live broadcast connection of an account.
	Broadcast(receiverID int64) (Conn, bool)
	// BroadcastReceivers returns a point-in-time snapshot of all accounts
	// with a registered broadcast connection. The copy is not linearizable
	// with concurrent registration.
	BroadcastReceivers() []int64
}

// Conn is the minimal surface the registry and routers need from one live
// websocket connection.
type Conn interface {
	ID() uuid.UUID
	Send(ctx context.Context, text string) error
	Close()
}
