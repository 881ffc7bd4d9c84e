package registry

import (
	"courier/internal/core/contracts"
	"courier/internal/core/domain"
	"courier/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is the process-wide connection table. Two independently keyed
// views plus a flat open set:
//
//	broadcast:    receiver account -> connection
//	subscription: receiver account -> sender account -> connection
//
// All maps are concurrent with per-key atomicity, so an unbounded number of
// connection goroutines can register and deregister without a shared lock.
type Registry struct {
	conns        *xsync.MapOf[uuid.UUID, contracts.Conn]
	broadcast    *xsync.MapOf[int64, contracts.Conn]
	subscription *xsync.MapOf[int64, *xsync.MapOf[int64, contracts.Conn]]
	bindings     *xsync.MapOf[uuid.UUID, domain.Handshake]
}

func NewRegistry() *Registry {
	return &Registry{
		conns:        xsync.NewMapOf[uuid.UUID, contracts.Conn](),
		broadcast:    xsync.NewMapOf[int64, contracts.Conn](),
		subscription: xsync.NewMapOf[int64, *xsync.MapOf[int64, contracts.Conn]](),
		bindings:     xsync.NewMapOf[uuid.UUID, domain.Handshake](),
	}
}

func (r *Registry) Track(c contracts.Conn) {
	if _, loaded := r.conns.LoadOrStore(c.ID(), c); !loaded {
		metrics.OpenConnections.Inc()
	}
}

// Bind registers the connection under its handshake identity. LoadOrStore
// gives per-key atomicity: of two simultaneous handshakes for the same key
// exactly one wins, and the loser's connection is left open but unbound.
func (r *Registry) Bind(c contracts.Conn, hs domain.Handshake) bool {
	var won bool
	switch hs.Kind {
	case domain.KindSubscription:
		inner, _ := r.subscription.LoadOrStore(hs.ReceiverID, xsync.NewMapOf[int64, contracts.Conn]())
		_, loaded := inner.LoadOrStore(hs.SenderID, c)
		won = !loaded
	default:
		_, loaded := r.broadcast.LoadOrStore(hs.ReceiverID, c)
		won = !loaded
	}
	if won {
		r.bindings.Store(c.ID(), hs)
		metrics.RegisteredChannels.WithLabelValues(hs.Kind.String()).Inc()
	}
	return won
}

// Drop removes the connection from the open set and, if it won a binding,
// from its view. Removal is identity-checked: a slow close racing a fast
// reconnect never evicts the newer connection. Double-drop is a no-op.
func (r *Registry) Drop(c contracts.Conn) {
	if _, tracked := r.conns.LoadAndDelete(c.ID()); tracked {
		metrics.OpenConnections.Dec()
	}
	hs, bound := r.bindings.LoadAndDelete(c.ID())
	if !bound {
		return
	}
	switch hs.Kind {
	case domain.KindSubscription:
		// Empty inner maps are left in place on purpose; receivers tend to
		// come back and the maps are cheap.
		if inner, ok := r.subscription.Load(hs.ReceiverID); ok {
			removeIfSame(inner, hs.SenderID, c)
		}
	default:
		removeIfSame(r.broadcast, hs.ReceiverID, c)
	}
	metrics.RegisteredChannels.WithLabelValues(hs.Kind.String()).Dec()
}

func (r *Registry) Subscription(receiverID, senderID int64) (contracts.Conn, bool) {
	inner, ok := r.subscription.Load(receiverID)
	if !ok {
		return nil, false
	}
	return inner.Load(senderID)
}

func (r *Registry) Broadcast(receiverID int64) (contracts.Conn, bool) {
	return r.broadcast.Load(receiverID)
}

// BroadcastReceivers snapshots the broadcast key set. Accounts registering
// after the copy is taken are not part of it; the router accepts that.
func (r *Registry) BroadcastReceivers() []int64 {
	ids := make([]int64, 0, r.broadcast.Size())
	r.broadcast.Range(func(id int64, _ contracts.Conn) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// OpenConnections reports the size of the flat open set.
func (r *Registry) OpenConnections() int {
	return r.conns.Size()
}

func removeIfSame(m *xsync.MapOf[int64, contracts.Conn], key int64, c contracts.Conn) {
	m.Compute(key, func(cur contracts.Conn, loaded bool) (contracts.Conn, bool) {
		if loaded && cur.ID() != c.ID() {
			return cur, false
		}
		return nil, true
	})
}
