package handlers

import (
	"context"
	"courier/internal/app/server/ws"
	"courier/internal/core/contracts"
	"courier/internal/core/domain"
	"courier/pkg/middleware"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WSHandler owns the connection lifecycle: upgrade, handshake
// classification, registration and teardown. The first text frame decides
// whether the connection lands in the subscription or the broadcast view.
type WSHandler struct {
	log *slog.Logger
	hub contracts.Registry
}

func NewWSHandler(log *slog.Logger, hub contracts.Registry) *WSHandler {
	return &WSHandler{
		log: log,
		hub: hub,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	if log == nil {
		log = s.log
	}
	span := trace.SpanFromContext(r.Context())
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing account id")
		http.Error(w, "Unauthorized: account id missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.Int64("account.id", accountID))
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", "err", err)
		return
	}
	socket := ws.NewWebSocket(ctx, conn)
	client := ws.NewRuntimeConn(ctx, socket)
	s.hub.Track(client)
	defer s.hub.Drop(client)
	defer client.Close()
	log.InfoContext(r.Context(), "ws handler - connection open", "conn_id", client.ID(), "account_id", accountID)

	// Only the first frame carries the handshake; everything after it is
	// ignored. Outbound traffic flows through the router, not this socket.
	handshaken := false
	socket.ReadLoop(func(data []byte) {
		if handshaken {
			log.DebugContext(ctx, "ws handler - frame after handshake ignored", "conn_id", client.ID())
			return
		}
		hs, err := domain.DecodeHandshake(data)
		if err != nil {
			log.WarnContext(ctx, "ws handler - handshake - malformed frame, closing", "conn_id", client.ID(), "err", err)
			client.Close()
			return
		}
		handshaken = true
		if !s.hub.Bind(client, hs) {
			// First-registered-wins: this connection stays open but never
			// receives routed messages.
			log.InfoContext(ctx, "ws handler - handshake - channel already registered",
				"conn_id", client.ID(), "kind", hs.Kind.String(),
				"receiver_id", hs.ReceiverID, "sender_id", hs.SenderID)
			return
		}
		span.SetAttributes(
			attribute.String("chat.kind", hs.Kind.String()),
			attribute.Int64("chat.receiver_id", hs.ReceiverID),
		)
		if err := client.Send(ctx, domain.HandshakeAck); err != nil {
			log.WarnContext(ctx, "ws handler - handshake - ack write failed", "conn_id", client.ID(), "err", err)
			return
		}
		log.InfoContext(ctx, "ws handler - handshake - channel registered",
			"conn_id", client.ID(), "kind", hs.Kind.String(), "receiver_id", hs.ReceiverID)
	})
	log.InfoContext(ctx, "ws handler - connection closed", "conn_id", client.ID())
}
