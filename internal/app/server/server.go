package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"courier/internal/app/registry"
	"courier/internal/app/server/handlers"
	"courier/internal/core/services"
	"courier/pkg/middleware"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	log        *slog.Logger
	mux        *http.ServeMux
	app        string
	addr       string
	msgHandler *handlers.MessageHandler
	wsHandler  *handlers.WSHandler
	tokenSvc   *services.TokenService
}

func NewServer(
	log *slog.Logger,
	app string,
	addr string,
	subscriptionSvc *services.SubscriptionService,
	broadcastSvc *services.BroadcastService,
	tokenSvc *services.TokenService,
	hub *registry.Registry,
) *Server {
	s := &Server{
		log:        log,
		mux:        http.NewServeMux(),
		app:        app,
		addr:       addr,
		msgHandler: handlers.NewMessageHandler(log, subscriptionSvc, broadcastSvc),
		wsHandler:  handlers.NewWSHandler(log, hub),
		tokenSvc:   tokenSvc,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Public routes
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Protected routes. The middleware extracts the account id from the JWT
	// 'sub' claim and puts it in Context; the WS handler and every message
	// handler reads the caller from there.
	s.mux.Handle("GET /ws", auth(http.HandlerFunc(s.wsHandler.Handler)))

	s.mux.Handle("POST /subscription/forward", auth(http.HandlerFunc(s.msgHandler.ForwardSubscription)))
	s.mux.Handle("POST /broadcast/forward", auth(http.HandlerFunc(s.msgHandler.ForwardBroadcast)))

	s.mux.Handle("PUT /subscription/read/{id}", auth(s.msgHandler.ReadSubscription()))
	s.mux.Handle("PUT /broadcast/read/{id}", auth(s.msgHandler.ReadBroadcast()))
	s.mux.Handle("PUT /subscription/archive/{id}", auth(s.msgHandler.ArchiveSubscription()))
	s.mux.Handle("PUT /broadcast/archive/{id}", auth(s.msgHandler.ArchiveBroadcast()))
	s.mux.Handle("PUT /subscription/recover/{id}", auth(s.msgHandler.RecoverSubscription()))
	s.mux.Handle("PUT /broadcast/recover/{id}", auth(s.msgHandler.RecoverBroadcast()))
	s.mux.Handle("DELETE /subscription/{id}", auth(s.msgHandler.DeleteSubscription()))
	s.mux.Handle("DELETE /broadcast/{id}", auth(s.msgHandler.DeleteBroadcast()))

	s.mux.Handle("GET /subscription/sent", auth(http.HandlerFunc(s.msgHandler.SentSubscription)))
	s.mux.Handle("GET /broadcast/sent", auth(http.HandlerFunc(s.msgHandler.SentBroadcast)))
	s.mux.Handle("GET /subscription/record/{accountId}", auth(http.HandlerFunc(s.msgHandler.RecordWith)))
}

// Start serves until ctx is cancelled, then drains in-flight requests. Write
// timeout stays unset so websocket sessions are not cut by the HTTP server.
func (s *Server) Start(ctx context.Context) error {
	handler := middleware.RequestLogger(s.log)(
		middleware.TracerMiddleware(s.app)(s.mux))

	server := &http.Server{
		Addr:        s.addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.log.Info("server - started", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
