package worker

import (
	"context"
	"log/slog"
	"time"

	"courier/internal/core/contracts"
	"courier/internal/core/domain"
	"courier/internal/core/services"
)

// ArchivePurgeWorker drains the purge schedule on an interval and permanently
// deletes archived messages whose retention period elapsed. A failed purge is
// logged and left on the schedule for the next tick.
type ArchivePurgeWorker struct {
	log          *slog.Logger
	schedule     contracts.PurgeSchedule
	subscription *services.SubscriptionService
	broadcast    *services.BroadcastService
	interval     time.Duration
}

func NewArchivePurgeWorker(
	log *slog.Logger,
	schedule contracts.PurgeSchedule,
	subscription *services.SubscriptionService,
	broadcast *services.BroadcastService,
	interval time.Duration,
) *ArchivePurgeWorker {
	return &ArchivePurgeWorker{
		log:          log,
		schedule:     schedule,
		subscription: subscription,
		broadcast:    broadcast,
		interval:     interval,
	}
}

func (w *ArchivePurgeWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.InfoContext(ctx, "purge worker - started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "purge worker - stopped")
			return
		case <-ticker.C:
			w.drain(ctx, domain.KindLabelSubscription, w.subscription.PurgeArchived)
			w.drain(ctx, domain.KindLabelBroadcast, w.broadcast.PurgeArchived)
		}
	}
}

func (w *ArchivePurgeWorker) drain(
	ctx context.Context,
	kind string,
	purge func(ctx context.Context, id int64) error,
) {
	ids, err := w.schedule.Due(ctx, kind, time.Now())
	if err != nil {
		w.log.ErrorContext(ctx, "purge worker - due lookup failed", "kind", kind, "err", err)
		return
	}
	for _, id := range ids {
		if err := purge(ctx, id); err != nil {
			w.log.ErrorContext(ctx, "purge worker - purge failed", "kind", kind, "message_id", id, "err", err)
			continue
		}
		if err := w.schedule.Done(ctx, kind, id); err != nil {
			w.log.ErrorContext(ctx, "purge worker - ack failed", "kind", kind, "message_id", id, "err", err)
		}
	}
}
