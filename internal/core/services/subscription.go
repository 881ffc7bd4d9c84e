package services

import (
	"context"
	"courier/internal/core/contracts"
	"courier/internal/core/domain"
	"courier/internal/platform/metrics"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("courier-services")

// SubscriptionService routes point-to-point messages and drives their
// read/archive state machine. Persistence always happens first; the live
// push is a best-effort side effect.
type SubscriptionService struct {
	log       *slog.Logger
	repo      domain.SubscriptionMessageRepository
	registry  contracts.Registry
	ids       contracts.IDIssuer
	translate contracts.Translator
	schedule  contracts.PurgeSchedule
	tx        TxRunner
	retention time.Duration
}

func NewSubscriptionService(
	log *slog.Logger,
	repo domain.SubscriptionMessageRepository,
	registry contracts.Registry,
	ids contracts.IDIssuer,
	translate contracts.Translator,
	schedule contracts.PurgeSchedule,
	tx TxRunner,
	retention time.Duration,
) *SubscriptionService {
	return &SubscriptionService{
		log:       log,
		repo:      repo,
		registry:  registry,
		ids:       ids,
		translate: translate,
		schedule:  schedule,
		tx:        tx,
		retention: retention,
	}
}

// Forward persists the message and then, if the receiver keeps a live
// subscription channel open for this sender, pushes the plain text. An
// offline receiver is not an error; they read the message later through the
// query path.
func (s *SubscriptionService) Forward(
	ctx context.Context,
	senderID, receiverID int64,
	text string,
) (int64, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.Forward", trace.WithAttributes(
		attribute.Int64("sender_id", senderID),
		attribute.Int64("receiver_id", receiverID),
	))
	defer span.End()
	if senderID == 0 || receiverID == 0 {
		return 0, domain.ErrInvalidAccountID
	}
	if text == "" {
		return 0, domain.ErrEmptyMessage
	}
	id, err := s.ids.NextID(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "id issuance failed")
		s.log.ErrorContext(ctx, "subscription - forward - id issuance failed", "err", err)
		return 0, err
	}
	msg := domain.SubscriptionMessage{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Message:    text,
		Status:     domain.StatusUnread,
		CreatedAt:  time.Now(),
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.Save(txCtx, &msg)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "subscription - forward - persist failed", "msg_id", id, "err", err)
		return 0, err
	}
	metrics.MessagesForwardedTotal.WithLabelValues(domain.KindLabelSubscription).Inc()
	if conn, ok := s.registry.Subscription(receiverID, senderID); ok {
		s.push(ctx, conn, msg.Message)
	}
	s.log.InfoContext(ctx, "subscription - forward - persisted", "msg_id", id, "receiver_id", receiverID)
	return msg.ID, nil
}

// MarkRead flips UNREAD to READ, but only for the intended receiver. A
// mismatched caller, missing id or already-read message is silently ignored,
// never an error.
func (s *SubscriptionService) MarkRead(ctx context.Context, id, callerID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.MarkRead")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.MarkRead(txCtx, id, callerID)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - mark read - failed", "msg_id", id, "err", err)
		return false, err
	}
	if !applied {
		s.log.DebugContext(ctx, "subscription - mark read - ignored", "msg_id", id, "caller_id", callerID)
	}
	return applied, nil
}

// Archive soft-removes a message and schedules its permanent purge after the
// retention period. Guarded only by existence; unknown ids are ignored.
func (s *SubscriptionService) Archive(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.Archive")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.SetArchived(txCtx, id, true)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - archive - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Schedule(ctx, domain.KindLabelSubscription, id, time.Now().Add(s.retention)); err != nil {
			// The row is archived either way; a lost schedule entry only
			// delays the purge.
			s.log.ErrorContext(ctx, "subscription - archive - purge scheduling failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

// Recover moves an archived message back to active and cancels its pending
// purge.
func (s *SubscriptionService) Recover(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.Recover")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.SetArchived(txCtx, id, false)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - recover - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Cancel(ctx, domain.KindLabelSubscription, id); err != nil {
			s.log.ErrorContext(ctx, "subscription - recover - purge cancel failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

// Delete removes the sender's own message for good. Terminal; a caller who
// is not the sender changes nothing.
func (s *SubscriptionService) Delete(ctx context.Context, id, callerID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.Delete")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.Delete(txCtx, id, callerID)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - delete - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Cancel(ctx, domain.KindLabelSubscription, id); err != nil {
			s.log.ErrorContext(ctx, "subscription - delete - purge cancel failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

// PurgeArchived permanently removes an archived message once its retention
// ran out. Called by the purge worker.
func (s *SubscriptionService) PurgeArchived(ctx context.Context, id int64) error {
	applied, err := s.repo.PurgeArchived(ctx, id)
	if err != nil {
		return err
	}
	if applied {
		metrics.ArchivedPurgedTotal.WithLabelValues(domain.KindLabelSubscription).Inc()
	}
	return nil
}

// FindSentByMe pages through the caller's own sent messages, newest first.
// Outbound text is translated to lang best effort.
func (s *SubscriptionService) FindSentByMe(
	ctx context.Context,
	callerID int64,
	filter domain.MessageFilter,
	page domain.PageRequest,
	lang string,
) ([]domain.SubscriptionMessage, int64, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.FindSentByMe")
	defer span.End()
	msgs, total, err := s.repo.FindSentBy(ctx, callerID, filter, page)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - find sent - failed", "caller_id", callerID, "err", err)
		return nil, 0, err
	}
	s.translateAll(ctx, msgs, lang)
	return msgs, total, nil
}

// FindRecordWith pages through the two-way history between the caller and
// another account.
func (s *SubscriptionService) FindRecordWith(
	ctx context.Context,
	callerID, otherID int64,
	page domain.PageRequest,
	lang string,
) ([]domain.SubscriptionMessage, int64, error) {
	ctx, span := tracer.Start(ctx, "SubscriptionService.FindRecordWith")
	defer span.End()
	msgs, total, err := s.repo.FindRecordWith(ctx, callerID, otherID, page)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "subscription - find record - failed", "caller_id", callerID, "other_id", otherID, "err", err)
		return nil, 0, err
	}
	s.translateAll(ctx, msgs, lang)
	return msgs, total, nil
}

func (s *SubscriptionService) translateAll(ctx context.Context, msgs []domain.SubscriptionMessage, lang string) {
	if lang == "" {
		return
	}
	for i := range msgs {
		msgs[i].Message, _ = s.translate.TranslateIfPossible(ctx, msgs[i].Message, lang)
	}
}

// push writes the message text to a live connection. Failure tears the
// connection down; the command itself already succeeded when the row was
// persisted.
func (s *SubscriptionService) push(ctx context.Context, conn contracts.Conn, text string) {
	if err := conn.Send(ctx, text); err != nil {
		metrics.PushFailuresTotal.WithLabelValues(domain.KindLabelSubscription).Inc()
		s.log.WarnContext(ctx, "subscription - push - write failed, dropping connection", "conn_id", conn.ID(), "err", err)
		s.registry.Drop(conn)
		conn.Close()
		return
	}
	metrics.PushesTotal.WithLabelValues(domain.KindLabelSubscription).Inc()
}
