package services

import (
	"context"
	"courier/internal/core/contracts"
	"courier/internal/core/domain"
	"courier/internal/platform/metrics"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BroadcastService routes fan-out messages. The receiver set is fixed when
// the message is forwarded; accounts connecting afterwards never join a
// message already sent.
type BroadcastService struct {
	log       *slog.Logger
	repo      domain.BroadcastMessageRepository
	registry  contracts.Registry
	ids       contracts.IDIssuer
	translate contracts.Translator
	schedule  contracts.PurgeSchedule
	tx        TxRunner
	retention time.Duration
}

func NewBroadcastService(
	log *slog.Logger,
	repo domain.BroadcastMessageRepository,
	registry contracts.Registry,
	ids contracts.IDIssuer,
	translate contracts.Translator,
	schedule contracts.PurgeSchedule,
	tx TxRunner,
	retention time.Duration,
) *BroadcastService {
	return &BroadcastService{
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

// Forward persists the message against its resolved receiver set and then
// pushes the text to every receiver with a live broadcast connection. When
// no explicit receivers are given, the set is a snapshot of all currently
// registered broadcast accounts; receivers without a live connection still
// count as pending recipients in storage.
func (s *BroadcastService) Forward(
	ctx context.Context,
	senderID int64,
	text string,
	receiverIDs []int64,
) (int64, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.Forward", trace.WithAttributes(
		attribute.Int64("sender_id", senderID),
	))
	defer span.End()
	if senderID == 0 {
		return 0, domain.ErrInvalidAccountID
	}
	if text == "" {
		return 0, domain.ErrEmptyMessage
	}
	receivers := receiverIDs
	if len(receivers) == 0 {
		receivers = s.registry.BroadcastReceivers()
	}
	span.SetAttributes(attribute.Int("receiver_count", len(receivers)))
	id, err := s.ids.NextID(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "id issuance failed")
		s.log.ErrorContext(ctx, "broadcast - forward - id issuance failed", "err", err)
		return 0, err
	}
	msg := domain.BroadcastMessage{
		ID:                id,
		SenderID:          senderID,
		ReceiverIDs:       receivers,
		UnreadReceiverIDs: receivers,
		UnreadQuantity:    int64(len(receivers)),
		Message:           text,
		Status:            domain.StatusUnread,
		CreatedAt:         time.Now(),
	}
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.Save(txCtx, &msg)
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.log.ErrorContext(ctx, "broadcast - forward - persist failed", "msg_id", id, "err", err)
		return 0, err
	}
	metrics.MessagesForwardedTotal.WithLabelValues(domain.KindLabelBroadcast).Inc()
	for _, receiverID := range receivers {
		conn, ok := s.registry.Broadcast(receiverID)
		if !ok {
			continue
		}
		s.push(ctx, conn, msg.Message)
	}
	s.log.InfoContext(ctx, "broadcast - forward - persisted", "msg_id", id, "receivers", len(receivers))
	return msg.ID, nil
}

// MarkRead records that the calling receiver has read the message. Repeat
// calls and callers outside the receiver set change nothing.
func (s *BroadcastService) MarkRead(ctx context.Context, id, callerID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.MarkRead")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.MarkRead(txCtx, id, callerID)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "broadcast - mark read - failed", "msg_id", id, "err", err)
		return false, err
	}
	if !applied {
		s.log.DebugContext(ctx, "broadcast - mark read - ignored", "msg_id", id, "caller_id", callerID)
	}
	return applied, nil
}

func (s *BroadcastService) Archive(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.Archive")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.SetArchived(txCtx, id, true)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "broadcast - archive - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Schedule(ctx, domain.KindLabelBroadcast, id, time.Now().Add(s.retention)); err != nil {
			s.log.ErrorContext(ctx, "broadcast - archive - purge scheduling failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

func (s *BroadcastService) Recover(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.Recover")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.SetArchived(txCtx, id, false)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "broadcast - recover - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Cancel(ctx, domain.KindLabelBroadcast, id); err != nil {
			s.log.ErrorContext(ctx, "broadcast - recover - purge cancel failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

func (s *BroadcastService) Delete(ctx context.Context, id, callerID int64) (bool, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.Delete")
	defer span.End()
	var applied bool
	if err := s.tx.WithTx(ctx, func(txCtx context.Context) error {
		var txErr error
		applied, txErr = s.repo.Delete(txCtx, id, callerID)
		return txErr
	}); err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "broadcast - delete - failed", "msg_id", id, "err", err)
		return false, err
	}
	if applied {
		if err := s.schedule.Cancel(ctx, domain.KindLabelBroadcast, id); err != nil {
			s.log.ErrorContext(ctx, "broadcast - delete - purge cancel failed", "msg_id", id, "err", err)
		}
	}
	return applied, nil
}

func (s *BroadcastService) PurgeArchived(ctx context.Context, id int64) error {
	applied, err := s.repo.PurgeArchived(ctx, id)
	if err != nil {
		return err
	}
	if applied {
		metrics.ArchivedPurgedTotal.WithLabelValues(domain.KindLabelBroadcast).Inc()
	}
	return nil
}

func (s *BroadcastService) FindSentByMe(
	ctx context.Context,
	callerID int64,
	filter domain.MessageFilter,
	page domain.PageRequest,
	lang string,
) ([]domain.BroadcastMessage, int64, error) {
	ctx, span := tracer.Start(ctx, "BroadcastService.FindSentByMe")
	defer span.End()
	msgs, total, err := s.repo.FindSentBy(ctx, callerID, filter, page)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "broadcast - find sent - failed", "caller_id", callerID, "err", err)
		return nil, 0, err
	}
	if lang != "" {
		for i := range msgs {
			msgs[i].Message, _ = s.translate.TranslateIfPossible(ctx, msgs[i].Message, lang)
		}
	}
	return msgs, total, nil
}

func (s *BroadcastService) push(ctx context.Context, conn contracts.Conn, text string) {
	if err := conn.Send(ctx, text); err != nil {
		metrics.PushFailuresTotal.WithLabelValues(domain.KindLabelBroadcast).Inc()
		s.log.WarnContext(ctx, "broadcast - push - write failed, dropping connection", "conn_id", conn.ID(), "err", err)
		s.registry.Drop(conn)
		conn.Close()
		return
	}
	metrics.PushesTotal.WithLabelValues(domain.KindLabelBroadcast).Inc()
}
