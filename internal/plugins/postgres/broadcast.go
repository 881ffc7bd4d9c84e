package postgres

import (
	"context"
	"courier/internal/core/domain"
	"database/sql"
	"fmt"
)

// BroadcastMessageRepo stores fan-out messages in two tables: the message
// row itself and one receiver row per resolved recipient carrying that
// recipient's read flag.
type BroadcastMessageRepo struct {
	db *sql.DB
}

func NewBroadcastMessageRepo(db *sql.DB) *BroadcastMessageRepo {
	return &BroadcastMessageRepo{db: db}
}

func (r *BroadcastMessageRepo) Save(ctx context.Context, msg *domain.BroadcastMessage) error {
	if msg.ID == 0 {
		return domain.ErrInvalidMessageID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
        INSERT INTO broadcast_messages (
            id, sender_id, message, message_status, archived, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)
    `,
		msg.ID,
		msg.SenderID,
		msg.Message,
		string(msg.Status),
		msg.Archived,
		msg.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, receiverID := range msg.ReceiverIDs {
		if _, err := exec.ExecContext(ctx, `
            INSERT INTO broadcast_message_receivers (message_id, receiver_id, message_status)
            VALUES ($1, $2, 'UNREAD')
        `, msg.ID, receiverID); err != nil {
			return err
		}
	}
	return nil
}

// MarkRead flips the caller's receiver row and, once no unread receivers
// remain, the message row itself. Receivers outside the resolved set and
// repeat reads fall through as "not applied".
func (r *BroadcastMessageRepo) MarkRead(ctx context.Context, id, receiverID int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        UPDATE broadcast_message_receivers
        SET message_status = 'READ'
        WHERE message_id = $1 AND receiver_id = $2 AND message_status = 'UNREAD'
    `, id, receiverID)
	if err != nil {
		return false, err
	}
	ok, err := applied(res)
	if err != nil || !ok {
		return false, err
	}
	var unread int64
	if err := exec.QueryRowContext(ctx, `
        SELECT count(*) FROM broadcast_message_receivers
        WHERE message_id = $1 AND message_status = 'UNREAD'
    `, id).Scan(&unread); err != nil {
		return false, err
	}
	if unread == 0 {
		if _, err := exec.ExecContext(ctx, `
            UPDATE broadcast_messages SET message_status = 'READ' WHERE id = $1
        `, id); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *BroadcastMessageRepo) SetArchived(ctx context.Context, id int64, archived bool) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        UPDATE broadcast_messages
        SET archived = $2
        WHERE id = $1 AND archived <> $2
    `, id, archived)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *BroadcastMessageRepo) Delete(ctx context.Context, id, senderID int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        DELETE FROM broadcast_messages
        WHERE id = $1 AND sender_id = $2
    `, id, senderID)
	if err != nil {
		return false, err
	}
	ok, err := applied(res)
	if err != nil || !ok {
		return false, err
	}
	_, err = exec.ExecContext(ctx, `
        DELETE FROM broadcast_message_receivers WHERE message_id = $1
    `, id)
	return err == nil, err
}

func (r *BroadcastMessageRepo) PurgeArchived(ctx context.Context, id int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        DELETE FROM broadcast_messages
        WHERE id = $1 AND archived
    `, id)
	if err != nil {
		return false, err
	}
	ok, err := applied(res)
	if err != nil || !ok {
		return false, err
	}
	_, err = exec.ExecContext(ctx, `
        DELETE FROM broadcast_message_receivers WHERE message_id = $1
    `, id)
	return err == nil, err
}

func (r *BroadcastMessageRepo) FindSentBy(
	ctx context.Context,
	senderID int64,
	filter domain.MessageFilter,
	page domain.PageRequest,
) ([]domain.BroadcastMessage, int64, error) {
	query := `
		SELECT id, sender_id, message, message_status, archived, created_at,
		       count(*) OVER() AS total
		FROM broadcast_messages
		WHERE sender_id = $1 AND NOT archived`
	args := []any{senderID}
	if filter.Message != "" {
		args = append(args, "%"+filter.Message+"%")
		query += fmt.Sprintf(" AND message LIKE $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND message_status = $%d", len(args))
	}
	args = append(args, page.Limit(), page.Offset())
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var msgs []domain.BroadcastMessage
	var total int64
	for rows.Next() {
		var m domain.BroadcastMessage
		var status string
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.Message,
			&status,
			&m.Archived,
			&m.CreatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		m.Status = domain.MessageStatus(status)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range msgs {
		if err := r.loadReceivers(ctx, &msgs[i]); err != nil {
			return nil, 0, err
		}
	}
	return msgs, total, nil
}

func (r *BroadcastMessageRepo) loadReceivers(ctx context.Context, msg *domain.BroadcastMessage) error {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
        SELECT receiver_id, message_status
        FROM broadcast_message_receivers
        WHERE message_id = $1
        ORDER BY receiver_id
    `, msg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	msg.ReceiverIDs = msg.ReceiverIDs[:0]
	msg.ReadReceiverIDs = nil
	msg.UnreadReceiverIDs = nil
	for rows.Next() {
		var receiverID int64
		var status string
		if err := rows.Scan(&receiverID, &status); err != nil {
			return err
		}
		msg.ReceiverIDs = append(msg.ReceiverIDs, receiverID)
		if domain.MessageStatus(status) == domain.StatusRead {
			msg.ReadReceiverIDs = append(msg.ReadReceiverIDs, receiverID)
		} else {
			msg.UnreadReceiverIDs = append(msg.UnreadReceiverIDs, receiverID)
		}
	}
	msg.ReadQuantity = int64(len(msg.ReadReceiverIDs))
	msg.UnreadQuantity = int64(len(msg.UnreadReceiverIDs))
	return rows.Err()
}
