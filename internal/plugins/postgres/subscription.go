package postgres

import (
	"context"
	"courier/internal/core/domain"
	"database/sql"
	"fmt"
)

type SubscriptionMessageRepo struct {
	db *sql.DB
}

func NewSubscriptionMessageRepo(db *sql.DB) *SubscriptionMessageRepo {
	return &SubscriptionMessageRepo{db: db}
}

func (r *SubscriptionMessageRepo) Save(ctx context.Context, msg *domain.SubscriptionMessage) error {
	if msg.ID == 0 {
		return domain.ErrInvalidMessageID
	}
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
        INSERT INTO subscription_messages (
            id, sender_id, receiver_id, message, message_status, archived, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
    `,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Message,
		string(msg.Status),
		msg.Archived,
		msg.CreatedAt,
	)
	return err
}

// MarkRead is a one-way UNREAD to READ flip scoped to the intended receiver.
// Zero rows means already read, wrong caller or no such id; all of those are
// reported as "not applied", never as errors.
func (r *SubscriptionMessageRepo) MarkRead(ctx context.Context, id, receiverID int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        UPDATE subscription_messages
        SET message_status = 'READ'
        WHERE id = $1 AND receiver_id = $2 AND message_status = 'UNREAD'
    `, id, receiverID)
	if err != nil {
		return false, err
	}
	return applied(res)
}

// SetArchived is guarded only by existence; archive and recover are not
// authorization-checked, unlike delete.
func (r *SubscriptionMessageRepo) SetArchived(ctx context.Context, id int64, archived bool) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        UPDATE subscription_messages
        SET archived = $2
        WHERE id = $1 AND archived <> $2
    `, id, archived)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *SubscriptionMessageRepo) Delete(ctx context.Context, id, senderID int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        DELETE FROM subscription_messages
        WHERE id = $1 AND sender_id = $2
    `, id, senderID)
	if err != nil {
		return false, err
	}
	return applied(res)
}

// PurgeArchived only removes rows that are still archived; a message
// recovered after its purge was scheduled survives.
func (r *SubscriptionMessageRepo) PurgeArchived(ctx context.Context, id int64) (bool, error) {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        DELETE FROM subscription_messages
        WHERE id = $1 AND archived
    `, id)
	if err != nil {
		return false, err
	}
	return applied(res)
}

func (r *SubscriptionMessageRepo) FindSentBy(
	ctx context.Context,
	senderID int64,
	filter domain.MessageFilter,
	page domain.PageRequest,
) ([]domain.SubscriptionMessage, int64, error) {
	query := `
		SELECT id, sender_id, receiver_id, message, message_status, archived, created_at,
		       count(*) OVER() AS total
		FROM subscription_messages
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
	return r.query(ctx, query, args...)
}

func (r *SubscriptionMessageRepo) FindRecordWith(
	ctx context.Context,
	accountID, otherID int64,
	page domain.PageRequest,
) ([]domain.SubscriptionMessage, int64, error) {
	return r.query(ctx, `
		SELECT id, sender_id, receiver_id, message, message_status, archived, created_at,
		       count(*) OVER() AS total
		FROM subscription_messages
		WHERE NOT archived
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, accountID, otherID, page.Limit(), page.Offset())
}

func (r *SubscriptionMessageRepo) query(ctx context.Context, query string, args ...any) ([]domain.SubscriptionMessage, int64, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var msgs []domain.SubscriptionMessage
	var total int64
	for rows.Next() {
		var m domain.SubscriptionMessage
		var status string
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
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
	return msgs, total, rows.Err()
}

func applied(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
