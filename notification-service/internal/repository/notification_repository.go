package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/ahmedsenousy01/mini-instapay/shared/errs"
	"github.com/ahmedsenousy01/mini-instapay/shared/models"
)

// NotificationRepository stores notifications in PostgreSQL.
type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save inserts n. A redelivered event carries the same id and is ignored.
func (r *NotificationRepository) Save(ctx context.Context, n *models.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, message, is_sent, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (id) DO NOTHING
	`, n.ID, n.UserID, n.Type, n.Message, n.CreatedAt)
	if err != nil {
		return errs.Database(err)
	}
	return nil
}

// ListUnsent returns up to limit unsent notifications, oldest first.
func (r *NotificationRepository) ListUnsent(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, message, created_at
		FROM notifications
		WHERE NOT is_sent
		ORDER BY created_at ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errs.Database(err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.CreatedAt); err != nil {
			return nil, errs.Database(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Database(err)
	}
	return out, nil
}

func (r *NotificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_sent = TRUE, sent_at = $2 WHERE id = $1
	`, id, at); err != nil {
		return errs.Database(err)
	}
	return nil
}
