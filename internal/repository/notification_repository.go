package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/kpi-service/internal/domain"
)

// NotificationRepository persists in-app notification records.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	// ExistsByUserAndMessage backs the message-text dedup check. The
	// check-then-insert pair is not atomic; a concurrent duplicate is
	// accepted.
	ExistsByUserAndMessage(ctx context.Context, userID, message string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.Type == "" {
		n.Type = domain.NotificationTypeInApp
	}
	const query = `
        INSERT INTO notifications (user_id, message, type, is_read)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.UserID,
		n.Message,
		n.Type,
		n.IsRead,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ExistsByUserAndMessage(ctx context.Context, userID, message string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM notifications WHERE user_id=$1 AND message=$2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, userID, message).Scan(&exists)
	return exists, err
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, user_id, message, type, is_read, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	const query = `
        UPDATE notifications SET is_read=TRUE
        WHERE id=$1
        RETURNING id, user_id, message, type, is_read, created_at`
	var n domain.Notification
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&n.ID, &n.UserID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &n, nil
}
