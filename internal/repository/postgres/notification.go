package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, recipient_id, type, title, message, metadata, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	n.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Message,
		n.Metadata,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	query := `
		SELECT id, recipient_id, type, title, message, metadata, read, created_at
		FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC"

	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE recipient_id = $1 AND read = FALSE
	`
	_, err := r.db.ExecContext(ctx, query, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND read = FALSE
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, recipientID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}
