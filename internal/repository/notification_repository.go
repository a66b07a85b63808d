package repository

import (
	"context"
	"errors"
	"time"

	"factory-ops/internal/domain/notification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// CreateDeduplicated serialises writers of the same dedup key with a
// transaction scoped advisory lock, so the lookup and the insert cannot
// interleave with a concurrent duplicate.
func (r *PostgresNotificationRepository) CreateDeduplicated(ctx context.Context, n *notification.Notification, window time.Duration) (notification.Notification, bool, error) {
	var stored notification.Notification
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", n.DedupKey()).Error; err != nil {
			return err
		}

		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now()
		}
		since := n.CreatedAt.Add(-window)
		var existing notification.Notification
		err := tx.
			Where("user_id = ? AND type = ? AND title = ? AND content = ? AND created_at >= ?",
				n.UserID, n.Type, n.Title, n.Content, since).
			Order("created_at DESC").
			Take(&existing).Error
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(n).Error; err != nil {
			return translateError(err)
		}
		stored = *n
		created = true
		return nil
	})
	if err != nil {
		return notification.Notification{}, false, err
	}
	return stored, created, nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	var items []notification.Notification
	var total int64

	q := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC").Offset(pageOffset(page, limit)).Limit(limit).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PostgresNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, ids, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}
