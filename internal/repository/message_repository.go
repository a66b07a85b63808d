package repository

import (
	"context"
	"time"

	"factory-ops/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	return translateError(res.Error)
}

// ListByConversation returns up to limit messages older than before, newest first.
// A zero before means "from the latest message".
func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error) {
	var messages []message.Message
	q := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID)

	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}

	err := q.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) FilterConversationMessageIDs(ctx context.Context, conversationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND id IN ?", conversationID, ids).
		Pluck("id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresMessageRepository) InsertReadReceipts(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) (int64, error) {
	messageIDs = uniqueIDs(messageIDs)
	if len(messageIDs) == 0 {
		return 0, nil
	}
	receipts := make([]message.ReadReceipt, 0, len(messageIDs))
	for _, id := range messageIDs {
		receipts = append(receipts, message.ReadReceipt{
			ID:        uuid.New(),
			MessageID: id,
			UserID:    userID,
			ReadAt:    readAt,
		})
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&receipts)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

