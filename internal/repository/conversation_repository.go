package repository

import (
	"context"
	"time"

	"factory-ops/internal/domain/conversation"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation, participantIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(c).Error; err != nil {
			return translateError(err)
		}
		participants := make([]conversation.Participant, 0, len(participantIDs))
		for _, userID := range uniqueIDs(participantIDs) {
			participants = append(participants, conversation.Participant{
				ID:             uuid.New(),
				ConversationID: c.ID,
				UserID:         userID,
				IsActive:       true,
				JoinedAt:       c.CreatedAt,
			})
		}
		if len(participants) == 0 {
			return apperrors.ErrInvalidInput
		}
		if err := tx.Create(&participants).Error; err != nil {
			return translateError(err)
		}
		c.Participants = participants
		return nil
	})
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ? AND is_active = ?", userID, true)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?)", subQuery)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := q.
		Preload("Participants", "is_active = ?", true).
		Order("updated_at DESC").
		Offset(pageOffset(page, limit)).
		Limit(limit).
		Find(&conversations).Error; err != nil {
		return nil, 0, err
	}

	return conversations, total, nil
}

func (r *PostgresConversationRepository) TouchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	// Concurrent senders may commit out of order; the column only moves forward.
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ? AND updated_at < ?", id, at).
		UpdateColumn("updated_at", at)
	return res.Error
}

func (r *PostgresConversationRepository) AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	p := conversation.Participant{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		IsActive:       true,
		JoinedAt:       time.Now(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true}),
	}).Create(&p)
	return translateError(res.Error)
}

func (r *PostgresConversationRepository) Deactivate(ctx context.Context, conversationID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) IsActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) ActiveParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND is_active = ?", conversationID, true).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresConversationRepository) FilterActiveMemberships(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) ([]uuid.UUID, error) {
	conversationIDs = uniqueIDs(conversationIDs)
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("user_id = ? AND is_active = ? AND conversation_id IN ?", userID, true, conversationIDs).
		Pluck("conversation_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *PostgresConversationRepository) AdvanceLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Where("last_read_at IS NULL OR last_read_at < ?", at).
		Update("last_read_at", at).Error
}
