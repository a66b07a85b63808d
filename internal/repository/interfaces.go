package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]user.User, error)
}

type ConversationRepository interface {
	// Create stores the conversation together with an active participant row per user.
	Create(ctx context.Context, c *conversation.Conversation, participantIDs []uuid.UUID) error
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	TouchUpdatedAt(ctx context.Context, id uuid.UUID, at time.Time) error

	// AddParticipant creates the membership row or re-activates a soft-left one.
	AddParticipant(ctx context.Context, conversationID, userID uuid.UUID) error
	Deactivate(ctx context.Context, conversationID, userID uuid.UUID) error
	IsActiveParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	ActiveParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
	FilterActiveMemberships(ctx context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) ([]uuid.UUID, error)

	// AdvanceLastRead moves the read watermark forward; an older timestamp is ignored.
	AdvanceLastRead(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	ListByConversation(ctx context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error)
	FilterConversationMessageIDs(ctx context.Context, conversationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)

	// InsertReadReceipts skips pairs that already exist and returns how many rows were created.
	InsertReadReceipts(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) (int64, error)
}

type NotificationRepository interface {
	// CreateDeduplicated inserts n unless a notification with the same
	// (user, type, title, content) was created within window. It returns the
	// stored row and whether it was newly created.
	CreateDeduplicated(ctx context.Context, n *notification.Notification, window time.Duration) (notification.Notification, bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}
