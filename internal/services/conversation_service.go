package services

import (
	"context"
	"strings"
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
	"factory-ops/internal/events"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type CreateConversationInput struct {
	Name           string
	IsGroup        bool
	ParticipantIDs []uuid.UUID
}

// ConversationService backs the REST surface. Its writes are read back by
// the realtime core on the next membership check.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	publisher     *EventPublisher
	now           func() time.Time
}

func NewConversationService(conversations repository.ConversationRepository, messages repository.MessageRepository, users repository.UserRepository, publisher *EventPublisher) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *ConversationService) List(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	page, limit = normalizePage(page, limit, 20, 100)
	return s.conversations.GetUserConversations(ctx, userID, page, limit)
}

// Create opens a conversation between the creator and the given users.
// Unknown or inactive users are ignored; a direct conversation needs exactly
// one other member.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, in CreateConversationInput) (conversation.Conversation, error) {
	members, err := s.users.GetUsersByIDs(ctx, in.ParticipantIDs)
	if err != nil {
		return conversation.Conversation{}, err
	}
	ids := []uuid.UUID{creatorID}
	for _, u := range members {
		if u.ID != creatorID && u.IsActive() {
			ids = append(ids, u.ID)
		}
	}
	if len(ids) < 2 {
		return conversation.Conversation{}, apperrors.ErrInvalidInput
	}
	if !in.IsGroup && len(ids) != 2 {
		return conversation.Conversation{}, apperrors.ErrInvalidInput
	}

	now := s.now()
	c := conversation.Conversation{
		ID:        uuid.New(),
		IsGroup:   in.IsGroup,
		CreatedBy: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		c.Name = &name
	}
	if err := s.conversations.Create(ctx, &c, ids); err != nil {
		return conversation.Conversation{}, err
	}

	s.publisher.Emit(ctx, events.EventTypeConversationCreated, events.AggregateConversation, c.ID.String(), c)
	return c, nil
}

// AddParticipant lets an active member bring another active user in. A user
// who left earlier is re-activated.
func (s *ConversationService) AddParticipant(ctx context.Context, actorID, conversationID, userID uuid.UUID) error {
	if err := s.requireMember(ctx, conversationID, actorID); err != nil {
		return err
	}
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsActive() {
		return apperrors.ErrInvalidInput
	}
	if err := s.conversations.AddParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	s.publisher.Emit(ctx, events.EventTypeParticipantAdded, events.AggregateConversation, conversationID.String(), map[string]string{
		"conversationId": conversationID.String(),
		"userId":         userID.String(),
		"addedBy":        actorID.String(),
	})
	return nil
}

// Leave soft-deactivates the caller's membership and takes the caller's live
// connections out of the conversation group.
func (s *ConversationService) Leave(ctx context.Context, userID, conversationID uuid.UUID) error {
	if err := s.conversations.Deactivate(ctx, conversationID, userID); err != nil {
		return err
	}
	s.publisher.RemoveFromGroup(userID, events.ConversationGroup(conversationID))
	s.publisher.Emit(ctx, events.EventTypeParticipantLeft, events.AggregateConversation, conversationID.String(), map[string]string{
		"conversationId": conversationID.String(),
		"userId":         userID.String(),
	})
	return nil
}

// History pages backwards through a conversation, newest first. A zero
// before starts from the latest message.
func (s *ConversationService) History(ctx context.Context, userID, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error) {
	if err := s.requireMember(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	_, limit = normalizePage(1, limit, defaultHistoryLimit, maxHistoryLimit)
	return s.messages.ListByConversation(ctx, conversationID, before, limit)
}

func (s *ConversationService) requireMember(ctx context.Context, conversationID, userID uuid.UUID) error {
	active, err := s.conversations.IsActiveParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !active {
		return apperrors.ErrForbidden
	}
	return nil
}
