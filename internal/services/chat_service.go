package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"factory-ops/internal/domain/message"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/events"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const MaxMessageLength = 4000

type SendMessageInput struct {
	SenderID       uuid.UUID
	ConversationID uuid.UUID
	Content        string
	Type           string
}

// NewMessagePayload is the new_message frame body: the stored message plus
// the sender's public profile.
type NewMessagePayload struct {
	message.Message
	Sender user.Profile `json:"sender"`
}

type TypingInput struct {
	UserID         uuid.UUID
	Username       string
	ConversationID uuid.UUID
	ClientID       string
	Started        bool
}

type TypingPayload struct {
	UserID         uuid.UUID `json:"userId"`
	Username       string    `json:"username"`
	ConversationID uuid.UUID `json:"conversationId"`
}

type ChatService struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	notifications *NotificationService
	publisher     *EventPublisher
	logger        *zap.Logger
	now           func() time.Time

	tasks sync.WaitGroup
}

func NewChatService(
	users repository.UserRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	notifications *NotificationService,
	publisher *EventPublisher,
	logger *zap.Logger,
) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifications: notifications,
		publisher:     publisher,
		logger:        logger.With(zap.String("component", "chat")),
		now:           time.Now,
	}
}

// SendMessage validates, authorizes and persists a message, then broadcasts
// it to the conversation group and queues one notification per other active
// participant. Nothing is broadcast unless the insert succeeded.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (message.Message, error) {
	msgType, ok := message.ParseType(in.Type)
	if !ok {
		return message.Message{}, fmt.Errorf("%w: unknown message type %q", apperrors.ErrInvalidInput, in.Type)
	}
	if strings.TrimSpace(in.Content) == "" {
		return message.Message{}, fmt.Errorf("%w: content is required", apperrors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.Content) > MaxMessageLength {
		return message.Message{}, fmt.Errorf("%w: content exceeds %d characters", apperrors.ErrInvalidInput, MaxMessageLength)
	}

	active, err := s.conversations.IsActiveParticipant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return message.Message{}, err
	}
	if !active {
		return message.Message{}, apperrors.ErrForbidden
	}

	sender, err := s.users.GetUserByID(ctx, in.SenderID)
	if err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		Type:           msgType,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return message.Message{}, fmt.Errorf("persist message: %w", err)
	}
	if err := s.conversations.TouchUpdatedAt(ctx, msg.ConversationID, msg.CreatedAt); err != nil {
		s.logger.Warn("touch conversation failed",
			zap.String("conversation_id", msg.ConversationID.String()),
			zap.Error(err),
		)
	}

	payload := NewMessagePayload{Message: msg, Sender: sender.Profile()}
	s.publisher.Broadcast(events.ConversationGroup(msg.ConversationID), events.ServerNewMessage, payload, "")

	s.queueNotifications(ctx, msg, sender)
	s.publisher.Emit(ctx, events.EventTypeMessageCreated, events.AggregateConversation, msg.ConversationID.String(), payload)

	return msg, nil
}

func (s *ChatService) queueNotifications(ctx context.Context, msg message.Message, sender user.User) {
	if s.notifications == nil {
		return
	}
	recipients, err := s.conversations.ActiveParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		s.logger.Error("load notification recipients failed",
			zap.String("message_id", msg.ID.String()),
			zap.Error(err),
		)
		return
	}

	in := NotificationInput{
		Type:    notification.TypeNewMessage,
		Title:   "New message from " + sender.DisplayName,
		Content: Truncate(msg.Content, notificationPreviewLen),
		Data: map[string]interface{}{
			"conversationId": msg.ConversationID.String(),
			"messageId":      msg.ID.String(),
			"senderId":       msg.SenderID.String(),
		},
	}
	taskCtx := context.WithoutCancel(ctx)
	for _, recipient := range recipients {
		if recipient == msg.SenderID {
			continue
		}
		s.tasks.Add(1)
		go func(userID uuid.UUID) {
			defer s.tasks.Done()
			if _, err := s.notifications.Create(taskCtx, userID, in); err != nil {
				s.logger.Error("create message notification failed",
					zap.String("user_id", userID.String()),
					zap.String("message_id", msg.ID.String()),
					zap.Error(err),
				)
			}
		}(recipient)
	}
}

// Wait blocks until every queued notification task has finished.
func (s *ChatService) Wait() {
	s.tasks.Wait()
}

// Typing relays a typing indicator to the rest of the conversation group.
// Callers check that the connection has joined the group first.
func (s *ChatService) Typing(_ context.Context, in TypingInput) error {
	if in.ConversationID == uuid.Nil {
		return apperrors.ErrInvalidInput
	}
	event := events.ServerUserStoppedTyping
	if in.Started {
		event = events.ServerUserTyping
	}
	s.publisher.Broadcast(events.ConversationGroup(in.ConversationID), event, TypingPayload{
		UserID:         in.UserID,
		Username:       in.Username,
		ConversationID: in.ConversationID,
	}, in.ClientID)
	return nil
}
