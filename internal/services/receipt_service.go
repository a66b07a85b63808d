package services

import (
	"context"
	"time"

	"factory-ops/internal/events"
	"factory-ops/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MarkReadInput struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	MessageIDs     []uuid.UUID
	ClientID       string
}

type MessagesReadPayload struct {
	UserID         uuid.UUID   `json:"userId"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
	ConversationID uuid.UUID   `json:"conversationId"`
}

type ReceiptService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	publisher     *EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

func NewReceiptService(conversations repository.ConversationRepository, messages repository.MessageRepository, publisher *EventPublisher, logger *zap.Logger) *ReceiptService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptService{
		conversations: conversations,
		messages:      messages,
		publisher:     publisher,
		logger:        logger.With(zap.String("component", "receipts")),
		now:           time.Now,
	}
}

// MarkRead records receipts for the ids that belong to the conversation,
// advances the caller's read watermark and tells the rest of the group.
// A caller without an active membership gets a silent no-op. Receipts that
// already exist are skipped, so repeating a call is harmless.
func (s *ReceiptService) MarkRead(ctx context.Context, in MarkReadInput) (int64, error) {
	active, err := s.conversations.IsActiveParticipant(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return 0, err
	}
	if !active {
		return 0, nil
	}

	ids, err := s.messages.FilterConversationMessageIDs(ctx, in.ConversationID, in.MessageIDs)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	readAt := s.now()
	inserted, err := s.messages.InsertReadReceipts(ctx, in.UserID, ids, readAt)
	if err != nil {
		return 0, err
	}
	if err := s.conversations.AdvanceLastRead(ctx, in.ConversationID, in.UserID, readAt); err != nil {
		return inserted, err
	}

	payload := MessagesReadPayload{UserID: in.UserID, MessageIDs: ids, ConversationID: in.ConversationID}
	s.publisher.Broadcast(events.ConversationGroup(in.ConversationID), events.ServerMessagesRead, payload, in.ClientID)
	if inserted > 0 {
		s.publisher.Emit(ctx, events.EventTypeReceiptRead, events.AggregateConversation, in.ConversationID.String(), payload)
	}
	return inserted, nil
}
