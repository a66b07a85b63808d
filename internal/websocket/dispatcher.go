package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"factory-ops/internal/events"
	"factory-ops/internal/services"
	apperrors "factory-ops/pkg/errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type roomsRequest struct {
	ConversationIDs []string `json:"conversationIds" validate:"max=1000"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required,max=4000"`
	MessageType    string `json:"messageType" validate:"omitempty,oneof=TEXT IMAGE FILE text image file"`
}

type typingRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

type markReadRequest struct {
	ConversationID string   `json:"conversationId" validate:"required"`
	MessageIDs     []string `json:"messageIds" validate:"required,min=1,max=500"`
}

type connectedPayload struct {
	UserID   uuid.UUID `json:"userId"`
	ClientID string    `json:"clientId"`
}

type pongPayload struct {
	Time int64 `json:"time"`
}

// Dispatcher routes one decoded frame to the component that owns it and
// writes any reply or error back to the originating connection only.
type Dispatcher struct {
	membership *services.MembershipService
	chat       *services.ChatService
	receipts   *services.ReceiptService
	validate   *validator.Validate
	logger     *EventLogger
}

func NewDispatcher(membership *services.MembershipService, chat *services.ChatService, receipts *services.ReceiptService, logger *EventLogger) *Dispatcher {
	if logger == nil {
		logger = NewEventLogger(nil)
	}
	return &Dispatcher{
		membership: membership,
		chat:       chat,
		receipts:   receipts,
		validate:   validator.New(),
		logger:     logger,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, f events.Frame) {
	if !c.limiter.Allow(f.Event) {
		d.logger.Warn("rate limit exceeded", c.userID, c.ID, zap.String("frame", f.Event))
		if f.Event != events.ClientTypingStart && f.Event != events.ClientTypingStop {
			c.EmitError(f.Event, apperrors.ErrRateLimited)
		}
		return
	}

	var err error
	switch f.Event {
	case events.ClientJoinConversations:
		err = d.joinConversations(ctx, c, f.Data)
	case events.ClientLeaveConversations:
		err = d.leaveConversations(c, f.Data)
	case events.ClientSendMessage:
		err = d.sendMessage(ctx, c, f.Data)
	case events.ClientTypingStart:
		err = d.typing(ctx, c, f.Data, true)
	case events.ClientTypingStop:
		err = d.typing(ctx, c, f.Data, false)
	case events.ClientMarkMessagesRead:
		err = d.markRead(ctx, c, f.Data)
	case events.ClientPing:
		c.Emit(events.ServerPong, pongPayload{Time: time.Now().Unix()})
	default:
		err = fmt.Errorf("%w: unknown event %q", apperrors.ErrInvalidInput, f.Event)
	}

	if err != nil {
		if ErrorCode(err) == CodeInternal {
			d.logger.Error("handle frame failed", c.userID, c.ID, err, zap.String("frame", f.Event))
		} else {
			d.logger.Warn("frame rejected", c.userID, c.ID, zap.String("frame", f.Event), zap.Error(err))
		}
		c.EmitError(f.Event, err)
	}
}

func (d *Dispatcher) joinConversations(ctx context.Context, c *Client, data json.RawMessage) error {
	ids, err := d.decodeIDList(data)
	if err != nil {
		return err
	}
	joined, err := d.membership.JoinRooms(ctx, c, ids)
	if err != nil {
		return err
	}
	d.logger.Info("conversations joined", c.userID, c.ID, zap.Int("requested", len(ids)), zap.Int("joined", len(joined)))
	c.Emit(events.ServerConversationsJoined, joined)
	return nil
}

func (d *Dispatcher) leaveConversations(c *Client, data json.RawMessage) error {
	ids, err := d.decodeIDList(data)
	if err != nil {
		return err
	}
	c.Emit(events.ServerConversationsLeft, d.membership.LeaveRooms(c, ids))
	return nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var req sendMessageRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}
	conversationID, err := parseID(req.ConversationID)
	if err != nil {
		return err
	}
	_, err = d.chat.SendMessage(ctx, services.SendMessageInput{
		SenderID:       c.userID,
		ConversationID: conversationID,
		Content:        req.Content,
		Type:           req.MessageType,
	})
	return err
}

// typing is dropped silently for connections that have not joined the
// conversation group.
func (d *Dispatcher) typing(ctx context.Context, c *Client, data json.RawMessage, started bool) error {
	var req typingRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}
	conversationID, err := parseID(req.ConversationID)
	if err != nil {
		return err
	}
	if !c.hub.InGroup(c, events.ConversationGroup(conversationID)) {
		return nil
	}
	return d.chat.Typing(ctx, services.TypingInput{
		UserID:         c.userID,
		Username:       c.username,
		ConversationID: conversationID,
		ClientID:       c.ID,
		Started:        started,
	})
}

func (d *Dispatcher) markRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var req markReadRequest
	if err := d.decode(data, &req); err != nil {
		return err
	}
	conversationID, err := parseID(req.ConversationID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := parseID(raw)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	_, err = d.receipts.MarkRead(ctx, services.MarkReadInput{
		UserID:         c.userID,
		ConversationID: conversationID,
		MessageIDs:     ids,
		ClientID:       c.ID,
	})
	return err
}

func (d *Dispatcher) decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", apperrors.ErrInvalidInput)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := d.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

// decodeIDList accepts either a bare array of ids or {"conversationIds": [...]}.
// Entries that are not ids are skipped, like ids the user may not join.
func (d *Dispatcher) decodeIDList(data json.RawMessage) ([]uuid.UUID, error) {
	var req roomsRequest
	if err := json.Unmarshal(data, &req.ConversationIDs); err != nil {
		if err := d.decode(data, &req); err != nil {
			return nil, err
		}
	}
	if err := d.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	ids := make([]uuid.UUID, 0, len(req.ConversationIDs))
	for _, raw := range req.ConversationIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", apperrors.ErrInvalidInput, raw)
	}
	return id, nil
}
