package services

import (
	"context"
	"time"

	"factory-ops/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster delivers an encoded frame to every connection in a broadcast
// group, skipping excludeClientID when it is set, and removes a user's
// connections from a group. The websocket hub and the Redis fanout both
// satisfy it.
type Broadcaster interface {
	Publish(group string, payload []byte, excludeClientID string)
	LeaveUser(userID uuid.UUID, group string)
}

// EventPublisher pushes realtime frames to broadcast groups and outbound
// envelopes to collaborators. Neither path returns errors to the caller.
type EventPublisher struct {
	broadcaster Broadcaster
	outbound    events.Publisher
	logger      *zap.Logger
}

func NewEventPublisher(broadcaster Broadcaster, outbound events.Publisher, logger *zap.Logger) *EventPublisher {
	if outbound == nil {
		outbound = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{broadcaster: broadcaster, outbound: outbound, logger: logger}
}

// Broadcast encodes data as a frame and delivers it to group.
func (p *EventPublisher) Broadcast(group, event string, data any, excludeClientID string) {
	if p.broadcaster == nil {
		return
	}
	frame, err := events.Encode(event, data)
	if err != nil {
		p.logger.Error("encode realtime frame failed", zap.String("event", event), zap.Error(err))
		return
	}
	p.broadcaster.Publish(group, frame, excludeClientID)
}

// RemoveFromGroup takes every live connection of userID out of group.
func (p *EventPublisher) RemoveFromGroup(userID uuid.UUID, group string) {
	if p.broadcaster == nil {
		return
	}
	p.broadcaster.LeaveUser(userID, group)
}

// Emit hands an envelope to the outbound publisher.
func (p *EventPublisher) Emit(ctx context.Context, eventType, aggregateType, aggregateID string, payload any) {
	env, err := events.NewEnvelope(eventType, aggregateType, aggregateID, payload, time.Now())
	if err != nil {
		p.logger.Error("encode outbound event failed", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := p.outbound.Publish(ctx, env); err != nil {
		p.logger.Warn("outbound event publish failed",
			zap.String("event_type", eventType),
			zap.String("aggregate_id", aggregateID),
			zap.Error(err),
		)
	}
}
