package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventLogger writes realtime events with the fixed fields event, user_id
// and client_id.
type EventLogger struct {
	logger *zap.Logger
}

func NewEventLogger(base *zap.Logger) *EventLogger {
	if base == nil {
		base = zap.L()
	}
	return &EventLogger{logger: base.With(zap.String("component", "websocket"))}
}

func (l *EventLogger) fields(event string, userID uuid.UUID, clientID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID.String()),
		zap.String("client_id", clientID),
	}, extra...)
}

func (l *EventLogger) Info(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, clientID, fields)...)
}

func (l *EventLogger) Warn(event string, userID uuid.UUID, clientID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, clientID, fields)...)
}

func (l *EventLogger) Error(event string, userID uuid.UUID, clientID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, clientID, append(fields, zap.Error(err)))...)
}
