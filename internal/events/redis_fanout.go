package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroupPublisher delivers a frame to every local connection in group except
// the connection whose id is excludeClientID, and drops a user's local
// connections from a group.
type GroupPublisher interface {
	Publish(group string, payload []byte, excludeClientID string)
	LeaveUser(userID uuid.UUID, group string)
}

// fanoutMessage carries either a frame or, when Leave is set, the id of a
// user whose connections must leave Group.
type fanoutMessage struct {
	Origin  string          `json:"origin"`
	Group   string          `json:"group"`
	Exclude string          `json:"exclude,omitempty"`
	Leave   string          `json:"leave,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RedisFanout extends a local hub across instances. Frames are delivered
// locally first, then relayed on channel:<group>; every other instance
// delivers them to its own connections. Frames carrying this instance's
// origin are ignored on the way back in.
type RedisFanout struct {
	local  GroupPublisher
	pub    ChannelPublisher
	sub    Subscriber
	origin string
	logger *zap.Logger
}

func NewRedisFanout(local GroupPublisher, pub ChannelPublisher, sub Subscriber, logger *zap.Logger) *RedisFanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFanout{
		local:  local,
		pub:    pub,
		sub:    sub,
		origin: uuid.NewString(),
		logger: logger.With(zap.String("component", "redis_fanout")),
	}
}

func (f *RedisFanout) Origin() string {
	return f.origin
}

func (f *RedisFanout) Publish(group string, payload []byte, excludeClientID string) {
	f.local.Publish(group, payload, excludeClientID)
	f.relay(fanoutMessage{
		Origin:  f.origin,
		Group:   group,
		Exclude: excludeClientID,
		Payload: payload,
	})
}

// LeaveUser evicts the user from group here and on every other instance.
func (f *RedisFanout) LeaveUser(userID uuid.UUID, group string) {
	f.local.LeaveUser(userID, group)
	f.relay(fanoutMessage{Origin: f.origin, Group: group, Leave: userID.String()})
}

func (f *RedisFanout) relay(msg fanoutMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("fanout encode failed", zap.String("group", msg.Group), zap.Error(err))
		return
	}
	if err := f.pub.Publish(context.Background(), GroupChannel(msg.Group), data); err != nil {
		f.logger.Warn("fanout relay failed", zap.String("group", msg.Group), zap.Error(err))
	}
}

// Run consumes relayed frames until ctx is done.
func (f *RedisFanout) Run(ctx context.Context) error {
	return f.sub.Subscribe(ctx, []string{ChannelPrefix + "*"}, f.handle)
}

func (f *RedisFanout) handle(channel string, payload []byte) {
	var msg fanoutMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		f.logger.Warn("fanout decode failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	if msg.Origin == f.origin {
		return
	}
	group := msg.Group
	if group == "" {
		group = ChannelGroup(channel)
	}
	if msg.Leave != "" {
		userID, err := uuid.Parse(msg.Leave)
		if err != nil {
			f.logger.Warn("fanout leave has bad user id", zap.String("channel", channel), zap.Error(err))
			return
		}
		f.local.LeaveUser(userID, group)
		return
	}
	f.local.Publish(group, msg.Payload, msg.Exclude)
}
