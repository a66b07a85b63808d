package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/events"
	"factory-ops/internal/repository/memstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sentFrame struct {
	Group   string
	Exclude string
	Frame   events.Frame
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames []sentFrame
	leaves []string
}

func (b *recordingBroadcaster) LeaveUser(userID uuid.UUID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves = append(b.leaves, userID.String()+"@"+group)
}

func (b *recordingBroadcaster) Publish(group string, payload []byte, excludeClientID string) {
	var f events.Frame
	_ = json.Unmarshal(payload, &f)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, sentFrame{Group: group, Exclude: excludeClientID, Frame: f})
}

func (b *recordingBroadcaster) byEvent(event string) []sentFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []sentFrame
	for _, f := range b.frames {
		if f.Frame.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type recordingOutbound struct {
	mu   sync.Mutex
	envs []events.Envelope
	err  error
}

func (o *recordingOutbound) Publish(_ context.Context, env events.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.envs = append(o.envs, env)
	return o.err
}

func (o *recordingOutbound) Close() error { return nil }

func (o *recordingOutbound) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.envs))
	for _, e := range o.envs {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store    *memstore.Store
	hub      *recordingBroadcaster
	outbound *recordingOutbound
	logs     *observer.ObservedLogs

	publisher     *EventPublisher
	notifications *NotificationService
	chat          *ChatService
	receipts      *ReceiptService
	membership    *MembershipService
	conversations *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	f := &fixture{
		store:    memstore.New(),
		hub:      &recordingBroadcaster{},
		outbound: &recordingOutbound{},
		logs:     logs,
	}
	f.publisher = NewEventPublisher(f.hub, f.outbound, logger)
	f.notifications = NewNotificationService(f.store.Notifications(), f.publisher, DefaultDedupWindow)
	f.chat = NewChatService(f.store.Users(), f.store.Conversations(), f.store.Messages(), f.notifications, f.publisher, logger)
	f.receipts = NewReceiptService(f.store.Conversations(), f.store.Messages(), f.publisher, logger)
	f.membership = NewMembershipService(f.store.Conversations())
	f.conversations = NewConversationService(f.store.Conversations(), f.store.Messages(), f.store.Users(), f.publisher)
	return f
}

func (f *fixture) addUser(name string) user.User {
	u := user.User{
		ID:          uuid.New(),
		Username:    name,
		DisplayName: name,
		Status:      user.StatusActive,
	}
	f.store.PutUser(u)
	return u
}

func (f *fixture) conversationWith(t *testing.T, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now()
	c := &conversation.Conversation{ID: uuid.New(), IsGroup: len(members) > 2, CreatedAt: now, UpdatedAt: now}
	if err := f.store.Conversations().Create(context.Background(), c, members); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return c.ID
}

type fakeMember struct {
	id       uuid.UUID
	groups   map[string]bool
	capacity int
}

func newFakeMember(id uuid.UUID, capacity int) *fakeMember {
	return &fakeMember{id: id, groups: make(map[string]bool), capacity: capacity}
}

func (m *fakeMember) UserID() uuid.UUID { return m.id }

func (m *fakeMember) JoinGroup(group string) bool {
	if m.groups[group] {
		return true
	}
	if m.capacity > 0 && len(m.groups) >= m.capacity {
		return false
	}
	m.groups[group] = true
	return true
}

func (m *fakeMember) LeaveGroup(group string) { delete(m.groups, group) }
