package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

func newConversation(t *testing.T, s *Store, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	now := time.Now()
	c := &conversation.Conversation{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	if err := s.Conversations().Create(context.Background(), c, members); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return c.ID
}

func TestCreateConversationRequiresParticipants(t *testing.T) {
	s := New()
	c := &conversation.Conversation{ID: uuid.New()}
	err := s.Conversations().Create(context.Background(), c, []uuid.UUID{uuid.Nil})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestCreateConversationDedupsParticipants(t *testing.T) {
	s := New()
	a := uuid.New()
	convID := newConversation(t, s, a, a, uuid.New())

	ids, _ := s.Conversations().ActiveParticipantIDs(context.Background(), convID)
	if len(ids) != 2 {
		t.Fatalf("participants = %d, want 2", len(ids))
	}
}

func TestLeaveAndRejoin(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, b := uuid.New(), uuid.New()
	convID := newConversation(t, s, a, b)
	convs := s.Conversations()

	if err := convs.Deactivate(ctx, convID, b); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if ok, _ := convs.IsActiveParticipant(ctx, convID, b); ok {
		t.Fatal("b should no longer be active")
	}
	if err := convs.Deactivate(ctx, convID, uuid.New()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("deactivate stranger err = %v, want ErrNotFound", err)
	}

	if err := convs.AddParticipant(ctx, convID, b); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if ok, _ := convs.IsActiveParticipant(ctx, convID, b); !ok {
		t.Fatal("b should be active again")
	}
	ids, _ := convs.ActiveParticipantIDs(ctx, convID)
	if len(ids) != 2 {
		t.Fatalf("participants = %d, want 2 (no duplicate row)", len(ids))
	}
}

func TestTouchUpdatedAtOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	s := New()
	convID := newConversation(t, s, uuid.New())
	later := time.Now().Add(time.Hour)

	_ = s.Conversations().TouchUpdatedAt(ctx, convID, later)
	_ = s.Conversations().TouchUpdatedAt(ctx, convID, later.Add(-30*time.Minute))

	c, _ := s.Conversations().GetByID(ctx, convID)
	if !c.UpdatedAt.Equal(later) {
		t.Fatalf("UpdatedAt = %s, want %s", c.UpdatedAt, later)
	}
}

func TestFilterActiveMembershipsKeepsRequestOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := uuid.New()
	first := newConversation(t, s, a)
	second := newConversation(t, s, a)
	foreign := newConversation(t, s, uuid.New())

	got, _ := s.Conversations().FilterActiveMemberships(ctx, a, []uuid.UUID{second, foreign, first, second})
	if len(got) != 2 || got[0] != second || got[1] != first {
		t.Fatalf("got %v, want [%s %s]", got, second, first)
	}
}

func TestReadReceiptsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	reader := uuid.New()
	msgID := uuid.New()

	n, _ := s.Messages().InsertReadReceipts(ctx, reader, []uuid.UUID{msgID}, time.Now())
	if n != 1 {
		t.Fatalf("first insert = %d, want 1", n)
	}
	n, _ = s.Messages().InsertReadReceipts(ctx, reader, []uuid.UUID{msgID}, time.Now())
	if n != 0 {
		t.Fatalf("second insert = %d, want 0", n)
	}
	if s.ReceiptCount() != 1 {
		t.Fatalf("receipts = %d, want 1", s.ReceiptCount())
	}
}

func TestListByConversationNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	convID := uuid.New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		m := &message.Message{ID: uuid.New(), ConversationID: convID, Content: "m", CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.Messages().Create(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	page, _ := s.Messages().ListByConversation(ctx, convID, base.Add(4*time.Second), 2)
	if len(page) != 2 {
		t.Fatalf("len = %d, want 2", len(page))
	}
	if !page[0].CreatedAt.Equal(base.Add(3*time.Second)) || !page[1].CreatedAt.Equal(base.Add(2*time.Second)) {
		t.Fatalf("unexpected order: %s, %s", page[0].CreatedAt, page[1].CreatedAt)
	}
}

func TestCreateDeduplicatedWindow(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	base := time.Now()
	mk := func(at time.Time) *notification.Notification {
		return &notification.Notification{
			ID: uuid.New(), UserID: userID, Type: notification.TypeNewMessage,
			Title: "New message from Ana", Content: "hi", CreatedAt: at,
		}
	}

	_, created, _ := s.Notifications().CreateDeduplicated(ctx, mk(base), 5*time.Minute)
	if !created {
		t.Fatal("first notification should be created")
	}
	_, created, _ = s.Notifications().CreateDeduplicated(ctx, mk(base.Add(time.Minute)), 5*time.Minute)
	if created {
		t.Fatal("duplicate inside the window should be suppressed")
	}
	_, created, _ = s.Notifications().CreateDeduplicated(ctx, mk(base.Add(6*time.Minute)), 5*time.Minute)
	if !created {
		t.Fatal("duplicate outside the window should be created")
	}
	if got := len(s.NotificationsFor(userID)); got != 2 {
		t.Fatalf("stored = %d, want 2", got)
	}
}

func TestCreateDeduplicatedComparesFields(t *testing.T) {
	ctx := context.Background()
	s := New()
	userID := uuid.New()
	now := time.Now()

	first := &notification.Notification{ID: uuid.New(), UserID: userID, Type: notification.TypeSystem, Title: "a|b", Content: "c", CreatedAt: now}
	second := &notification.Notification{ID: uuid.New(), UserID: userID, Type: notification.TypeSystem, Title: "a", Content: "b|c", CreatedAt: now}
	if first.DedupKey() != second.DedupKey() {
		t.Fatal("fixture should share a lock key")
	}

	if _, created, _ := s.Notifications().CreateDeduplicated(ctx, first, time.Minute); !created {
		t.Fatal("first notification should be created")
	}
	stored, created, _ := s.Notifications().CreateDeduplicated(ctx, second, time.Minute)
	if !created || stored.ID != second.ID || stored.Title != "a" || stored.Content != "b|c" {
		t.Fatalf("second = %+v created=%v, distinct fields must not be merged", stored, created)
	}
	if got := len(s.NotificationsFor(userID)); got != 2 {
		t.Fatalf("stored = %d, want 2", got)
	}
}

func TestMarkReadOnlyTouchesOwner(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner, other := uuid.New(), uuid.New()
	n := &notification.Notification{ID: uuid.New(), UserID: owner, Type: notification.TypeSystem, Title: "t", Content: "c"}
	_, _, _ = s.Notifications().CreateDeduplicated(ctx, n, time.Minute)

	if updated, _ := s.Notifications().MarkRead(ctx, other, []uuid.UUID{n.ID}); updated != 0 {
		t.Fatalf("other user updated %d rows", updated)
	}
	if updated, _ := s.Notifications().MarkRead(ctx, owner, []uuid.UUID{n.ID}); updated != 1 {
		t.Fatalf("owner updated %d rows, want 1", updated)
	}
	if count, _ := s.Notifications().UnreadCount(ctx, owner); count != 0 {
		t.Fatalf("unread = %d, want 0", count)
	}
}

func TestSearchUsersSkipsInactive(t *testing.T) {
	s := New()
	s.PutUser(user.User{ID: uuid.New(), Username: "line.lead", DisplayName: "Line Lead", Status: user.StatusActive})
	s.PutUser(user.User{ID: uuid.New(), Username: "line.old", DisplayName: "Line Old", Status: user.StatusInactive})

	got, _ := s.Users().SearchUsers(context.Background(), "LINE", 10)
	if len(got) != 1 || got[0].Username != "line.lead" {
		t.Fatalf("got %+v", got)
	}
}
