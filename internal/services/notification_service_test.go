package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"factory-ops/internal/domain/notification"
	"factory-ops/internal/events"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

func TestNotificationDedupWindow(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.notifications.now = func() time.Time { return clock }
	in := NotificationInput{Type: notification.TypeSystem, Title: "Shift change", Content: "Line 2 handover at 14:00"}

	first, err := f.notifications.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock = clock.Add(4 * time.Minute)
	second, err := f.notifications.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("Create duplicate: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("duplicate inside the window should return the existing row")
	}
	if got := len(f.hub.byEvent(events.ServerNewNotification)); got != 1 {
		t.Fatalf("pushes = %d, want 1", got)
	}

	clock = clock.Add(2 * time.Minute)
	third, err := f.notifications.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("Create after window: %v", err)
	}
	if third.ID == first.ID {
		t.Fatal("a duplicate outside the window should be a new row")
	}
	if got := len(f.store.NotificationsFor(userID)); got != 2 {
		t.Fatalf("stored = %d, want 2", got)
	}

	pushes := f.hub.byEvent(events.ServerNewNotification)
	if len(pushes) != 2 || pushes[1].Group != events.UserGroup(userID) {
		t.Fatalf("pushes = %+v", pushes)
	}
}

func TestNotificationDifferentContentIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()

	for _, content := range []string{"Press 4 overheating", "Press 5 overheating"} {
		if _, err := f.notifications.Create(context.Background(), userID, NotificationInput{
			Type: notification.TypePerformanceAlert, Title: "Alert", Content: content,
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if got := len(f.store.NotificationsFor(userID)); got != 2 {
		t.Fatalf("stored = %d, want 2", got)
	}
}

func TestNotificationCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		userID uuid.UUID
		in     NotificationInput
	}{
		{"nil user", uuid.Nil, NotificationInput{Type: notification.TypeSystem, Title: "t"}},
		{"unknown type", uuid.New(), NotificationInput{Type: "BROADCAST", Title: "t"}},
		{"blank title", uuid.New(), NotificationInput{Type: notification.TypeSystem, Title: " "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.notifications.Create(context.Background(), tc.userID, tc.in); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestNotificationReadFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	var ids []uuid.UUID
	for _, title := range []string{"a", "b", "c"} {
		n, err := f.notifications.Create(ctx, userID, NotificationInput{Type: notification.TypeSystem, Title: title})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ids = append(ids, n.ID)
	}

	if _, err := f.notifications.MarkRead(ctx, userID, nil); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty ids err = %v", err)
	}
	if n, _ := f.notifications.MarkRead(ctx, userID, ids[:1]); n != 1 {
		t.Fatalf("MarkRead = %d, want 1", n)
	}
	if count, _ := f.notifications.UnreadCount(ctx, userID); count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}
	unread, total, err := f.notifications.List(ctx, userID, true, 0, 0)
	if err != nil || total != 2 || len(unread) != 2 {
		t.Fatalf("List unread = %d/%d, %v", len(unread), total, err)
	}
	if n, _ := f.notifications.MarkAllRead(ctx, userID); n != 2 {
		t.Fatalf("MarkAllRead = %d, want 2", n)
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
		{"żółć gęś", 4, "żółć..."},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.max); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
