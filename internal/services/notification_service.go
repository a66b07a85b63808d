package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"factory-ops/internal/domain/notification"
	"factory-ops/internal/events"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	DefaultDedupWindow     = 5 * time.Minute
	notificationPreviewLen = 100
	maxNotificationPage    = 100
)

type NotificationInput struct {
	Type    notification.Type
	Title   string
	Content string
	Data    map[string]interface{}
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher *EventPublisher
	window    time.Duration
	now       func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, publisher *EventPublisher, window time.Duration) *NotificationService {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &NotificationService{repo: repo, publisher: publisher, window: window, now: time.Now}
}

// Create stores a notification unless an identical one for the same user
// already exists inside the dedup window, in which case the existing row is
// returned and nothing is pushed.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, in NotificationInput) (notification.Notification, error) {
	if userID == uuid.Nil || !in.Type.Valid() || strings.TrimSpace(in.Title) == "" {
		return notification.Notification{}, apperrors.ErrInvalidInput
	}

	n := &notification.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      in.Type,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	if len(in.Data) > 0 {
		n.Data = datatypes.JSONMap(in.Data)
	}

	stored, created, err := s.repo.CreateDeduplicated(ctx, n, s.window)
	if err != nil {
		return notification.Notification{}, err
	}
	if !created {
		return stored, nil
	}

	s.publisher.Broadcast(events.UserGroup(userID), events.ServerNewNotification, stored, "")
	s.publisher.Emit(ctx, events.EventTypeNotificationCreated, events.AggregateNotification, stored.ID.String(), stored)
	return stored, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	page, limit = normalizePage(page, limit, 20, maxNotificationPage)
	return s.repo.ListByUser(ctx, userID, unreadOnly, page, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.ErrInvalidInput
	}
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// Truncate shortens s to max runes, appending "..." when anything was cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}

func normalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}
