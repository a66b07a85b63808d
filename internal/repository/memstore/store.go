// Package memstore is an in-process implementation of the repository
// interfaces. It enforces the same uniqueness and dedup rules as the
// Postgres schema and backs the service and transport tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/repository"
	apperrors "factory-ops/pkg/errors"

	"github.com/google/uuid"
)

type receiptKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
}

type participantKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

// Store holds every table behind a single lock.
type Store struct {
	mu sync.RWMutex

	users         map[uuid.UUID]user.User
	conversations map[uuid.UUID]conversation.Conversation
	participants  map[participantKey]conversation.Participant
	messages      map[uuid.UUID]message.Message
	receipts      map[receiptKey]message.ReadReceipt
	notifications []notification.Notification

	// FailMessages makes message writes fail, for exercising error paths.
	FailMessages error
	// FailNotifications makes notification writes fail.
	FailNotifications error
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]user.User),
		conversations: make(map[uuid.UUID]conversation.Conversation),
		participants:  make(map[participantKey]conversation.Participant),
		messages:      make(map[uuid.UUID]message.Message),
		receipts:      make(map[receiptKey]message.ReadReceipt),
	}
}

var (
	_ repository.UserRepository         = (*Users)(nil)
	_ repository.ConversationRepository = (*Conversations)(nil)
	_ repository.MessageRepository      = (*Messages)(nil)
	_ repository.NotificationRepository = (*Notifications)(nil)
)

func (s *Store) Users() *Users                 { return &Users{s} }
func (s *Store) Conversations() *Conversations { return &Conversations{s} }
func (s *Store) Messages() *Messages           { return &Messages{s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s} }

// PutUser inserts or replaces a user row.
func (s *Store) PutUser(u user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
		u.UpdatedAt = u.CreatedAt
	}
	s.users[u.ID] = u
}

// MessageCount returns the number of stored messages in a conversation.
func (s *Store) MessageCount(conversationID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// ReceiptCount returns the number of stored read receipts.
func (s *Store) ReceiptCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.receipts)
}

// NotificationsFor returns a copy of the user's notifications, oldest first.
func (s *Store) NotificationsFor(userID uuid.UUID) []notification.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// ---- users ----

type Users struct{ s *Store }

func (r *Users) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, apperrors.ErrNotFound
	}
	return u, nil
}

func (r *Users) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []user.User
	seen := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *Users) SearchUsers(_ context.Context, query string, limit int) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q := strings.ToLower(query)
	var out []user.User
	for _, u := range r.s.users {
		if !u.IsActive() {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.DisplayName), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- conversations ----

type Conversations struct{ s *Store }

func (r *Conversations) Create(_ context.Context, c *conversation.Conversation, participantIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.conversations[c.ID]; exists {
		return apperrors.ErrAlreadyExists
	}
	var participants []conversation.Participant
	seen := make(map[uuid.UUID]struct{})
	for _, id := range participantIDs {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		participants = append(participants, conversation.Participant{
			ID:             uuid.New(),
			ConversationID: c.ID,
			UserID:         id,
			IsActive:       true,
			JoinedAt:       c.CreatedAt,
		})
	}
	if len(participants) == 0 {
		return apperrors.ErrInvalidInput
	}
	stored := *c
	stored.Participants = nil
	r.s.conversations[c.ID] = stored
	for _, p := range participants {
		r.s.participants[participantKey{p.ConversationID, p.UserID}] = p
	}
	c.Participants = participants
	return nil
}

// GetByID and GetParticipant expose stored state to tests.
func (r *Conversations) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return conversation.Conversation{}, apperrors.ErrNotFound
	}
	c.Participants = r.participantsLocked(id, false)
	return c, nil
}

func (r *Conversations) participantsLocked(conversationID uuid.UUID, activeOnly bool) []conversation.Participant {
	var out []conversation.Participant
	for k, p := range r.s.participants {
		if k.conversationID != conversationID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out
}

func (r *Conversations) GetUserConversations(_ context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []conversation.Conversation
	for k, p := range r.s.participants {
		if k.userID != userID || !p.IsActive {
			continue
		}
		if c, ok := r.s.conversations[k.conversationID]; ok {
			c.Participants = r.participantsLocked(c.ID, true)
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := int64(len(all))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *Conversations) TouchUpdatedAt(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	if c.UpdatedAt.Before(at) {
		c.UpdatedAt = at
		r.s.conversations[id] = c
	}
	return nil
}

func (r *Conversations) AddParticipant(_ context.Context, conversationID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.conversations[conversationID]; !ok {
		return apperrors.ErrNotFound
	}
	key := participantKey{conversationID, userID}
	if p, ok := r.s.participants[key]; ok {
		p.IsActive = true
		r.s.participants[key] = p
		return nil
	}
	r.s.participants[key] = conversation.Participant{
		ID:             uuid.New(),
		ConversationID: conversationID,
		UserID:         userID,
		IsActive:       true,
		JoinedAt:       time.Now(),
	}
	return nil
}

func (r *Conversations) Deactivate(_ context.Context, conversationID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := participantKey{conversationID, userID}
	p, ok := r.s.participants[key]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.IsActive = false
	r.s.participants[key] = p
	return nil
}

func (r *Conversations) GetParticipant(_ context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.participants[participantKey{conversationID, userID}]
	if !ok {
		return conversation.Participant{}, apperrors.ErrNotFound
	}
	return p, nil
}

func (r *Conversations) IsActiveParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.participants[participantKey{conversationID, userID}]
	return ok && p.IsActive, nil
}

func (r *Conversations) ActiveParticipantIDs(_ context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var ids []uuid.UUID
	for _, p := range r.participantsLocked(conversationID, true) {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func (r *Conversations) FilterActiveMemberships(_ context.Context, userID uuid.UUID, conversationIDs []uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, id := range conversationIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := r.s.participants[participantKey{id, userID}]; ok && p.IsActive {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Conversations) AdvanceLastRead(_ context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := participantKey{conversationID, userID}
	p, ok := r.s.participants[key]
	if !ok || !p.IsActive {
		return nil
	}
	if p.LastReadAt == nil || p.LastReadAt.Before(at) {
		t := at
		p.LastReadAt = &t
		r.s.participants[key] = p
	}
	return nil
}

// ---- messages ----

type Messages struct{ s *Store }

func (r *Messages) Create(_ context.Context, m *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailMessages != nil {
		return r.s.FailMessages
	}
	if _, exists := r.s.messages[m.ID]; exists {
		return apperrors.ErrAlreadyExists
	}
	r.s.messages[m.ID] = *m
	return nil
}

func (r *Messages) ListByConversation(_ context.Context, conversationID uuid.UUID, before time.Time, limit int) ([]message.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []message.Message
	for _, m := range r.s.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Messages) FilterConversationMessageIDs(_ context.Context, conversationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if m, ok := r.s.messages[id]; ok && m.ConversationID == conversationID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *Messages) InsertReadReceipts(_ context.Context, userID uuid.UUID, messageIDs []uuid.UUID, readAt time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var inserted int64
	for _, id := range messageIDs {
		key := receiptKey{id, userID}
		if _, exists := r.s.receipts[key]; exists {
			continue
		}
		r.s.receipts[key] = message.ReadReceipt{ID: uuid.New(), MessageID: id, UserID: userID, ReadAt: readAt}
		inserted++
	}
	return inserted, nil
}

// ---- notifications ----

type Notifications struct{ s *Store }

func (r *Notifications) CreateDeduplicated(_ context.Context, n *notification.Notification, window time.Duration) (notification.Notification, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailNotifications != nil {
		return notification.Notification{}, false, r.s.FailNotifications
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	since := n.CreatedAt.Add(-window)
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		existing := r.s.notifications[i]
		if sameNotification(existing, *n) && !existing.CreatedAt.Before(since) {
			return existing, false, nil
		}
	}
	r.s.notifications = append(r.s.notifications, *n)
	return *n, true, nil
}

func sameNotification(a, b notification.Notification) bool {
	return a.UserID == b.UserID && a.Type == b.Type && a.Title == b.Title && a.Content == b.Content
}

func (r *Notifications) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]notification.Notification, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []notification.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		n := r.s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		all = append(all, n)
	}
	total := int64(len(all))
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *Notifications) UnreadCount(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, item := range r.s.notifications {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *Notifications) MarkRead(_ context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var updated int64
	for i, item := range r.s.notifications {
		if _, ok := wanted[item.ID]; ok && item.UserID == userID && !item.IsRead {
			r.s.notifications[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (r *Notifications) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var updated int64
	for i, item := range r.s.notifications {
		if item.UserID == userID && !item.IsRead {
			r.s.notifications[i].IsRead = true
			updated++
		}
	}
	return updated, nil
}
