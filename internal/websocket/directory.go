package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PresenceMirror receives online/offline transitions. redis.PresenceStore
// implements it so other instances and services can read presence.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID, deviceID, clientID string) error
	SetOffline(ctx context.Context, userID string) error
}

const mirrorTimeout = 2 * time.Second

// SessionDirectory maps each user to the ids of their live connections. It
// is the source of truth for presence and starts empty on every boot.
type SessionDirectory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]map[string]struct{}
	mirror   PresenceMirror
	// mirrorMu is taken while mu is still held, so mirror writes land in
	// the same order as the transitions that caused them.
	mirrorMu sync.Mutex
	logger   *zap.Logger
}

func NewSessionDirectory(mirror PresenceMirror, logger *zap.Logger) *SessionDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionDirectory{
		sessions: make(map[uuid.UUID]map[string]struct{}),
		mirror:   mirror,
		logger:   logger,
	}
}

// Register records a connection and reports whether it is the user's first.
func (d *SessionDirectory) Register(userID uuid.UUID, connectionID string) bool {
	d.mu.Lock()
	conns, ok := d.sessions[userID]
	if !ok {
		conns = make(map[string]struct{})
		d.sessions[userID] = conns
	}
	conns[connectionID] = struct{}{}
	first := len(conns) == 1
	if first && d.mirror != nil {
		d.mirrorMu.Lock()
		defer d.mirrorMu.Unlock()
	}
	d.mu.Unlock()

	if first && d.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := d.mirror.SetOnline(ctx, userID.String(), "", connectionID); err != nil {
			d.logger.Warn("presence mirror online failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return first
}

// Unregister removes a connection and reports whether it was the user's
// last. The user's entry is deleted with its last connection.
func (d *SessionDirectory) Unregister(userID uuid.UUID, connectionID string) bool {
	d.mu.Lock()
	conns, ok := d.sessions[userID]
	if !ok {
		d.mu.Unlock()
		return false
	}
	if _, present := conns[connectionID]; !present {
		d.mu.Unlock()
		return false
	}
	delete(conns, connectionID)
	last := len(conns) == 0
	if last {
		delete(d.sessions, userID)
	}
	if last && d.mirror != nil {
		d.mirrorMu.Lock()
		defer d.mirrorMu.Unlock()
	}
	d.mu.Unlock()

	if last && d.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		if err := d.mirror.SetOffline(ctx, userID.String()); err != nil {
			d.logger.Warn("presence mirror offline failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return last
}

func (d *SessionDirectory) IsOnline(userID uuid.UUID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.sessions[userID]
	return ok
}

func (d *SessionDirectory) OnlineUsers() []uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]uuid.UUID, 0, len(d.sessions))
	for id := range d.sessions {
		users = append(users, id)
	}
	return users
}

func (d *SessionDirectory) ConnectionCount(userID uuid.UUID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions[userID])
}
