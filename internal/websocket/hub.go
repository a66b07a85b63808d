package websocket

import (
	"strings"
	"sync"
	"time"

	"factory-ops/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultMaxRooms = 500

// Hub owns the broadcast groups of this process. Groups are sets of
// connections keyed by "conversation:<id>" or "user:<id>"; a connection only
// ever adds or removes itself.
type Hub struct {
	mu sync.RWMutex

	clients map[string]*Client
	groups  map[string]map[*Client]struct{}

	directory *SessionDirectory
	maxRooms  int
	logger    *EventLogger
}

func NewHub(directory *SessionDirectory, maxRooms int, logger *EventLogger) *Hub {
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}
	if logger == nil {
		logger = NewEventLogger(nil)
	}
	if directory == nil {
		directory = NewSessionDirectory(nil, nil)
	}
	return &Hub{
		clients:   make(map[string]*Client),
		groups:    make(map[string]map[*Client]struct{}),
		directory: directory,
		maxRooms:  maxRooms,
		logger:    logger,
	}
}

func (h *Hub) Directory() *SessionDirectory {
	return h.directory
}

// Register adds the client to its personal group and to the session
// directory.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.addLocked(c, events.UserGroup(c.userID))
	h.mu.Unlock()

	h.directory.Register(c.userID, c.ID)
	h.logger.Info("client connected", c.userID, c.ID)
}

// Unregister drops the client from every group and closes its send queue.
// Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.leaveAllLocked(c)
	delete(h.clients, c.ID)
	close(c.send)
	h.mu.Unlock()

	h.directory.Unregister(c.userID, c.ID)
	h.logger.Info("client disconnected", c.userID, c.ID, zap.Duration("connected_for", time.Since(c.connectedAt)))
}

// Join adds c to group. Conversation groups beyond maxRooms are refused.
func (h *Hub) Join(c *Client, group string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return false
	}
	if _, ok := c.groups[group]; ok {
		return true
	}
	if strings.HasPrefix(group, events.GroupPrefixConversation) && c.rooms >= h.maxRooms {
		h.logger.Warn("room limit reached", c.userID, c.ID, zap.String("group", group), zap.Int("max_rooms", h.maxRooms))
		return false
	}
	h.addLocked(c, group)
	return true
}

func (h *Hub) Leave(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, group)
}

// LeaveUser removes every local connection of userID from group. It runs
// when the user's membership ends, so the connections stop receiving the
// group's frames and can no longer publish into it.
func (h *Hub) LeaveUser(userID uuid.UUID, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.groups[group] {
		if c.userID == userID {
			h.removeLocked(c, group)
			h.logger.Info("removed from group", c.userID, c.ID, zap.String("group", group))
		}
	}
}

// LeaveAll removes c from every group, including its personal one.
func (h *Hub) LeaveAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveAllLocked(c)
}

// InGroup reports whether c currently belongs to group.
func (h *Hub) InGroup(c *Client, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.groups[group]
	return ok
}

// Publish queues payload on every connection in group except excludeClientID.
func (h *Hub) Publish(group string, payload []byte, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[group] {
		if c.ID == excludeClientID {
			continue
		}
		h.enqueueLocked(c, payload)
	}
}

// SendTo queues payload on a single connection if it is still registered.
func (h *Hub) SendTo(c *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c.ID]; ok {
		h.enqueueLocked(c, payload)
	}
}

// Shutdown closes every connection; their read loops unregister them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// enqueueLocked never blocks. A connection whose queue is full is closed
// rather than allowed to stall the group.
func (h *Hub) enqueueLocked(c *Client, payload []byte) {
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("send buffer full, dropping client", c.userID, c.ID)
		go c.close()
	}
}

func (h *Hub) addLocked(c *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	c.groups[group] = struct{}{}
	if strings.HasPrefix(group, events.GroupPrefixConversation) {
		c.rooms++
	}
}

func (h *Hub) removeLocked(c *Client, group string) {
	if _, ok := c.groups[group]; !ok {
		return
	}
	delete(c.groups, group)
	if strings.HasPrefix(group, events.GroupPrefixConversation) {
		c.rooms--
	}
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

func (h *Hub) leaveAllLocked(c *Client) {
	for group := range c.groups {
		h.removeLocked(c, group)
	}
}
