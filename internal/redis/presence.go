package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type PresenceStatus struct {
	UserID   string    `json:"user_id"`
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
	DeviceID string    `json:"device_id,omitempty"`
	ClientID string    `json:"client_id,omitempty"`
}

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"
	lastSeenTTL       = 24 * time.Hour
)

// PresenceStore mirrors the in-process session directory into Redis so
// other services can read who is online. It is written to, never consulted
// for routing decisions.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{client: client, ttl: ttl, now: time.Now}
}

func (p *PresenceStore) SetOnline(ctx context.Context, userID, deviceID, clientID string) error {
	status := PresenceStatus{
		UserID:   userID,
		IsOnline: true,
		LastSeen: p.now().UTC(),
		DeviceID: deviceID,
		ClientID: clientID,
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID)
	_, err = pipe.Exec(ctx)
	return err
}

// SetOffline keeps the status key around longer so last-seen stays readable.
func (p *PresenceStore) SetOffline(ctx context.Context, userID string) error {
	data, err := json.Marshal(PresenceStatus{
		UserID:   userID,
		LastSeen: p.now().UTC(),
	})
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID, data, lastSeenTTL)
	pipe.SRem(ctx, presenceOnlineSet, userID)
	_, err = pipe.Exec(ctx)
	return err
}
