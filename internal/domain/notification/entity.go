package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Type string

const (
	TypeNewMessage       Type = "NEW_MESSAGE"
	TypeMention          Type = "MENTION"
	TypeSystem           Type = "SYSTEM"
	TypePerformanceAlert Type = "PERFORMANCE_ALERT"
)

func (t Type) Valid() bool {
	switch t {
	case TypeNewMessage, TypeMention, TypeSystem, TypePerformanceAlert:
		return true
	}
	return false
}

// Notification represents the notifications table. The composite index
// backs the duplicate lookup over (user, type, title, content, window).
type Notification struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index:idx_notifications_dedup,priority:1" json:"userId"`
	Type      Type              `gorm:"type:varchar(32);not null;index:idx_notifications_dedup,priority:2" json:"type"`
	Title     string            `gorm:"not null" json:"title"`
	Content   string            `gorm:"type:text;not null" json:"content"`
	Data      datatypes.JSONMap `gorm:"type:jsonb" json:"data,omitempty"`
	IsRead    bool              `gorm:"not null;default:false" json:"isRead"`
	CreatedAt time.Time         `gorm:"index:idx_notifications_dedup,priority:3" json:"createdAt"`
}

// DedupKey names the advisory lock that serialises writers of the same
// notification. Distinct notifications may share a key, so lookups compare
// the fields themselves.
func (n Notification) DedupKey() string {
	return n.UserID.String() + "|" + string(n.Type) + "|" + n.Title + "|" + n.Content
}

func (Notification) TableName() string {
	return "notifications"
}
