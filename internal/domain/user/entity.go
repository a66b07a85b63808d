package user

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// User represents the users table. Account management lives in the
// workforce API; the realtime core only reads it.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username    string    `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string    `gorm:"not null" json:"displayName"`
	Email       string    `gorm:"uniqueIndex" json:"email,omitempty"`
	Status      string    `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (u User) IsActive() bool {
	return u.Status == StatusActive
}

// Profile is the minimal sender identity attached to realtime events.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

func (User) TableName() string {
	return "users"
}
