package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. UpdatedAt is bumped on
// every new message and drives conversation list ordering.
type Conversation struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name      *string       `json:"name,omitempty"`
	IsGroup   bool          `gorm:"not null;default:false" json:"isGroup"`
	CreatedBy uuid.NullUUID `gorm:"type:uuid" json:"createdBy"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `gorm:"index" json:"updatedAt"`

	// Relationships
	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// Participant represents the conversation_participants table. Rows are
// never deleted: leaving flips IsActive.
type Participant struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_participant_conversation_user,priority:1" json:"conversationId"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_participant_conversation_user,priority:2;index" json:"userId"`
	IsActive       bool       `gorm:"not null;default:true" json:"isActive"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LastReadAt     *time.Time `json:"lastReadAt,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "conversation_participants"
}
