package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeText  Type = "TEXT"
	TypeImage Type = "IMAGE"
	TypeFile  Type = "FILE"
)

// ParseType normalises a client supplied type tag. Empty means TEXT.
func ParseType(raw string) (Type, bool) {
	switch Type(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", TypeText:
		return TypeText, true
	case TypeImage:
		return TypeImage, true
	case TypeFile:
		return TypeFile, true
	}
	return "", false
}

// Message represents the messages table. Messages are immutable.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversationId"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"senderId"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	Type           Type      `gorm:"column:message_type;type:varchar(10);not null;default:'TEXT'" json:"messageType"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created,priority:2" json:"createdAt"`
}

// ReadReceipt represents message_read_receipts, at most one per user and message.
type ReadReceipt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_receipt_message_user,priority:1" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_receipt_message_user,priority:2" json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

func (Message) TableName() string {
	return "messages"
}

func (ReadReceipt) TableName() string {
	return "message_read_receipts"
}
