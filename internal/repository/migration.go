package repository

import (
	"fmt"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
	"factory-ops/internal/domain/notification"
	"factory-ops/internal/domain/user"

	"gorm.io/gorm"
)

// Models lists every table owned by the realtime core, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&user.User{},
		&conversation.Conversation{},
		&conversation.Participant{},
		&message.Message{},
		&message.ReadReceipt{},
		&notification.Notification{},
	}
}

// InitSchema runs gorm auto-migration for the core tables.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}
