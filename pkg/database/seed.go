package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/user"
	"factory-ops/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Users        []user.User
	Conversation conversation.Conversation
}

var devUsers = []struct {
	Username    string
	DisplayName string
}{
	{"line.supervisor", "Line Supervisor"},
	{"shift.lead", "Shift Lead"},
	{"quality.inspector", "Quality Inspector"},
}

// SeedDevelopment creates a few active users sharing one group conversation.
func SeedDevelopment(ctx context.Context, db *gorm.DB) (*SeedResult, error) {
	result := &SeedResult{}
	now := time.Now()

	for _, du := range devUsers {
		u := user.User{
			ID:          uuid.New(),
			Username:    du.Username,
			DisplayName: du.DisplayName,
			Email:       du.Username + "@factory.local",
			Status:      user.StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
			Create(&u).Error
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", du.Username, err)
		}
		if err := db.WithContext(ctx).Where("username = ?", du.Username).First(&u).Error; err != nil {
			return nil, err
		}
		result.Users = append(result.Users, u)
		log.Printf("Seeded user %s (%s)", u.Username, u.ID)
	}

	name := "Line 7 - Floor chat"
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Name:      &name,
		IsGroup:   true,
		CreatedBy: uuid.NullUUID{UUID: result.Users[0].ID, Valid: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	ids := make([]uuid.UUID, 0, len(result.Users))
	for _, u := range result.Users {
		ids = append(ids, u.ID)
	}
	if err := repository.NewConversationRepository(db).Create(ctx, &conv, ids); err != nil {
		return nil, fmt.Errorf("seed conversation: %w", err)
	}
	result.Conversation = conv
	return result, nil
}
