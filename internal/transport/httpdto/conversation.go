package httpdto

import (
	"time"

	"factory-ops/internal/domain/conversation"
	"factory-ops/internal/domain/message"
)

type CreateConversationRequest struct {
	Name         string   `json:"name" binding:"max=120"`
	IsGroup      bool     `json:"isGroup"`
	Participants []string `json:"participants" binding:"required,min=1,max=200,dive,uuid"`
}

type AddParticipantRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
}

type ParticipantDTO struct {
	UserID     string     `json:"userId"`
	IsActive   bool       `json:"isActive"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastReadAt *time.Time `json:"lastReadAt,omitempty"`
}

type ConversationDTO struct {
	ID           string           `json:"id"`
	Name         *string          `json:"name,omitempty"`
	IsGroup      bool             `json:"isGroup"`
	CreatedBy    string           `json:"createdBy,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Participants []ParticipantDTO `json:"participants"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:           c.ID.String(),
		Name:         c.Name,
		IsGroup:      c.IsGroup,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Participants: make([]ParticipantDTO, 0, len(c.Participants)),
	}
	if c.CreatedBy.Valid {
		dto.CreatedBy = c.CreatedBy.UUID.String()
	}
	for _, p := range c.Participants {
		dto.Participants = append(dto.Participants, ParticipantDTO{
			UserID:     p.UserID.String(),
			IsActive:   p.IsActive,
			JoinedAt:   p.JoinedAt,
			LastReadAt: p.LastReadAt,
		})
	}
	return dto
}

type MessageHistoryResponse struct {
	Messages   []message.Message `json:"messages"`
	NextBefore *time.Time        `json:"nextBefore,omitempty"`
}
