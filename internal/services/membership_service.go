package services

import (
	"context"

	"factory-ops/internal/events"
	"factory-ops/internal/repository"

	"github.com/google/uuid"
)

// RoomMember is a live connection that can be added to broadcast groups.
// JoinGroup reports false when the connection refused the group, for example
// because it already holds its maximum number of rooms.
type RoomMember interface {
	UserID() uuid.UUID
	JoinGroup(group string) bool
	LeaveGroup(group string)
}

type MembershipService struct {
	conversations repository.ConversationRepository
}

func NewMembershipService(conversations repository.ConversationRepository) *MembershipService {
	return &MembershipService{conversations: conversations}
}

// JoinRooms adds member to the group of every requested conversation it is
// an active participant of and returns those ids in request order. Ids that
// fail the check are dropped without an error.
func (s *MembershipService) JoinRooms(ctx context.Context, member RoomMember, conversationIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(conversationIDs) == 0 {
		return []uuid.UUID{}, nil
	}

	allowed, err := s.conversations.FilterActiveMemberships(ctx, member.UserID(), conversationIDs)
	if err != nil {
		return nil, err
	}
	ok := make(map[uuid.UUID]struct{}, len(allowed))
	for _, id := range allowed {
		ok[id] = struct{}{}
	}

	joined := make([]uuid.UUID, 0, len(allowed))
	for _, id := range conversationIDs {
		if _, valid := ok[id]; !valid {
			continue
		}
		delete(ok, id)
		if member.JoinGroup(events.ConversationGroup(id)) {
			joined = append(joined, id)
		}
	}
	return joined, nil
}

func (s *MembershipService) LeaveRooms(member RoomMember, conversationIDs []uuid.UUID) []uuid.UUID {
	left := make([]uuid.UUID, 0, len(conversationIDs))
	for _, id := range conversationIDs {
		member.LeaveGroup(events.ConversationGroup(id))
		left = append(left, id)
	}
	return left
}
