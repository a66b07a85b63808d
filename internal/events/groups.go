package events

import (
	"strings"

	"github.com/google/uuid"
)

const (
	GroupPrefixConversation = "conversation:"
	GroupPrefixUser         = "user:"

	// ChannelPrefix namespaces broadcast groups on the Redis bus.
	ChannelPrefix = "channel:"
)

func ConversationGroup(id uuid.UUID) string {
	return GroupPrefixConversation + id.String()
}

// UserGroup is the personal group every connection of a user joins on connect.
func UserGroup(id uuid.UUID) string {
	return GroupPrefixUser + id.String()
}

func GroupChannel(group string) string {
	return ChannelPrefix + group
}

func ChannelGroup(channel string) string {
	return strings.TrimPrefix(channel, ChannelPrefix)
}
