package events

// Outbound event types, format domain.action.
const (
	EventTypeMessageCreated      = "message.created"
	EventTypeReceiptRead         = "receipt.read"
	EventTypeNotificationCreated = "notification.created"
	EventTypeConversationCreated = "conversation.created"
	EventTypeParticipantAdded    = "participant.added"
	EventTypeParticipantLeft     = "participant.left"
)

const (
	AggregateConversation = "conversation"
	AggregateNotification = "notification"
)

// Realtime events, client to server.
const (
	ClientJoinConversations  = "join_conversations"
	ClientLeaveConversations = "leave_conversations"
	ClientSendMessage        = "send_message"
	ClientTypingStart        = "typing_start"
	ClientTypingStop         = "typing_stop"
	ClientMarkMessagesRead   = "mark_messages_read"
	ClientPing               = "ping"
)

// Realtime events, server to client.
const (
	ServerConnected           = "connected"
	ServerConversationsJoined = "conversations_joined"
	ServerConversationsLeft   = "conversations_left"
	ServerNewMessage          = "new_message"
	ServerUserTyping          = "user_typing"
	ServerUserStoppedTyping   = "user_stopped_typing"
	ServerMessagesRead        = "messages_read"
	ServerNewNotification     = "new_notification"
	ServerMessageError        = "message_error"
	ServerPong                = "pong"
)
