package ws

import (
	"github.com/ahis-social/server/internal/domain"
	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeNewMessage = "new_message"
	EventTypePing       = "ping"
)

// Event types - Server → Client
const (
	EventTypeMessageReceived = "message_received"
	EventTypePong            = "pong"
	EventTypeError           = "error"
)

// Error codes carried by error events.
const (
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeConversationNotFound = "CONVERSATION_NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeSendFailed           = "SEND_FAILED"
	CodeRateLimited          = "RATE_LIMITED"
)

// InboundEvent is one JSON object read from a client. Only the fields of the
// matching type are meaningful; a sender id in the body is never read.
type InboundEvent struct {
	Type           string  `json:"type"`
	ConversationID string  `json:"conversationId"`
	Content        string  `json:"content"`
	MessageType    string  `json:"messageType,omitempty"`
	MediaURL       *string `json:"mediaUrl,omitempty"`
}

// NewMessagePayload is the validated view of a new_message event.
type NewMessagePayload struct {
	ConversationID string  `json:"conversationId" validate:"required,uuid"`
	Content        string  `json:"content" validate:"required_without=MediaURL,max=4000"`
	MessageType    string  `json:"messageType" validate:"omitempty,oneof=text image video voice"`
	MediaURL       *string `json:"mediaUrl" validate:"omitempty,url,max=2048"`
}

// --- Server → Client events ---

type MessageReceivedEvent struct {
	Type           string          `json:"type"`
	ConversationID uuid.UUID       `json:"conversationId"`
	Message        *domain.Message `json:"message"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PongEvent struct {
	Type string `json:"type"`
}

func NewMessageReceived(msg *domain.Message) *MessageReceivedEvent {
	return &MessageReceivedEvent{
		Type:           EventTypeMessageReceived,
		ConversationID: msg.ConversationID,
		Message:        msg,
	}
}

func NewError(code, message string) *ErrorEvent {
	return &ErrorEvent{Type: EventTypeError, Code: code, Message: message}
}
