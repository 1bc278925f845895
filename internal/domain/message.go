package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVideo MessageKind = "video"
	KindVoice MessageKind = "voice"
)

// ParseMessageKind maps the wire value to a kind. Empty defaults to text.
func ParseMessageKind(s string) (MessageKind, bool) {
	switch MessageKind(s) {
	case "":
		return KindText, true
	case KindText, KindImage, KindVideo, KindVoice:
		return MessageKind(s), true
	}
	return "", false
}

type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversationId"`
	SenderID       uuid.UUID   `json:"senderId"`
	Content        *string     `json:"content"`
	MediaURL       *string     `json:"mediaUrl,omitempty"`
	Kind           MessageKind `json:"messageType"`
	CreatedAt      time.Time   `json:"createdAt"`
	// Joined fields
	Sender UserSummary `json:"sender"`
}

// NewMessage is the write model for a message before the store assigns id and timestamp.
type NewMessage struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        *string
	MediaURL       *string
	Kind           MessageKind
}

const summaryMaxRunes = 120

// Snippet returns the text cached on the conversation as its last message.
func (m *Message) Snippet() string {
	if m.Content != nil && *m.Content != "" {
		r := []rune(*m.Content)
		if len(r) > summaryMaxRunes {
			return string(r[:summaryMaxRunes])
		}
		return *m.Content
	}
	return "[" + string(m.Kind) + "]"
}
