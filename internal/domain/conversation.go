package domain

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID            uuid.UUID   `json:"id"`
	Participants  []uuid.UUID `json:"participants"`
	LastMessage   *string     `json:"lastMessage"`
	LastMessageAt *time.Time  `json:"lastMessageAt"`
	IsGroup       bool        `json:"isGroup"`
	GroupName     *string     `json:"groupName,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	// Joined fields for frontend
	Members []UserSummary `json:"members,omitempty"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}
