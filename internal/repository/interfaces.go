package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/google/uuid"
)

// ErrConversationNotFound is returned by writes that reference a missing conversation.
var ErrConversationNotFound = errors.New("conversation does not exist")

// ErrUserNotFound is returned by writes that reference a missing user.
var ErrUserNotFound = errors.New("user does not exist")

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListSummaries(ctx context.Context, ids []uuid.UUID) ([]domain.UserSummary, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, participants []uuid.UUID, isGroup bool, groupName *string) (*domain.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	// UpdateSummary overwrites the cached last message unless a newer one is already stored.
	UpdateSummary(ctx context.Context, id uuid.UUID, content string, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *domain.NewMessage) (*domain.Message, error)
	// List returns messages newest-first, joined with the sender summary.
	List(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error)
}
