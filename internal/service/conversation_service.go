package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/google/uuid"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// ConversationService builds the conversation list and message history views.
type ConversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
}

func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
	}
}

type CreateConversationInput struct {
	Participants []uuid.UUID `json:"participants"`
	IsGroup      bool        `json:"isGroup"`
	GroupName    *string     `json:"groupName,omitempty"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
	HasMore  bool             `json:"hasMore"`
}

// Create starts a new conversation. The creator is always a participant.
// Existing direct conversations between the same pair are not reused.
func (s *ConversationService) Create(ctx context.Context, creatorID uuid.UUID, input CreateConversationInput) (*domain.Conversation, error) {
	participants := uniqueWith(input.Participants, creatorID)

	if len(participants) < 2 || (!input.IsGroup && len(participants) != 2) {
		return nil, ErrInvalidParticipants
	}

	members, err := s.users.ListSummaries(ctx, participants)
	if err != nil {
		return nil, err
	}
	if len(members) != len(participants) {
		return nil, ErrUserNotFound
	}

	var groupName *string
	if input.IsGroup && input.GroupName != nil {
		if name := strings.TrimSpace(*input.GroupName); name != "" {
			groupName = &name
		}
	}

	conv, err := s.conversations.Create(ctx, participants, input.IsGroup, groupName)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	conv.Members = members
	return conv, nil
}

// List returns the caller's conversations, most recent message first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []domain.Conversation{}, nil
	}

	var ids []uuid.UUID
	for _, c := range convs {
		ids = append(ids, c.Participants...)
	}
	summaries, err := s.users.ListSummaries(ctx, uniqueWith(ids, uuid.Nil))
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]domain.UserSummary, len(summaries))
	for _, u := range summaries {
		byID[u.ID] = u
	}

	for i := range convs {
		for _, id := range convs[i].Participants {
			if u, ok := byID[id]; ok {
				convs[i].Members = append(convs[i].Members, u)
			}
		}
	}
	return convs, nil
}

// ListMessages returns one page of history, newest first. An offset past the
// end yields an empty page.
func (s *ConversationService) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, offset, limit int) (*MessageListResponse, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxMessageLimit {
		limit = defaultMessageLimit
	}

	// Fetch one extra row to know whether an older page exists.
	messages, err := s.messages.List(ctx, conversationID, offset, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{
		Messages: messages,
		Offset:   offset,
		Limit:    limit,
		HasMore:  hasMore,
	}, nil
}

// uniqueWith returns ids without duplicates, plus extra when it is not uuid.Nil.
// Order of first appearance is kept.
func uniqueWith(ids []uuid.UUID, extra uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids)+1)
	out := make([]uuid.UUID, 0, len(ids)+1)
	for _, id := range append(append([]uuid.UUID(nil), ids...), extra) {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
