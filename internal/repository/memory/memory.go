// Package memory is a process-local implementation of the repository
// interfaces, used for local development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/google/uuid"
)

type storedMessage struct {
	domain.Message
	seq int64
}

type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]domain.User
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID][]storedMessage
	seq           int64
	now           func() time.Time
}

// UserRepo, ConversationRepo and MessageRepo are views over one Store.
type (
	UserRepo         struct{ s *Store }
	ConversationRepo struct{ s *Store }
	MessageRepo      struct{ s *Store }
)

var (
	_ repository.UserRepository         = UserRepo{}
	_ repository.ConversationRepository = ConversationRepo{}
	_ repository.MessageRepository      = MessageRepo{}
)

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID][]storedMessage),
		now:           time.Now,
	}
}

// AddUser inserts or replaces a user. Zero ID and timestamps are filled in.
func (s *Store) AddUser(u domain.User) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	if u.ApplicationStatus == "" {
		u.ApplicationStatus = domain.StatusPending
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
		u.UpdatedAt = u.CreatedAt
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) Users() UserRepo                 { return UserRepo{s} }
func (s *Store) Conversations() ConversationRepo { return ConversationRepo{s} }
func (s *Store) Messages() MessageRepo           { return MessageRepo{s} }

func (r UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r UserRepo) ListSummaries(_ context.Context, ids []uuid.UUID) ([]domain.UserSummary, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.UserSummary
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (r ConversationRepo) Create(_ context.Context, participants []uuid.UUID, isGroup bool, groupName *string) (*domain.Conversation, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &domain.Conversation{
		ID:           uuid.New(),
		Participants: append([]uuid.UUID(nil), participants...),
		IsGroup:      isGroup,
		GroupName:    groupName,
		CreatedAt:    s.now(),
	}
	s.conversations[conv.ID] = conv
	return copyConversation(conv), nil
}

func (r ConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return copyConversation(conv), nil
}

func (r ConversationRepo) ListByParticipant(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Conversation
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *copyConversation(conv))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r ConversationRepo) UpdateSummary(_ context.Context, id uuid.UUID, content string, at time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	if conv.LastMessageAt != nil && conv.LastMessageAt.After(at) {
		return nil
	}
	conv.LastMessage = &content
	conv.LastMessageAt = &at
	return nil
}

// Create appends a message. It mirrors the foreign keys of the SQL schema.
func (r MessageRepo) Create(_ context.Context, in *domain.NewMessage) (*domain.Message, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[in.ConversationID]; !ok {
		return nil, repository.ErrConversationNotFound
	}
	sender, ok := s.users[in.SenderID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	s.seq++
	msg := storedMessage{
		Message: domain.Message{
			ID:             uuid.New(),
			ConversationID: in.ConversationID,
			SenderID:       in.SenderID,
			Content:        in.Content,
			MediaURL:       in.MediaURL,
			Kind:           in.Kind,
			CreatedAt:      s.now(),
			Sender:         sender.Summary(),
		},
		seq: s.seq,
	}
	s.messages[in.ConversationID] = append(s.messages[in.ConversationID], msg)

	out := msg.Message
	return &out, nil
}

func (r MessageRepo) List(_ context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[conversationID]
	// Stored in insertion order; walk backwards for newest-first.
	var out []domain.Message
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i].Message)
	}
	return out, nil
}

func copyConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Participants = append([]uuid.UUID(nil), c.Participants...)
	return &out
}
