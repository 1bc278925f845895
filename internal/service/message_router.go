package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier pushes a persisted message to one recipient's live channel.
// It reports whether a write was attempted; it never blocks on the client.
type Notifier interface {
	DeliverMessage(recipientID uuid.UUID, msg *domain.Message) bool
}

type SendMessageInput struct {
	ConversationID uuid.UUID
	Content        string
	MediaURL       *string
	Kind           domain.MessageKind
}

type RouteResult struct {
	Message *domain.Message
	// Delivered counts recipients whose channel accepted the event.
	Delivered int
}

// MessageRouter persists inbound chat messages and fans them out to every
// participant of the conversation.
type MessageRouter struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	notifier      Notifier
	log           *zap.Logger
}

func NewMessageRouter(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	log *zap.Logger,
) *MessageRouter {
	return &MessageRouter{
		conversations: conversations,
		messages:      messages,
		log:           log.Named("router"),
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (r *MessageRouter) SetNotifier(n Notifier) {
	r.notifier = n
}

// Route handles one new message from senderID. senderID must come from the
// authenticated channel, never from the event body.
//
// Fan-out starts only after the message is stored. A failed summary update
// does not fail the send.
func (r *MessageRouter) Route(ctx context.Context, senderID uuid.UUID, in SendMessageInput) (*RouteResult, error) {
	kind, ok := domain.ParseMessageKind(string(in.Kind))
	if !ok {
		return nil, ErrInvalidMessageKind
	}
	if in.Content == "" && in.MediaURL == nil {
		return nil, ErrEmptyMessage
	}

	conv, err := r.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(senderID) {
		return nil, ErrNotParticipant
	}

	var content *string
	if in.Content != "" {
		content = &in.Content
	}

	msg, err := r.messages.Create(ctx, &domain.NewMessage{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        content,
		MediaURL:       in.MediaURL,
		Kind:           kind,
	})
	if errors.Is(err, repository.ErrConversationNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	if err := r.conversations.UpdateSummary(ctx, conv.ID, msg.Snippet(), msg.CreatedAt); err != nil {
		r.log.Warn("conversation summary update failed",
			zap.Stringer("conversation_id", conv.ID),
			zap.Stringer("message_id", msg.ID),
			zap.Error(err),
		)
	}

	result := &RouteResult{Message: msg}
	if r.notifier == nil {
		return result, nil
	}

	for _, participantID := range conv.Participants {
		if r.deliver(participantID, msg) {
			result.Delivered++
		}
	}

	r.log.Debug("message routed",
		zap.Stringer("conversation_id", conv.ID),
		zap.Stringer("message_id", msg.ID),
		zap.Int("participants", len(conv.Participants)),
		zap.Int("delivered", result.Delivered),
	)
	return result, nil
}

// deliver isolates one recipient so a broken channel cannot abort the fan-out.
func (r *MessageRouter) deliver(recipientID uuid.UUID, msg *domain.Message) (sent bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("delivery panicked",
				zap.Stringer("user_id", recipientID),
				zap.Stringer("message_id", msg.ID),
				zap.Any("panic", rec),
			)
			sent = false
		}
	}()
	return r.notifier.DeliverMessage(recipientID, msg)
}
