package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/ahis-social/server/internal/repository/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// recordingNotifier captures deliveries. Recipients in offline are skipped and
// recipients in broken panic, the way a misbehaving transport might.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered map[uuid.UUID][]*domain.Message
	offline   map[uuid.UUID]bool
	broken    map[uuid.UUID]bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		delivered: map[uuid.UUID][]*domain.Message{},
		offline:   map[uuid.UUID]bool{},
		broken:    map[uuid.UUID]bool{},
	}
}

func (n *recordingNotifier) DeliverMessage(recipientID uuid.UUID, msg *domain.Message) bool {
	if n.broken[recipientID] {
		panic("connection reset")
	}
	if n.offline[recipientID] {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered[recipientID] = append(n.delivered[recipientID], msg)
	return true
}

type fixture struct {
	store    *memory.Store
	router   *MessageRouter
	notifier *recordingNotifier
	alice    domain.User
	bob      domain.User
	carol    domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:    store,
		notifier: newRecordingNotifier(),
		alice:    store.AddUser(domain.User{Username: "alice", FullName: "Alice A", ApplicationStatus: domain.StatusApproved}),
		bob:      store.AddUser(domain.User{Username: "bob", FullName: "Bob B", ApplicationStatus: domain.StatusApproved}),
		carol:    store.AddUser(domain.User{Username: "carol", FullName: "Carol C", ApplicationStatus: domain.StatusApproved}),
	}
	f.router = NewMessageRouter(store.Conversations(), store.Messages(), zap.NewNop())
	f.router.SetNotifier(f.notifier)
	return f
}

func (f *fixture) conversation(t *testing.T, isGroup bool, members ...uuid.UUID) *domain.Conversation {
	t.Helper()
	conv, err := f.store.Conversations().Create(context.Background(), members, isGroup, nil)
	if err != nil {
		t.Fatalf("creating conversation: %v", err)
	}
	return conv
}

func TestRouteDirectMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)

	res, err := f.router.Route(ctx, f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "hi"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	msg := res.Message
	if msg.SenderID != f.alice.ID || *msg.Content != "hi" || msg.Kind != domain.KindText {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Sender.Username != "alice" {
		t.Fatalf("sender summary missing: %+v", msg.Sender)
	}
	if res.Delivered != 2 {
		t.Fatalf("delivered = %d, want 2 (sender is a participant too)", res.Delivered)
	}

	got := f.notifier.delivered[f.bob.ID]
	if len(got) != 1 || got[0].ID != msg.ID || got[0].ConversationID != conv.ID {
		t.Fatalf("bob received %+v", got)
	}

	stored, _ := f.store.Conversations().GetByID(ctx, conv.ID)
	if stored.LastMessage == nil || *stored.LastMessage != "hi" || !stored.LastMessageAt.Equal(msg.CreatedAt) {
		t.Fatalf("summary not updated: %v %v", stored.LastMessage, stored.LastMessageAt)
	}

	history, _ := f.store.Messages().List(ctx, conv.ID, 0, 10)
	if len(history) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(history))
	}
}

func TestRouteOfflineParticipantReadsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)
	f.notifier.offline[f.bob.ID] = true

	res, err := f.router.Route(ctx, f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "later"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Delivered != 1 || len(f.notifier.delivered[f.bob.ID]) != 0 {
		t.Fatalf("offline bob should get nothing, delivered=%d", res.Delivered)
	}

	history, _ := f.store.Messages().List(ctx, conv.ID, 0, 10)
	if len(history) != 1 || *history[0].Content != "later" {
		t.Fatalf("message not retrievable from history: %+v", history)
	}
}

func TestRouteIsolatesBrokenRecipient(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, true, f.alice.ID, f.bob.ID, f.carol.ID)
	f.notifier.broken[f.bob.ID] = true

	res, err := f.router.Route(context.Background(), f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "group"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("delivered = %d, want 2", res.Delivered)
	}
	if len(f.notifier.delivered[f.carol.ID]) != 1 || len(f.notifier.delivered[f.alice.ID]) != 1 {
		t.Fatalf("healthy recipients missed the message: %+v", f.notifier.delivered)
	}
}

func TestRouteRejections(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)
	media := "https://cdn.school.test/a.png"

	tests := []struct {
		name    string
		sender  uuid.UUID
		in      SendMessageInput
		wantErr error
	}{
		{"unknown conversation", f.alice.ID, SendMessageInput{ConversationID: uuid.New(), Content: "x"}, ErrConversationNotFound},
		{"not a participant", f.carol.ID, SendMessageInput{ConversationID: conv.ID, Content: "x"}, ErrNotParticipant},
		{"empty", f.alice.ID, SendMessageInput{ConversationID: conv.ID}, ErrEmptyMessage},
		{"bad kind", f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "x", Kind: "sticker"}, ErrInvalidMessageKind},
		{"media only", f.alice.ID, SendMessageInput{ConversationID: conv.ID, MediaURL: &media, Kind: domain.KindImage}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.notifier.delivered[f.bob.ID])
			_, err := f.router.Route(context.Background(), tt.sender, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			delta := len(f.notifier.delivered[f.bob.ID]) - before
			if tt.wantErr != nil && delta != 0 {
				t.Fatalf("rejected message was fanned out")
			}
			if tt.wantErr == nil && delta != 1 {
				t.Fatalf("accepted message was not fanned out")
			}
		})
	}
}

// failingMessages fails every insert.
type failingMessages struct{ repository.MessageRepository }

func (failingMessages) Create(context.Context, *domain.NewMessage) (*domain.Message, error) {
	return nil, errors.New("connection refused")
}

// failingSummary fails every summary update.
type failingSummary struct{ repository.ConversationRepository }

func (failingSummary) UpdateSummary(context.Context, uuid.UUID, string, time.Time) error {
	return errors.New("deadlock detected")
}

func TestRoutePersistenceFailureSkipsFanOut(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)

	router := NewMessageRouter(f.store.Conversations(), failingMessages{f.store.Messages()}, zap.NewNop())
	router.SetNotifier(f.notifier)

	if _, err := router.Route(context.Background(), f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "lost"}); err == nil {
		t.Fatal("expected persistence error")
	}
	if len(f.notifier.delivered) != 0 {
		t.Fatalf("nothing should be delivered, got %+v", f.notifier.delivered)
	}
}

func TestRouteSummaryFailureStillDelivers(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)

	router := NewMessageRouter(failingSummary{f.store.Conversations()}, f.store.Messages(), zap.NewNop())
	router.SetNotifier(f.notifier)

	res, err := router.Route(context.Background(), f.alice.ID, SendMessageInput{ConversationID: conv.ID, Content: "still here"})
	if err != nil {
		t.Fatalf("summary failure must not fail the send: %v", err)
	}
	if res.Delivered != 2 {
		t.Fatalf("delivered = %d, want 2", res.Delivered)
	}
}

func TestRouteWithoutNotifier(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, false, f.alice.ID, f.bob.ID)

	router := NewMessageRouter(f.store.Conversations(), f.store.Messages(), zap.NewNop())
	res, err := router.Route(context.Background(), f.bob.ID, SendMessageInput{ConversationID: conv.ID, Content: "quiet"})
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if res.Delivered != 0 || res.Message == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}
