package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ahis-social/server/internal/database"
	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// openTestPool requires TEST_DATABASE_URL to point at a disposable database.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("database.Connect failed: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE messages, conversations, users CASCADE`); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	return pool
}

func seedUser(t *testing.T, pool *pgxpool.Pool, username string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO users (username, email, full_name, application_status)
		VALUES ($1, $1 || '@school.test', $1, 'approved')
		RETURNING id`, username).Scan(&id)
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return id
}

func TestMessagesCreateAndList(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	alice := seedUser(t, pool, "alice")
	bob := seedUser(t, pool, "bob")

	convs := NewConversationRepo(pool)
	msgs := NewMessageRepo(pool)

	conv, err := convs.Create(ctx, []uuid.UUID{alice, bob}, false, nil)
	if err != nil {
		t.Fatalf("Create conversation failed: %v", err)
	}
	if len(conv.Participants) != 2 || !conv.HasParticipant(bob) {
		t.Fatalf("unexpected participants: %v", conv.Participants)
	}

	for _, text := range []string{"one", "two", "three"} {
		content := text
		if _, err := msgs.Create(ctx, &domain.NewMessage{
			ConversationID: conv.ID,
			SenderID:       alice,
			Content:        &content,
			Kind:           domain.KindText,
		}); err != nil {
			t.Fatalf("Create message failed: %v", err)
		}
	}

	page, err := msgs.List(ctx, conv.ID, 0, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 2 || *page[0].Content != "three" || *page[1].Content != "two" {
		t.Fatalf("expected newest-first [three two], got %+v", page)
	}
	if page[0].Sender.Username != "alice" {
		t.Fatalf("sender summary not joined: %+v", page[0].Sender)
	}

	empty, err := msgs.List(ctx, conv.ID, 10, 5)
	if err != nil {
		t.Fatalf("List beyond range failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestMessageCreateUnknownConversation(t *testing.T) {
	pool := openTestPool(t)
	alice := seedUser(t, pool, "alice")

	content := "hi"
	_, err := NewMessageRepo(pool).Create(context.Background(), &domain.NewMessage{
		ConversationID: uuid.New(),
		SenderID:       alice,
		Content:        &content,
		Kind:           domain.KindText,
	})
	if !errors.Is(err, repository.ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestMessageCreateUnknownSender(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()
	alice := seedUser(t, pool, "alice")
	bob := seedUser(t, pool, "bob")

	conv, err := NewConversationRepo(pool).Create(ctx, []uuid.UUID{alice, bob}, false, nil)
	if err != nil {
		t.Fatalf("creating conversation: %v", err)
	}

	content := "hi"
	_, err = NewMessageRepo(pool).Create(ctx, &domain.NewMessage{
		ConversationID: conv.ID,
		SenderID:       uuid.New(),
		Content:        &content,
		Kind:           domain.KindText,
	})
	if !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestConversationSummaryAndOrdering(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	alice := seedUser(t, pool, "alice")
	bob := seedUser(t, pool, "bob")
	carol := seedUser(t, pool, "carol")

	convs := NewConversationRepo(pool)
	quiet, err := convs.Create(ctx, []uuid.UUID{alice, bob}, false, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	name := "study group"
	busy, err := convs.Create(ctx, []uuid.UUID{alice, bob, carol}, true, &name)
	if err != nil {
		t.Fatalf("Create group failed: %v", err)
	}

	now := time.Now()
	if err := convs.UpdateSummary(ctx, busy.ID, "latest", now); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}
	// An older timestamp must not regress the summary.
	if err := convs.UpdateSummary(ctx, busy.ID, "stale", now.Add(-time.Minute)); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}

	list, err := convs.ListByParticipant(ctx, alice)
	if err != nil {
		t.Fatalf("ListByParticipant failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != busy.ID || list[1].ID != quiet.ID {
		t.Fatalf("expected [busy quiet], got %+v", list)
	}
	if list[0].LastMessage == nil || *list[0].LastMessage != "latest" {
		t.Fatalf("summary regressed: %v", list[0].LastMessage)
	}

	got, err := convs.GetByID(ctx, uuid.New())
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for missing conversation, got (%v, %v)", got, err)
	}

	summaries, err := NewUserRepo(pool).ListSummaries(ctx, []uuid.UUID{bob, carol})
	if err != nil {
		t.Fatalf("ListSummaries failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
}
