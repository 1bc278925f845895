package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/ahis-social/server/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

const conversationColumns = `id, participants, last_message, last_message_at, is_group, group_name, created_at`

func scanConversation(row pgx.Row, conv *domain.Conversation) error {
	return row.Scan(
		&conv.ID, &conv.Participants, &conv.LastMessage, &conv.LastMessageAt,
		&conv.IsGroup, &conv.GroupName, &conv.CreatedAt,
	)
}

func (r *ConversationRepo) Create(ctx context.Context, participants []uuid.UUID, isGroup bool, groupName *string) (*domain.Conversation, error) {
	query := `
		INSERT INTO conversations (participants, is_group, group_name)
		VALUES ($1, $2, $3)
		RETURNING ` + conversationColumns
	var conv domain.Conversation
	if err := scanConversation(r.pool.QueryRow(ctx, query, participants, isGroup, groupName), &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	var conv domain.Conversation
	err := scanConversation(r.pool.QueryRow(ctx, query, id), &conv)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByParticipant orders by last message time, conversations without one last.
func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE $1 = ANY(participants)
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := scanConversation(rows, &conv); err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) UpdateSummary(ctx context.Context, id uuid.UUID, content string, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_message = $2, last_message_at = $3
		WHERE id = $1 AND (last_message_at IS NULL OR last_message_at <= $3)`
	_, err := r.pool.Exec(ctx, query, id, content, at)
	return err
}
