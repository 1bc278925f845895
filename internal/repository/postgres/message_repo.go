package postgres

import (
	"context"
	"errors"

	"github.com/ahis-social/server/internal/domain"
	"github.com/ahis-social/server/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

// Constraint names as declared in schema.sql.
const (
	messageConversationFK = "messages_conversation_id_fkey"
	messageSenderFK       = "messages_sender_id_fkey"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func scanMessage(row pgx.Row, msg *domain.Message) error {
	return row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.MediaURL,
		&msg.Kind, &msg.CreatedAt,
		&msg.Sender.ID, &msg.Sender.Username, &msg.Sender.FullName, &msg.Sender.Avatar,
	)
}

// Create inserts the message and returns it with the store-assigned id and
// timestamp, joined with the sender summary.
func (r *MessageRepo) Create(ctx context.Context, in *domain.NewMessage) (*domain.Message, error) {
	query := `
		WITH m AS (
			INSERT INTO messages (conversation_id, sender_id, content, media_url, message_type)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, conversation_id, sender_id, content, media_url, message_type, created_at
		)
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.media_url, m.message_type, m.created_at,
			u.id, u.username, u.full_name, u.avatar
		FROM m
		JOIN users u ON m.sender_id = u.id`

	var msg domain.Message
	err := scanMessage(r.pool.QueryRow(ctx, query,
		in.ConversationID, in.SenderID, in.Content, in.MediaURL, in.Kind,
	), &msg)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			switch pgErr.ConstraintName {
			case messageConversationFK:
				return nil, repository.ErrConversationNotFound
			case messageSenderFK:
				return nil, repository.ErrUserNotFound
			}
		}
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) List(ctx context.Context, conversationID uuid.UUID, offset, limit int) ([]domain.Message, error) {
	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.media_url, m.message_type, m.created_at,
			u.id, u.username, u.full_name, u.avatar
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.seq DESC
		OFFSET $2
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, conversationID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := scanMessage(rows, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
