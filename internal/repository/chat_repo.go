package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairchat/internal/domain"
)

const chatColumns = `id, user_id_1, user_id_2, last_message, last_seq, created_at, updated_at`

// PgChatRepository implementa ChatRepository usando pgxpool.
type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

// CreateIfAbsent se apoya en la clave primaria: dos inserciones concurrentes
// del mismo par convergen en una sola fila.
func (r *PgChatRepository) CreateIfAbsent(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	const insert = `
		INSERT INTO chats (id, user_id_1, user_id_2, last_message, last_seq, created_at, updated_at)
		VALUES ($1, $2, $3, ''::bytea, 0, now(), now())
		ON CONFLICT (id) DO NOTHING
		RETURNING ` + chatColumns

	created, err := scanChat(r.pool.QueryRow(ctx, insert, chat.ID, chat.UserID1, chat.UserID2))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, false, err
	}

	existing, err := r.GetByID(ctx, chat.ID)
	if err != nil {
		return domain.Chat{}, false, err
	}
	return existing, false, nil
}

func (r *PgChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	const query = `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	chat, err := scanChat(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Chat{}, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	return chat, err
}

func (r *PgChatRepository) ListByParticipant(ctx context.Context, slot ParticipantSlot, userID string) ([]domain.Chat, error) {
	var query string
	switch slot {
	case ParticipantOne:
		query = `SELECT ` + chatColumns + ` FROM chats WHERE user_id_1 = $1`
	case ParticipantTwo:
		query = `SELECT ` + chatColumns + ` FROM chats WHERE user_id_2 = $1`
	default:
		return nil, errInvalidSlot
	}

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return chats, nil
}

// scanChat lee last_message como bytes; la columna es BYTEA.
func scanChat(row pgx.Row) (domain.Chat, error) {
	var (
		c    domain.Chat
		last []byte
	)
	err := row.Scan(
		&c.ID,
		&c.UserID1,
		&c.UserID2,
		&last,
		&c.LastSeq,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	c.LastMessage = string(last)
	return c, err
}
