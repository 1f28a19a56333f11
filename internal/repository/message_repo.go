package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairchat/internal/domain"
)

// PgMessageRepository implementa MessageRepository usando pgxpool.
type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

// Append actualiza primero la fila del chat: el UPDATE toma el lock de fila,
// asi que los escritores concurrentes del mismo chat se serializan y cada uno
// recibe un seq distinto y creciente.
func (r *PgMessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return domain.Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const bump = `
		UPDATE chats
		   SET last_seq = last_seq + 1,
		       last_message = $2,
		       updated_at = GREATEST(clock_timestamp(), updated_at)
		 WHERE id = $1
		RETURNING last_seq, updated_at
	`
	err = tx.QueryRow(ctx, bump, message.ChatID, []byte(message.Text)).Scan(&message.Seq, &message.Timestamp)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("chat %s: %w", message.ChatID, ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("bump chat: %w", err)
	}

	const insert = `
		INSERT INTO messages (id, chat_id, seq, sender_id, recipient_id, text, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := tx.Exec(ctx, insert,
		message.ID,
		message.ChatID,
		message.Seq,
		message.SenderID,
		message.RecipientID,
		[]byte(message.Text),
		message.Timestamp,
	); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (r *PgMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	const query = `
		SELECT id, chat_id, seq, sender_id, recipient_id, text, timestamp
		FROM messages
		WHERE chat_id = $1
		ORDER BY seq ASC
	`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			msg  domain.Message
			text []byte
		)
		err = rows.Scan(
			&msg.ID,
			&msg.ChatID,
			&msg.Seq,
			&msg.SenderID,
			&msg.RecipientID,
			&text,
			&msg.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		msg.Text = string(text)
		messages = append(messages, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// NewPgStore arma el Store completo sobre un pool de Postgres.
func NewPgStore(pool *pgxpool.Pool) Store {
	return Store{
		Users:    NewPgUserRepository(pool),
		Chats:    NewPgChatRepository(pool),
		Messages: NewPgMessageRepository(pool),
		Ping:     pool.Ping,
	}
}
