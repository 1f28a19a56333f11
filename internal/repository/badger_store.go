package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"pairchat/internal/domain"
)

// Layout de claves:
//
//	user:{id}
//	chat:{id}
//	chatidx:{slot}:{len}:{userID}:{chatID}   valor = chatID
//	msg:{len}:{chatID}:{seq con 19 digitos}
//
// El prefijo con longitud evita que un id que contiene ':' coincida con el
// prefijo de otro. El seq rellenado con ceros ordena lexicograficamente.
const badgerMaxTxnAttempts = 8

type badgerUser struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"externalId"`
	CustomUserID string    `json:"customUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type badgerChat struct {
	ID          string    `json:"id"`
	UserID1     string    `json:"userId1"`
	UserID2     string    `json:"userId2"`
	LastMessage string    `json:"lastMessage"`
	LastSeq     int64     `json:"lastSeq"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type badgerMessage struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chatId"`
	Seq         int64     `json:"seq"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

func keyComponent(s string) string {
	return fmt.Sprintf("%d:%s", len(s), s)
}

func userKey(id string) []byte { return []byte("user:" + id) }

func chatKey(id string) []byte { return []byte("chat:" + id) }

func chatIndexPrefix(slot ParticipantSlot, userID string) []byte {
	return []byte(fmt.Sprintf("chatidx:%d:%s:", slot, keyComponent(userID)))
}

func chatIndexKey(slot ParticipantSlot, userID, chatID string) []byte {
	return append(chatIndexPrefix(slot, userID), chatID...)
}

func messagePrefix(chatID string) []byte {
	return []byte("msg:" + keyComponent(chatID) + ":")
}

func messageKey(chatID string, seq int64) []byte {
	return append(messagePrefix(chatID), fmt.Sprintf("%019d", seq)...)
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key []byte, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

// updateWithRetry reintenta la transaccion cuando badger detecta un conflicto
// de escritura con otra transaccion concurrente.
func updateWithRetry(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < badgerMaxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return ErrConflict
}

// BadgerUserRepository implementa UserRepository sobre BadgerDB.
type BadgerUserRepository struct {
	db *badger.DB
}

func NewBadgerUserRepository(db *badger.DB) *BadgerUserRepository {
	return &BadgerUserRepository{db: db}
}

func (r *BadgerUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	user.CreatedAt = time.Now().UTC()
	rec := badgerUser{
		ID:           user.ID,
		ExternalID:   user.ExternalID,
		CustomUserID: user.CustomUserID,
		CreatedAt:    user.CreatedAt,
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, userKey(user.ID), rec)
	})
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *BadgerUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	var rec badgerUser
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &rec)
	})
	if errors.Is(err, ErrNotFound) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           rec.ID,
		ExternalID:   rec.ExternalID,
		CustomUserID: rec.CustomUserID,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// BadgerChatRepository implementa ChatRepository sobre BadgerDB.
type BadgerChatRepository struct {
	db *badger.DB
}

func NewBadgerChatRepository(db *badger.DB) *BadgerChatRepository {
	return &BadgerChatRepository{db: db}
}

// CreateIfAbsent lee y escribe la clave del chat en la misma transaccion; si
// otro creador confirma antes, badger devuelve ErrConflict y el reintento
// encuentra el chat ya existente.
func (r *BadgerChatRepository) CreateIfAbsent(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	var (
		stored  badgerChat
		created bool
	)
	err := updateWithRetry(ctx, r.db, func(txn *badger.Txn) error {
		created = false
		err := getJSON(txn, chatKey(chat.ID), &stored)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := time.Now().UTC()
		stored = badgerChat{
			ID:        chat.ID,
			UserID1:   chat.UserID1,
			UserID2:   chat.UserID2,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := setJSON(txn, chatKey(chat.ID), stored); err != nil {
			return err
		}
		if err := txn.Set(chatIndexKey(ParticipantOne, chat.UserID1, chat.ID), []byte(chat.ID)); err != nil {
			return err
		}
		if err := txn.Set(chatIndexKey(ParticipantTwo, chat.UserID2, chat.ID), []byte(chat.ID)); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Chat{}, false, err
	}
	return toDomainChat(stored), created, nil
}

func (r *BadgerChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	if err := ctx.Err(); err != nil {
		return domain.Chat{}, err
	}
	var rec badgerChat
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, chatKey(id), &rec)
	})
	if errors.Is(err, ErrNotFound) {
		return domain.Chat{}, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return toDomainChat(rec), nil
}

// ListByParticipant recorre el indice del slot con un prefix scan.
func (r *BadgerChatRepository) ListByParticipant(ctx context.Context, slot ParticipantSlot, userID string) ([]domain.Chat, error) {
	if !slotValid(slot) {
		return nil, errInvalidSlot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var chats []domain.Chat
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := chatIndexPrefix(slot, userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			chatID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec badgerChat
			if err := getJSON(txn, chatKey(string(chatID)), &rec); err != nil {
				return fmt.Errorf("chat index %s: %w", chatID, err)
			}
			chats = append(chats, toDomainChat(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func toDomainChat(rec badgerChat) domain.Chat {
	return domain.Chat{
		ID:          rec.ID,
		UserID1:     rec.UserID1,
		UserID2:     rec.UserID2,
		LastMessage: rec.LastMessage,
		LastSeq:     rec.LastSeq,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// BadgerMessageRepository implementa MessageRepository sobre BadgerDB.
type BadgerMessageRepository struct {
	db *badger.DB
}

func NewBadgerMessageRepository(db *badger.DB) *BadgerMessageRepository {
	return &BadgerMessageRepository{db: db}
}

// Append lee el chat, asigna el siguiente seq y escribe mensaje y resumen en
// la misma transaccion. El timestamp nunca retrocede respecto al del chat.
func (r *BadgerMessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	var out domain.Message
	err := updateWithRetry(ctx, r.db, func(txn *badger.Txn) error {
		var chat badgerChat
		if err := getJSON(txn, chatKey(message.ChatID), &chat); err != nil {
			return err
		}

		now := time.Now().UTC()
		if now.Before(chat.UpdatedAt) {
			now = chat.UpdatedAt
		}
		chat.LastSeq++
		chat.LastMessage = message.Text
		chat.UpdatedAt = now

		rec := badgerMessage{
			ID:          message.ID,
			ChatID:      message.ChatID,
			Seq:         chat.LastSeq,
			SenderID:    message.SenderID,
			RecipientID: message.RecipientID,
			Text:        message.Text,
			Timestamp:   now,
		}
		if err := setJSON(txn, messageKey(message.ChatID, rec.Seq), rec); err != nil {
			return err
		}
		if err := setJSON(txn, chatKey(message.ChatID), chat); err != nil {
			return err
		}
		out = toDomainMessage(rec)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return domain.Message{}, fmt.Errorf("chat %s: %w", message.ChatID, ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}
	return out, nil
}

func (r *BadgerMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec badgerMessage
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			messages = append(messages, toDomainMessage(rec))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func toDomainMessage(rec badgerMessage) domain.Message {
	return domain.Message{
		ID:          rec.ID,
		ChatID:      rec.ChatID,
		Seq:         rec.Seq,
		SenderID:    rec.SenderID,
		RecipientID: rec.RecipientID,
		Text:        rec.Text,
		Timestamp:   rec.Timestamp,
	}
}

// NewBadgerStore arma el Store completo sobre una base BadgerDB abierta.
func NewBadgerStore(db *badger.DB) Store {
	return Store{
		Users:    NewBadgerUserRepository(db),
		Chats:    NewBadgerChatRepository(db),
		Messages: NewBadgerMessageRepository(db),
		Ping: func(ctx context.Context) error {
			if db.IsClosed() {
				return errors.New("badger: database closed")
			}
			return ctx.Err()
		},
	}
}
