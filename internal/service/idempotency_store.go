package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pairchat/internal/domain"
)

// IdempotencyStore recuerda el resultado de POST /messages por clave para que
// un reintento del cliente no duplique el mensaje.
type IdempotencyStore interface {
	// Reserve intenta tomar la clave. Si ya estaba tomada devuelve el mensaje
	// registrado, o nil si la primera llamada sigue en curso.
	Reserve(ctx context.Context, key string) (*domain.Message, bool, error)
	// Complete registra el mensaje producido bajo la clave.
	Complete(ctx context.Context, key string, msg domain.Message) error
	// Release libera una clave reservada cuya operacion fallo.
	Release(ctx context.Context, key string) error
}

const idempotencyPending = "pending"

type idempotentMessage struct {
	ID          string    `json:"id"`
	ChatID      string    `json:"chatId"`
	Seq         int64     `json:"seq"`
	SenderID    string    `json:"senderId"`
	RecipientID string    `json:"recipientId"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

func encodeIdempotent(msg domain.Message) ([]byte, error) {
	return json.Marshal(idempotentMessage{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		Seq:         msg.Seq,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Text:        msg.Text,
		Timestamp:   msg.Timestamp,
	})
}

func decodeIdempotent(raw []byte) (domain.Message, error) {
	var rec idempotentMessage
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:          rec.ID,
		ChatID:      rec.ChatID,
		Seq:         rec.Seq,
		SenderID:    rec.SenderID,
		RecipientID: rec.RecipientID,
		Text:        rec.Text,
		Timestamp:   rec.Timestamp,
	}, nil
}

type memoryIdempotencyEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memoryIdempotencyStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	items      map[string]memoryIdempotencyEntry
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewMemoryIdempotencyStore sirve para un solo proceso o para tests.
func NewMemoryIdempotencyStore(ttl time.Duration) IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	sweepEvery := ttl
	if sweepEvery > time.Minute {
		sweepEvery = time.Minute
	}
	return &memoryIdempotencyStore{
		ttl:        ttl,
		items:      make(map[string]memoryIdempotencyEntry),
		sweepEvery: sweepEvery,
		lastSweep:  time.Now().UTC(),
	}
}

// sweepLocked borra las entradas vencidas como mucho una vez por sweepEvery.
// Debe llamarse con mu tomado.
func (s *memoryIdempotencyStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}
	for key, entry := range s.items {
		if now.After(entry.expiresAt) {
			delete(s.items, key)
		}
	}
	s.lastSweep = now
}

func (s *memoryIdempotencyStore) Reserve(_ context.Context, key string) (*domain.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.sweepLocked(now)
	entry, ok := s.items[key]
	if ok && now.After(entry.expiresAt) {
		delete(s.items, key)
		ok = false
	}
	if !ok {
		s.items[key] = memoryIdempotencyEntry{expiresAt: now.Add(s.ttl)}
		return nil, true, nil
	}
	if entry.payload == nil {
		return nil, false, nil
	}
	msg, err := decodeIdempotent(entry.payload)
	if err != nil {
		return nil, false, err
	}
	return &msg, false, nil
}

func (s *memoryIdempotencyStore) Complete(_ context.Context, key string, msg domain.Message) error {
	payload, err := encodeIdempotent(msg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.sweepLocked(now)
	s.items[key] = memoryIdempotencyEntry{payload: payload, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *memoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

type redisKV interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisIdempotencyStore struct {
	client redisKV
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	if client == nil {
		return nil
	}
	return newRedisIdempotencyStore(client, ttl)
}

func newRedisIdempotencyStore(client redisKV, ttl time.Duration) *redisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idem:msg:",
	}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string) (*domain.Message, bool, error) {
	redisKey := s.prefix + strings.TrimSpace(key)
	ok, err := s.client.SetNX(ctx, redisKey, idempotencyPending, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	val, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expiro entre SETNX y GET; el cliente puede reintentar.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if val == idempotencyPending {
		return nil, false, nil
	}
	msg, err := decodeIdempotent([]byte(val))
	if err != nil {
		return nil, false, err
	}
	return &msg, false, nil
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key string, msg domain.Message) error {
	payload, err := encodeIdempotent(msg)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+strings.TrimSpace(key), payload, s.ttl).Err()
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+strings.TrimSpace(key)).Err()
}
