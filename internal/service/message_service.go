package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/metrics"
	"pairchat/internal/repository"
)

// MessageService encapsula el ledger de mensajes de cada chat.
type MessageService struct {
	logger      *zap.Logger
	chats       repository.ChatRepository
	messages    repository.MessageRepository
	idempotency IdempotencyStore
	metrics     *metrics.Metrics
	timeout     time.Duration
	maxLength   int
}

func NewMessageService(
	logger *zap.Logger,
	chats repository.ChatRepository,
	messages repository.MessageRepository,
	idempotency IdempotencyStore,
	m *metrics.Metrics,
	timeout time.Duration,
	maxLength int,
) *MessageService {
	return &MessageService{
		logger:      logger,
		chats:       chats,
		messages:    messages,
		idempotency: idempotency,
		metrics:     m,
		timeout:     timeout,
		maxLength:   maxLength,
	}
}

type AppendInput struct {
	ChatID         string `validate:"required"`
	SenderID       string `validate:"required"`
	RecipientID    string `validate:"required"`
	Text           string
	IdempotencyKey string
}

// Append agrega un mensaje al chat. El texto no se valida salvo el limite de
// longitud opcional; un texto vacio es valido. El bool indica si la respuesta
// se recupero del IdempotencyStore en lugar de escribir de nuevo.
func (s *MessageService) Append(ctx context.Context, in AppendInput) (domain.Message, bool, error) {
	if s == nil || s.messages == nil {
		return domain.Message{}, false, ErrServiceNotConfigured
	}

	in.ChatID = strings.TrimSpace(in.ChatID)
	in.SenderID = strings.TrimSpace(in.SenderID)
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if err := validate.Struct(in); err != nil {
		return domain.Message{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.maxLength > 0 && utf8.RuneCountInString(in.Text) > s.maxLength {
		return domain.Message{}, false, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, s.maxLength)
	}
	if hasNUL(in.ChatID, in.SenderID, in.RecipientID) {
		return domain.Message{}, false, fmt.Errorf("%w: ids must not contain NUL bytes", ErrInvalidInput)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	var idemKey string
	if in.IdempotencyKey != "" && s.idempotency != nil {
		idemKey = in.ChatID + ":" + in.IdempotencyKey
		prior, acquired, err := s.idempotency.Reserve(ctx, idemKey)
		if err != nil {
			return domain.Message{}, false, fmt.Errorf("idempotency reserve: %w", err)
		}
		if !acquired {
			if prior == nil {
				return domain.Message{}, false, ErrIdempotencyInFlight
			}
			// La misma clave con otro cuerpo no es un reintento.
			if prior.SenderID != in.SenderID || prior.RecipientID != in.RecipientID || prior.Text != in.Text {
				return domain.Message{}, false, ErrIdempotencyMismatch
			}
			s.metrics.IdempotentReplay()
			return *prior, true, nil
		}
	}

	id, err := newMessageID(time.Now().UTC())
	if err != nil {
		s.releaseIdempotency(ctx, idemKey)
		return domain.Message{}, false, err
	}

	stored, err := s.messages.Append(ctx, domain.Message{
		ID:          id,
		ChatID:      in.ChatID,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Text:        in.Text,
	})
	if err != nil {
		s.releaseIdempotency(ctx, idemKey)
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Message{}, false, ErrChatNotFound
		}
		return domain.Message{}, false, err
	}

	if idemKey != "" {
		// El mensaje ya esta persistido; un fallo aqui solo pierde la deduplicacion.
		if err := s.idempotency.Complete(ctx, idemKey, stored); err != nil {
			s.logger.Warn("idempotency complete failed",
				zap.Error(err),
				zap.String("chat_id", stored.ChatID),
				zap.String("message_id", stored.ID),
			)
		}
	}
	s.metrics.MessageAppended()
	return stored, false, nil
}

// ListForChat devuelve los mensajes en orden ascendente de Seq. Distingue un
// chat inexistente (ErrChatNotFound) de uno sin mensajes (ErrNoMessages).
func (s *MessageService) ListForChat(ctx context.Context, chatID string) ([]domain.Message, error) {
	if s == nil || s.messages == nil || s.chats == nil {
		return nil, ErrServiceNotConfigured
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, ErrInvalidInput
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	messages, err := s.messages.ListByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return nil, ErrNoMessages
}

func (s *MessageService) releaseIdempotency(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
	}
}

// newMessageID genera un ULID: ordenable lexicograficamente por tiempo.
func newMessageID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
