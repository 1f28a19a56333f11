package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pairchat/internal/domain"
	"pairchat/internal/metrics"
	"pairchat/internal/repository"
)

var validate = validator.New()

// ChatService resuelve el chat unico de cada par y expone las lecturas de chats.
type ChatService struct {
	logger  *zap.Logger
	chats   repository.ChatRepository
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewChatService(logger *zap.Logger, chats repository.ChatRepository, m *metrics.Metrics, timeout time.Duration) *ChatService {
	return &ChatService{
		logger:  logger,
		chats:   chats,
		metrics: m,
		timeout: timeout,
	}
}

type findOrCreateInput struct {
	SenderID    string `validate:"required"`
	RecipientID string `validate:"required"`
}

// FindOrCreate devuelve el chat del par {senderID, recipientID}, creandolo si
// hace falta. El segundo valor indica si esta llamada lo creo.
func (s *ChatService) FindOrCreate(ctx context.Context, senderID, recipientID string) (domain.Chat, bool, error) {
	if s == nil || s.chats == nil {
		return domain.Chat{}, false, ErrServiceNotConfigured
	}

	in := findOrCreateInput{
		SenderID:    strings.TrimSpace(senderID),
		RecipientID: strings.TrimSpace(recipientID),
	}
	if err := validate.Struct(in); err != nil {
		return domain.Chat{}, false, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if hasNUL(in.SenderID, in.RecipientID) {
		return domain.Chat{}, false, fmt.Errorf("%w: ids must not contain NUL bytes", ErrInvalidInput)
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	chat, created, err := s.chats.CreateIfAbsent(ctx, domain.Chat{
		ID:      ChatKey(in.SenderID, in.RecipientID),
		UserID1: in.SenderID,
		UserID2: in.RecipientID,
	})
	if err != nil {
		return domain.Chat{}, false, err
	}
	if !samePair(chat.UserID1, chat.UserID2, in.SenderID, in.RecipientID) {
		s.logger.Error("chat key collision",
			zap.String("chat_id", chat.ID),
			zap.String("sender_id", in.SenderID),
			zap.String("recipient_id", in.RecipientID),
		)
		return domain.Chat{}, false, ErrChatKeyCollision
	}
	if created {
		s.logger.Info("chat created",
			zap.String("chat_id", chat.ID),
			zap.String("user_id_1", chat.UserID1),
			zap.String("user_id_2", chat.UserID2),
		)
	}
	s.metrics.ChatResolved(created)
	return chat, created, nil
}

// Get devuelve el resumen de un chat.
func (s *ChatService) Get(ctx context.Context, chatID string) (domain.Chat, error) {
	if s == nil || s.chats == nil {
		return domain.Chat{}, ErrServiceNotConfigured
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.Chat{}, ErrInvalidInput
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	chat, err := s.chats.GetByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListForUser une los chats donde userID es participante 1 o 2, sin
// duplicados, del mas reciente al mas antiguo.
func (s *ChatService) ListForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	if s == nil || s.chats == nil {
		return nil, ErrServiceNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	// El store no tiene un predicado "cualquiera de los dos campos".
	var asFirst, asSecond []domain.Chat
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		asFirst, err = s.chats.ListByParticipant(gctx, repository.ParticipantOne, userID)
		return err
	})
	g.Go(func() error {
		var err error
		asSecond, err = s.chats.ListByParticipant(gctx, repository.ParticipantTwo, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Un chat consigo mismo aparece en ambas consultas.
	chats := lo.UniqBy(append(asFirst, asSecond...), func(c domain.Chat) string {
		return c.ID
	})
	if len(chats) == 0 {
		return nil, ErrNoChats
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}
