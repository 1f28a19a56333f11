package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/metrics"
	"pairchat/internal/repository"
)

// IdentityService registra usuarios.
type IdentityService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewIdentityService(logger *zap.Logger, users repository.UserRepository, m *metrics.Metrics, timeout time.Duration) *IdentityService {
	return &IdentityService{
		logger:  logger,
		users:   users,
		metrics: m,
		timeout: timeout,
	}
}

type RegisterInput struct {
	ExternalID   string
	CustomUserID string
}

// Register inserta un usuario nuevo. No comprueba unicidad de ExternalID:
// dos llamadas con el mismo valor crean dos usuarios distintos.
func (s *IdentityService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s == nil || s.users == nil {
		return domain.User{}, ErrServiceNotConfigured
	}
	if hasNUL(input.ExternalID, input.CustomUserID) {
		return domain.User{}, ErrInvalidInput
	}

	user := domain.User{
		ID:           uuid.NewString(),
		ExternalID:   strings.TrimSpace(input.ExternalID),
		CustomUserID: strings.TrimSpace(input.CustomUserID),
	}

	ctx, cancel := withStoreTimeout(ctx, s.timeout)
	defer cancel()

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	s.metrics.UserRegistered()
	return created, nil
}
