package service

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrServiceNotConfigured = errors.New("service not configured")
	ErrInvalidInput         = errors.New("invalid input")
	ErrChatNotFound         = errors.New("chat not found")
	ErrNoChats              = errors.New("no chats found for this user")
	ErrNoMessages           = errors.New("no messages found for this chat")
	ErrIdempotencyInFlight  = errors.New("request with this idempotency key is still in progress")
	ErrIdempotencyMismatch  = errors.New("idempotency key was already used with a different message")
	ErrChatKeyCollision     = errors.New("chat key resolved to a different participant pair")
)

// hasNUL detecta bytes 0x00, que Postgres no admite en columnas TEXT.
func hasNUL(values ...string) bool {
	for _, v := range values {
		if strings.IndexByte(v, 0) >= 0 {
			return true
		}
	}
	return false
}

const defaultStoreTimeout = 5 * time.Second

// withStoreTimeout acota cada llamada al store; un store colgado no debe
// retener la request indefinidamente.
func withStoreTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
