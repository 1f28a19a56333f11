package repository

import (
	"context"
	"errors"

	"pairchat/internal/domain"
)

var (
	// ErrNotFound indica que el documento pedido no existe en el store.
	ErrNotFound = errors.New("not found")
	// ErrConflict indica que una transaccion optimista no pudo confirmarse.
	ErrConflict = errors.New("transaction conflict")
)

// ParticipantSlot identifica la columna en la que se busca al participante.
type ParticipantSlot int

const (
	ParticipantOne ParticipantSlot = 1
	ParticipantTwo ParticipantSlot = 2
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	// Create inserta el usuario; el store asigna CreatedAt.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// ChatRepository define el contrato de persistencia para chats.
type ChatRepository interface {
	// CreateIfAbsent inserta chat solo si no existe otro con el mismo ID y
	// devuelve el registro almacenado junto con si esta llamada lo creo.
	CreateIfAbsent(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error)
	GetByID(ctx context.Context, id string) (domain.Chat, error)
	ListByParticipant(ctx context.Context, slot ParticipantSlot, userID string) ([]domain.Chat, error)
}

// MessageRepository define el contrato de persistencia para mensajes.
type MessageRepository interface {
	// Append asigna Seq y Timestamp, inserta el mensaje y refresca el resumen
	// del chat padre en una sola escritura atomica. Devuelve ErrNotFound si el
	// chat no existe.
	Append(ctx context.Context, message domain.Message) (domain.Message, error)
	// ListByChatID devuelve los mensajes del chat en orden ascendente de Seq.
	ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error)
}

// Store agrupa los repositorios de un backend.
type Store struct {
	Users    UserRepository
	Chats    ChatRepository
	Messages MessageRepository
	// Ping verifica la conectividad del backend.
	Ping func(ctx context.Context) error
}

func slotValid(slot ParticipantSlot) bool {
	return slot == ParticipantOne || slot == ParticipantTwo
}

var errInvalidSlot = errors.New("invalid participant slot")
