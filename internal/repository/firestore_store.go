package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pairchat/internal/domain"
)

const (
	usersCollection    = "users"
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

type firestoreUser struct {
	ExternalID   string    `firestore:"userId"`
	CustomUserID string    `firestore:"customUserId"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

type firestoreChat struct {
	UserID1     string    `firestore:"userId1"`
	UserID2     string    `firestore:"userId2"`
	LastMessage string    `firestore:"lastMessage"`
	LastSeq     int64     `firestore:"lastSeq"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type firestoreMessage struct {
	ChatID      string    `firestore:"chatId"`
	Seq         int64     `firestore:"seq"`
	SenderID    string    `firestore:"senderId"`
	RecipientID string    `firestore:"recipientId"`
	Text        string    `firestore:"text"`
	Timestamp   time.Time `firestore:"timestamp"`
}

func isFirestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// FirestoreUserRepository implementa UserRepository sobre Cloud Firestore.
type FirestoreUserRepository struct {
	client *firestore.Client
}

func NewFirestoreUserRepository(client *firestore.Client) *FirestoreUserRepository {
	return &FirestoreUserRepository{client: client}
}

func (r *FirestoreUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	wr, err := r.client.Collection(usersCollection).Doc(user.ID).Create(ctx, map[string]interface{}{
		"userId":       user.ExternalID,
		"customUserId": user.CustomUserID,
		"createdAt":    firestore.ServerTimestamp,
	})
	if err != nil {
		return domain.User{}, err
	}
	// ServerTimestamp se resuelve al instante de commit.
	user.CreatedAt = wr.UpdateTime.UTC()
	return user, nil
}

func (r *FirestoreUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	snap, err := r.client.Collection(usersCollection).Doc(id).Get(ctx)
	if isFirestoreNotFound(err) {
		return domain.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	var rec firestoreUser
	if err := snap.DataTo(&rec); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		ID:           snap.Ref.ID,
		ExternalID:   rec.ExternalID,
		CustomUserID: rec.CustomUserID,
		CreatedAt:    rec.CreatedAt.UTC(),
	}, nil
}

// FirestoreChatRepository implementa ChatRepository sobre Cloud Firestore.
type FirestoreChatRepository struct {
	client *firestore.Client
}

func NewFirestoreChatRepository(client *firestore.Client) *FirestoreChatRepository {
	return &FirestoreChatRepository{client: client}
}

// CreateIfAbsent usa Create, que falla con AlreadyExists si el documento ya
// existe; ese caso se trata como exito devolviendo el chat almacenado.
func (r *FirestoreChatRepository) CreateIfAbsent(ctx context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	wr, err := r.client.Collection(chatsCollection).Doc(chat.ID).Create(ctx, map[string]interface{}{
		"userId1":     chat.UserID1,
		"userId2":     chat.UserID2,
		"lastMessage": "",
		"lastSeq":     int64(0),
		"createdAt":   firestore.ServerTimestamp,
		"updatedAt":   firestore.ServerTimestamp,
	})
	if err == nil {
		chat.LastMessage = ""
		chat.LastSeq = 0
		chat.CreatedAt = wr.UpdateTime.UTC()
		chat.UpdatedAt = wr.UpdateTime.UTC()
		return chat, true, nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return domain.Chat{}, false, err
	}

	existing, err := r.GetByID(ctx, chat.ID)
	if err != nil {
		return domain.Chat{}, false, err
	}
	return existing, false, nil
}

func (r *FirestoreChatRepository) GetByID(ctx context.Context, id string) (domain.Chat, error) {
	snap, err := r.client.Collection(chatsCollection).Doc(id).Get(ctx)
	if isFirestoreNotFound(err) {
		return domain.Chat{}, fmt.Errorf("chat %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return chatFromSnapshot(snap)
}

func (r *FirestoreChatRepository) ListByParticipant(ctx context.Context, slot ParticipantSlot, userID string) ([]domain.Chat, error) {
	var field string
	switch slot {
	case ParticipantOne:
		field = "userId1"
	case ParticipantTwo:
		field = "userId2"
	default:
		return nil, errInvalidSlot
	}

	snaps, err := r.client.Collection(chatsCollection).Where(field, "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	chats := make([]domain.Chat, 0, len(snaps))
	for _, snap := range snaps {
		chat, err := chatFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

func chatFromSnapshot(snap *firestore.DocumentSnapshot) (domain.Chat, error) {
	var rec firestoreChat
	if err := snap.DataTo(&rec); err != nil {
		return domain.Chat{}, err
	}
	return domain.Chat{
		ID:          snap.Ref.ID,
		UserID1:     rec.UserID1,
		UserID2:     rec.UserID2,
		LastMessage: rec.LastMessage,
		LastSeq:     rec.LastSeq,
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}, nil
}

// FirestoreMessageRepository implementa MessageRepository sobre Cloud Firestore.
type FirestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) *FirestoreMessageRepository {
	return &FirestoreMessageRepository{client: client}
}

// Append crea el mensaje y actualiza el resumen del chat en una transaccion.
// Firestore reintenta la funcion completa si el chat cambia en paralelo.
func (r *FirestoreMessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	chatRef := r.client.Collection(chatsCollection).Doc(message.ChatID)
	msgRef := chatRef.Collection(messagesCollection).Doc(message.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(chatRef)
		if isFirestoreNotFound(err) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var chat firestoreChat
		if err := snap.DataTo(&chat); err != nil {
			return err
		}

		message.Seq = chat.LastSeq + 1
		if err := tx.Create(msgRef, map[string]interface{}{
			"chatId":      message.ChatID,
			"seq":         message.Seq,
			"senderId":    message.SenderID,
			"recipientId": message.RecipientID,
			"text":        message.Text,
			"timestamp":   firestore.ServerTimestamp,
		}); err != nil {
			return err
		}
		return tx.Update(chatRef, []firestore.Update{
			{Path: "lastMessage", Value: message.Text},
			{Path: "lastSeq", Value: message.Seq},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if errors.Is(err, ErrNotFound) {
		return domain.Message{}, fmt.Errorf("chat %s: %w", message.ChatID, ErrNotFound)
	}
	if err != nil {
		return domain.Message{}, err
	}

	// El commit ya ocurrio: la relectura solo aporta el timestamp del servidor.
	snap, err := msgRef.Get(ctx)
	return appendedMessage(message, snap, err), nil
}

// appendedMessage prefiere el documento releido y, si la lectura falla, usa el
// mensaje construido con la hora local. Nunca devuelve error porque el mensaje
// ya esta persistido.
func appendedMessage(built domain.Message, snap *firestore.DocumentSnapshot, readErr error) domain.Message {
	if readErr == nil && snap != nil {
		if stored, err := messageFromSnapshot(snap); err == nil {
			return stored
		}
	}
	built.Timestamp = time.Now().UTC()
	return built
}

func (r *FirestoreMessageRepository) ListByChatID(ctx context.Context, chatID string) ([]domain.Message, error) {
	snaps, err := r.client.Collection(chatsCollection).Doc(chatID).
		Collection(messagesCollection).
		OrderBy("seq", firestore.Asc).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(snaps))
	for _, snap := range snaps {
		msg, err := messageFromSnapshot(snap)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func messageFromSnapshot(snap *firestore.DocumentSnapshot) (domain.Message, error) {
	var rec firestoreMessage
	if err := snap.DataTo(&rec); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:          snap.Ref.ID,
		ChatID:      rec.ChatID,
		Seq:         rec.Seq,
		SenderID:    rec.SenderID,
		RecipientID: rec.RecipientID,
		Text:        rec.Text,
		Timestamp:   rec.Timestamp.UTC(),
	}, nil
}

// NewFirestoreStore arma el Store completo sobre un cliente de Firestore.
func NewFirestoreStore(client *firestore.Client) Store {
	return Store{
		Users:    NewFirestoreUserRepository(client),
		Chats:    NewFirestoreChatRepository(client),
		Messages: NewFirestoreMessageRepository(client),
		Ping: func(ctx context.Context) error {
			_, err := client.Collection(chatsCollection).Limit(1).Documents(ctx).GetAll()
			return err
		},
	}
}
