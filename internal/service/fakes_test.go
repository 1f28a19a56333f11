package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pairchat/internal/domain"
	"pairchat/internal/repository"
)

type fakeUserRepo struct {
	mu        sync.Mutex
	users     map[string]domain.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	user.CreatedAt = time.Now().UTC()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %s: %w", id, repository.ErrNotFound)
	}
	return u, nil
}

// fakeChatRepo emula un insert-if-absent atomico por ID.
type fakeChatRepo struct {
	mu        sync.Mutex
	chats     map[string]domain.Chat
	inserts   int
	createErr error
	listErr   error
	clock     time.Time
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		chats: make(map[string]domain.Chat),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fakeChatRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeChatRepo) CreateIfAbsent(_ context.Context, chat domain.Chat) (domain.Chat, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Chat{}, false, f.createErr
	}
	if existing, ok := f.chats[chat.ID]; ok {
		return existing, false, nil
	}
	now := f.tick()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	f.chats[chat.ID] = chat
	f.inserts++
	return chat, true, nil
}

func (f *fakeChatRepo) GetByID(_ context.Context, id string) (domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[id]
	if !ok {
		return domain.Chat{}, fmt.Errorf("chat %s: %w", id, repository.ErrNotFound)
	}
	return chat, nil
}

func (f *fakeChatRepo) ListByParticipant(_ context.Context, slot repository.ParticipantSlot, userID string) ([]domain.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Chat
	for _, chat := range f.chats {
		if (slot == repository.ParticipantOne && chat.UserID1 == userID) ||
			(slot == repository.ParticipantTwo && chat.UserID2 == userID) {
			out = append(out, chat)
		}
	}
	return out, nil
}

// fakeMessageRepo comparte el fakeChatRepo para refrescar el resumen.
type fakeMessageRepo struct {
	chats     *fakeChatRepo
	messages  map[string][]domain.Message
	appendErr error
	listErr   error
	appends   int
}

func newFakeMessageRepo(chats *fakeChatRepo) *fakeMessageRepo {
	return &fakeMessageRepo{chats: chats, messages: make(map[string][]domain.Message)}
}

func (f *fakeMessageRepo) Append(_ context.Context, message domain.Message) (domain.Message, error) {
	f.chats.mu.Lock()
	defer f.chats.mu.Unlock()
	if f.appendErr != nil {
		return domain.Message{}, f.appendErr
	}
	chat, ok := f.chats.chats[message.ChatID]
	if !ok {
		return domain.Message{}, fmt.Errorf("chat %s: %w", message.ChatID, repository.ErrNotFound)
	}
	now := f.chats.tick()
	chat.LastSeq++
	chat.LastMessage = message.Text
	chat.UpdatedAt = now
	f.chats.chats[chat.ID] = chat

	message.Seq = chat.LastSeq
	message.Timestamp = now
	f.messages[chat.ID] = append(f.messages[chat.ID], message)
	f.appends++
	return message, nil
}

func (f *fakeMessageRepo) ListByChatID(_ context.Context, chatID string) ([]domain.Message, error) {
	f.chats.mu.Lock()
	defer f.chats.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Message(nil), f.messages[chatID]...), nil
}
