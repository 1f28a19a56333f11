package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"pairchat/internal/domain"
	"pairchat/internal/repository"
)

func newTestChatService(repo repository.ChatRepository) *ChatService {
	return NewChatService(zap.NewNop(), repo, nil, 0)
}

func TestChatServiceFindOrCreate_Symmetric(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)

	ab, created, err := svc.FindOrCreate(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if !created {
		t.Fatalf("expected first call to create the chat")
	}
	ba, created, err := svc.FindOrCreate(context.Background(), "u2", "u1")
	if err != nil {
		t.Fatalf("find or create reversed: %v", err)
	}
	if created {
		t.Fatalf("expected reversed call to reuse the chat")
	}
	if ab.ID != ba.ID {
		t.Fatalf("expected same chat id, got %q and %q", ab.ID, ba.ID)
	}
	if ba.UserID1 != "u1" || ba.UserID2 != "u2" {
		t.Fatalf("expected creation order to be preserved, got %q/%q", ba.UserID1, ba.UserID2)
	}
}

func TestChatServiceFindOrCreate_Idempotent(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)

	first, _, err := svc.FindOrCreate(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, _, err := svc.FindOrCreate(context.Background(), "u1", "u2")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same id on repeated calls")
	}
	if repo.inserts != 1 {
		t.Fatalf("expected one stored chat, got %d", repo.inserts)
	}
}

func TestChatServiceFindOrCreate_ConcurrentFirstCalls(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)

	const workers = 32
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender, recipient := "alice", "bob"
			if i%2 == 1 {
				sender, recipient = recipient, sender
			}
			chat, _, err := svc.FindOrCreate(context.Background(), sender, recipient)
			if err != nil {
				t.Errorf("worker %d: %v", i, err)
				return
			}
			ids[i] = chat.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("expected all workers to resolve the same chat, got %q and %q", ids[0], ids[i])
		}
	}
	if repo.inserts != 1 {
		t.Fatalf("expected exactly one chat record, got %d", repo.inserts)
	}
}

func TestChatServiceFindOrCreate_Validation(t *testing.T) {
	svc := newTestChatService(newFakeChatRepo())

	cases := [][2]string{{"", "u2"}, {"u1", ""}, {"  ", "u2"}}
	for i, c := range cases {
		if _, _, err := svc.FindOrCreate(context.Background(), c[0], c[1]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestChatServiceFindOrCreate_StoreError(t *testing.T) {
	repo := newFakeChatRepo()
	repo.createErr = errors.New("store down")
	svc := newTestChatService(repo)

	if _, _, err := svc.FindOrCreate(context.Background(), "u1", "u2"); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestChatServiceListForUser_UnionOfBothRoles(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)
	ctx := context.Background()

	asSender, _, _ := svc.FindOrCreate(ctx, "u1", "u2")
	asRecipient, _, _ := svc.FindOrCreate(ctx, "u3", "u1")
	unrelated, _, _ := svc.FindOrCreate(ctx, "u2", "u3")

	chats, err := svc.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(chats))
	}
	seen := map[string]bool{}
	for _, c := range chats {
		seen[c.ID] = true
	}
	if !seen[asSender.ID] || !seen[asRecipient.ID] {
		t.Fatalf("expected chats from both roles, got %+v", chats)
	}
	if seen[unrelated.ID] {
		t.Fatalf("expected chat without u1 to be excluded")
	}
	// asRecipient se creo despues: va primero.
	if chats[0].ID != asRecipient.ID {
		t.Fatalf("expected most recently updated chat first")
	}
}

func TestChatServiceListForUser_SelfChatDeduplicated(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)

	if _, _, err := svc.FindOrCreate(context.Background(), "u1", "u1"); err != nil {
		t.Fatalf("self chat: %v", err)
	}
	chats, err := svc.ListForUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected self chat once, got %d", len(chats))
	}
}

func TestChatServiceListForUser_NoChats(t *testing.T) {
	svc := newTestChatService(newFakeChatRepo())
	if _, err := svc.ListForUser(context.Background(), "ghost"); !errors.Is(err, ErrNoChats) {
		t.Fatalf("expected ErrNoChats, got %v", err)
	}
}

func TestChatServiceListForUser_StoreError(t *testing.T) {
	repo := newFakeChatRepo()
	repo.listErr = errors.New("store down")
	svc := newTestChatService(repo)
	if _, err := svc.ListForUser(context.Background(), "u1"); err == nil || errors.Is(err, ErrNoChats) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestChatServiceGet(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)
	chat, _, _ := svc.FindOrCreate(context.Background(), "u1", "u2")

	got, err := svc.Get(context.Background(), chat.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != chat.ID {
		t.Fatalf("unexpected chat %+v", got)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestChatService_NotConfigured(t *testing.T) {
	var svc *ChatService
	if _, _, err := svc.FindOrCreate(context.Background(), "a", "b"); !errors.Is(err, ErrServiceNotConfigured) {
		t.Fatalf("expected ErrServiceNotConfigured, got %v", err)
	}
	svc = NewChatService(zap.NewNop(), nil, nil, 0)
	if _, err := svc.ListForUser(context.Background(), "a"); !errors.Is(err, ErrServiceNotConfigured) {
		t.Fatalf("expected ErrServiceNotConfigured, got %v", err)
	}
}

func TestChatServiceFindOrCreate_RejectsForeignPairUnderSameKey(t *testing.T) {
	repo := newFakeChatRepo()
	// Un registro previo de otro par ocupa la clave de {u1, u2}.
	repo.chats[ChatKey("u1", "u2")] = domain.Chat{ID: ChatKey("u1", "u2"), UserID1: "u1\x00x", UserID2: "u2"}
	svc := newTestChatService(repo)

	_, _, err := svc.FindOrCreate(context.Background(), "u1", "u2")
	if !errors.Is(err, ErrChatKeyCollision) {
		t.Fatalf("expected ErrChatKeyCollision, got %v", err)
	}
}

func TestChatServiceFindOrCreate_RejectsNULInIDs(t *testing.T) {
	repo := newFakeChatRepo()
	svc := newTestChatService(repo)

	for _, pair := range [][2]string{{"a\x00b", "c"}, {"a", "b\x00c"}} {
		if _, _, err := svc.FindOrCreate(context.Background(), pair[0], pair[1]); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("pair %q: expected ErrInvalidInput, got %v", pair, err)
		}
	}
	if repo.inserts != 0 {
		t.Fatalf("expected no chat stored, got %d", repo.inserts)
	}
}
