package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"pairchat/internal/db"
	"pairchat/internal/domain"
)

func setupBadger(t *testing.T) *badger.DB {
	t.Helper()
	bdb, err := db.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bdb.Close() })
	return bdb
}

func Test_Badger_User_Create_And_Get(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()

	created, err := store.Users.Create(ctx, domain.User{ID: uuid.NewString(), ExternalID: "alice", CustomUserID: "Alice"})
	req.NoError(err)
	req.False(created.CreatedAt.IsZero())

	fetched, err := store.Users.GetByID(ctx, created.ID)
	req.NoError(err)
	req.Equal(created.ExternalID, fetched.ExternalID)
	req.Equal(created.CustomUserID, fetched.CustomUserID)
	req.True(created.CreatedAt.Equal(fetched.CreatedAt))

	_, err = store.Users.GetByID(ctx, "missing")
	req.ErrorIs(err, ErrNotFound)
}

func Test_Badger_Chat_CreateIfAbsent_Keeps_First_Record(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()
	id := uuid.NewString()

	first, created, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: id, UserID1: "alice", UserID2: "bob"})
	req.NoError(err)
	req.True(created)
	req.Equal("alice", first.UserID1)

	// Given the reverse pair resolving to the same id
	second, created, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: id, UserID1: "bob", UserID2: "alice"})
	req.NoError(err)
	req.False(created)

	// Then the stored orientation is the one from creation
	req.Equal("alice", second.UserID1)
	req.Equal("bob", second.UserID2)
	req.True(first.CreatedAt.Equal(second.CreatedAt))
}

func Test_Badger_Chat_CreateIfAbsent_Concurrent_Single_Creator(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()
	id := uuid.NewString()

	const callers = 24
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		creators int
		errs     []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: id, UserID1: "alice", UserID2: "bob"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if created {
				creators++
			}
		}()
	}
	wg.Wait()

	req.Empty(errs)
	req.Equal(1, creators)

	asFirst, err := store.Chats.ListByParticipant(ctx, ParticipantOne, "alice")
	req.NoError(err)
	req.Len(asFirst, 1)
}

func Test_Badger_Chat_ListByParticipant_Uses_Slot(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "bob"}, {"carol", "alice"}, {"bob", "carol"}} {
		_, _, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: uuid.NewString(), UserID1: pair[0], UserID2: pair[1]})
		req.NoError(err)
	}

	asFirst, err := store.Chats.ListByParticipant(ctx, ParticipantOne, "alice")
	req.NoError(err)
	req.Len(asFirst, 1)
	req.Equal("bob", asFirst[0].UserID2)

	asSecond, err := store.Chats.ListByParticipant(ctx, ParticipantTwo, "alice")
	req.NoError(err)
	req.Len(asSecond, 1)
	req.Equal("carol", asSecond[0].UserID1)

	none, err := store.Chats.ListByParticipant(ctx, ParticipantOne, "dave")
	req.NoError(err)
	req.Empty(none)

	_, err = store.Chats.ListByParticipant(ctx, ParticipantSlot(3), "alice")
	req.Error(err)
}

func Test_Badger_Chat_Index_Does_Not_Leak_Across_Prefixes(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()

	_, _, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: uuid.NewString(), UserID1: "al:ice", UserID2: "bob"})
	req.NoError(err)

	chats, err := store.Chats.ListByParticipant(ctx, ParticipantOne, "al")
	req.NoError(err)
	req.Empty(chats)
}

func Test_Badger_Message_Append_Updates_Summary_And_Order(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()
	chatID := uuid.NewString()

	_, _, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: chatID, UserID1: "alice", UserID2: "bob"})
	req.NoError(err)

	// 12 mensajes: el seq con ceros a la izquierda debe ordenar 10 despues de 9.
	for i := 1; i <= 12; i++ {
		msg, err := store.Messages.Append(ctx, domain.Message{
			ID:          uuid.NewString(),
			ChatID:      chatID,
			SenderID:    "alice",
			RecipientID: "bob",
			Text:        fmt.Sprintf("m%d", i),
		})
		req.NoError(err)
		req.Equal(int64(i), msg.Seq)
		req.False(msg.Timestamp.IsZero())
	}

	chat, err := store.Chats.GetByID(ctx, chatID)
	req.NoError(err)
	req.Equal("m12", chat.LastMessage)
	req.Equal(int64(12), chat.LastSeq)

	messages, err := store.Messages.ListByChatID(ctx, chatID)
	req.NoError(err)
	req.Len(messages, 12)
	for i, msg := range messages {
		req.Equal(fmt.Sprintf("m%d", i+1), msg.Text)
		if i > 0 {
			req.False(msg.Timestamp.Before(messages[i-1].Timestamp))
		}
	}
	req.True(chat.UpdatedAt.Equal(messages[11].Timestamp))
}

func Test_Badger_Message_Append_Concurrent_Distinct_Seq(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()
	chatID := uuid.NewString()

	_, _, err := store.Chats.CreateIfAbsent(ctx, domain.Chat{ID: chatID, UserID1: "alice", UserID2: "bob"})
	req.NoError(err)

	const writers = 4
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Messages.Append(ctx, domain.Message{
				ID: uuid.NewString(), ChatID: chatID, SenderID: "alice", RecipientID: "bob", Text: fmt.Sprintf("w%d", i),
			})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)
	for err := range results {
		if errors.Is(err, ErrConflict) {
			continue
		}
		req.NoError(err)
	}

	messages, err := store.Messages.ListByChatID(ctx, chatID)
	req.NoError(err)
	seen := make(map[int64]bool, len(messages))
	for i, msg := range messages {
		req.Equal(int64(i+1), msg.Seq)
		req.False(seen[msg.Seq])
		seen[msg.Seq] = true
	}

	chat, err := store.Chats.GetByID(ctx, chatID)
	req.NoError(err)
	req.Equal(int64(len(messages)), chat.LastSeq)
	req.Equal(messages[len(messages)-1].Text, chat.LastMessage)
}

func Test_Badger_Message_Append_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	store := NewBadgerStore(setupBadger(t))
	ctx := context.Background()

	_, err := store.Messages.Append(ctx, domain.Message{ID: uuid.NewString(), ChatID: "missing", Text: "hi"})
	req.ErrorIs(err, ErrNotFound)

	messages, err := store.Messages.ListByChatID(ctx, "missing")
	req.NoError(err)
	req.Empty(messages)
}

func Test_Badger_Ping_Reports_Closed_Database(t *testing.T) {
	req := require.New(t)
	bdb, err := db.OpenBadger("")
	req.NoError(err)
	store := NewBadgerStore(bdb)

	req.NoError(store.Ping(context.Background()))
	req.NoError(bdb.Close())
	req.Error(store.Ping(context.Background()))
}
