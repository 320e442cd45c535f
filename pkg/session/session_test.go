package session

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/config"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// database/sql keeps a connection opener goroutine per DB until Close
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type storeFactory func(t *testing.T) Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "data", "sessions.db"))
			require.NoError(t, err)
			return s
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return NewRedisStoreFromClient(client, time.Hour)
		},
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			s := New("es", "")
			require.NoError(t, store.Create(ctx, s))

			got, err := store.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.ID, got.ID)
			assert.Len(t, got.Conversation.Messages, 3)

			got.Conversation.Append(conversation.RoleUser, "El cliente pide un préstamo")
			got.Result = &chatbot.Result{XML: "<definitions/>", Attempts: 1}
			got.Touch()
			require.NoError(t, store.Save(ctx, got))

			again, err := store.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Len(t, again.Conversation.Messages, 4)
			assert.Equal(t, "El cliente pide un préstamo", again.Title)
			require.NotNil(t, again.Result)
			assert.Equal(t, "<definitions/>", again.Result.XML)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.True(t, list[0].HasResult)
			assert.Equal(t, 4, list[0].Messages)

			require.NoError(t, store.Delete(ctx, s.ID))
			_, err = store.Get(ctx, s.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete(ctx, s.ID), ErrNotFound)
		})
	}
}

func TestStoreListOrderAndExpiry(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := factory(t)
			defer store.Close()

			old := New("es", "")
			old.UpdatedAt = time.Now().Add(-48 * time.Hour)
			fresh := New("es", "")
			require.NoError(t, store.Create(ctx, old))
			require.NoError(t, store.Create(ctx, fresh))

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, fresh.ID, list[0].ID, "most recent first")

			ids, err := store.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, []string{old.ID}, ids)

			_, err = store.Get(ctx, old.ID)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Get(ctx, fresh.ID)
			assert.NoError(t, err)
		})
	}
}

func TestRedisTTLPrunesIndex(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, time.Minute)
	defer store.Close()

	s := New("en", "")
	require.NoError(t, store.Create(ctx, s))
	mr.FastForward(2 * time.Minute)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	members, err := client.ZCard(ctx, redisIndexKey).Result()
	require.NoError(t, err)
	assert.Zero(t, members)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "etcd"}, time.Hour)
	assert.Error(t, err)
}

func TestTouchTitleSkipsDocuments(t *testing.T) {
	s := New("es", "")
	s.Conversation.AppendDocument("manual.pdf", "texto importado")
	s.Conversation.Append(conversation.RoleUser, "  Un   proceso\nde compras  ")
	s.Touch()
	assert.Equal(t, "Un proceso de compras", s.Title)
}

func TestKeyRing(t *testing.T) {
	k := NewKeyRing()
	assert.False(t, k.Has("a"))
	k.Set("a", "secret")
	assert.Equal(t, "secret", k.Get("a"))
	k.Delete("a")
	assert.False(t, k.Has("a"))
}

func TestJanitor(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	old := New("es", "")
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.Create(ctx, old))

	var expired atomic.Int32
	j, err := NewJanitor(store, time.Hour, "@every 1h", nil, func(ids []string) {
		expired.Add(int32(len(ids)))
	})
	require.NoError(t, err)
	j.Start()
	defer j.Stop()

	assert.Equal(t, 1, j.RunOnce(ctx))
	assert.Equal(t, int32(1), expired.Load())
	assert.Equal(t, 0, j.RunOnce(ctx))
}

func TestJanitorInvalidSchedule(t *testing.T) {
	_, err := NewJanitor(NewMemoryStore(), time.Hour, "not a schedule", nil, nil)
	assert.Error(t, err)
}
