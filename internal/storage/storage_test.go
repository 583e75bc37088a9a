package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "e3kit.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"cached": func(t *testing.T) Store {
			s, err := NewCached(NewMemory(), 16)
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_PublishCard(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			first, err := s.PublishCard(ctx, Card{ID: "c1", Identity: "alice", PublicKey: []byte("k1")})
			require.NoError(t, err)
			assert.Equal(t, "c1", first.ID)
			assert.False(t, first.CreatedAt.IsZero())

			again, err := s.PublishCard(ctx, Card{ID: "c1", Identity: "alice", PublicKey: []byte("k1")})
			require.NoError(t, err, "republishing the same card is idempotent")
			assert.True(t, first.CreatedAt.Equal(again.CreatedAt))

			_, err = s.PublishCard(ctx, Card{ID: "c2", Identity: "alice", PublicKey: []byte("k2"), PreviousCardID: "nope"})
			require.ErrorIs(t, err, ErrConflict)

			second, err := s.PublishCard(ctx, Card{ID: "c2", Identity: "alice", PublicKey: []byte("k2"), PreviousCardID: "c1"})
			require.NoError(t, err)
			assert.Equal(t, "c1", second.PreviousCardID)

			_, err = s.PublishCard(ctx, Card{ID: "c3", Identity: "alice", PublicKey: []byte("k3"), PreviousCardID: "c1"})
			require.ErrorIs(t, err, ErrConflict, "c1 is no longer the newest card")

			cards, err := s.LatestCards(ctx, []string{"alice"})
			require.NoError(t, err)
			assert.Equal(t, "c2", cards["alice"].ID)
			assert.Equal(t, []byte("k2"), cards["alice"].PublicKey)
		})
	}
}

func TestStore_LatestCards(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.PublishCard(ctx, Card{ID: "a", Identity: "alice", PublicKey: []byte("ka")})
			require.NoError(t, err)
			_, err = s.PublishCard(ctx, Card{ID: "b", Identity: "bob", PublicKey: []byte("kb")})
			require.NoError(t, err)

			cards, err := s.LatestCards(ctx, []string{"alice", "bob", "ghost"})
			require.NoError(t, err)
			assert.Len(t, cards, 2)
			assert.NotContains(t, cards, "ghost")

			empty, err := s.LatestCards(ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_EntryLifecycle(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.GetEntry(ctx, "alice", "alice_keyknox")
			require.ErrorIs(t, err, ErrNotFound)

			created, err := s.PutEntry(ctx, "alice", "alice_keyknox", []byte("v1"), "")
			require.NoError(t, err)
			require.NotEmpty(t, created.Version)

			_, err = s.PutEntry(ctx, "alice", "alice_keyknox", []byte("again"), "")
			require.ErrorIs(t, err, ErrConflict, "create-only write must not overwrite")

			got, err := s.GetEntry(ctx, "alice", "alice_keyknox")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got.Data)
			assert.Equal(t, created.Version, got.Version)

			_, err = s.PutEntry(ctx, "alice", "alice_keyknox", []byte("v2"), "stale")
			require.ErrorIs(t, err, ErrConflict)

			updated, err := s.PutEntry(ctx, "alice", "alice_keyknox", []byte("v2"), created.Version)
			require.NoError(t, err)
			assert.NotEqual(t, created.Version, updated.Version)

			err = s.DeleteEntry(ctx, "alice", "alice_keyknox", created.Version)
			require.ErrorIs(t, err, ErrConflict)

			require.NoError(t, s.DeleteEntry(ctx, "alice", "alice_keyknox", updated.Version))

			_, err = s.GetEntry(ctx, "alice", "alice_keyknox")
			require.ErrorIs(t, err, ErrNotFound)

			err = s.DeleteEntry(ctx, "alice", "alice_keyknox", updated.Version)
			require.ErrorIs(t, err, ErrNotFound)

			_, err = s.PutEntry(ctx, "alice", "alice_keyknox", []byte("v3"), updated.Version)
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_EntriesScopedByIdentity(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.PutEntry(ctx, "alice", "shared", []byte("a"), "")
			require.NoError(t, err)
			_, err = s.PutEntry(ctx, "bob", "shared", []byte("b"), "")
			require.NoError(t, err)

			a, err := s.GetEntry(ctx, "alice", "shared")
			require.NoError(t, err)
			assert.Equal(t, []byte("a"), a.Data)
		})
	}
}

func TestStore_ConcurrentCreateOnlyWrites(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			const writers = 8
			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0

			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.PutEntry(ctx, "alice", "race", []byte("x"), ""); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, wins, "exactly one create-only write may win")
		})
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	data := []byte("secret")
	_, err := s.PutEntry(ctx, "alice", "n", data, "")
	require.NoError(t, err)
	data[0] = 'X'

	got, err := s.GetEntry(ctx, "alice", "n")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got.Data)

	got.Data[0] = 'Y'
	again, err := s.GetEntry(ctx, "alice", "n")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), again.Data)
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemory()
	_, err := s.PutEntry(ctx, "alice", "n", []byte("x"), "")
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.GetEntry(context.Background(), "alice", "n")
	require.ErrorIs(t, err, ErrNotFound, "a canceled write leaves nothing behind")
}

func TestOpenSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "e3kit.db")

	s1, err := OpenSQLite(path)
	require.NoError(t, err)
	_, err = s1.PutEntry(ctx, "alice", "n", []byte("persisted"), "")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetEntry(ctx, "alice", "n")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got.Data)

	var mode string
	require.NoError(t, s2.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}
