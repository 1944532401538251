package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/serroba/link-preview/internal/shortener"
	"github.com/serroba/link-preview/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(code shortener.Code, key shortener.URLKey) *shortener.Record {
	now := time.Now()

	return &shortener.Record{
		Code:         code,
		CanonicalURL: "https://example.com/" + string(key),
		URLKey:       key,
		Title:        "title",
		ImageURL:     "https://img.example.com/a.png",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestMemoryStore_Reserve(t *testing.T) {
	t.Run("reserves a free code", func(t *testing.T) {
		s := store.NewMemoryStore()

		err := s.Reserve(context.Background(), "0123456789")

		require.NoError(t, err)
	})

	t.Run("rejects a reserved code", func(t *testing.T) {
		s := store.NewMemoryStore()
		_ = s.Reserve(context.Background(), "0123456789")

		err := s.Reserve(context.Background(), "0123456789")

		assert.ErrorIs(t, err, shortener.ErrCodeExists)
	})

	t.Run("rejects a committed code", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		err := s.Reserve(ctx, "0123456789")

		assert.ErrorIs(t, err, shortener.ErrCodeExists)
	})

	t.Run("concurrent reservations of one code succeed once", func(t *testing.T) {
		s := store.NewMemoryStore()

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				if err := s.Reserve(context.Background(), "aaaaaaaaaa"); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, successes)
	})
}

func TestMemoryStore_Get(t *testing.T) {
	t.Run("placeholder is not visible", func(t *testing.T) {
		s := store.NewMemoryStore()
		_ = s.Reserve(context.Background(), "0123456789")

		got, err := s.Get(context.Background(), "0123456789")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("returns committed record", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		got, err := s.Get(ctx, "0123456789")

		require.NoError(t, err)
		assert.Equal(t, shortener.URLKey("k1"), got.URLKey)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		got, _ := s.Get(ctx, "0123456789")
		got.Title = "mutated"

		again, _ := s.Get(ctx, "0123456789")
		assert.Equal(t, "title", again.Title)
	})
}

func TestMemoryStore_Commit(t *testing.T) {
	t.Run("creates record for reserved code", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")

		stored, created, err := s.Commit(ctx, newRecord("0123456789", "k1"))

		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, shortener.Code("0123456789"), stored.Code)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("fails without reservation", func(t *testing.T) {
		s := store.NewMemoryStore()

		_, _, err := s.Commit(context.Background(), newRecord("0123456789", "k1"))

		assert.ErrorIs(t, err, shortener.ErrNotReserved)
	})

	t.Run("returns owner when key is taken and drops placeholder", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "aaaaaaaaaa")
		_, _, _ = s.Commit(ctx, newRecord("aaaaaaaaaa", "k1"))
		_ = s.Reserve(ctx, "bbbbbbbbbb")

		stored, created, err := s.Commit(ctx, newRecord("bbbbbbbbbb", "k1"))

		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, shortener.Code("aaaaaaaaaa"), stored.Code)
		assert.Equal(t, 1, s.Len())
		require.NoError(t, s.Reserve(ctx, "bbbbbbbbbb"), "placeholder should have been dropped")
	})

	t.Run("concurrent commits for one key create one record", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
			owners  = make(map[shortener.Code]struct{})
		)

		for i := range 20 {
			code := shortener.Code(fmt.Sprintf("%010x", i))
			require.NoError(t, s.Reserve(ctx, code))

			wg.Add(1)

			go func() {
				defer wg.Done()

				stored, ok, err := s.Commit(ctx, newRecord(code, "shared"))
				if err != nil {
					return
				}

				mu.Lock()
				defer mu.Unlock()

				if ok {
					created++
				}

				owners[stored.Code] = struct{}{}
			}()
		}

		wg.Wait()

		assert.Equal(t, 1, created)
		assert.Len(t, owners, 1)
		assert.Equal(t, 1, s.Len())
	})
}

func TestMemoryStore_FindByURLKey(t *testing.T) {
	t.Run("returns nothing for unknown key", func(t *testing.T) {
		s := store.NewMemoryStore()

		got, err := s.FindByURLKey(context.Background(), "missing")

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("returns committed record", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		got, err := s.FindByURLKey(ctx, "k1")

		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, shortener.Code("0123456789"), got[0].Code)
	})
}

func TestMemoryStore_Release(t *testing.T) {
	t.Run("frees a placeholder", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")

		require.NoError(t, s.Release(ctx, "0123456789"))
		assert.NoError(t, s.Reserve(ctx, "0123456789"))
	})

	t.Run("leaves committed records alone", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		require.NoError(t, s.Release(ctx, "0123456789"))

		_, err := s.Get(ctx, "0123456789")
		assert.NoError(t, err)
	})
}

func TestMemoryStore_Update(t *testing.T) {
	t.Run("overwrites metadata and keeps code", func(t *testing.T) {
		s := store.NewMemoryStore()
		ctx := context.Background()
		_ = s.Reserve(ctx, "0123456789")
		_, _, _ = s.Commit(ctx, newRecord("0123456789", "k1"))

		got, err := s.Update(ctx, "0123456789", shortener.RecordUpdate{
			Title:       "new",
			Description: "desc",
			ImageURL:    "https://img.example.com/b.png",
		})

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("0123456789"), got.Code)
		assert.Equal(t, "new", got.Title)
		assert.Equal(t, "desc", got.Description)
		assert.Equal(t, "https://img.example.com/b.png", got.ImageURL)
	})

	t.Run("returns ErrNotFound for unknown code", func(t *testing.T) {
		s := store.NewMemoryStore()

		got, err := s.Update(context.Background(), "0123456789", shortener.RecordUpdate{})

		assert.Nil(t, got)
		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})
}
