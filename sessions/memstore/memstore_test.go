package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-billing-portal/internal/errors"
	"github.com/jrsteele09/go-billing-portal/sessions/memstore"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *testing.T) *time.Time {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := memstore.NowTimeFunc
	memstore.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { memstore.NowTimeFunc = prev })
	return &now
}

func TestMemStore_SetGetDelete(t *testing.T) {
	fixedClock(t)
	ctx := context.Background()
	store := memstore.New()

	require.NoError(t, store.Set(ctx, "a1", map[string]string{"Token": "t", "Usuario": "u"}, time.Hour))
	require.NoError(t, store.Set(ctx, "a1", map[string]string{"Expiracion": "e"}, time.Hour))

	for k, want := range map[string]string{"Token": "t", "Usuario": "u", "Expiracion": "e"} {
		v, found, err := store.Get(ctx, "a1", k)
		require.NoError(t, err)
		require.True(t, found, k)
		require.Equal(t, want, v)
	}

	require.NoError(t, store.Delete(ctx, "a1", "Token"))
	_, found, err := store.Get(ctx, "a1", "Token")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Delete(ctx, "a1", "Usuario", "Expiracion"))
	require.Equal(t, 0, store.Len())

	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestMemStore_Expiry(t *testing.T) {
	now := fixedClock(t)
	ctx := context.Background()
	store := memstore.New()

	require.NoError(t, store.Set(ctx, "a1", map[string]string{"Token": "t"}, time.Minute))
	require.NoError(t, store.Set(ctx, "a2", map[string]string{"Token": "t"}, time.Hour))

	*now = now.Add(time.Minute)

	_, found, err := store.Get(ctx, "a1", "Token")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = store.Get(ctx, "a2", "Token")
	require.NoError(t, err)
	require.True(t, found)

	t.Run("set on an expired record starts fresh", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "a3", map[string]string{"Old": "x"}, time.Second))
		*now = now.Add(2 * time.Second)
		require.NoError(t, store.Set(ctx, "a3", map[string]string{"New": "y"}, time.Hour))
		_, found, err := store.Get(ctx, "a3", "Old")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("expired records are dropped when read", func(t *testing.T) {
		*now = now.Add(2 * time.Hour)
		require.Equal(t, 2, store.Len())

		for _, agent := range []string{"a2", "a3"} {
			_, found, err := store.Get(ctx, agent, "Token")
			require.NoError(t, err)
			require.False(t, found)
		}
		require.Equal(t, 0, store.Len())
	})
}

func TestMemStore_MissingAgent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	_, _, err := store.Get(ctx, "", "Token")
	require.ErrorIs(t, err, errors.ErrMissingAgent)
	require.ErrorIs(t, store.Set(ctx, "", nil, time.Minute), errors.ErrMissingAgent)
	require.ErrorIs(t, store.Delete(ctx, ""), errors.ErrMissingAgent)
}

func TestMemStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, "shared", map[string]string{"Token": "t"}, time.Hour)
			_, _, _ = store.Get(ctx, "shared", "Token")
			_ = store.Delete(ctx, "shared", "Token")
		}()
	}
	wg.Wait()
}
