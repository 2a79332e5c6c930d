package kv_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MiniBasket/internal/kv"
)

func backends(t *testing.T) map[string]kv.Backend {
	t.Helper()

	sqliteBackend, closer, err := kv.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = closer.Close() })

	return map[string]kv.Backend{
		"memory": kv.NewMemBackend(),
		"sqlite": sqliteBackend,
	}
}

func TestBackend_GetSetRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := kv.Scope(b, "session-a")

			_, ok, err := s.Get(ctx, "basket")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "basket", `["apple"]`))
			v, ok, err := s.Get(ctx, "basket")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `["apple"]`, v)

			require.NoError(t, s.Set(ctx, "basket", `["apple","lemon"]`))
			v, _, err = s.Get(ctx, "basket")
			require.NoError(t, err)
			assert.Equal(t, `["apple","lemon"]`, v, "last write wins")

			require.NoError(t, s.Remove(ctx, "basket"))
			_, ok, err = s.Get(ctx, "basket")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Remove(ctx, "basket"), "removing a missing key is fine")
			require.NoError(t, b.Ping(ctx))
		})
	}
}

func TestBackend_ScopesAreIsolated(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := kv.Scope(b, "a")
			other := kv.Scope(b, "b")

			require.NoError(t, a.Set(ctx, "grantedFreeOranges", "2"))

			_, ok, err := other.Get(ctx, "grantedFreeOranges")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, other.Set(ctx, "grantedFreeOranges", "5"))
			v, _, err := a.Get(ctx, "grantedFreeOranges")
			require.NoError(t, err)
			assert.Equal(t, "2", v)
		})
	}
}

func TestBackend_UpdateCommitsTogether(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := kv.Scope(b, "session-a")
			require.NoError(t, s.Set(ctx, "gone", "x"))

			err := s.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
				require.NoError(t, tx.Set(ctx, "basket", `["apple"]`))
				require.NoError(t, tx.Remove(ctx, "gone"))

				v, ok, err := tx.Get(ctx, "basket")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, `["apple"]`, v, "reads see own writes")

				_, ok, err = tx.Get(ctx, "gone")
				require.NoError(t, err)
				assert.False(t, ok)
				return nil
			})
			require.NoError(t, err)

			v, _, err := s.Get(ctx, "basket")
			require.NoError(t, err)
			assert.Equal(t, `["apple"]`, v)
			_, ok, err := s.Get(ctx, "gone")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackend_UpdateErrorDiscardsWrites(t *testing.T) {
	errStop := errors.New("stop")

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := kv.Scope(b, "session-a")
			require.NoError(t, s.Set(ctx, "basket", `["lemon"]`))

			err := s.Update(ctx, func(ctx context.Context, tx kv.Tx) error {
				require.NoError(t, tx.Set(ctx, "grantedFreeOranges", "1"))
				require.NoError(t, tx.Remove(ctx, "basket"))
				return errStop
			})
			require.ErrorIs(t, err, errStop)

			v, ok, err := s.Get(ctx, "basket")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `["lemon"]`, v)
			_, ok, err = s.Get(ctx, "grantedFreeOranges")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackend_ConcurrentUpdatesAreSerialized(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const workers = 16

			errs := make(chan error, workers)
			var wg sync.WaitGroup
			for range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- kv.Scope(b, "counter").Update(ctx, func(ctx context.Context, tx kv.Tx) error {
						raw, _, err := tx.Get(ctx, "n")
						if err != nil {
							return err
						}
						n, _ := strconv.Atoi(raw)
						return tx.Set(ctx, "n", strconv.Itoa(n+1))
					})
				}()
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}
			v, _, err := kv.Scope(b, "counter").Get(ctx, "n")
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(workers), v)
		})
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := kv.Open(context.Background(), "redis", "")
	assert.ErrorIs(t, err, kv.ErrUnknownDriver)
}

func TestOpen_MemoryDefault(t *testing.T) {
	b, closer, err := kv.Open(context.Background(), "", "")
	require.NoError(t, err)
	assert.IsType(t, &kv.MemBackend{}, b)
	assert.NoError(t, closer.Close())
}
