package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krapi-cms/krapi-core/internal/store"
)

type fakeHandle struct {
	store.Handle // nil; sólo se usan los métodos de abajo

	pingErr atomic.Pointer[error]
	closed  atomic.Bool
}

func (h *fakeHandle) Name() string { return "fake" }

func (h *fakeHandle) Ping(context.Context) error {
	if p := h.pingErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed.Store(true)
	return nil
}

func TestPool_ConcurrentGetBuildsOnce(t *testing.T) {
	var builds atomic.Int32
	p := store.NewConnectionPool(func(ctx context.Context, id string) (store.Handle, error) {
		builds.Add(1)
		time.Sleep(30 * time.Millisecond)
		return &fakeHandle{}, nil
	}, store.PoolConfig{})
	t.Cleanup(func() { _ = p.Close() })

	var wg sync.WaitGroup
	got := make([]store.Handle, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := p.Get(context.Background(), "proj_1")
			assert.NoError(t, err)
			got[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for _, h := range got[1:] {
		assert.Same(t, got[0], h)
	}
}

func TestPool_FailedBuildIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	p := store.NewConnectionPool(func(ctx context.Context, id string) (store.Handle, error) {
		if fail.Load() {
			return nil, errors.New("dial failed")
		}
		return &fakeHandle{}, nil
	}, store.PoolConfig{})
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.Get(context.Background(), "proj_1")
	require.Error(t, err)
	assert.False(t, p.Has("proj_1"))

	fail.Store(false)
	_, err = p.Get(context.Background(), "proj_1")
	require.NoError(t, err)
	assert.True(t, p.Has("proj_1"))
}

func TestPool_EvictClosesHandle(t *testing.T) {
	var opened, closed atomic.Int32
	fh := &fakeHandle{}
	p := store.NewConnectionPool(func(context.Context, string) (store.Handle, error) {
		return fh, nil
	}, store.PoolConfig{
		OnOpen:  func(string, store.Handle) { opened.Add(1) },
		OnClose: func(string) { closed.Add(1) },
	})
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.Get(context.Background(), "proj_1")
	require.NoError(t, err)
	st := p.Stats()
	require.Equal(t, 1, st.TotalActive)
	assert.Equal(t, "fake", st.Handles["proj_1"].Driver)

	require.NoError(t, p.Evict("proj_1"))
	require.NoError(t, p.Evict("proj_1"))
	assert.True(t, fh.closed.Load())
	assert.Equal(t, int32(1), opened.Load())
	assert.Equal(t, int32(1), closed.Load())
	assert.Zero(t, p.Stats().TotalActive)
}

func TestPool_SweepDropsIdleAndBrokenHandles(t *testing.T) {
	handles := map[string]*fakeHandle{"idle": {}, "broken": {}}
	p := store.NewConnectionPool(func(_ context.Context, id string) (store.Handle, error) {
		return handles[id], nil
	}, store.PoolConfig{
		MaxIdleTime:         40 * time.Millisecond,
		HealthCheckInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = p.Close() })

	ctx := context.Background()
	_, err := p.Get(ctx, "idle")
	require.NoError(t, err)
	_, err = p.Get(ctx, "broken")
	require.NoError(t, err)

	down := errors.New("gone")
	handles["broken"].pingErr.Store(&down)

	require.Eventually(t, func() bool { return !p.Has("broken") }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !p.Has("idle") }, time.Second, 5*time.Millisecond)
	assert.True(t, handles["idle"].closed.Load())
	assert.True(t, handles["broken"].closed.Load())
}
