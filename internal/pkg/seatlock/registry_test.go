package seatlock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNew_InvalidShardCount(t *testing.T) {
	for _, n := range []int{0, -1, 3, 1 << 17} {
		_, err := New(WithShardCount(n))
		assert.ErrorIs(t, err, ErrInvalidShardCount, "shardCount=%d", n)
	}
}

func TestAcquireAndRelease(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Acquire(context.Background(), "seat-1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "seat-1", g.seatID)
	assert.True(t, g.Held())
	assert.Equal(t, 1, r.Len())

	require.NoError(t, g.Release())
	assert.False(t, g.Held())
	assert.ErrorIs(t, g.Release(), ErrNotHeld)
	assert.Equal(t, 0, r.Len(), "保持者がいなくなったエントリは破棄される")
}

func TestAcquire_Timeout(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Acquire(context.Background(), "seat-1", time.Second)
	require.NoError(t, err)
	defer g.Release()

	start := time.Now()
	_, err = r.Acquire(context.Background(), "seat-1", 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, apperr.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, r.Len(), "タイムアウトした待機者は参照を残さない")
}

func TestAcquire_ContextDeadlineIsTimeout(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Acquire(context.Background(), "seat-1", 0)
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = r.Acquire(ctx, "seat-1", 0)
	assert.ErrorIs(t, err, apperr.ErrLockTimeout)
}

func TestAcquire_Interrupted(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Acquire(context.Background(), "seat-1", 0)
	require.NoError(t, err)
	defer g.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Acquire(ctx, "seat-1", 0)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, apperr.ErrOperationInterrupted)
	case <-time.After(time.Second):
		t.Fatal("キャンセル後も待機が終わらない")
	}
}

func TestAcquire_AlreadyCancelled(t *testing.T) {
	r := newRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Acquire(ctx, "seat-1", time.Second)

	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, 0, r.Len())
}

func TestAcquire_DifferentSeatsDoNotBlock(t *testing.T) {
	r := newRegistry(t)

	g1, err := r.Acquire(context.Background(), "seat-1", time.Second)
	require.NoError(t, err)
	defer g1.Release()

	start := time.Now()
	g2, err := r.Acquire(context.Background(), "seat-2", time.Second)
	require.NoError(t, err)
	defer g2.Release()

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 2, r.Len())
}

func TestRelease_UnblocksWaiter(t *testing.T) {
	r := newRegistry(t)

	g, err := r.Acquire(context.Background(), "seat-1", 0)
	require.NoError(t, err)

	acquired := make(chan time.Time, 1)
	go func() {
		g2, err := r.Acquire(context.Background(), "seat-1", 2*time.Second)
		if err == nil {
			acquired <- time.Now()
			_ = g2.Release()
		}
	}()

	time.Sleep(30 * time.Millisecond)
	releasedAt := time.Now()
	require.NoError(t, g.Release())

	select {
	case at := <-acquired:
		assert.Less(t, at.Sub(releasedAt), 100*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("解放後に待機者がロックを取得できない")
	}
}

func TestAcquire_Reentrant(t *testing.T) {
	r := newRegistry(t)

	outer, err := r.Acquire(context.Background(), "seat-1", time.Second)
	require.NoError(t, err)
	ctx := outer.Bind(context.Background())

	inner, err := r.Acquire(ctx, "seat-1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, inner.Reentrant())
	require.NoError(t, inner.Release())

	// 内側の解放では外側のロックは解放されない
	_, err = r.Acquire(context.Background(), "seat-1", 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, outer.Release())

	// 解放済みの Guard を束縛した ctx は再入扱いされない
	g, err := r.Acquire(ctx, "seat-1", time.Second)
	require.NoError(t, err)
	assert.False(t, g.Reentrant())
	require.NoError(t, g.Release())
}

func TestClose_WakesWaiters(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	g, err := r.Acquire(context.Background(), "seat-1", 0)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Acquire(context.Background(), "seat-1", 0)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, r.Close())
	assert.ErrorIs(t, <-errCh, ErrClosed)
	assert.ErrorIs(t, r.Close(), ErrClosed)

	_, err = r.Acquire(context.Background(), "seat-2", 0)
	assert.ErrorIs(t, err, ErrClosed)
	require.NoError(t, g.Release())
}

func TestConcurrentAcquire_MutualExclusion(t *testing.T) {
	r := newRegistry(t)

	const workers = 50
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
		counter int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := r.Acquire(context.Background(), "seat-1", 5*time.Second)
			if err != nil {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			counter++
			inside.Add(-1)
			_ = g.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, workers, counter)
	assert.Equal(t, 0, r.Len())
}
