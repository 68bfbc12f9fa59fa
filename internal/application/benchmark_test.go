package application

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// TestBenchmark_FullScreening は満席になるまでの全座席同時予約を計測する
// 26列 × 40席の上映回に対し、座席ごとに2人ずつ同時に予約を試みる
func TestBenchmark_FullScreening(t *testing.T) {
	if testing.Short() {
		t.Skip("大規模ベンチマークテストはshortモードではスキップ")
	}

	env := setupTestEnv(t)
	pool := worker.NewPool(50, 256, worker.PolicyWait)
	t.Cleanup(pool.Stop)
	async := NewAsyncBookingService(env.booking, pool, env.metrics)

	sc, seats := env.seedScreening(t, 26, 40)
	require.Len(t, seats, 1040)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		success atomic.Int32
		failed  atomic.Int32
	)
	start := time.Now()
	for i, st := range seats {
		for c := 0; c < 2; c++ {
			wg.Add(1)
			go func(i, c int, st *seat.Seat) {
				defer wg.Done()
				email := fmt.Sprintf("user%d-%d@example.com", i, c)
				if _, err := async.CreateBooking(ctx, bookingInput(sc, st, email)); err == nil {
					success.Add(1)
				} else {
					failed.Add(1)
				}
			}(i, c, st)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	t.Logf("予約試行: %d件, 成功: %d件, 失敗: %d件, 所要時間: %v (%.0f req/s)",
		len(seats)*2, success.Load(), failed.Load(), elapsed, float64(len(seats)*2)/elapsed.Seconds())

	assert.Equal(t, int32(len(seats)), success.Load())
	assert.Equal(t, int32(len(seats)), failed.Load())
	assert.Equal(t, 0, env.availableCount(t, sc.ID))
	assert.Zero(t, env.locks.Len(), "使用後のロックエントリは解放される")
}
