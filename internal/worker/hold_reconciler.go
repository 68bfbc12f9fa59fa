package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

const defaultSweepInterval = 30 * time.Second

// SeatReconciler は座席状態と予約の定期照合を行うインターフェース
type SeatReconciler interface {
	ReconcileHolds(ctx context.Context) (int, error)
	CancelExpiredBookings(ctx context.Context) (int, error)
}

// HoldReconciler は期限タイマーを失った一時保持と期限切れ予約を定期的に解放するワーカー
type HoldReconciler struct {
	reconciler SeatReconciler
	interval   time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	stopOnce   sync.Once
}

// NewHoldReconciler は新しい照合ワーカーを作成
func NewHoldReconciler(r SeatReconciler, interval time.Duration) *HoldReconciler {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &HoldReconciler{
		reconciler: r,
		interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start は照合ワーカーを開始。起動直後に1回照合してから interval ごとに繰り返す
func (r *HoldReconciler) Start(ctx context.Context) {
	logger.Info("座席照合ワーカー開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info("座席照合ワーカー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("座席照合ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// Stop は照合ワーカーを停止し、実行中の照合の完了を待つ
func (r *HoldReconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *HoldReconciler) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("座席照合開始")

	released, err := r.reconciler.ReconcileHolds(ctx)
	if err != nil {
		log.Error("一時保持の照合失敗", zap.Error(err))
	} else if released > 0 {
		log.Info("期限タイマーを失った一時保持を解放", zap.Int("count", released))
	}

	cancelled, err := r.reconciler.CancelExpiredBookings(ctx)
	if err != nil {
		log.Error("期限切れ予約のキャンセル失敗", zap.Error(err))
		return
	}
	if cancelled > 0 {
		log.Info("期限切れ予約をキャンセル", zap.Int("count", cancelled))
	} else {
		log.Debug("期限切れ予約なし")
	}
}
