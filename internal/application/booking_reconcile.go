package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// reconcile は座席の状態を予約レコードに合わせる
// 予約レコードを正とし、呼び出し側は座席ロックとトランザクションを保持している必要がある
// 戻り値は座席の有効な予約（存在しない場合は nil）
func (s *BookingService) reconcile(ctx context.Context, tx transaction.Tx, st *seat.Seat) (*booking.Booking, error) {
	active, err := s.bookingRepo.FindActive(ctx, tx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("予約取得に失敗: %w", apperr.Internal(err))
	}

	var (
		changed bool
		delta   int
		step    string
	)
	switch {
	case active != nil && st.Status != seat.StatusBooked:
		// 予約後の座席更新が失敗していた
		if st.IsHeld() {
			if err := st.Expire(); err != nil {
				return nil, err
			}
		}
		if err := st.Book(active.ID, false); err != nil {
			return nil, err
		}
		changed, delta, step = true, -1, "reconcile_book"
	case active == nil && st.Status == seat.StatusBooked:
		// キャンセル後の座席解放が失敗していた
		if err := st.CancelBooking(true); err != nil {
			return nil, err
		}
		changed, delta, step = true, 1, "reconcile_release"
	case active == nil && st.IsHeld() && !s.holds.Live(st.ID):
		// 期限タイマーを失った、または期限切れ処理が座席ロックを取れなかった一時保持
		if err := st.Expire(); err != nil {
			return nil, err
		}
		s.holds.Cancel(st.ID)
		changed, step = true, "reconcile_hold"
	}
	if !changed {
		return active, nil
	}

	if err := s.seatRepo.Save(ctx, tx, st); err != nil {
		return nil, fmt.Errorf("座席更新に失敗: %w", apperr.Internal(err))
	}
	if delta != 0 {
		if err := s.screeningRepo.AdjustAvailableSeats(ctx, tx, st.ScreeningID, delta); err != nil {
			// 空席数の不整合で座席操作を止めない
			logger.Warn("照合時の空席数更新に失敗",
				zap.String("screening_id", st.ScreeningID),
				zap.Int("delta", delta),
				zap.Error(err),
			)
			s.metrics.IncInconsistency("reconcile_counter")
		}
		s.invalidate(ctx, st.ScreeningID)
	}
	logger.Info("座席状態を照合",
		zap.String("step", step),
		zap.String("seat_id", st.ID),
		zap.String("status", string(st.Status)),
	)
	return active, nil
}

// reconcileSeat は座席ロックを取得して1席を照合する。状態が変わった場合は true
func (s *BookingService) reconcileSeat(ctx context.Context, seatID string) (bool, error) {
	var changed bool
	err := s.withSeatLock(ctx, seatID, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx transaction.Tx) error {
			st, err := s.seatRepo.GetForUpdate(ctx, tx, seatID)
			if err != nil {
				return err
			}
			before := st.Status
			if _, err := s.reconcile(ctx, tx, st); err != nil {
				return err
			}
			changed = st.Status != before
			return nil
		})
	})
	return changed, err
}

// onHoldExpired は一時保持の期限タイマーから呼ばれる
func (s *BookingService) onHoldExpired(h worker.Hold) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.opts.SeatLockTimeout)
	defer cancel()

	var expired bool
	err := s.withSeatLock(ctx, h.SeatID, func(ctx context.Context) error {
		// 取消・張り直し済みの保持は何もしない
		if !s.holds.Claim(h) {
			return nil
		}
		s.recordHolds()
		return s.inTx(ctx, func(tx transaction.Tx) error {
			st, err := s.seatRepo.GetForUpdate(ctx, tx, h.SeatID)
			if err != nil {
				return err
			}
			if !st.IsHeld() {
				return nil
			}
			if err := st.Expire(); err != nil {
				return err
			}
			if err := s.seatRepo.Save(ctx, tx, st); err != nil {
				return err
			}
			expired = true
			return nil
		})
	})
	if err != nil {
		// 座席は次回アクセス時か定期照合で解放される
		logger.Warn("一時保持の期限切れ処理に失敗",
			zap.String("seat_id", h.SeatID),
			zap.String("kind", string(h.Kind)),
			zap.Error(err),
		)
		return
	}
	if expired {
		s.metrics.ObserveBooking("expire", "success")
		logger.Info("一時保持の期限切れ",
			zap.String("seat_id", h.SeatID),
			zap.String("kind", string(h.Kind)),
		)
	}
}

// ReconcileHolds は期限タイマーを失った一時保持中の座席を解放する
// プロセス再起動後やタイマー停止後に残った座席が対象。解放した座席数を返す
func (s *BookingService) ReconcileHolds(ctx context.Context) (int, error) {
	seats, err := s.seatRepo.GetByStatus(ctx, seat.StatusReserved, seat.StatusLocked)
	if err != nil {
		return 0, fmt.Errorf("一時保持中の座席取得に失敗: %w", apperr.Internal(err))
	}

	count := 0
	for _, st := range seats {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if s.holds.Live(st.ID) {
			continue
		}
		changed, err := s.reconcileSeat(ctx, st.ID)
		if err != nil {
			logger.Warn("座席の照合に失敗", zap.String("seat_id", st.ID), zap.Error(err))
			continue
		}
		if changed {
			count++
		}
	}
	s.recordHolds()
	return count, nil
}

// CancelExpiredBookings は保留期限を過ぎた予約をキャンセルする。キャンセルした件数を返す
func (s *BookingService) CancelExpiredBookings(ctx context.Context) (int, error) {
	expired, err := s.bookingRepo.FindExpiredPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("期限切れ予約の取得に失敗: %w", apperr.Internal(err))
	}

	count := 0
	for _, b := range expired {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, err := s.CancelBooking(ctx, b.ID); err != nil {
			// 取得後に確定・キャンセルされた予約
			if errors.Is(err, apperr.ErrInvalidState) {
				continue
			}
			logger.Warn("期限切れ予約のキャンセルに失敗", zap.String("booking_id", b.ID), zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}
