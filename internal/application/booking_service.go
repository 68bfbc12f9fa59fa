package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/dedup"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/seatlock"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// BookingOptions は予約処理の時間設定
type BookingOptions struct {
	ReservationTTL  time.Duration
	LockHoldTTL     time.Duration
	PendingTTL      time.Duration
	SeatLockTimeout time.Duration
}

// DefaultBookingOptions は既定の時間設定を返す
func DefaultBookingOptions() BookingOptions {
	return BookingOptions{
		ReservationTTL:  5 * time.Minute,
		LockHoldTTL:     30 * time.Second,
		PendingTTL:      booking.DefaultPendingTTL,
		SeatLockTimeout: 5 * time.Second,
	}
}

// BookingDeps は BookingService の依存
type BookingDeps struct {
	TxManager  transaction.Manager
	Seats      seat.Repository
	Bookings   booking.Repository
	Screenings screening.Repository
	Movies     movie.Repository
	Locks      *seatlock.Registry
	Holds      *worker.HoldScheduler
	Cache      AvailabilityCache // 任意
	Metrics    *metrics.Metrics  // 任意
	Options    BookingOptions
}

// BookingService は座席の仮押さえから予約確定・キャンセルまでの並行制御を行う
//
// 座席の状態を変更する操作は全てその座席のロックを1回だけ取得した状態で実行される。
// 同じ座席への操作はロック取得順に直列化され、異なる座席への操作は並行に進む。
type BookingService struct {
	txManager     transaction.Manager
	seatRepo      seat.Repository
	bookingRepo   booking.Repository
	screeningRepo screening.Repository
	movieRepo     movie.Repository
	locks         *seatlock.Registry
	holds         *worker.HoldScheduler
	cache         AvailabilityCache
	metrics       *metrics.Metrics
	opts          BookingOptions
	inflight      dedup.Group[*BookingResult]
}

// NewBookingService は新しい BookingService を作成する
func NewBookingService(deps BookingDeps) *BookingService {
	opts := deps.Options
	def := DefaultBookingOptions()
	if opts.ReservationTTL <= 0 {
		opts.ReservationTTL = def.ReservationTTL
	}
	if opts.LockHoldTTL <= 0 {
		opts.LockHoldTTL = def.LockHoldTTL
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = def.PendingTTL
	}
	if opts.SeatLockTimeout <= 0 {
		opts.SeatLockTimeout = def.SeatLockTimeout
	}
	return &BookingService{
		txManager:     deps.TxManager,
		seatRepo:      deps.Seats,
		bookingRepo:   deps.Bookings,
		screeningRepo: deps.Screenings,
		movieRepo:     deps.Movies,
		locks:         deps.Locks,
		holds:         deps.Holds,
		cache:         deps.Cache,
		metrics:       deps.Metrics,
		opts:          opts,
	}
}

// CreateBookingInput は予約作成の入力
type CreateBookingInput struct {
	ScreeningID   string
	SeatID        string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// BookingResult は予約操作の結果
// Warnings は予約自体は成立したが座席・空席数の更新に失敗した内容
type BookingResult struct {
	Booking  *booking.Booking
	Replayed bool
	Warnings []string
}

func (r *BookingResult) clone() *BookingResult {
	b := *r.Booking
	return &BookingResult{
		Booking:  &b,
		Replayed: r.Replayed,
		Warnings: append([]string(nil), r.Warnings...),
	}
}

// LockResult は編集ロックの結果
type LockResult struct {
	SeatID    string
	Token     string
	ExpiresAt time.Time
}

// ReserveSeat は座席を仮押さえする
// 座席が空席でない、または保留中の予約がある場合は false を返す
func (s *BookingService) ReserveSeat(ctx context.Context, screeningID, seatID string) (bool, error) {
	var reserved bool
	err := s.withSeatLock(ctx, seatID, func(ctx context.Context) error {
		if _, err := s.screeningRepo.GetByID(ctx, screeningID); err != nil {
			return fmt.Errorf("上映回取得に失敗: %w", apperr.Internal(err))
		}

		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", apperr.Internal(err))
		}
		defer tx.Rollback()

		st, err := s.loadSeat(ctx, tx, screeningID, seatID)
		if err != nil {
			return err
		}
		active, err := s.reconcile(ctx, tx, st)
		if err != nil {
			return err
		}
		if active != nil || !st.IsAvailable() {
			return s.commit(tx)
		}

		if err := st.Reserve(); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("座席更新に失敗: %w", apperr.Internal(err))
		}
		if err := s.commit(tx); err != nil {
			return err
		}
		s.arm(st.ID, worker.HoldReservation, s.opts.ReservationTTL)
		reserved = true
		return nil
	})
	s.observe("reserve", reserved, err)
	return reserved, err
}

// ReleaseSeatReservation は仮押さえを解放する
// 座席が仮押さえ中でない場合は false を返す
func (s *BookingService) ReleaseSeatReservation(ctx context.Context, screeningID, seatID string) (bool, error) {
	var released bool
	err := s.withSeatLock(ctx, seatID, func(ctx context.Context) error {
		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", apperr.Internal(err))
		}
		defer tx.Rollback()

		st, err := s.loadSeat(ctx, tx, screeningID, seatID)
		if err != nil {
			return err
		}
		if st.Status != seat.StatusReserved {
			return nil
		}
		if err := st.ReleaseReservation(); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("座席更新に失敗: %w", apperr.Internal(err))
		}
		if err := s.commit(tx); err != nil {
			return err
		}
		s.cancelHold(st.ID)
		released = true
		return nil
	})
	s.observe("release", released, err)
	return released, err
}

// LockSeat は座席を編集ロックし、解除用トークンを返す
// ロックは LockHoldTTL 経過後に自動で解除される
func (s *BookingService) LockSeat(ctx context.Context, seatID string) (*LockResult, error) {
	var result *LockResult
	err := s.withSeatLock(ctx, seatID, func(ctx context.Context) error {
		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", apperr.Internal(err))
		}
		defer tx.Rollback()

		st, err := s.seatRepo.GetForUpdate(ctx, tx, seatID)
		if err != nil {
			return fmt.Errorf("座席取得に失敗: %w", apperr.Internal(err))
		}
		if _, err := s.reconcile(ctx, tx, st); err != nil {
			return err
		}

		token := uuid.NewString()
		if err := st.Lock(token); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("座席更新に失敗: %w", apperr.Internal(err))
		}
		if err := s.commit(tx); err != nil {
			return err
		}
		h := s.arm(st.ID, worker.HoldLock, s.opts.LockHoldTTL)
		result = &LockResult{SeatID: st.ID, Token: token, ExpiresAt: h.ExpiresAt}
		return nil
	})
	s.observe("lock", result != nil, err)
	return result, err
}

// UnlockSeat は編集ロックを解除する。トークンはロック時に返されたものである必要がある
func (s *BookingService) UnlockSeat(ctx context.Context, seatID, token string) error {
	err := s.withSeatLock(ctx, seatID, func(ctx context.Context) error {
		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", apperr.Internal(err))
		}
		defer tx.Rollback()

		st, err := s.seatRepo.GetForUpdate(ctx, tx, seatID)
		if err != nil {
			return fmt.Errorf("座席取得に失敗: %w", apperr.Internal(err))
		}
		if err := st.Unlock(token); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return fmt.Errorf("座席更新に失敗: %w", apperr.Internal(err))
		}
		if err := s.commit(tx); err != nil {
			return err
		}
		s.cancelHold(st.ID)
		return nil
	})
	s.observe("unlock", err == nil, err)
	return err
}

// CreateBooking は座席の保留中予約を作成する
//
// 同じ上映回・座席・メールアドレスで同時に届いたリクエストは1回の実行にまとめられ、
// 全員が同じ結果を受け取る。同じ予約者の保留中予約が既にあればそれを返す（Replayed）。
// 別の予約者の保留中予約がある場合は booking.ErrSeatAlreadyPending を返す。
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*BookingResult, error) {
	if err := validateBookingInput(input); err != nil {
		return nil, err
	}

	key := dedup.Key(input.ScreeningID, input.SeatID, input.CustomerEmail)
	res, shared, err := s.inflight.Do(ctx, key, func(ctx context.Context) (*BookingResult, error) {
		return s.createBooking(ctx, input)
	})
	if shared {
		s.metrics.IncDedupShared()
	}
	s.observe("create", err == nil, err)
	if err != nil {
		return nil, err
	}
	return res.clone(), nil
}

func validateBookingInput(input CreateBookingInput) error {
	switch {
	case input.ScreeningID == "":
		return booking.ErrScreeningIDRequired
	case input.SeatID == "":
		return booking.ErrSeatIDRequired
	case input.CustomerName == "":
		return booking.ErrCustomerNameRequired
	case booking.NormalizeEmail(input.CustomerEmail) == "":
		return booking.ErrCustomerEmailRequired
	}
	return nil
}

func (s *BookingService) createBooking(ctx context.Context, input CreateBookingInput) (*BookingResult, error) {
	var result *BookingResult
	err := s.withSeatLock(ctx, input.SeatID, func(ctx context.Context) error {
		sc, err := s.screeningRepo.GetByID(ctx, input.ScreeningID)
		if err != nil {
			return fmt.Errorf("上映回取得に失敗: %w", apperr.Internal(err))
		}
		mv, err := s.movieRepo.GetByID(ctx, sc.MovieID)
		if err != nil {
			return fmt.Errorf("作品取得に失敗: %w", apperr.Internal(err))
		}

		tx, err := s.txManager.Begin(ctx)
		if err != nil {
			return fmt.Errorf("トランザクション開始に失敗: %w", apperr.Internal(err))
		}
		defer tx.Rollback()

		st, err := s.loadSeat(ctx, tx, input.ScreeningID, input.SeatID)
		if err != nil {
			return err
		}
		active, err := s.reconcile(ctx, tx, st)
		if err != nil {
			return err
		}

		if active != nil && active.IsPending() {
			if !active.BelongsTo(input.CustomerEmail) {
				return booking.ErrSeatAlreadyPending
			}
			if err := s.commit(tx); err != nil {
				return err
			}
			result = &BookingResult{Booking: active, Replayed: true}
			return nil
		}

		// 予約レコードを作る前に遷移のガードを確認する
		if _, err := seat.Transition(st.Status, seat.TransitionContext{HasActiveBooking: active != nil}, seat.ActionBook); err != nil {
			return err
		}

		b := booking.NewBooking(input.ScreeningID, input.SeatID, booking.Customer{
			Name:  input.CustomerName,
			Email: input.CustomerEmail,
			Phone: input.CustomerPhone,
		}, mv.TicketPrice, s.opts.PendingTTL)
		if err := b.Validate(); err != nil {
			return err
		}
		if err := s.bookingRepo.Create(ctx, tx, b); err != nil {
			return fmt.Errorf("予約作成に失敗: %w", apperr.Internal(err))
		}
		if err := s.commit(tx); err != nil {
			return err
		}

		// ここから先の失敗では予約を巻き戻さない
		s.cancelHold(st.ID)
		warnings := s.markBooked(ctx, st.ID, b)
		s.invalidate(ctx, input.ScreeningID)

		logger.Info("予約作成",
			zap.String("booking_id", b.ID),
			zap.String("screening_id", b.ScreeningID),
			zap.String("seat_id", b.SeatID),
		)
		result = &BookingResult{Booking: b, Warnings: warnings}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// markBooked は永続化済みの予約に合わせて座席と空席数を更新する
func (s *BookingService) markBooked(ctx context.Context, seatID string, b *booking.Booking) []string {
	err := s.inTx(ctx, func(tx transaction.Tx) error {
		st, err := s.seatRepo.GetForUpdate(ctx, tx, seatID)
		if err != nil {
			return err
		}
		if st.IsHeld() {
			if err := st.Expire(); err != nil {
				return err
			}
		}
		if err := st.Book(b.ID, false); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return err
		}
		return s.screeningRepo.AdjustAvailableSeats(ctx, tx, b.ScreeningID, -1)
	})
	if err != nil {
		return s.inconsistency("seat_book", "予約後の座席・空席数更新に失敗", b, err)
	}
	return nil
}

// ConfirmBooking は保留中の予約を確定する
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("予約取得に失敗: %w", apperr.Internal(err))
	}

	var confirmed *booking.Booking
	err = s.withSeatLock(ctx, current.SeatID, func(ctx context.Context) error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("予約取得に失敗: %w", apperr.Internal(err))
		}
		if err := b.Confirm(); err != nil {
			return err
		}
		if err := s.inTx(ctx, func(tx transaction.Tx) error {
			return s.bookingRepo.Save(ctx, tx, b)
		}); err != nil {
			return fmt.Errorf("予約確定に失敗: %w", apperr.Internal(err))
		}
		s.cancelHold(b.SeatID)
		confirmed = b
		return nil
	})
	s.observe("confirm", confirmed != nil, err)
	if err != nil {
		return nil, err
	}
	logger.Info("予約確定", zap.String("booking_id", confirmed.ID))
	return confirmed, nil
}

// CancelBooking は保留中の予約をキャンセルし、座席を解放する
// 予約のキャンセルを先に永続化し、座席・空席数の更新は失敗しても警告として返す
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (*BookingResult, error) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("予約取得に失敗: %w", apperr.Internal(err))
	}

	var result *BookingResult
	err = s.withSeatLock(ctx, current.SeatID, func(ctx context.Context) error {
		b, err := s.bookingRepo.GetByID(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("予約取得に失敗: %w", apperr.Internal(err))
		}
		if err := b.Cancel(); err != nil {
			return err
		}
		if err := s.inTx(ctx, func(tx transaction.Tx) error {
			return s.bookingRepo.Save(ctx, tx, b)
		}); err != nil {
			return fmt.Errorf("予約キャンセルに失敗: %w", apperr.Internal(err))
		}

		warnings := s.releaseBookedSeat(ctx, b)
		s.invalidate(ctx, b.ScreeningID)
		result = &BookingResult{Booking: b, Warnings: warnings}
		return nil
	})
	s.observe("cancel", result != nil, err)
	if err != nil {
		return nil, err
	}
	logger.Info("予約キャンセル", zap.String("booking_id", result.Booking.ID))
	return result, nil
}

// releaseBookedSeat はキャンセル済み予約が占有していた座席を解放し、空席数を戻す
func (s *BookingService) releaseBookedSeat(ctx context.Context, b *booking.Booking) []string {
	err := s.inTx(ctx, func(tx transaction.Tx) error {
		st, err := s.seatRepo.GetForUpdate(ctx, tx, b.SeatID)
		if err != nil {
			return err
		}
		if st.Status != seat.StatusBooked || st.CurrentBookingID == nil || *st.CurrentBookingID != b.ID {
			// 予約後の座席更新が失敗していた場合は戻すものがない
			return nil
		}
		if err := st.CancelBooking(true); err != nil {
			return err
		}
		if err := s.seatRepo.Save(ctx, tx, st); err != nil {
			return err
		}
		return s.screeningRepo.AdjustAvailableSeats(ctx, tx, b.ScreeningID, 1)
	})
	if err != nil {
		return s.inconsistency("seat_release", "キャンセル後の座席・空席数更新に失敗", b, err)
	}
	return nil
}

// GetAvailableSeats は上映回の空席一覧を返す
// 期限タイマーを失った一時保持は先に解放する
func (s *BookingService) GetAvailableSeats(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	if _, err := s.screeningRepo.GetByID(ctx, screeningID); err != nil {
		return nil, fmt.Errorf("上映回取得に失敗: %w", apperr.Internal(err))
	}
	seats, err := s.seatRepo.GetByScreeningID(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", apperr.Internal(err))
	}
	for _, st := range seats {
		if st.IsHeld() && !s.holds.Live(st.ID) {
			if _, err := s.reconcileSeat(ctx, st.ID); err != nil {
				logger.Warn("座席の照合に失敗", zap.String("seat_id", st.ID), zap.Error(err))
			}
		}
	}
	available, err := s.seatRepo.GetAvailableByScreeningID(ctx, screeningID)
	if err != nil {
		return nil, fmt.Errorf("空席取得に失敗: %w", apperr.Internal(err))
	}
	return available, nil
}

// GetBooking は予約を取得する
func (s *BookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return s.bookingRepo.GetByID(ctx, id)
}

// GetCustomerBookings は予約者の予約一覧を新しい順に返す
func (s *BookingService) GetCustomerBookings(ctx context.Context, email string) ([]*booking.Booking, error) {
	if booking.NormalizeEmail(email) == "" {
		return nil, booking.ErrCustomerEmailRequired
	}
	return s.bookingRepo.FindByCustomerEmail(ctx, email)
}

// ListBookings は予約一覧を返す
func (s *BookingService) ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookingRepo.List(ctx, limit, offset)
}

// withSeatLock は座席ロックを取得して fn を実行する
// 中断できるのはロック待機中のみで、取得後の fn は呼び出し元のキャンセルに影響されない
func (s *BookingService) withSeatLock(ctx context.Context, seatID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	g, err := s.locks.Acquire(ctx, seatID, s.opts.SeatLockTimeout)
	if err != nil {
		s.metrics.ObserveLockWait(lockStatus(err), time.Since(start))
		logger.Debug("座席ロック取得に失敗", zap.String("seat_id", seatID), zap.Error(err))
		return err
	}
	s.metrics.ObserveLockWait("acquired", time.Since(start))
	s.metrics.SetLockEntries(s.locks.Len())
	defer func() {
		_ = g.Release()
		s.metrics.SetLockEntries(s.locks.Len())
	}()
	return fn(g.Bind(context.WithoutCancel(ctx)))
}

func lockStatus(err error) string {
	switch {
	case errors.Is(err, apperr.ErrLockTimeout):
		return "timeout"
	case errors.Is(err, apperr.ErrOperationInterrupted):
		return "interrupted"
	default:
		return "error"
	}
}

// loadSeat はトランザクション内で座席を取得し、上映回に属するかを確認する
func (s *BookingService) loadSeat(ctx context.Context, tx transaction.Tx, screeningID, seatID string) (*seat.Seat, error) {
	st, err := s.seatRepo.GetForUpdate(ctx, tx, seatID)
	if err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", apperr.Internal(err))
	}
	if st.ScreeningID != screeningID {
		return nil, fmt.Errorf("座席 %s は上映回 %s にありません: %w", seatID, screeningID, seat.ErrSeatNotFound)
	}
	return st, nil
}

func (s *BookingService) inTx(ctx context.Context, fn func(tx transaction.Tx) error) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *BookingService) commit(tx transaction.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", apperr.Internal(err))
	}
	return nil
}

func (s *BookingService) arm(seatID string, kind worker.HoldKind, ttl time.Duration) worker.Hold {
	h := s.holds.Arm(seatID, kind, ttl, s.onHoldExpired)
	s.recordHolds()
	return h
}

func (s *BookingService) cancelHold(seatID string) {
	if s.holds.Cancel(seatID) {
		s.recordHolds()
	}
}

func (s *BookingService) recordHolds() {
	counts := s.holds.Len()
	s.metrics.SetActiveHolds(map[string]int{
		string(worker.HoldReservation): counts[worker.HoldReservation],
		string(worker.HoldLock):        counts[worker.HoldLock],
	})
}

func (s *BookingService) invalidate(ctx context.Context, screeningID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, screeningID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("screening_id", screeningID), zap.Error(err))
	}
}

func (s *BookingService) inconsistency(step, msg string, b *booking.Booking, err error) []string {
	logger.Warn(msg,
		zap.String("step", step),
		zap.String("booking_id", b.ID),
		zap.String("seat_id", b.SeatID),
		zap.String("screening_id", b.ScreeningID),
		zap.Error(err),
	)
	s.metrics.IncInconsistency(step)
	return []string{fmt.Sprintf("%s: %v", msg, err)}
}

func (s *BookingService) observe(operation string, ok bool, err error) {
	status := "success"
	switch {
	case err != nil:
		status = errorStatus(err)
	case !ok:
		status = "rejected"
	}
	s.metrics.ObserveBooking(operation, status)
}

func errorStatus(err error) string {
	switch apperr.Kind(err) {
	case apperr.ErrNotFound:
		return "not_found"
	case apperr.ErrInvalidTransition:
		return "invalid_transition"
	case apperr.ErrInvalidState:
		return "invalid_state"
	case apperr.ErrSeatAlreadyPending:
		return "seat_already_pending"
	case apperr.ErrLockTimeout:
		return "lock_timeout"
	case apperr.ErrOperationInterrupted:
		return "interrupted"
	case apperr.ErrConflict:
		return "conflict"
	case apperr.ErrInvalidInput:
		return "invalid_input"
	default:
		return "error"
	}
}
