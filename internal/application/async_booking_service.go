package application

import (
	"context"
	"errors"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// AsyncBookingService は BookingService の操作をワーカープール上で実行する
//
// *Async メソッドは投入直後に Future を返し、それ以外は結果を待って返す。
// プールが飽和している場合は worker.ErrPoolSaturated を返す。
type AsyncBookingService struct {
	svc     *BookingService
	pool    *worker.Pool
	metrics *metrics.Metrics
}

func NewAsyncBookingService(svc *BookingService, pool *worker.Pool, m *metrics.Metrics) *AsyncBookingService {
	return &AsyncBookingService{svc: svc, pool: pool, metrics: m}
}

func submit[T any](ctx context.Context, a *AsyncBookingService, fn func(ctx context.Context) (T, error)) (*worker.Future[T], error) {
	f, err := worker.Go(ctx, a.pool, fn)
	if err != nil {
		if errors.Is(err, worker.ErrPoolSaturated) {
			a.metrics.IncPoolRejected()
		}
		return nil, err
	}
	return f, nil
}

func await[T any](ctx context.Context, a *AsyncBookingService, fn func(ctx context.Context) (T, error)) (T, error) {
	f, err := submit(ctx, a, fn)
	if err != nil {
		var zero T
		return zero, err
	}
	return f.Await(ctx)
}

func (a *AsyncBookingService) ReserveSeatAsync(ctx context.Context, screeningID, seatID string) (*worker.Future[bool], error) {
	return submit(ctx, a, func(ctx context.Context) (bool, error) {
		return a.svc.ReserveSeat(ctx, screeningID, seatID)
	})
}

func (a *AsyncBookingService) CreateBookingAsync(ctx context.Context, input CreateBookingInput) (*worker.Future[*BookingResult], error) {
	return submit(ctx, a, func(ctx context.Context) (*BookingResult, error) {
		return a.svc.CreateBooking(ctx, input)
	})
}

func (a *AsyncBookingService) ReserveSeat(ctx context.Context, screeningID, seatID string) (bool, error) {
	return await(ctx, a, func(ctx context.Context) (bool, error) {
		return a.svc.ReserveSeat(ctx, screeningID, seatID)
	})
}

func (a *AsyncBookingService) ReleaseSeatReservation(ctx context.Context, screeningID, seatID string) (bool, error) {
	return await(ctx, a, func(ctx context.Context) (bool, error) {
		return a.svc.ReleaseSeatReservation(ctx, screeningID, seatID)
	})
}

func (a *AsyncBookingService) LockSeat(ctx context.Context, seatID string) (*LockResult, error) {
	return await(ctx, a, func(ctx context.Context) (*LockResult, error) {
		return a.svc.LockSeat(ctx, seatID)
	})
}

func (a *AsyncBookingService) UnlockSeat(ctx context.Context, seatID, token string) error {
	_, err := await(ctx, a, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.svc.UnlockSeat(ctx, seatID, token)
	})
	return err
}

func (a *AsyncBookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*BookingResult, error) {
	return await(ctx, a, func(ctx context.Context) (*BookingResult, error) {
		return a.svc.CreateBooking(ctx, input)
	})
}

func (a *AsyncBookingService) ConfirmBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return await(ctx, a, func(ctx context.Context) (*booking.Booking, error) {
		return a.svc.ConfirmBooking(ctx, bookingID)
	})
}

func (a *AsyncBookingService) CancelBooking(ctx context.Context, bookingID string) (*BookingResult, error) {
	return await(ctx, a, func(ctx context.Context) (*BookingResult, error) {
		return a.svc.CancelBooking(ctx, bookingID)
	})
}

func (a *AsyncBookingService) GetAvailableSeats(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	return await(ctx, a, func(ctx context.Context) ([]*seat.Seat, error) {
		return a.svc.GetAvailableSeats(ctx, screeningID)
	})
}

// 参照系はプールを経由しない

func (a *AsyncBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	return a.svc.GetBooking(ctx, id)
}

func (a *AsyncBookingService) GetCustomerBookings(ctx context.Context, email string) ([]*booking.Booking, error) {
	return a.svc.GetCustomerBookings(ctx, email)
}

func (a *AsyncBookingService) ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	return a.svc.ListBookings(ctx, limit, offset)
}
