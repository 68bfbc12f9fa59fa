package handler

import (
	"context"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
)

// CatalogServiceInterface は作品・上映回サービスのインターフェース
type CatalogServiceInterface interface {
	CreateMovie(ctx context.Context, input application.CreateMovieInput) (*movie.Movie, error)
	GetMovie(ctx context.Context, id string) (*movie.Movie, error)
	ListMovies(ctx context.Context, limit, offset int) ([]*movie.Movie, error)
	UpdateMovie(ctx context.Context, input application.UpdateMovieInput) (*movie.Movie, error)
	DeleteMovie(ctx context.Context, id string) error
	CreateScreening(ctx context.Context, input application.CreateScreeningInput) (*screening.Screening, error)
	GetScreening(ctx context.Context, id string) (*screening.Screening, error)
	ListScreeningsByMovie(ctx context.Context, movieID string) ([]*screening.Screening, error)
}

// SeatServiceInterface は座席参照サービスのインターフェース
type SeatServiceInterface interface {
	GetSeat(ctx context.Context, id string) (*seat.Seat, error)
	GetSeatsByScreening(ctx context.Context, screeningID string) ([]*seat.Seat, error)
	CountAvailableSeats(ctx context.Context, screeningID string) (int, error)
}

// BookingServiceInterface は座席予約サービスのインターフェース
// application.BookingService と application.AsyncBookingService が満たす
type BookingServiceInterface interface {
	ReserveSeat(ctx context.Context, screeningID, seatID string) (bool, error)
	ReleaseSeatReservation(ctx context.Context, screeningID, seatID string) (bool, error)
	LockSeat(ctx context.Context, seatID string) (*application.LockResult, error)
	UnlockSeat(ctx context.Context, seatID, token string) error
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.BookingResult, error)
	ConfirmBooking(ctx context.Context, bookingID string) (*booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (*application.BookingResult, error)
	GetAvailableSeats(ctx context.Context, screeningID string) ([]*seat.Seat, error)
	GetBooking(ctx context.Context, id string) (*booking.Booking, error)
	GetCustomerBookings(ctx context.Context, email string) ([]*booking.Booking, error)
	ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error)
}

var (
	_ BookingServiceInterface = (*application.BookingService)(nil)
	_ BookingServiceInterface = (*application.AsyncBookingService)(nil)
	_ SeatServiceInterface    = (*application.SeatService)(nil)
	_ CatalogServiceInterface = (*application.CatalogService)(nil)
)
