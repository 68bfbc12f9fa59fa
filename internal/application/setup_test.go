package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/seatlock"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

type testEnv struct {
	booking    *BookingService
	catalog    *CatalogService
	seats      *SeatService
	locks      *seatlock.Registry
	holds      *worker.HoldScheduler
	metrics    *metrics.Metrics
	seatRepo   *memory.SeatRepository
	bookings   *memory.BookingRepository
	screenings *memory.ScreeningRepository
}

type envOption func(*BookingDeps)

func withOptions(opts BookingOptions) envOption {
	return func(d *BookingDeps) { d.Options = opts }
}

// wrapSeatRepo は BookingService が使う座席リポジトリを差し替える
func wrapSeatRepo(wrap func(seat.Repository) seat.Repository) envOption {
	return func(d *BookingDeps) { d.Seats = wrap(d.Seats) }
}

func withCache(c AvailabilityCache) envOption {
	return func(d *BookingDeps) { d.Cache = c }
}

func setupTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store := memory.NewStore()
	txManager := memory.NewTxManager(store)
	seatRepo := memory.NewSeatRepository(store)
	bookingRepo := memory.NewBookingRepository(store)
	screeningRepo := memory.NewScreeningRepository(store)
	movieRepo := memory.NewMovieRepository(store)

	locks, err := seatlock.New()
	require.NoError(t, err)
	holds := worker.NewHoldScheduler()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	deps := BookingDeps{
		TxManager:  txManager,
		Seats:      seatRepo,
		Bookings:   bookingRepo,
		Screenings: screeningRepo,
		Movies:     movieRepo,
		Locks:      locks,
		Holds:      holds,
		Metrics:    m,
	}
	for _, o := range opts {
		o(&deps)
	}

	t.Cleanup(func() {
		holds.Stop()
		locks.Close()
	})

	return &testEnv{
		booking:    NewBookingService(deps),
		catalog:    NewCatalogService(txManager, movieRepo, screeningRepo, seatRepo),
		seats:      NewSeatService(seatRepo, screeningRepo, nil, 0),
		locks:      locks,
		holds:      holds,
		metrics:    m,
		seatRepo:   seatRepo,
		bookings:   bookingRepo,
		screenings: screeningRepo,
	}
}

// seedScreening は rows × perRow 席の上映回を作成し、座席を列・番号順に返す
func (e *testEnv) seedScreening(t *testing.T, rows, perRow int) (*screening.Screening, []*seat.Seat) {
	t.Helper()
	ctx := context.Background()

	m, err := e.catalog.CreateMovie(ctx, CreateMovieInput{
		Title:           "テスト作品",
		Genre:           "ドラマ",
		DurationMinutes: 120,
		TicketPrice:     1800,
	})
	require.NoError(t, err)

	sc, err := e.catalog.CreateScreening(ctx, CreateScreeningInput{
		MovieID:     m.ID,
		StartsAt:    time.Now().Add(24 * time.Hour),
		Rows:        rows,
		SeatsPerRow: perRow,
	})
	require.NoError(t, err)

	seats, err := e.seatRepo.GetByScreeningID(ctx, sc.ID)
	require.NoError(t, err)
	return sc, seats
}

func (e *testEnv) seatStatus(t *testing.T, id string) seat.Status {
	t.Helper()
	st, err := e.seatRepo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return st.Status
}

func (e *testEnv) availableCount(t *testing.T, screeningID string) int {
	t.Helper()
	sc, err := e.screenings.GetByID(context.Background(), screeningID)
	require.NoError(t, err)
	return sc.AvailableSeats
}

func bookingInput(sc *screening.Screening, st *seat.Seat, email string) CreateBookingInput {
	return CreateBookingInput{
		ScreeningID:   sc.ID,
		SeatID:        st.ID,
		CustomerName:  "山田太郎",
		CustomerEmail: email,
		CustomerPhone: "090-0000-0000",
	}
}
