package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/seatlock"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) ReserveSeat(ctx context.Context, screeningID, seatID string) (bool, error) {
	args := m.Called(ctx, screeningID, seatID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingService) ReleaseSeatReservation(ctx context.Context, screeningID, seatID string) (bool, error) {
	args := m.Called(ctx, screeningID, seatID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingService) LockSeat(ctx context.Context, seatID string) (*application.LockResult, error) {
	args := m.Called(ctx, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.LockResult), args.Error(1)
}

func (m *MockBookingService) UnlockSeat(ctx context.Context, seatID, token string) error {
	args := m.Called(ctx, seatID, token)
	return args.Error(0)
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.BookingResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingResult), args.Error(1)
}

func (m *MockBookingService) ConfirmBooking(ctx context.Context, bookingID string) (*booking.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, bookingID string) (*application.BookingResult, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.BookingResult), args.Error(1)
}

func (m *MockBookingService) GetAvailableSeats(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	args := m.Called(ctx, screeningID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*seat.Seat), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, id string) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingService) GetCustomerBookings(ctx context.Context, email string) ([]*booking.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingService) ListBookings(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func testBooking(status booking.Status) *booking.Booking {
	now := time.Now()
	return &booking.Booking{
		ID:          "booking-123",
		ScreeningID: "screening-1",
		SeatID:      "seat-1",
		Customer:    booking.Customer{Name: "山田太郎", Email: "taro@example.com"},
		Status:      status,
		Price:       1800,
		ExpiresAt:   now.Add(10 * time.Minute),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func newSeatContext(e *echo.Echo, method, path string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("screening_id", "seat_id")
	c.SetParamValues("screening-1", "seat-1")
	return c, rec
}

func TestBookingHandler_Reserve(t *testing.T) {
	e := newTestEcho()

	t.Run("仮押さえに成功すると reserved=true", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ReserveSeat", mock.Anything, "screening-1", "seat-1").Return(true, nil)

		c, rec := newSeatContext(e, http.MethodPost, "/screenings/screening-1/seats/seat-1/reservation")
		err := NewBookingHandler(mockService).Reserve(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Reserved)
		mockService.AssertExpectations(t)
	})

	t.Run("保持中の座席は reserved=false", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ReserveSeat", mock.Anything, "screening-1", "seat-1").Return(false, nil)

		c, rec := newSeatContext(e, http.MethodPost, "/screenings/screening-1/seats/seat-1/reservation")
		require.NoError(t, NewBookingHandler(mockService).Reserve(c))

		var resp ReservationResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Reserved)
	})

	t.Run("座席ロックのタイムアウトは503", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ReserveSeat", mock.Anything, "screening-1", "seat-1").Return(false, seatlock.ErrLockTimeout)

		c, rec := newSeatContext(e, http.MethodPost, "/screenings/screening-1/seats/seat-1/reservation")
		err := NewBookingHandler(mockService).Reserve(c)
		require.ErrorIs(t, err, seatlock.ErrLockTimeout)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestBookingHandler_Release(t *testing.T) {
	e := newTestEcho()

	mockService := new(MockBookingService)
	mockService.On("ReleaseSeatReservation", mock.Anything, "screening-1", "seat-1").Return(true, nil)

	c, rec := newSeatContext(e, http.MethodDelete, "/screenings/screening-1/seats/seat-1/reservation")
	require.NoError(t, NewBookingHandler(mockService).Release(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp ReleaseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Released)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_LockUnlock(t *testing.T) {
	e := newTestEcho()

	t.Run("ロックするとトークンを返す", func(t *testing.T) {
		mockService := new(MockBookingService)
		expiresAt := time.Now().Add(30 * time.Second)
		mockService.On("LockSeat", mock.Anything, "seat-1").
			Return(&application.LockResult{SeatID: "seat-1", Token: "token-abc", ExpiresAt: expiresAt}, nil)

		req := httptest.NewRequest(http.MethodPost, "/seats/seat-1/lock", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("seat-1")

		require.NoError(t, NewBookingHandler(mockService).Lock(c))
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp LockResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "token-abc", resp.Token)
	})

	t.Run("トークンを指定して解除できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("UnlockSeat", mock.Anything, "seat-1", "token-abc").Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/seats/seat-1/unlock", strings.NewReader(`{"token":"token-abc"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("seat-1")

		require.NoError(t, NewBookingHandler(mockService).Unlock(c))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("トークンなしはバリデーションエラー", func(t *testing.T) {
		mockService := new(MockBookingService)

		req := httptest.NewRequest(http.MethodPost, "/seats/seat-1/unlock", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("seat-1")

		err := NewBookingHandler(mockService).Unlock(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "UnlockSeat", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingHandler_AvailableSeats(t *testing.T) {
	e := newTestEcho()

	mockService := new(MockBookingService)
	mockService.On("GetAvailableSeats", mock.Anything, "screening-1").Return(testSeats("screening-1")[:1], nil)

	req := httptest.NewRequest(http.MethodGet, "/screenings/screening-1/seats/available", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("screening-1")

	require.NoError(t, NewBookingHandler(mockService).AvailableSeats(c))

	var resp []SeatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "available", resp[0].Status)
	mockService.AssertExpectations(t)
}

func TestBookingHandler_Create(t *testing.T) {
	e := newTestEcho()
	reqBody := `{"screening_id":"screening-1","seat_id":"seat-1","customer_name":"山田太郎","customer_email":"taro@example.com"}`
	input := application.CreateBookingInput{
		ScreeningID: "screening-1", SeatID: "seat-1", CustomerName: "山田太郎", CustomerEmail: "taro@example.com",
	}

	newContext := func(body string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		return e.NewContext(req, rec), rec
	}

	t.Run("新規予約は201", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, input).
			Return(&application.BookingResult{Booking: testBooking(booking.StatusPending)}, nil)

		c, rec := newContext(reqBody)
		require.NoError(t, NewBookingHandler(mockService).Create(c))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp BookingResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "booking-123", resp.ID)
		assert.Equal(t, "pending", resp.Status)
		assert.False(t, resp.Replayed)
		mockService.AssertExpectations(t)
	})

	t.Run("再送された予約は200で replayed=true", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, input).
			Return(&application.BookingResult{Booking: testBooking(booking.StatusPending), Replayed: true}, nil)

		c, rec := newContext(reqBody)
		require.NoError(t, NewBookingHandler(mockService).Create(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp BookingResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Replayed)
	})

	t.Run("部分的な失敗は警告付きで返す", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, input).Return(&application.BookingResult{
			Booking:  testBooking(booking.StatusPending),
			Warnings: []string{"座席状態の更新に失敗しました"},
		}, nil)

		c, rec := newContext(reqBody)
		require.NoError(t, NewBookingHandler(mockService).Create(c))

		var resp BookingResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Warnings, 1)
	})

	t.Run("別の顧客が保留中なら409", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, input).Return(nil, booking.ErrSeatAlreadyPending)

		c, rec := newContext(reqBody)
		err := NewBookingHandler(mockService).Create(c)
		require.ErrorIs(t, err, booking.ErrSeatAlreadyPending)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("ワーカープールの飽和は503", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CreateBooking", mock.Anything, input).Return(nil, worker.ErrPoolSaturated)

		c, rec := newContext(reqBody)
		err := NewBookingHandler(mockService).Create(c)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("不正なメールアドレスはバリデーションエラー", func(t *testing.T) {
		mockService := new(MockBookingService)

		c, _ := newContext(`{"screening_id":"screening-1","seat_id":"seat-1","customer_name":"山田太郎","customer_email":"invalid"}`)
		err := NewBookingHandler(mockService).Create(c)

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	})
}

func TestBookingHandler_List(t *testing.T) {
	e := newTestEcho()

	t.Run("email 指定で顧客の予約を返す", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("GetCustomerBookings", mock.Anything, "taro@example.com").
			Return([]*booking.Booking{testBooking(booking.StatusConfirmed)}, nil)

		req := httptest.NewRequest(http.MethodGet, "/bookings?email=taro@example.com", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, NewBookingHandler(mockService).List(c))

		var resp []BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 1)
		mockService.AssertExpectations(t)
		mockService.AssertNotCalled(t, "ListBookings", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("email なしはページングで一覧を返す", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ListBookings", mock.Anything, 10, 20).Return([]*booking.Booking{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/bookings?limit=10&offset=20", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		require.NoError(t, NewBookingHandler(mockService).List(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
		mockService.AssertExpectations(t)
	})
}

func TestBookingHandler_ConfirmCancel(t *testing.T) {
	e := newTestEcho()

	newContext := func(method, path string) (echo.Context, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(method, path, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("booking-123")
		return c, rec
	}

	t.Run("予約を確定できる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ConfirmBooking", mock.Anything, "booking-123").Return(testBooking(booking.StatusConfirmed), nil)

		c, rec := newContext(http.MethodPost, "/bookings/booking-123/confirm")
		require.NoError(t, NewBookingHandler(mockService).Confirm(c))

		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "confirmed", resp.Status)
	})

	t.Run("期限切れの予約の確定は409", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("ConfirmBooking", mock.Anything, "booking-123").Return(nil, booking.ErrBookingExpired)

		c, rec := newContext(http.MethodPost, "/bookings/booking-123/confirm")
		err := NewBookingHandler(mockService).Confirm(c)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("予約をキャンセルできる", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("CancelBooking", mock.Anything, "booking-123").
			Return(&application.BookingResult{Booking: testBooking(booking.StatusCancelled)}, nil)

		c, rec := newContext(http.MethodPost, "/bookings/booking-123/cancel")
		require.NoError(t, NewBookingHandler(mockService).Cancel(c))

		var resp BookingResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "cancelled", resp.Status)
	})

	t.Run("存在しない予約は404", func(t *testing.T) {
		mockService := new(MockBookingService)
		mockService.On("GetBooking", mock.Anything, "booking-123").Return(nil, booking.ErrBookingNotFound)

		c, rec := newContext(http.MethodGet, "/bookings/booking-123")
		err := NewBookingHandler(mockService).GetByID(c)
		e.HTTPErrorHandler(err, c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
