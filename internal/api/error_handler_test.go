package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/seatlock"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/worker"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"座席が見つからない", seat.ErrSeatNotFound, http.StatusNotFound},
		{"予約が見つからない", fmt.Errorf("取得に失敗: %w", booking.ErrBookingNotFound), http.StatusNotFound},
		{"不正な状態遷移", &seat.TransitionError{Action: seat.ActionReserve, From: seat.StatusBooked}, http.StatusConflict},
		{"他の顧客が保留中", booking.ErrSeatAlreadyPending, http.StatusConflict},
		{"楽観的ロックの競合", seat.ErrOptimisticLockConflict, http.StatusConflict},
		{"確定済みの予約", booking.ErrBookingAlreadyConfirmed, http.StatusConflict},
		{"座席ロックのタイムアウト", seatlock.ErrLockTimeout, http.StatusServiceUnavailable},
		{"操作の中断", seatlock.ErrInterrupted, http.StatusServiceUnavailable},
		{"ワーカープールの飽和", worker.ErrPoolSaturated, http.StatusServiceUnavailable},
		{"入力不正", booking.ErrCustomerEmailRequired, http.StatusBadRequest},
		{"内部エラー", apperr.Internal(errors.New("connection reset")), http.StatusInternalServerError},
		{"分類できないエラー", errors.New("unknown"), http.StatusInternalServerError},
		{"echo.HTTPError はそのコードを使う", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized"), http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}

func TestCustomHTTPErrorHandler(t *testing.T) {
	e := echo.New()

	serve := func(err error) (*httptest.ResponseRecorder, ErrorResponse) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/x", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		CustomHTTPErrorHandler(err, c)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	t.Run("ドメインエラーはメッセージと種別を返す", func(t *testing.T) {
		rec, resp := serve(booking.ErrSeatAlreadyPending)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, booking.ErrSeatAlreadyPending.Error(), resp.Error)
		assert.Equal(t, apperr.ErrSeatAlreadyPending.Error(), resp.Kind)
	})

	t.Run("内部エラーの詳細は返さない", func(t *testing.T) {
		rec, resp := serve(apperr.Internal(errors.New("pq: connection refused")))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "内部サーバーエラー", resp.Error)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("echo.HTTPError のメッセージを返す", func(t *testing.T) {
		rec, resp := serve(echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "無効なリクエスト", resp.Error)
		assert.Empty(t, resp.Kind)
	})

	t.Run("プール飽和は503", func(t *testing.T) {
		rec, resp := serve(worker.ErrPoolSaturated)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "pool saturated", resp.Kind)
	})
}

func TestCustomValidator(t *testing.T) {
	type request struct {
		Email string `validate:"required,email"`
	}
	v := NewValidator()

	t.Run("正しい入力は通る", func(t *testing.T) {
		assert.NoError(t, v.Validate(&request{Email: "user@example.com"}))
	})

	t.Run("不正な入力は400", func(t *testing.T) {
		err := v.Validate(&request{Email: "invalid"})

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
	})

	t.Run("不正なフィールドはJSONのキー名で報告される", func(t *testing.T) {
		type bookingRequest struct {
			SeatID        string `json:"seat_id" validate:"required"`
			CustomerEmail string `json:"customer_email,omitempty" validate:"required,email"`
		}
		err := v.Validate(&bookingRequest{CustomerEmail: "invalid"})

		var he *echo.HTTPError
		require.ErrorAs(t, err, &he)
		assert.Equal(t, http.StatusBadRequest, he.Code)
		assert.Equal(t, "入力内容が不正です: seat_id(required), customer_email(email)", he.Message)
	})
}
