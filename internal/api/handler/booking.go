package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
)

type BookingHandler struct {
	service BookingServiceInterface
}

func NewBookingHandler(s BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: s}
}

type ReservationResponse struct {
	ScreeningID string `json:"screening_id"`
	SeatID      string `json:"seat_id"`
	Reserved    bool   `json:"reserved"`
}

type ReleaseResponse struct {
	ScreeningID string `json:"screening_id"`
	SeatID      string `json:"seat_id"`
	Released    bool   `json:"released"`
}

type LockResponse struct {
	SeatID    string    `json:"seat_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UnlockRequest struct {
	Token string `json:"token" validate:"required"`
}

type CreateBookingRequest struct {
	ScreeningID   string `json:"screening_id" validate:"required"`
	SeatID        string `json:"seat_id" validate:"required"`
	CustomerName  string `json:"customer_name" validate:"required,max=255" example:"山田太郎"`
	CustomerEmail string `json:"customer_email" validate:"required,email" example:"taro@example.com"`
	CustomerPhone string `json:"customer_phone" validate:"max=50"`
}

type BookingResponse struct {
	ID            string     `json:"id"`
	ScreeningID   string     `json:"screening_id"`
	SeatID        string     `json:"seat_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Status        string     `json:"status" example:"pending"`
	Price         int        `json:"price" example:"1800"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// BookingResultResponse は予約作成・キャンセルの結果
// replayed は同一リクエストの再送に既存の予約を返したことを示す
type BookingResultResponse struct {
	BookingResponse
	Replayed bool     `json:"replayed"`
	Warnings []string `json:"warnings,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID: b.ID, ScreeningID: b.ScreeningID, SeatID: b.SeatID,
		CustomerName: b.Customer.Name, CustomerEmail: b.Customer.Email, CustomerPhone: b.Customer.Phone,
		Status: string(b.Status), Price: b.Price,
		ExpiresAt: b.ExpiresAt, ConfirmedAt: b.ConfirmedAt, CancelledAt: b.CancelledAt,
		CreatedAt: b.CreatedAt,
	}
}

func toBookingResultResponse(r *application.BookingResult) BookingResultResponse {
	return BookingResultResponse{
		BookingResponse: toBookingResponse(r.Booking),
		Replayed:        r.Replayed,
		Warnings:        r.Warnings,
	}
}

func toBookingResponses(bookings []*booking.Booking) []BookingResponse {
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return resp
}

// Reserve godoc
// @Summary 座席を仮押さえ
// @Description 座席を一定時間仮押さえする。既に保持されている座席は reserved=false を返す
// @Tags reservations
// @Produce json
// @Param screening_id path string true "上映回ID"
// @Param seat_id path string true "座席ID"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 503 {object} api.ErrorResponse "座席ロックの取得待ちがタイムアウト"
// @Router /screenings/{screening_id}/seats/{seat_id}/reservation [post]
func (h *BookingHandler) Reserve(c echo.Context) error {
	screeningID, seatID := c.Param("screening_id"), c.Param("seat_id")
	ok, err := h.service.ReserveSeat(c.Request().Context(), screeningID, seatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReservationResponse{ScreeningID: screeningID, SeatID: seatID, Reserved: ok})
}

// Release godoc
// @Summary 仮押さえを解除
// @Tags reservations
// @Produce json
// @Param screening_id path string true "上映回ID"
// @Param seat_id path string true "座席ID"
// @Success 200 {object} ReleaseResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /screenings/{screening_id}/seats/{seat_id}/reservation [delete]
func (h *BookingHandler) Release(c echo.Context) error {
	screeningID, seatID := c.Param("screening_id"), c.Param("seat_id")
	ok, err := h.service.ReleaseSeatReservation(c.Request().Context(), screeningID, seatID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ReleaseResponse{ScreeningID: screeningID, SeatID: seatID, Released: ok})
}

// Lock godoc
// @Summary 座席を編集ロック
// @Description 解除用のトークンを返す
// @Tags seats
// @Produce json
// @Param id path string true "座席ID"
// @Success 200 {object} LockResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が空席ではない"
// @Router /seats/{id}/lock [post]
func (h *BookingHandler) Lock(c echo.Context) error {
	r, err := h.service.LockSeat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, LockResponse{SeatID: r.SeatID, Token: r.Token, ExpiresAt: r.ExpiresAt})
}

// Unlock godoc
// @Summary 座席の編集ロックを解除
// @Tags seats
// @Accept json
// @Param id path string true "座席ID"
// @Param request body UnlockRequest true "ロックトークン"
// @Success 204
// @Failure 409 {object} api.ErrorResponse "トークン不一致または未ロック"
// @Router /seats/{id}/unlock [post]
func (h *BookingHandler) Unlock(c echo.Context) error {
	var req UnlockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.service.UnlockSeat(c.Request().Context(), c.Param("id"), req.Token); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AvailableSeats godoc
// @Summary 上映回の空席一覧を取得
// @Tags seats
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {array} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /screenings/{id}/seats/available [get]
func (h *BookingHandler) AvailableSeats(c echo.Context) error {
	seats, err := h.service.GetAvailableSeats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponses(seats))
}

// Create godoc
// @Summary 予約を作成
// @Description 座席に保留中の予約を作成する。同じ顧客の再送には既存の予約を返す
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResultResponse
// @Success 200 {object} BookingResultResponse "再送された予約"
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "別の顧客が保留中または予約済み"
// @Failure 503 {object} api.ErrorResponse
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	r, err := h.service.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		ScreeningID: req.ScreeningID, SeatID: req.SeatID,
		CustomerName: req.CustomerName, CustomerEmail: req.CustomerEmail, CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return err
	}
	status := http.StatusCreated
	if r.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, toBookingResultResponse(r))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	b, err := h.service.GetBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// List godoc
// @Summary 予約一覧を取得
// @Description email を指定すると顧客の予約を新しい順に返す
// @Tags bookings
// @Produce json
// @Param email query string false "顧客のメールアドレス"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		bookings []*booking.Booking
		err      error
	)
	if email := c.QueryParam("email"); email != "" {
		bookings, err = h.service.GetCustomerBookings(ctx, email)
	} else {
		limit, _ := strconv.Atoi(c.QueryParam("limit"))
		offset, _ := strconv.Atoi(c.QueryParam("offset"))
		bookings, err = h.service.ListBookings(ctx, limit, offset)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponses(bookings))
}

// Confirm godoc
// @Summary 予約を確定
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "保留中ではない、または期限切れ"
// @Router /bookings/{id}/confirm [post]
func (h *BookingHandler) Confirm(c echo.Context) error {
	b, err := h.service.ConfirmBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 予約をキャンセルし、座席を解放する
// @Tags bookings
// @Produce json
// @Param id path string true "予約ID"
// @Success 200 {object} BookingResultResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "確定済みまたはキャンセル済み"
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c echo.Context) error {
	r, err := h.service.CancelBooking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResultResponse(r))
}
