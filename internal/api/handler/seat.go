package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
)

type SeatHandler struct {
	service SeatServiceInterface
}

func NewSeatHandler(s SeatServiceInterface) *SeatHandler {
	return &SeatHandler{service: s}
}

type SeatResponse struct {
	ID          string    `json:"id"`
	ScreeningID string    `json:"screening_id"`
	Row         string    `json:"row"`
	Number      int       `json:"number"`
	Label       string    `json:"label"`
	Status      string    `json:"status"`
	BookingID   *string   `json:"booking_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type AvailableCountResponse struct {
	ScreeningID    string `json:"screening_id"`
	AvailableSeats int    `json:"available_seats"`
}

// ロックトークンはロックした利用者にだけ返す
func toSeatResponse(s *seat.Seat) SeatResponse {
	return SeatResponse{
		ID: s.ID, ScreeningID: s.ScreeningID, Row: s.Row, Number: s.Number,
		Label: s.Label(), Status: string(s.Status), BookingID: s.CurrentBookingID,
		UpdatedAt: s.UpdatedAt,
	}
}

func toSeatResponses(seats []*seat.Seat) []SeatResponse {
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return resp
}

// GetByScreening godoc
// @Summary 上映回の全座席を取得
// @Tags seats
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {array} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /screenings/{id}/seats [get]
func (h *SeatHandler) GetByScreening(c echo.Context) error {
	seats, err := h.service.GetSeatsByScreening(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponses(seats))
}

// GetByID godoc
// @Summary 座席を取得
// @Tags seats
// @Produce json
// @Param id path string true "座席ID"
// @Success 200 {object} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /seats/{id} [get]
func (h *SeatHandler) GetByID(c echo.Context) error {
	s, err := h.service.GetSeat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// CountAvailable godoc
// @Summary 上映回の空席数を取得
// @Description キャッシュが有効な場合はキャッシュから返す
// @Tags seats
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {object} AvailableCountResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /screenings/{id}/available-count [get]
func (h *SeatHandler) CountAvailable(c echo.Context) error {
	id := c.Param("id")
	n, err := h.service.CountAvailableSeats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{ScreeningID: id, AvailableSeats: n})
}
