package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
)

type CatalogHandler struct {
	service CatalogServiceInterface
}

func NewCatalogHandler(s CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: s}
}

type CreateMovieRequest struct {
	Title           string `json:"title" validate:"required,max=255" example:"七人の侍"`
	Genre           string `json:"genre" validate:"max=100" example:"時代劇"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1" example:"207"`
	TicketPrice     int    `json:"ticket_price" validate:"min=0" example:"1900"`
}

type MovieResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Genre           string `json:"genre"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes"`
	TicketPrice     int    `json:"ticket_price"`
	CreatedAt       string `json:"created_at"`
}

func toMovieResponse(m *movie.Movie) MovieResponse {
	return MovieResponse{
		ID: m.ID, Title: m.Title, Genre: m.Genre, Description: m.Description,
		DurationMinutes: m.DurationMinutes, TicketPrice: m.TicketPrice,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

type CreateScreeningRequest struct {
	MovieID     string    `json:"movie_id" validate:"required"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Rows        int       `json:"rows" validate:"required,min=1,max=26" example:"10"`
	SeatsPerRow int       `json:"seats_per_row" validate:"required,min=1" example:"20"`
}

type ScreeningResponse struct {
	ID             string `json:"id"`
	MovieID        string `json:"movie_id"`
	StartsAt       string `json:"starts_at"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
}

func toScreeningResponse(s *screening.Screening) ScreeningResponse {
	return ScreeningResponse{
		ID: s.ID, MovieID: s.MovieID, StartsAt: s.StartsAt.Format(time.RFC3339),
		TotalSeats: s.TotalSeats, AvailableSeats: s.AvailableSeats,
	}
}

// CreateMovie godoc
// @Summary 作品を登録
// @Tags movies
// @Accept json
// @Produce json
// @Param request body CreateMovieRequest true "作品情報"
// @Success 201 {object} MovieResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /movies [post]
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	var req CreateMovieRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	m, err := h.service.CreateMovie(c.Request().Context(), application.CreateMovieInput{
		Title: req.Title, Genre: req.Genre, Description: req.Description,
		DurationMinutes: req.DurationMinutes, TicketPrice: req.TicketPrice,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toMovieResponse(m))
}

// GetMovie godoc
// @Summary 作品を取得
// @Tags movies
// @Produce json
// @Param id path string true "作品ID"
// @Success 200 {object} MovieResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /movies/{id} [get]
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	m, err := h.service.GetMovie(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMovieResponse(m))
}

// ListMovies godoc
// @Summary 作品一覧を取得
// @Tags movies
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} MovieResponse
// @Router /movies [get]
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	movies, err := h.service.ListMovies(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	resp := make([]MovieResponse, len(movies))
	for i, m := range movies {
		resp[i] = toMovieResponse(m)
	}
	return c.JSON(http.StatusOK, resp)
}

// UpdateMovie godoc
// @Summary 作品を更新
// @Tags movies
// @Accept json
// @Produce json
// @Param id path string true "作品ID"
// @Param request body CreateMovieRequest true "作品情報"
// @Success 200 {object} MovieResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /movies/{id} [put]
func (h *CatalogHandler) UpdateMovie(c echo.Context) error {
	var req CreateMovieRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	m, err := h.service.UpdateMovie(c.Request().Context(), application.UpdateMovieInput{
		ID: c.Param("id"), Title: req.Title, Genre: req.Genre, Description: req.Description,
		DurationMinutes: req.DurationMinutes, TicketPrice: req.TicketPrice,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMovieResponse(m))
}

// DeleteMovie godoc
// @Summary 作品を削除
// @Tags movies
// @Param id path string true "作品ID"
// @Success 204
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "上映回が登録されている"
// @Router /movies/{id} [delete]
func (h *CatalogHandler) DeleteMovie(c echo.Context) error {
	if err := h.service.DeleteMovie(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateScreening godoc
// @Summary 上映回を登録
// @Description rows × seats_per_row 席の座席を A1, A2, … として生成する
// @Tags screenings
// @Accept json
// @Produce json
// @Param request body CreateScreeningRequest true "上映回情報"
// @Success 201 {object} ScreeningResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse "作品が存在しない"
// @Router /screenings [post]
func (h *CatalogHandler) CreateScreening(c echo.Context) error {
	var req CreateScreeningRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := h.service.CreateScreening(c.Request().Context(), application.CreateScreeningInput{
		MovieID: req.MovieID, StartsAt: req.StartsAt, Rows: req.Rows, SeatsPerRow: req.SeatsPerRow,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toScreeningResponse(s))
}

// GetScreening godoc
// @Summary 上映回を取得
// @Tags screenings
// @Produce json
// @Param id path string true "上映回ID"
// @Success 200 {object} ScreeningResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /screenings/{id} [get]
func (h *CatalogHandler) GetScreening(c echo.Context) error {
	s, err := h.service.GetScreening(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toScreeningResponse(s))
}

// ListScreenings godoc
// @Summary 作品の上映回一覧を取得
// @Tags screenings
// @Produce json
// @Param id path string true "作品ID"
// @Success 200 {array} ScreeningResponse
// @Router /movies/{id}/screenings [get]
func (h *CatalogHandler) ListScreenings(c echo.Context) error {
	screenings, err := h.service.ListScreeningsByMovie(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	resp := make([]ScreeningResponse, len(screenings))
	for i, s := range screenings {
		resp[i] = toScreeningResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}
