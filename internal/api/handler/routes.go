package handler

import "github.com/labstack/echo/v4"

// Handlers はルーティング対象のハンドラー一式
type Handlers struct {
	Catalog *CatalogHandler
	Seat    *SeatHandler
	Booking *BookingHandler
}

// RegisterRoutes は /api/v1 配下のルートを登録する
func RegisterRoutes(g *echo.Group, h Handlers) {
	movies := g.Group("/movies")
	movies.POST("", h.Catalog.CreateMovie)
	movies.GET("", h.Catalog.ListMovies)
	movies.GET("/:id", h.Catalog.GetMovie)
	movies.PUT("/:id", h.Catalog.UpdateMovie)
	movies.DELETE("/:id", h.Catalog.DeleteMovie)
	movies.GET("/:id/screenings", h.Catalog.ListScreenings)

	screenings := g.Group("/screenings")
	screenings.POST("", h.Catalog.CreateScreening)
	screenings.GET("/:id", h.Catalog.GetScreening)
	screenings.GET("/:id/seats", h.Seat.GetByScreening)
	screenings.GET("/:id/seats/available", h.Booking.AvailableSeats)
	screenings.GET("/:id/available-count", h.Seat.CountAvailable)
	screenings.POST("/:screening_id/seats/:seat_id/reservation", h.Booking.Reserve)
	screenings.DELETE("/:screening_id/seats/:seat_id/reservation", h.Booking.Release)

	seats := g.Group("/seats")
	seats.GET("/:id", h.Seat.GetByID)
	seats.POST("/:id/lock", h.Booking.Lock)
	seats.POST("/:id/unlock", h.Booking.Unlock)

	bookings := g.Group("/bookings")
	bookings.POST("", h.Booking.Create)
	bookings.GET("", h.Booking.List)
	bookings.GET("/:id", h.Booking.GetByID)
	bookings.POST("/:id/confirm", h.Booking.Confirm)
	bookings.POST("/:id/cancel", h.Booking.Cancel)
	bookings.DELETE("/:id", h.Booking.Cancel)
}
