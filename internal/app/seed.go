package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/application"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

// SeedOptions は初期データ投入の設定
type SeedOptions struct {
	Rows        int
	SeatsPerRow int
	// Force が false の場合、作品が既にあれば何もしない
	Force bool
	Now   func() time.Time
}

// SeedResult は投入件数
type SeedResult struct {
	Movies     int
	Screenings int
	Seats      int
	Skipped    bool
}

var sampleMovies = []application.CreateMovieInput{
	{Title: "Avengers: Endgame", Genre: "Action", Description: "The epic conclusion to the Infinity Saga", DurationMinutes: 181, TicketPrice: 1900},
	{Title: "The Dark Knight", Genre: "Action", Description: "Batman faces his greatest challenge", DurationMinutes: 152, TicketPrice: 1800},
	{Title: "Inception", Genre: "Sci-Fi", Description: "A thief who steals corporate secrets through dream-sharing technology", DurationMinutes: 148, TicketPrice: 1800},
}

// 当日10時・14時と翌日10時の3回
var sampleSlots = []struct {
	days, hour int
}{
	{0, 10}, {0, 14}, {1, 10},
}

// SeedCatalog はサンプル作品と上映回を登録する
func SeedCatalog(ctx context.Context, catalog *application.CatalogService, opts SeedOptions) (*SeedResult, error) {
	if opts.Rows <= 0 {
		opts.Rows = 10
	}
	if opts.SeatsPerRow <= 0 {
		opts.SeatsPerRow = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	if !opts.Force {
		existing, err := catalog.ListMovies(ctx, 1, 0)
		if err != nil {
			return nil, fmt.Errorf("作品一覧の取得に失敗: %w", err)
		}
		if len(existing) > 0 {
			logger.Info("既にデータがあるため初期データ投入をスキップ")
			return &SeedResult{Skipped: true}, nil
		}
	}

	now := opts.Now()
	base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	result := &SeedResult{}
	for _, in := range sampleMovies {
		m, err := catalog.CreateMovie(ctx, in)
		if err != nil {
			return result, err
		}
		result.Movies++

		for _, slot := range sampleSlots {
			sc, err := catalog.CreateScreening(ctx, application.CreateScreeningInput{
				MovieID:     m.ID,
				StartsAt:    base.AddDate(0, 0, slot.days).Add(time.Duration(slot.hour) * time.Hour),
				Rows:        opts.Rows,
				SeatsPerRow: opts.SeatsPerRow,
			})
			if err != nil {
				return result, err
			}
			result.Screenings++
			result.Seats += sc.TotalSeats
		}
	}

	logger.Info("初期データを投入しました",
		zap.Int("movies", result.Movies),
		zap.Int("screenings", result.Screenings),
		zap.Int("seats", result.Seats),
	)
	return result, nil
}
