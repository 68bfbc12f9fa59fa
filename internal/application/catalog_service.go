package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// CatalogService は作品と上映回を管理する
type CatalogService struct {
	txManager     transaction.Manager
	movieRepo     movie.Repository
	screeningRepo screening.Repository
	seatRepo      seat.Repository
}

func NewCatalogService(tm transaction.Manager, mr movie.Repository, scr screening.Repository, sr seat.Repository) *CatalogService {
	return &CatalogService{txManager: tm, movieRepo: mr, screeningRepo: scr, seatRepo: sr}
}

type CreateMovieInput struct {
	Title           string
	Genre           string
	Description     string
	DurationMinutes int
	TicketPrice     int
}

func (s *CatalogService) CreateMovie(ctx context.Context, input CreateMovieInput) (*movie.Movie, error) {
	m := movie.NewMovie(input.Title, input.Genre, input.Description, input.DurationMinutes, input.TicketPrice)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.movieRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("作品作成に失敗しました: %w", err)
	}
	return m, nil
}

func (s *CatalogService) GetMovie(ctx context.Context, id string) (*movie.Movie, error) {
	return s.movieRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListMovies(ctx context.Context, limit, offset int) ([]*movie.Movie, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.movieRepo.List(ctx, limit, offset)
}

type UpdateMovieInput struct {
	ID              string
	Title           string
	Genre           string
	Description     string
	DurationMinutes int
	TicketPrice     int
}

// UpdateMovie は作品情報を更新する
// 作成済みの予約の価格は予約時点のまま変わらない
func (s *CatalogService) UpdateMovie(ctx context.Context, input UpdateMovieInput) (*movie.Movie, error) {
	m, err := s.movieRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	m.Title = input.Title
	m.Genre = input.Genre
	m.Description = input.Description
	m.DurationMinutes = input.DurationMinutes
	m.TicketPrice = input.TicketPrice
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.movieRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMovie は上映回のない作品を削除する
func (s *CatalogService) DeleteMovie(ctx context.Context, id string) error {
	if _, err := s.movieRepo.GetByID(ctx, id); err != nil {
		return err
	}
	screenings, err := s.screeningRepo.ListByMovieID(ctx, id)
	if err != nil {
		return fmt.Errorf("上映回一覧取得に失敗: %w", err)
	}
	if len(screenings) > 0 {
		return movie.ErrMovieHasScreenings
	}
	return s.movieRepo.Delete(ctx, id)
}

type CreateScreeningInput struct {
	MovieID     string
	StartsAt    time.Time
	Rows        int
	SeatsPerRow int
}

// CreateScreening は上映回と座席を同一トランザクションで作成する
// 座席は A1, A2, … の順に Rows × SeatsPerRow 席が作られる
func (s *CatalogService) CreateScreening(ctx context.Context, input CreateScreeningInput) (*screening.Screening, error) {
	layout := screening.Layout{Rows: input.Rows, SeatsPerRow: input.SeatsPerRow}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if _, err := s.movieRepo.GetByID(ctx, input.MovieID); err != nil {
		return nil, fmt.Errorf("作品取得に失敗: %w", err)
	}

	sc := screening.NewScreening(input.MovieID, input.StartsAt, layout)
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.screeningRepo.Create(ctx, tx, sc); err != nil {
		return nil, fmt.Errorf("上映回作成に失敗しました: %w", err)
	}

	seats := make([]*seat.Seat, 0, layout.Total())
	for r := 0; r < layout.Rows; r++ {
		for n := 1; n <= layout.SeatsPerRow; n++ {
			seats = append(seats, seat.NewSeat(sc.ID, screening.RowLabel(r), n))
		}
	}
	if err := s.seatRepo.CreateBulk(ctx, tx, seats); err != nil {
		return nil, fmt.Errorf("座席作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return sc, nil
}

func (s *CatalogService) GetScreening(ctx context.Context, id string) (*screening.Screening, error) {
	return s.screeningRepo.GetByID(ctx, id)
}

func (s *CatalogService) ListScreeningsByMovie(ctx context.Context, movieID string) ([]*screening.Screening, error) {
	if _, err := s.movieRepo.GetByID(ctx, movieID); err != nil {
		return nil, fmt.Errorf("作品取得に失敗: %w", err)
	}
	return s.screeningRepo.ListByMovieID(ctx, movieID)
}
