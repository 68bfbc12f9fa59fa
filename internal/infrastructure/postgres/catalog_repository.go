package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

type movieRow struct {
	ID              string    `db:"id"`
	Title           string    `db:"title"`
	Genre           string    `db:"genre"`
	Description     string    `db:"description"`
	DurationMinutes int       `db:"duration_minutes"`
	TicketPrice     int       `db:"ticket_price"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *movieRow) toEntity() *movie.Movie {
	return &movie.Movie{
		ID: r.ID, Title: r.Title, Genre: r.Genre, Description: r.Description,
		DurationMinutes: r.DurationMinutes, TicketPrice: r.TicketPrice,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type MovieRepository struct{ db *sqlx.DB }

func NewMovieRepository(db *sqlx.DB) *MovieRepository { return &MovieRepository{db: db} }

func (r *MovieRepository) Create(ctx context.Context, m *movie.Movie) error {
	query := `INSERT INTO movies (title, genre, description, duration_minutes, ticket_price, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, m.Title, m.Genre, m.Description, m.DurationMinutes, m.TicketPrice, m.CreatedAt, m.UpdatedAt).Scan(&m.ID); err != nil {
		return fmt.Errorf("作品作成に失敗: %w", err)
	}
	return nil
}

func (r *MovieRepository) GetByID(ctx context.Context, id string) (*movie.Movie, error) {
	var row movieRow
	query := `SELECT id, title, genre, description, duration_minutes, ticket_price, created_at, updated_at FROM movies WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, movie.ErrMovieNotFound
		}
		return nil, fmt.Errorf("作品取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *MovieRepository) List(ctx context.Context, limit, offset int) ([]*movie.Movie, error) {
	var rows []movieRow
	query := `SELECT id, title, genre, description, duration_minutes, ticket_price, created_at, updated_at FROM movies ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("作品一覧取得に失敗: %w", err)
	}
	movies := make([]*movie.Movie, len(rows))
	for i := range rows {
		movies[i] = rows[i].toEntity()
	}
	return movies, nil
}

func (r *MovieRepository) Update(ctx context.Context, m *movie.Movie) error {
	m.UpdatedAt = time.Now()
	query := `UPDATE movies SET title = $1, genre = $2, description = $3, duration_minutes = $4, ticket_price = $5, updated_at = $6 WHERE id = $7`
	result, err := r.db.ExecContext(ctx, query, m.Title, m.Genre, m.Description, m.DurationMinutes, m.TicketPrice, m.UpdatedAt, m.ID)
	if err != nil {
		if isInvalidText(err) {
			return movie.ErrMovieNotFound
		}
		return fmt.Errorf("作品更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return movie.ErrMovieNotFound
	}
	return nil
}

func (r *MovieRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM movies WHERE id = $1`, id)
	if err != nil {
		switch {
		case isInvalidText(err):
			return movie.ErrMovieNotFound
		case isForeignKeyViolation(err):
			return movie.ErrMovieHasScreenings
		}
		return fmt.Errorf("作品削除に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return movie.ErrMovieNotFound
	}
	return nil
}

const screeningColumns = `id, movie_id, starts_at, total_seats, available_seats, created_at, updated_at, version`

type screeningRow struct {
	ID             string    `db:"id"`
	MovieID        string    `db:"movie_id"`
	StartsAt       time.Time `db:"starts_at"`
	TotalSeats     int       `db:"total_seats"`
	AvailableSeats int       `db:"available_seats"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	Version        int       `db:"version"`
}

func (r *screeningRow) toEntity() *screening.Screening {
	return &screening.Screening{
		ID: r.ID, MovieID: r.MovieID, StartsAt: r.StartsAt,
		TotalSeats: r.TotalSeats, AvailableSeats: r.AvailableSeats,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

type ScreeningRepository struct{ db *sqlx.DB }

func NewScreeningRepository(db *sqlx.DB) *ScreeningRepository { return &ScreeningRepository{db: db} }

func (r *ScreeningRepository) Create(ctx context.Context, tx transaction.Tx, s *screening.Screening) error {
	query := `INSERT INTO screenings (movie_id, starts_at, total_seats, available_seats, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	if err := ext(r.db, tx).QueryRowxContext(ctx, query, s.MovieID, s.StartsAt, s.TotalSeats, s.AvailableSeats, s.CreatedAt, s.UpdatedAt, s.Version).Scan(&s.ID); err != nil {
		return fmt.Errorf("上映回作成に失敗: %w", err)
	}
	return nil
}

func (r *ScreeningRepository) GetByID(ctx context.Context, id string) (*screening.Screening, error) {
	var row screeningRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+screeningColumns+` FROM screenings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, screening.ErrScreeningNotFound
		}
		return nil, fmt.Errorf("上映回取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ScreeningRepository) ListByMovieID(ctx context.Context, movieID string) ([]*screening.Screening, error) {
	var rows []screeningRow
	query := `SELECT ` + screeningColumns + ` FROM screenings WHERE movie_id = $1 ORDER BY starts_at`
	if err := r.db.SelectContext(ctx, &rows, query, movieID); err != nil {
		return nil, fmt.Errorf("上映回一覧取得に失敗: %w", err)
	}
	result := make([]*screening.Screening, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result, nil
}

func (r *ScreeningRepository) Save(ctx context.Context, tx transaction.Tx, s *screening.Screening) error {
	e := ext(r.db, tx)
	query := `UPDATE screenings SET starts_at = $1, available_seats = $2, updated_at = $3, version = version + 1 WHERE id = $4 AND version = $5`
	result, err := e.ExecContext(ctx, query, s.StartsAt, s.AvailableSeats, s.UpdatedAt, s.ID, s.Version)
	if err != nil {
		return fmt.Errorf("上映回更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := r.exists(ctx, e, s.ID); err != nil {
			return err
		}
		return screening.ErrOptimisticLockConflict
	}
	s.Version++
	return nil
}

// AdjustAvailableSeats は範囲検査付きの相対更新で空席数を増減する
func (r *ScreeningRepository) AdjustAvailableSeats(ctx context.Context, tx transaction.Tx, id string, delta int) error {
	e := ext(r.db, tx)
	query := `UPDATE screenings SET available_seats = available_seats + $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND available_seats + $1 BETWEEN 0 AND total_seats`
	result, err := e.ExecContext(ctx, query, delta, id)
	if err != nil {
		return fmt.Errorf("空席数更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		if _, err := r.exists(ctx, e, id); err != nil {
			return err
		}
		return screening.ErrAvailableSeatsOutOfRange
	}
	return nil
}

// exists は上映回が存在しない場合に ErrScreeningNotFound を返す
func (r *ScreeningRepository) exists(ctx context.Context, q sqlx.QueryerContext, id string) (bool, error) {
	var ok bool
	if err := sqlx.GetContext(ctx, q, &ok, `SELECT EXISTS(SELECT 1 FROM screenings WHERE id = $1)`, id); err != nil {
		if isInvalidText(err) {
			return false, screening.ErrScreeningNotFound
		}
		return false, fmt.Errorf("上映回取得に失敗: %w", err)
	}
	if !ok {
		return false, screening.ErrScreeningNotFound
	}
	return true, nil
}

var (
	_ movie.Repository     = (*MovieRepository)(nil)
	_ screening.Repository = (*ScreeningRepository)(nil)
)
