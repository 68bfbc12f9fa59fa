package movie

import (
	"context"
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// Movie は上映作品エンティティを表す
type Movie struct {
	ID              string
	Title           string
	Genre           string
	Description     string
	DurationMinutes int
	TicketPrice     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewMovie は新しい作品を作成する
func NewMovie(title, genre, description string, durationMinutes, ticketPrice int) *Movie {
	now := time.Now()
	return &Movie{
		Title:           title,
		Genre:           genre,
		Description:     description,
		DurationMinutes: durationMinutes,
		TicketPrice:     ticketPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate は作品の検証を行う
func (m *Movie) Validate() error {
	if m.Title == "" {
		return ErrTitleRequired
	}
	if m.DurationMinutes <= 0 {
		return ErrInvalidDuration
	}
	if m.TicketPrice < 0 {
		return ErrInvalidTicketPrice
	}
	return nil
}

// Movie ドメインのエラー定義
var (
	ErrMovieNotFound      = fmt.Errorf("作品が見つかりません: %w", apperr.ErrNotFound)
	ErrTitleRequired      = fmt.Errorf("作品タイトルは必須です: %w", apperr.ErrInvalidInput)
	ErrInvalidDuration    = fmt.Errorf("上映時間は1分以上である必要があります: %w", apperr.ErrInvalidInput)
	ErrInvalidTicketPrice = fmt.Errorf("チケット価格は0以上である必要があります: %w", apperr.ErrInvalidInput)
	ErrMovieHasScreenings = fmt.Errorf("上映回が登録されている作品は削除できません: %w", apperr.ErrConflict)
)

// Repository は作品リポジトリのインターフェース
type Repository interface {
	// Create は新しい作品を作成する
	Create(ctx context.Context, movie *Movie) error

	// GetByID はIDから作品を取得する
	GetByID(ctx context.Context, id string) (*Movie, error)

	// List は作品一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Movie, error)

	// Update は作品を更新する
	Update(ctx context.Context, movie *Movie) error

	// Delete は作品を削除する
	Delete(ctx context.Context, id string) error
}
