package screening

import (
	"fmt"
	"time"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// MaxRows は座席配置の最大列数（A〜Z）
const MaxRows = 26

// Screening は上映回エンティティを表す
type Screening struct {
	ID             string
	MovieID        string
	StartsAt       time.Time
	TotalSeats     int
	AvailableSeats int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Version        int // 楽観的ロック用
}

// Layout は上映回の座席配置
type Layout struct {
	Rows        int
	SeatsPerRow int
}

// Total は配置の総座席数を返す
func (l Layout) Total() int {
	return l.Rows * l.SeatsPerRow
}

// RowLabel は0始まりの列番号を A, B, … のラベルに変換する
func RowLabel(i int) string {
	return string(rune('A' + i))
}

// Validate は座席配置の検証を行う
func (l Layout) Validate() error {
	if l.Rows <= 0 || l.Rows > MaxRows || l.SeatsPerRow <= 0 {
		return ErrInvalidLayout
	}
	return nil
}

// NewScreening は新しい上映回を作成する。空席数は総座席数で初期化される
func NewScreening(movieID string, startsAt time.Time, layout Layout) *Screening {
	now := time.Now()
	total := layout.Total()
	return &Screening{
		MovieID:        movieID,
		StartsAt:       startsAt,
		TotalSeats:     total,
		AvailableSeats: total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate は上映回の検証を行う
func (s *Screening) Validate() error {
	if s.MovieID == "" {
		return ErrMovieIDRequired
	}
	if s.StartsAt.IsZero() {
		return ErrStartsAtRequired
	}
	if s.TotalSeats <= 0 {
		return ErrInvalidLayout
	}
	if s.AvailableSeats < 0 || s.AvailableSeats > s.TotalSeats {
		return ErrAvailableSeatsOutOfRange
	}
	return nil
}

// AdjustAvailable は空席数を delta だけ増減する
// 結果が 0〜総座席数 の範囲外になる場合は変更せずにエラーを返す
func (s *Screening) AdjustAvailable(delta int) error {
	next := s.AvailableSeats + delta
	if next < 0 || next > s.TotalSeats {
		return ErrAvailableSeatsOutOfRange
	}
	s.AvailableSeats = next
	s.UpdatedAt = time.Now()
	return nil
}

// Screening ドメインのエラー定義
var (
	ErrScreeningNotFound        = fmt.Errorf("上映回が見つかりません: %w", apperr.ErrNotFound)
	ErrOptimisticLockConflict   = fmt.Errorf("上映回の楽観的ロックの競合が発生しました: %w", apperr.ErrConflict)
	ErrAvailableSeatsOutOfRange = fmt.Errorf("空席数が範囲外です: %w", apperr.ErrInvalidState)
	ErrMovieIDRequired          = fmt.Errorf("作品IDは必須です: %w", apperr.ErrInvalidInput)
	ErrStartsAtRequired         = fmt.Errorf("上映開始時刻は必須です: %w", apperr.ErrInvalidInput)
	ErrInvalidLayout            = fmt.Errorf("座席配置は1〜26列、1列あたり1席以上である必要があります: %w", apperr.ErrInvalidInput)
)
