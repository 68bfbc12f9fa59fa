package screening

import (
	"context"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// Repository は上映回リポジトリのインターフェース
type Repository interface {
	// Create は新しい上映回を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, screening *Screening) error

	// GetByID はIDから上映回を取得する
	GetByID(ctx context.Context, id string) (*Screening, error)

	// ListByMovieID は作品の上映回一覧を開始時刻順に取得する
	ListByMovieID(ctx context.Context, movieID string) ([]*Screening, error)

	// Save は上映回を更新する（楽観的ロック、トランザクション必須）
	Save(ctx context.Context, tx transaction.Tx, screening *Screening) error

	// AdjustAvailableSeats は空席数を delta だけ増減する（トランザクション必須）
	// バージョンを検査せず相対更新するため、別座席の予約同士は競合しない
	AdjustAvailableSeats(ctx context.Context, tx transaction.Tx, id string, delta int) error
}
