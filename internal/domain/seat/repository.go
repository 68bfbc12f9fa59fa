package seat

import (
	"context"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// Repository は座席リポジトリのインターフェース
type Repository interface {
	// CreateBulk は複数の座席を一括作成する（トランザクション必須）
	CreateBulk(ctx context.Context, tx transaction.Tx, seats []*Seat) error

	// GetByID はIDから座席を取得する
	GetByID(ctx context.Context, id string) (*Seat, error)

	// GetForUpdate はトランザクション内で座席を行ロック付きで取得する
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Seat, error)

	// GetByScreeningID は上映回の座席一覧を列・番号順に取得する
	GetByScreeningID(ctx context.Context, screeningID string) ([]*Seat, error)

	// GetAvailableByScreeningID は上映回の予約可能な座席一覧を取得する
	GetAvailableByScreeningID(ctx context.Context, screeningID string) ([]*Seat, error)

	// GetByStatus は指定状態の座席を全上映回から取得する
	GetByStatus(ctx context.Context, statuses ...Status) ([]*Seat, error)

	// Save は座席を更新する（楽観的ロック、トランザクション必須）
	// バージョン不一致の場合は ErrOptimisticLockConflict を返し、成功時は Version を進める
	Save(ctx context.Context, tx transaction.Tx, seat *Seat) error
}
