package booking

import (
	"context"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Booking, error)

	// Save は予約を更新する（楽観的ロック、トランザクション必須）
	Save(ctx context.Context, tx transaction.Tx, booking *Booking) error

	// FindPending は座席の保留中予約を取得する。存在しない場合は nil
	FindPending(ctx context.Context, tx transaction.Tx, seatID string) (*Booking, error)

	// FindActive は座席の保留中または確定済み予約を取得する。存在しない場合は nil
	FindActive(ctx context.Context, tx transaction.Tx, seatID string) (*Booking, error)

	// FindByCustomerEmail は予約者の予約一覧を作成日時の降順で取得する
	FindByCustomerEmail(ctx context.Context, email string) ([]*Booking, error)

	// FindExpiredPending は保留期限を過ぎた保留中予約を取得する
	FindExpiredPending(ctx context.Context) ([]*Booking, error)

	// List は予約一覧を作成日時の降順で取得する
	List(ctx context.Context, limit, offset int) ([]*Booking, error)
}
