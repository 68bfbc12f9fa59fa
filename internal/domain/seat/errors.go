package seat

import (
	"fmt"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// Seat ドメインのエラー定義
var (
	ErrSeatNotFound           = fmt.Errorf("座席が見つかりません: %w", apperr.ErrNotFound)
	ErrOptimisticLockConflict = fmt.Errorf("座席の楽観的ロックの競合が発生しました: %w", apperr.ErrConflict)
	ErrScreeningIDRequired    = fmt.Errorf("上映回IDは必須です: %w", apperr.ErrInvalidInput)
	ErrRowRequired            = fmt.Errorf("座席の列は必須です: %w", apperr.ErrInvalidInput)
	ErrInvalidNumber          = fmt.Errorf("座席番号は1以上である必要があります: %w", apperr.ErrInvalidInput)
)
