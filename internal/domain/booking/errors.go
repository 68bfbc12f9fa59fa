package booking

import (
	"fmt"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// Booking ドメインのエラー定義
var (
	ErrBookingNotFound         = fmt.Errorf("予約が見つかりません: %w", apperr.ErrNotFound)
	ErrBookingNotPending       = fmt.Errorf("予約は保留中ではありません: %w", apperr.ErrInvalidState)
	ErrBookingExpired          = fmt.Errorf("予約の有効期限が切れています: %w", apperr.ErrInvalidState)
	ErrBookingAlreadyCancelled = fmt.Errorf("予約は既にキャンセルされています: %w", apperr.ErrInvalidState)
	ErrBookingAlreadyConfirmed = fmt.Errorf("予約は既に確定されています: %w", apperr.ErrInvalidState)
	ErrSeatAlreadyPending      = fmt.Errorf("座席には別の保留中予約があります: %w", apperr.ErrSeatAlreadyPending)
	ErrOptimisticLockConflict  = fmt.Errorf("予約の楽観的ロックの競合が発生しました: %w", apperr.ErrConflict)
	ErrScreeningIDRequired     = fmt.Errorf("上映回IDは必須です: %w", apperr.ErrInvalidInput)
	ErrSeatIDRequired          = fmt.Errorf("座席IDは必須です: %w", apperr.ErrInvalidInput)
	ErrCustomerNameRequired    = fmt.Errorf("予約者名は必須です: %w", apperr.ErrInvalidInput)
	ErrCustomerEmailRequired   = fmt.Errorf("予約者のメールアドレスは必須です: %w", apperr.ErrInvalidInput)
	ErrInvalidPrice            = fmt.Errorf("価格は0以上である必要があります: %w", apperr.ErrInvalidInput)
)
