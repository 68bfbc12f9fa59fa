package booking

import (
	"strings"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// DefaultPendingTTL は保留中予約の有効期限（デフォルト10分）
const DefaultPendingTTL = 10 * time.Minute

// Customer は予約者の情報
type Customer struct {
	Name  string
	Email string
	Phone string
}

// Booking は座席1席に対する予約エンティティを表す
type Booking struct {
	ID          string
	ScreeningID string
	SeatID      string
	Customer    Customer
	Status      Status
	Price       int // 予約時点のチケット価格
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int // 楽観的ロック用
}

// NewBooking は保留中の予約を作成する
func NewBooking(screeningID, seatID string, customer Customer, price int, ttl time.Duration) *Booking {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	now := time.Now()
	customer.Email = NormalizeEmail(customer.Email)
	return &Booking{
		ScreeningID: screeningID,
		SeatID:      seatID,
		Customer:    customer,
		Status:      StatusPending,
		Price:       price,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NormalizeEmail は比較用にメールアドレスを正規化する
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsExpired は保留期限が切れているかを返す
func (b *Booking) IsExpired() bool {
	return time.Now().After(b.ExpiresAt)
}

// IsPending は予約が保留中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// IsActive は予約が座席を占有しているか（保留中または確定済み）を返す
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// BelongsTo は予約者のメールアドレスが一致するかを返す
func (b *Booking) BelongsTo(email string) bool {
	return b.Customer.Email == NormalizeEmail(email)
}

// Confirm は予約を確定する
func (b *Booking) Confirm() error {
	if b.Status != StatusPending {
		return ErrBookingNotPending
	}
	if b.IsExpired() {
		return ErrBookingExpired
	}
	now := time.Now()
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	b.UpdatedAt = now
	return nil
}

// Cancel は予約をキャンセルする
func (b *Booking) Cancel() error {
	if b.Status == StatusCancelled {
		return ErrBookingAlreadyCancelled
	}
	if b.Status == StatusConfirmed {
		return ErrBookingAlreadyConfirmed
	}
	now := time.Now()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	b.UpdatedAt = now
	return nil
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.ScreeningID == "" {
		return ErrScreeningIDRequired
	}
	if b.SeatID == "" {
		return ErrSeatIDRequired
	}
	if b.Customer.Name == "" {
		return ErrCustomerNameRequired
	}
	if b.Customer.Email == "" {
		return ErrCustomerEmailRequired
	}
	if b.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}
