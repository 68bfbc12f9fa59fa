package seat

import (
	"fmt"
	"time"
)

// Status は座席の状態を表す
type Status string

const (
	StatusAvailable Status = "available"
	StatusLocked    Status = "locked"
	StatusReserved  Status = "reserved"
	StatusBooked    Status = "booked"
)

// Seat は上映回ごとの座席エンティティを表す
type Seat struct {
	ID               string
	ScreeningID      string
	Row              string
	Number           int
	Status           Status
	CurrentBookingID *string
	LockToken        *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Version          int // 楽観的ロック用
}

// NewSeat は新しい座席を作成する
func NewSeat(screeningID, row string, number int) *Seat {
	now := time.Now()
	return &Seat{
		ScreeningID: screeningID,
		Row:         row,
		Number:      number,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Label は "A7" 形式の座席表示名を返す
func (s *Seat) Label() string {
	return fmt.Sprintf("%s%d", s.Row, s.Number)
}

// IsAvailable は座席が予約可能かを返す
func (s *Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// IsHeld は座席が一時保持（仮押さえ・編集ロック）中かを返す
func (s *Seat) IsHeld() bool {
	return s.Status == StatusReserved || s.Status == StatusLocked
}

// Reserve は座席を仮押さえ状態にする
func (s *Seat) Reserve() error {
	return s.apply(ActionReserve, TransitionContext{})
}

// Lock は座席を編集ロック状態にし、解除用のトークンを記録する
func (s *Seat) Lock(token string) error {
	if err := s.apply(ActionLock, TransitionContext{}); err != nil {
		return err
	}
	s.LockToken = &token
	return nil
}

// Unlock は編集ロックを解除する。トークンはロック時のものと一致する必要がある
func (s *Seat) Unlock(token string) error {
	tc := TransitionContext{TokenMatches: s.LockToken != nil && *s.LockToken == token}
	if err := s.apply(ActionUnlock, tc); err != nil {
		return err
	}
	s.LockToken = nil
	return nil
}

// Book は座席を予約済みにする
// hasActiveBooking は同じ座席に保留中または確定済みの予約が既に存在するか
func (s *Seat) Book(bookingID string, hasActiveBooking bool) error {
	if err := s.apply(ActionBook, TransitionContext{HasActiveBooking: hasActiveBooking}); err != nil {
		return err
	}
	s.CurrentBookingID = &bookingID
	s.LockToken = nil
	return nil
}

// Expire は期限切れの一時保持を解放する
func (s *Seat) Expire() error {
	if err := s.apply(ActionExpire, TransitionContext{}); err != nil {
		return err
	}
	s.LockToken = nil
	return nil
}

// ReleaseReservation は仮押さえを明示的に解放する
func (s *Seat) ReleaseReservation() error {
	return s.apply(ActionRelease, TransitionContext{})
}

// CancelBooking は予約キャンセルに伴い座席を解放する
// bookingPending は紐づく予約がキャンセル前に保留中だったか
func (s *Seat) CancelBooking(bookingPending bool) error {
	if err := s.apply(ActionCancel, TransitionContext{BookingPending: bookingPending}); err != nil {
		return err
	}
	s.CurrentBookingID = nil
	return nil
}

func (s *Seat) apply(action Action, tc TransitionContext) error {
	next, err := Transition(s.Status, tc, action)
	if err != nil {
		return err
	}
	s.Status = next
	s.UpdatedAt = time.Now()
	return nil
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.ScreeningID == "" {
		return ErrScreeningIDRequired
	}
	if s.Row == "" {
		return ErrRowRequired
	}
	if s.Number <= 0 {
		return ErrInvalidNumber
	}
	return nil
}
