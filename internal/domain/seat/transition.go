package seat

import (
	"fmt"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// Action は座席の状態遷移を引き起こす操作を表す
type Action string

const (
	ActionReserve Action = "reserve"
	ActionLock    Action = "lock"
	ActionBook    Action = "book"
	ActionUnlock  Action = "unlock"
	ActionExpire  Action = "expire"
	ActionRelease Action = "release"
	ActionCancel  Action = "cancel"
	ActionConfirm Action = "confirm"
)

// TransitionContext はガード条件の判定に必要な情報
type TransitionContext struct {
	// HasActiveBooking は座席に保留中または確定済みの予約が存在するか
	HasActiveBooking bool
	// BookingPending は操作対象の予約が保留中か
	BookingPending bool
	// TokenMatches は呼び出し元がロック時のトークンを保持しているか
	TokenMatches bool
}

// TransitionError は許可されていない状態遷移を表す
type TransitionError struct {
	Action Action
	From   Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("座席の状態遷移が不正です: %s (現在の状態: %s, %s)", e.Action, e.From, e.Reason)
	}
	return fmt.Sprintf("座席の状態遷移が不正です: %s (現在の状態: %s)", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return apperr.ErrInvalidTransition
}

// Transition は現在の状態と操作から遷移先を決定する
// 副作用はなく、許可されない組み合わせには *TransitionError を返す
func Transition(from Status, tc TransitionContext, action Action) (Status, error) {
	reject := func(reason string) (Status, error) {
		return from, &TransitionError{Action: action, From: from, Reason: reason}
	}

	switch action {
	case ActionReserve:
		if from == StatusAvailable {
			return StatusReserved, nil
		}
	case ActionLock:
		if from == StatusAvailable {
			return StatusLocked, nil
		}
	case ActionBook:
		if from == StatusAvailable || from == StatusReserved {
			if tc.HasActiveBooking {
				return reject("有効な予約が既に存在します")
			}
			return StatusBooked, nil
		}
	case ActionUnlock:
		if from == StatusLocked {
			if !tc.TokenMatches {
				return reject("ロックトークンが一致しません")
			}
			return StatusAvailable, nil
		}
	case ActionExpire:
		if from == StatusReserved || from == StatusLocked {
			return StatusAvailable, nil
		}
	case ActionRelease:
		if from == StatusReserved {
			return StatusAvailable, nil
		}
	case ActionCancel:
		if from == StatusBooked {
			if !tc.BookingPending {
				return reject("予約が保留中ではありません")
			}
			return StatusAvailable, nil
		}
	case ActionConfirm:
		if !tc.BookingPending {
			return reject("予約が保留中ではありません")
		}
		return from, nil
	}
	return reject("")
}
