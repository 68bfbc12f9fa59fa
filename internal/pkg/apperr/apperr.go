// Package apperr はアプリケーション全体で共有するエラー種別を定義する
//
// ドメインパッケージは個別のエラーをこれらの種別でラップして宣言し、
// 呼び出し側は errors.Is で種別を判定する。
package apperr

import (
	"errors"
	"fmt"
)

// エラー種別
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrInvalidState         = errors.New("invalid state")
	ErrSeatAlreadyPending   = errors.New("seat already pending")
	ErrLockTimeout          = errors.New("lock timeout")
	ErrOperationInterrupted = errors.New("operation interrupted")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternal             = errors.New("internal")
)

// Internal はストア等の下位層エラーを ErrInternal としてラップする
// 既に分類済みのエラーはそのまま返す
func Internal(err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	return &wrapped{kind: ErrInternal, err: err}
}

// Kind はエラーの種別を返す。分類できない場合は nil
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

var kinds = []error{
	ErrNotFound,
	ErrInvalidTransition,
	ErrInvalidState,
	ErrSeatAlreadyPending,
	ErrLockTimeout,
	ErrOperationInterrupted,
	ErrConflict,
	ErrInvalidInput,
	ErrInternal,
}

type wrapped struct {
	kind error
	err  error
}

func (w *wrapped) Error() string {
	return fmt.Sprintf("%s: %v", w.kind, w.err)
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.err}
}
