// Package memory はプロセス内メモリにエンティティを保持するリポジトリ実装を提供する
//
// 各エンティティはコピーで保存・返却し、呼び出し元との共有は行わない。
// トランザクションは書き込みの取り消しログで表現し、Rollback で書き込み前の状態に戻す。
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/movie"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/screening"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// ErrTxDone は終了済みトランザクションへの操作を表す
var ErrTxDone = errors.New("トランザクションは既に終了しています")

// Store はインメモリのデータストア
type Store struct {
	mu         sync.RWMutex
	movies     map[string]*movie.Movie
	screenings map[string]*screening.Screening
	seats      map[string]*seat.Seat
	bookings   map[string]*booking.Booking
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{
		movies:     make(map[string]*movie.Movie),
		screenings: make(map[string]*screening.Screening),
		seats:      make(map[string]*seat.Seat),
		bookings:   make(map[string]*booking.Booking),
	}
}

// Tx はインメモリストアのトランザクション
type Tx struct {
	store *Store
	mu    sync.Mutex
	undo  []func()
	done  bool
}

// record は取り消し処理を登録する。store.mu を保持した状態で呼ぶ
func (t *Tx) record(fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.undo = append(t.undo, fn)
	return nil
}

// Commit はトランザクションをコミットする
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.undo = nil
	return nil
}

// Rollback は未コミットの書き込みを取り消す。コミット済みの場合は何もしない
func (t *Tx) Rollback() error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return nil
	}
	t.done = true
	undo := t.undo
	t.undo = nil
	t.mu.Unlock()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

// TxManager はインメモリストアのトランザクションマネージャー
type TxManager struct {
	store *Store
}

// NewTxManager は新しい TxManager を作成する
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin は新しいトランザクションを開始する
func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: m.store}, nil
}

// unwrap は transaction.Tx からインメモリの Tx を取り出す
// nil の場合は即時反映の書き込みとして扱う
func unwrap(tx transaction.Tx) *Tx {
	if t, ok := tx.(*Tx); ok {
		return t
	}
	return nil
}

// track は tx が与えられていれば取り消し処理を登録する
func track(tx transaction.Tx, fn func()) error {
	if t := unwrap(tx); t != nil {
		return t.record(fn)
	}
	return nil
}

var _ transaction.Manager = (*TxManager)(nil)
