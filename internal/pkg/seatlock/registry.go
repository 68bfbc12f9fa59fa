// Package seatlock は座席ごとの排他ロックを提供する
//
// ロックは座席IDごとに遅延生成され、保持者と待機者がいなくなった時点で破棄される。
// 異なる座席のロックは互いにブロックしない。
package seatlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

const (
	defaultShardCount = 32
	maxShardCount     = 1 << 16
)

// ロックのエラー定義
var (
	ErrLockTimeout       = fmt.Errorf("座席ロックの取得がタイムアウトしました: %w", apperr.ErrLockTimeout)
	ErrInterrupted       = fmt.Errorf("座席ロックの待機が中断されました: %w", apperr.ErrOperationInterrupted)
	ErrClosed            = fmt.Errorf("座席ロックレジストリは停止しています: %w", apperr.ErrOperationInterrupted)
	ErrNotHeld           = errors.New("座席ロックは既に解放されています")
	ErrInvalidShardCount = errors.New("シャード数は2の冪である必要があります")
)

// Option は Registry の設定
type Option func(*options)

type options struct {
	shardCount int
}

// WithShardCount はシャード数を設定する。2の冪（最大65536）である必要がある
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// Registry は座席IDごとのロックを管理する
type Registry struct {
	shards  []shard
	mask    uint64
	closed  atomic.Bool
	entries atomic.Int64
	done    chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry は容量1のチャネルをミューテックスとして使う
// 送信成功で取得、受信で解放。refcnt は保持者と待機者の合計
type entry struct {
	ch     chan struct{}
	refcnt int32 // shard.mu で保護
}

// New は新しい Registry を作成する
func New(opts ...Option) (*Registry, error) {
	o := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidShardCount, sc)
	}

	shards := make([]shard, sc)
	for i := range shards {
		shards[i].entries = make(map[string]*entry)
	}
	return &Registry{
		shards: shards,
		mask:   uint64(sc - 1),
		done:   make(chan struct{}),
	}, nil
}

func (r *Registry) shardFor(seatID string) *shard {
	return &r.shards[xxhash.Sum64String(seatID)&r.mask]
}

func (r *Registry) ref(seatID string) (*entry, error) {
	s := r.shardFor(seatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.entries[seatID]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		s.entries[seatID] = e
		r.entries.Add(1)
	}
	e.refcnt++
	return e, nil
}

func (r *Registry) unref(seatID string, e *entry) {
	s := r.shardFor(seatID)
	s.mu.Lock()
	defer s.mu.Unlock()

	e.refcnt--
	if e.refcnt == 0 {
		delete(s.entries, seatID)
		r.entries.Add(-1)
	}
}

// Acquire は座席のロックを取得する
//
// timeout（0以下で無制限）または ctx の期限までに取得できない場合は ErrLockTimeout、
// ctx がキャンセルされた場合は ErrInterrupted を返す。どちらの場合もロックは保持されない。
// ctx が同じ座席の Guard に束縛されている場合は再入として即座に成功する。
func (r *Registry) Acquire(ctx context.Context, seatID string, timeout time.Duration) (*Guard, error) {
	if held, ok := ctx.Value(heldKey{r: r, seatID: seatID}).(*Guard); ok && held.Held() {
		return &Guard{r: r, seatID: seatID, outer: held}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, ctxErr(err)
	}

	e, err := r.ref(seatID)
	if err != nil {
		return nil, err
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case e.ch <- struct{}{}:
		return &Guard{r: r, seatID: seatID, entry: e}, nil
	case <-timer:
		r.unref(seatID, e)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		r.unref(seatID, e)
		return nil, ctxErr(ctx.Err())
	case <-r.done:
		r.unref(seatID, e)
		return nil, ErrClosed
	}
}

// Len は現在存在するロックエントリ数を返す
func (r *Registry) Len() int {
	return int(max(r.entries.Load(), 0))
}

// Close は新規の取得を拒否し、待機中の呼び出しを ErrClosed で終了させる
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(r.done)
	return nil
}

func ctxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrLockTimeout
	}
	return ErrInterrupted
}

type heldKey struct {
	r      *Registry
	seatID string
}

// Guard は取得済みのロックを表す
type Guard struct {
	r        *Registry
	seatID   string
	entry    *entry
	outer    *Guard // 再入時の外側の Guard
	released atomic.Bool
}

// Held はロックが保持されているかを返す
func (g *Guard) Held() bool {
	return !g.released.Load()
}

// Reentrant は外側の Guard への再入かを返す
func (g *Guard) Reentrant() bool {
	return g.outer != nil
}

// Bind は ctx に Guard を束縛する
// 束縛した ctx で同じ座席を Acquire すると再入として扱われる
func (g *Guard) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, heldKey{r: g.r, seatID: g.seatID}, g)
}

// Release はロックを解放する。2回目以降の呼び出しは ErrNotHeld を返す
// 再入した Guard の解放は外側のロックに影響しない
func (g *Guard) Release() error {
	if !g.released.CompareAndSwap(false, true) {
		return ErrNotHeld
	}
	if g.outer != nil {
		return nil
	}
	<-g.entry.ch
	g.r.unref(g.seatID, g.entry)
	return nil
}
