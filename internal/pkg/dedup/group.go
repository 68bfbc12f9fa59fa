// Package dedup は同一キーで同時に発生したリクエストを1回の実行にまとめる
package dedup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
)

// ErrInterrupted は結果を待たずに呼び出し元の ctx が終了したことを表す
var ErrInterrupted = fmt.Errorf("重複リクエストの待機が中断されました: %w", apperr.ErrOperationInterrupted)

// Group はキーごとに実行中の呼び出しを共有する
// 実行が完了したキーは即座に忘れられ、次の呼び出しは新たに実行される
type Group[T any] struct {
	sf singleflight.Group

	mu    sync.Mutex
	calls map[string]*call
}

// call は共有実行に渡す ctx と待機者数
type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Do はキーに対して fn を1回だけ実行し、同時に待機している全呼び出し元へ同じ結果を返す
//
// fn は個々の呼び出し元のキャンセルには影響されないが、待機者が全員いなくなった時点でキャンセルされる。
// 呼び出し元は自身の ctx が終了した時点で待機をやめ、ErrInterrupted を受け取る。
// shared は結果が他の呼び出し元と共有されたかを表す。
func (g *Group[T]) Do(ctx context.Context, key string, fn func(ctx context.Context) (T, error)) (v T, shared bool, err error) {
	c := g.join(ctx, key)
	ch := g.sf.DoChan(key, func() (any, error) {
		return fn(c.ctx)
	})

	select {
	case res := <-ch:
		g.leave(key, c)
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	case <-ctx.Done():
		g.leave(key, c)
		return v, false, ErrInterrupted
	}
}

func (g *Group[T]) join(ctx context.Context, key string) *call {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	c, ok := g.calls[key]
	if !ok {
		cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: cctx, cancel: cancel}
		g.calls[key] = c
	}
	c.waiters++
	return c
}

// leave は待機者を1人減らし、最後の1人であれば共有実行をキャンセルする
// キャンセル済みの実行に後続の呼び出しが合流しないよう、キーも忘れる
func (g *Group[T]) leave(key string, c *call) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	if g.calls[key] == c {
		delete(g.calls, key)
		g.sf.Forget(key)
	}
}

// Key は予約リクエストの重複判定キーを作成する
func Key(screeningID, seatID, email string) string {
	return screeningID + "|" + seatID + "|" + strings.ToLower(strings.TrimSpace(email))
}
