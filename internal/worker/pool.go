package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/apperr"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/pkg/logger"
)

// QueuePolicy はキューが満杯のときの投入方針
type QueuePolicy string

const (
	// PolicyReject は満杯なら即座に ErrPoolSaturated を返す
	PolicyReject QueuePolicy = "reject"
	// PolicyWait は空きができるか ctx が終了するまで待つ
	PolicyWait QueuePolicy = "wait"
)

// プールのエラー定義
var (
	ErrPoolSaturated = errors.New("ワーカープールが飽和しています")
	ErrPoolStopped   = fmt.Errorf("ワーカープールは停止しています: %w", apperr.ErrOperationInterrupted)
	ErrTaskPanicked  = fmt.Errorf("タスクの実行中にパニックが発生しました: %w", apperr.ErrInternal)
	ErrAwaitAborted  = fmt.Errorf("タスク結果の待機が中断されました: %w", apperr.ErrOperationInterrupted)
)

// Pool は固定数のワーカーと上限付きキューでタスクを実行する
type Pool struct {
	workers int
	policy  QueuePolicy
	queue   chan func()
	mu      sync.RWMutex // stopped の close と投入を排他する
	stopped chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

// NewPool はワーカーを起動した Pool を作成する
func NewPool(workers, queueSize int, policy QueuePolicy) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if policy != PolicyWait {
		policy = PolicyReject
	}
	p := &Pool{
		workers: workers,
		policy:  policy,
		queue:   make(chan func(), queueSize),
		stopped: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.queue:
			p.run(task)
		case <-p.stopped:
			// 停止前に投入済みのタスクは全て実行する
			for {
				select {
				case task := <-p.queue:
					p.run(task)
				default:
					return
				}
			}
		}
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ワーカーでパニックを回復", zap.Any("panic", r))
		}
	}()
	task()
}

// Submit はタスクをキューに投入する
func (p *Pool) Submit(ctx context.Context, task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolStopped
	}
	if p.policy == PolicyReject {
		select {
		case p.queue <- task:
			return nil
		default:
			return ErrPoolSaturated
		}
	}
	select {
	case p.queue <- task:
		return nil
	case <-ctx.Done():
		return ErrAwaitAborted
	}
}

// Stop は新規投入を拒否し、投入済みタスクの完了を待つ
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.stopped)
	p.mu.Unlock()

	p.wg.Wait()
}

// Workers はワーカー数を返す
func (p *Pool) Workers() int {
	return p.workers
}

// QueueSize はキューの容量を返す
func (p *Pool) QueueSize() int {
	return cap(p.queue)
}

// Future は非同期に実行されるタスクの結果
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(v T, err error) {
	f.val, f.err = v, err
	close(f.done)
}

// Done は結果が確定したときに close されるチャネルを返す
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await は結果を待つ。ctx が先に終了した場合は ErrAwaitAborted を返すが、タスク自体は継続する
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ErrAwaitAborted
	}
}

// Go は fn をプールで実行し、その結果の Future を返す
func Go[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (*Future[T], error) {
	f := newFuture[T]()
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("タスクでパニックを回復", zap.Any("panic", r))
				var zero T
				f.complete(zero, ErrTaskPanicked)
			}
		}()
		v, err := fn(ctx)
		f.complete(v, err)
	}
	if err := p.Submit(ctx, task); err != nil {
		return nil, err
	}
	return f, nil
}
