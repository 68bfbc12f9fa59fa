package worker

import (
	"sync"
	"time"
)

// HoldKind は座席の一時保持の種類
type HoldKind string

const (
	HoldReservation HoldKind = "reservation" // 仮押さえ
	HoldLock        HoldKind = "lock"        // 編集ロック
)

// Hold は期限付きの一時保持を表すハンドル
// Generation は同じ座席で張り直した保持を区別する
type Hold struct {
	SeatID     string
	Kind       HoldKind
	Generation uint64
	ExpiresAt  time.Time
}

func (h Hold) expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

type holdEntry struct {
	hold  Hold
	timer *time.Timer
}

// HoldScheduler は座席ごとに一時保持の期限タイマーを管理する
//
// タイマー発火時のコールバックは状態を変更する前に座席ロックを取得し、
// Claim に成功した場合のみ期限切れ処理を行う。取消・張り直し済みの保持に対する
// Claim は失敗するため、古いタイマーが後続の予約を巻き戻すことはない。
type HoldScheduler struct {
	mu      sync.Mutex
	entries map[string]*holdEntry
	nextGen uint64
	stopped bool
}

// NewHoldScheduler は新しいスケジューラーを作成する
func NewHoldScheduler() *HoldScheduler {
	return &HoldScheduler{entries: make(map[string]*holdEntry)}
}

// Arm は座席の一時保持を ttl 後に期限切れとする
// 既存の保持は置き換えられる。fire は別の goroutine から呼ばれる
func (s *HoldScheduler) Arm(seatID string, kind HoldKind, ttl time.Duration, fire func(Hold)) Hold {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[seatID]; ok {
		old.timer.Stop()
		delete(s.entries, seatID)
	}

	s.nextGen++
	h := Hold{
		SeatID:     seatID,
		Kind:       kind,
		Generation: s.nextGen,
		ExpiresAt:  time.Now().Add(ttl),
	}
	if s.stopped {
		return h
	}
	e := &holdEntry{hold: h}
	e.timer = time.AfterFunc(ttl, func() { fire(h) })
	s.entries[seatID] = e
	return h
}

// Cancel は座席の一時保持を取り消す。保持が存在した場合は true
func (s *HoldScheduler) Cancel(seatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[seatID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(s.entries, seatID)
	return true
}

// Claim は発火した保持がまだ有効であれば登録を外して true を返す
func (s *HoldScheduler) Claim(h Hold) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[h.SeatID]
	if !ok || e.hold.Generation != h.Generation {
		return false
	}
	delete(s.entries, h.SeatID)
	return true
}

// Live は座席に有効な一時保持があるかを返す
// 期限を過ぎた保持は Claim されずに残っていても有効とみなさない
func (s *HoldScheduler) Live(seatID string) bool {
	_, ok := s.Get(seatID)
	return ok
}

// Get は座席の有効な一時保持を返す
func (s *HoldScheduler) Get(seatID string) (Hold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[seatID]
	if !ok || e.hold.expired(time.Now()) {
		return Hold{}, false
	}
	return e.hold, true
}

// Len は有効な一時保持の数を種類別に返す
func (s *HoldScheduler) Len() map[HoldKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	counts := map[HoldKind]int{HoldReservation: 0, HoldLock: 0}
	for _, e := range s.entries {
		if !e.hold.expired(now) {
			counts[e.hold.Kind]++
		}
	}
	return counts
}

// Stop は全タイマーを停止し、以降の Arm でタイマーを張らない
// 停止後に残った保持は定期照合で解放される
func (s *HoldScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}
}
