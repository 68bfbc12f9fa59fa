package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// SeatRepository は座席リポジトリのインメモリ実装
type SeatRepository struct{ s *Store }

func NewSeatRepository(s *Store) *SeatRepository { return &SeatRepository{s: s} }

func cloneSeat(s *seat.Seat) *seat.Seat {
	c := *s
	return &c
}

func (r *SeatRepository) CreateBulk(ctx context.Context, tx transaction.Tx, seats []*seat.Seat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, st := range seats {
		if st.ID == "" {
			st.ID = uuid.NewString()
		}
		if _, exists := r.s.seats[st.ID]; exists {
			return fmt.Errorf("座席一括作成に失敗: 重複したID %s", st.ID)
		}
	}
	for _, st := range seats {
		id := st.ID
		if err := track(tx, func() { delete(r.s.seats, id) }); err != nil {
			return err
		}
		r.s.seats[id] = cloneSeat(st)
	}
	return nil
}

func (r *SeatRepository) GetByID(ctx context.Context, id string) (*seat.Seat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.seats[id]
	if !ok {
		return nil, seat.ErrSeatNotFound
	}
	return cloneSeat(st), nil
}

// GetForUpdate は座席を取得する。行ロックは座席ロックが担うため読み取りのみ行う
func (r *SeatRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*seat.Seat, error) {
	return r.GetByID(ctx, id)
}

func (r *SeatRepository) GetByScreeningID(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	return r.filter(func(st *seat.Seat) bool { return st.ScreeningID == screeningID }), nil
}

func (r *SeatRepository) GetAvailableByScreeningID(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	return r.filter(func(st *seat.Seat) bool {
		return st.ScreeningID == screeningID && st.Status == seat.StatusAvailable
	}), nil
}

func (r *SeatRepository) GetByStatus(ctx context.Context, statuses ...seat.Status) ([]*seat.Seat, error) {
	want := make(map[seat.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	return r.filter(func(st *seat.Seat) bool { return want[st.Status] }), nil
}

func (r *SeatRepository) Save(ctx context.Context, tx transaction.Tx, st *seat.Seat) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.seats[st.ID]
	if !ok {
		return seat.ErrSeatNotFound
	}
	if current.Version != st.Version {
		return seat.ErrOptimisticLockConflict
	}
	if err := track(tx, func() { r.s.seats[current.ID] = current }); err != nil {
		return err
	}
	st.Version++
	r.s.seats[st.ID] = cloneSeat(st)
	return nil
}

func (r *SeatRepository) filter(match func(*seat.Seat) bool) []*seat.Seat {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*seat.Seat, 0)
	for _, st := range r.s.seats {
		if match(st) {
			result = append(result, cloneSeat(st))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ScreeningID != result[j].ScreeningID {
			return result[i].ScreeningID < result[j].ScreeningID
		}
		if result[i].Row != result[j].Row {
			return result[i].Row < result[j].Row
		}
		return result[i].Number < result[j].Number
	})
	return result
}

var _ seat.Repository = (*SeatRepository)(nil)
