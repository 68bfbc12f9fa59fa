package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

// BookingRepository は予約リポジトリのインメモリ実装
type BookingRepository struct{ s *Store }

func NewBookingRepository(s *Store) *BookingRepository { return &BookingRepository{s: s} }

func cloneBooking(b *booking.Booking) *booking.Booking {
	c := *b
	return &c
}

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, exists := r.s.bookings[b.ID]; exists {
		return fmt.Errorf("予約作成に失敗: 重複したID %s", b.ID)
	}
	id := b.ID
	if err := track(tx, func() { delete(r.s.bookings, id) }); err != nil {
		return err
	}
	r.s.bookings[id] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return cloneBooking(b), nil
}

func (r *BookingRepository) Save(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.bookings[b.ID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	if current.Version != b.Version {
		return booking.ErrOptimisticLockConflict
	}
	if err := track(tx, func() { r.s.bookings[current.ID] = current }); err != nil {
		return err
	}
	b.Version++
	r.s.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) FindPending(ctx context.Context, tx transaction.Tx, seatID string) (*booking.Booking, error) {
	return r.first(func(b *booking.Booking) bool {
		return b.SeatID == seatID && b.Status == booking.StatusPending
	}), nil
}

func (r *BookingRepository) FindActive(ctx context.Context, tx transaction.Tx, seatID string) (*booking.Booking, error) {
	return r.first(func(b *booking.Booking) bool {
		return b.SeatID == seatID && b.IsActive()
	}), nil
}

func (r *BookingRepository) FindByCustomerEmail(ctx context.Context, email string) ([]*booking.Booking, error) {
	normalized := booking.NormalizeEmail(email)
	return r.filter(func(b *booking.Booking) bool { return b.Customer.Email == normalized }), nil
}

func (r *BookingRepository) FindExpiredPending(ctx context.Context) ([]*booking.Booking, error) {
	now := time.Now()
	return r.filter(func(b *booking.Booking) bool {
		return b.Status == booking.StatusPending && now.After(b.ExpiresAt)
	}), nil
}

func (r *BookingRepository) List(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	all := r.filter(func(*booking.Booking) bool { return true })
	if offset >= len(all) {
		return []*booking.Booking{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r *BookingRepository) first(match func(*booking.Booking) bool) *booking.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, b := range r.s.bookings {
		if match(b) {
			return cloneBooking(b)
		}
	}
	return nil
}

// filter は条件に合う予約を作成日時の降順で返す
func (r *BookingRepository) filter(match func(*booking.Booking) bool) []*booking.Booking {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*booking.Booking, 0)
	for _, b := range r.s.bookings {
		if match(b) {
			result = append(result, cloneBooking(b))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

var _ booking.Repository = (*BookingRepository)(nil)
