package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/booking"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

const bookingColumns = `id, screening_id, seat_id, customer_name, customer_email, customer_phone, status, price, expires_at, confirmed_at, cancelled_at, created_at, updated_at, version`

type bookingRow struct {
	ID            string     `db:"id"`
	ScreeningID   string     `db:"screening_id"`
	SeatID        string     `db:"seat_id"`
	CustomerName  string     `db:"customer_name"`
	CustomerEmail string     `db:"customer_email"`
	CustomerPhone string     `db:"customer_phone"`
	Status        string     `db:"status"`
	Price         int        `db:"price"`
	ExpiresAt     time.Time  `db:"expires_at"`
	ConfirmedAt   *time.Time `db:"confirmed_at"`
	CancelledAt   *time.Time `db:"cancelled_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	Version       int        `db:"version"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: r.ID, ScreeningID: r.ScreeningID, SeatID: r.SeatID,
		Customer: booking.Customer{Name: r.CustomerName, Email: r.CustomerEmail, Phone: r.CustomerPhone},
		Status:   booking.Status(r.Status), Price: r.Price, ExpiresAt: r.ExpiresAt,
		ConfirmedAt: r.ConfirmedAt, CancelledAt: r.CancelledAt,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

func toBookings(rows []bookingRow) []*booking.Booking {
	result := make([]*booking.Booking, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository { return &BookingRepository{db: db} }

func (r *BookingRepository) Create(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	query := `INSERT INTO bookings (screening_id, seat_id, customer_name, customer_email, customer_phone, status, price, expires_at, created_at, updated_at, version) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`
	err := ext(r.db, tx).QueryRowxContext(ctx, query,
		b.ScreeningID, b.SeatID, b.Customer.Name, b.Customer.Email, b.Customer.Phone,
		string(b.Status), b.Price, b.ExpiresAt, b.CreatedAt, b.UpdatedAt, b.Version,
	).Scan(&b.ID)
	if err != nil {
		// uq_bookings_active_seat: 1座席につき有効な予約は1件まで
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return booking.ErrSeatAlreadyPending
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*booking.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) Save(ctx context.Context, tx transaction.Tx, b *booking.Booking) error {
	e := ext(r.db, tx)
	query := `UPDATE bookings SET status = $1, confirmed_at = $2, cancelled_at = $3, updated_at = $4, version = version + 1 WHERE id = $5 AND version = $6`
	result, err := e.ExecContext(ctx, query, string(b.Status), b.ConfirmedAt, b.CancelledAt, b.UpdatedAt, b.ID, b.Version)
	if err != nil {
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := sqlx.GetContext(ctx, e, &exists, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, b.ID); err != nil {
			return fmt.Errorf("予約更新に失敗: %w", err)
		}
		if !exists {
			return booking.ErrBookingNotFound
		}
		return booking.ErrOptimisticLockConflict
	}
	b.Version++
	return nil
}

func (r *BookingRepository) FindPending(ctx context.Context, tx transaction.Tx, seatID string) (*booking.Booking, error) {
	return r.findOne(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE seat_id = $1 AND status = 'pending' LIMIT 1`, seatID)
}

func (r *BookingRepository) FindActive(ctx context.Context, tx transaction.Tx, seatID string) (*booking.Booking, error) {
	return r.findOne(ctx, tx, `SELECT `+bookingColumns+` FROM bookings WHERE seat_id = $1 AND status IN ('pending', 'confirmed') LIMIT 1`, seatID)
}

// findOne は該当なしの場合に nil, nil を返す
func (r *BookingRepository) findOne(ctx context.Context, tx transaction.Tx, query, seatID string) (*booking.Booking, error) {
	var row bookingRow
	if err := sqlx.GetContext(ctx, ext(r.db, tx), &row, query, seatID); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) FindByCustomerEmail(ctx context.Context, email string) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE customer_email = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &rows, query, booking.NormalizeEmail(email)); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) FindExpiredPending(ctx context.Context) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND expires_at < NOW() ORDER BY expires_at`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("期限切れ予約取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) List(ctx context.Context, limit, offset int) ([]*booking.Booking, error) {
	var rows []bookingRow
	query := `SELECT ` + bookingColumns + ` FROM bookings ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

var _ booking.Repository = (*BookingRepository)(nil)
