package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-seat-booking/internal/domain/transaction"
)

const seatColumns = `id, screening_id, row_label, number, status, current_booking_id, lock_token, created_at, updated_at, version`

type seatRow struct {
	ID               string    `db:"id"`
	ScreeningID      string    `db:"screening_id"`
	RowLabel         string    `db:"row_label"`
	Number           int       `db:"number"`
	Status           string    `db:"status"`
	CurrentBookingID *string   `db:"current_booking_id"`
	LockToken        *string   `db:"lock_token"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
	Version          int       `db:"version"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, ScreeningID: r.ScreeningID, Row: r.RowLabel, Number: r.Number,
		Status: seat.Status(r.Status), CurrentBookingID: r.CurrentBookingID, LockToken: r.LockToken,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt, Version: r.Version,
	}
}

func toSeats(rows []seatRow) []*seat.Seat {
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats
}

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

func (r *SeatRepository) CreateBulk(ctx context.Context, tx transaction.Tx, seats []*seat.Seat) error {
	if len(seats) == 0 {
		return nil
	}

	// バッチサイズごとに分割してマルチバリューINSERTを実行
	const batchSize = 1000
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		if err := r.createBulkBatch(ctx, ext(r.db, tx), seats[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// createBulkBatch はバッチ単位でマルチバリューINSERTを実行
// IDはアプリケーション側で採番し、呼び出し元のエンティティに反映する
func (r *SeatRepository) createBulkBatch(ctx context.Context, e sqlx.ExtContext, seats []*seat.Seat) error {
	const cols = 8
	query := `INSERT INTO seats (id, screening_id, row_label, number, status, created_at, updated_at, version) VALUES `
	args := make([]interface{}, 0, len(seats)*cols)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, s.ID, s.ScreeningID, s.Row, s.Number, string(s.Status), s.CreatedAt, s.UpdatedAt, s.Version)
	}

	query += strings.Join(placeholders, ", ")
	if _, err := e.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("座席一括作成に失敗: %w", err)
	}
	return nil
}

func (r *SeatRepository) GetByID(ctx context.Context, id string) (*seat.Seat, error) {
	return r.get(ctx, r.db, `SELECT `+seatColumns+` FROM seats WHERE id = $1`, id)
}

// GetForUpdate は SELECT ... FOR UPDATE で行ロックを取得する
func (r *SeatRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*seat.Seat, error) {
	return r.get(ctx, ext(r.db, tx), `SELECT `+seatColumns+` FROM seats WHERE id = $1 FOR UPDATE`, id)
}

func (r *SeatRepository) get(ctx context.Context, q sqlx.QueryerContext, query, id string) (*seat.Seat, error) {
	var row seatRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, seat.ErrSeatNotFound
		}
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *SeatRepository) GetByScreeningID(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE screening_id = $1 ORDER BY row_label, number`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, screeningID); err != nil {
		return nil, fmt.Errorf("座席一覧取得に失敗: %w", err)
	}
	return toSeats(rows), nil
}

func (r *SeatRepository) GetAvailableByScreeningID(ctx context.Context, screeningID string) ([]*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE screening_id = $1 AND status = 'available' ORDER BY row_label, number`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, screeningID); err != nil {
		return nil, fmt.Errorf("空席一覧取得に失敗: %w", err)
	}
	return toSeats(rows), nil
}

func (r *SeatRepository) GetByStatus(ctx context.Context, statuses ...seat.Status) ([]*seat.Seat, error) {
	if len(statuses) == 0 {
		return []*seat.Seat{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	query := `SELECT ` + seatColumns + ` FROM seats WHERE status = ANY($1) ORDER BY screening_id, row_label, number`
	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("座席取得に失敗: %w", err)
	}
	return toSeats(rows), nil
}

func (r *SeatRepository) Save(ctx context.Context, tx transaction.Tx, s *seat.Seat) error {
	e := ext(r.db, tx)
	now := time.Now()
	query := `UPDATE seats SET status = $1, current_booking_id = $2, lock_token = $3, updated_at = $4, version = version + 1 WHERE id = $5 AND version = $6`
	result, err := e.ExecContext(ctx, query, string(s.Status), s.CurrentBookingID, s.LockToken, now, s.ID, s.Version)
	if err != nil {
		return fmt.Errorf("座席更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists bool
		if err := sqlx.GetContext(ctx, e, &exists, `SELECT EXISTS(SELECT 1 FROM seats WHERE id = $1)`, s.ID); err != nil {
			return fmt.Errorf("座席更新に失敗: %w", err)
		}
		if !exists {
			return seat.ErrSeatNotFound
		}
		return seat.ErrOptimisticLockConflict
	}
	s.Version++
	s.UpdatedAt = now
	return nil
}

var _ seat.Repository = (*SeatRepository)(nil)
