package repository

import (
	"context"
	"database/sql"

	"github.com/kazuhito/yoyaku/internal/model"
)

// ReservationRepo is the MySQL store for committed reservations. The
// admission controller is the only writer and only mutates rows while
// holding the corresponding scope lock; this repo therefore needs no
// locking of its own beyond the usual transaction around the status
// transition.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, store_id, res_date, res_time, party_size, seat_type,
       seat_id, menu, staff, status, created_at`

// Insert stores a newly admitted reservation.
func (r *ReservationRepo) Insert(ctx context.Context, res *model.CommittedReservation) error {
	const q = `INSERT INTO reservations (id, store_id, res_date, res_time, party_size,
               seat_type, seat_id, menu, staff, status, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		res.ID, res.StoreID, res.Date, res.Time, res.PartySize,
		res.SeatType, res.SeatID, res.Menu, res.Staff, res.Status,
		res.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	return err
}

// GetByID loads one reservation; (nil, nil) when the ID is unknown so the
// controller can distinguish absence from datastore failure.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.CommittedReservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &res, nil
}

// MarkCancelled performs the single allowed status transition. The
// controller has already verified the current status under the scope
// lock; the WHERE clause keeps the transition idempotent at the SQL
// level anyway.
func (r *ReservationRepo) MarkCancelled(ctx context.Context, id string) error {
	const q = `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`
	result, err := r.db.ExecContext(ctx, q, model.StatusCancelled, id, model.StatusConfirmed)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReservationNotFound
	}
	return nil
}

// ListConfirmedByDate feeds the usage counter: all confirmed reservations
// for one store and day.
func (r *ReservationRepo) ListConfirmedByDate(ctx context.Context, storeID, date string) ([]model.CommittedReservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE store_id = ? AND res_date = ? AND status = ?`
	return r.list(ctx, q, storeID, date, model.StatusConfirmed)
}

// ListByStoreAndDate returns every reservation (any status) for operator
// review, ordered by slot time.
func (r *ReservationRepo) ListByStoreAndDate(ctx context.Context, storeID, date string) ([]model.CommittedReservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE store_id = ? AND res_date = ? ORDER BY res_time, created_at`
	return r.list(ctx, q, storeID, date)
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...any) ([]model.CommittedReservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CommittedReservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanReservation(row rowScanner) (model.CommittedReservation, error) {
	var res model.CommittedReservation
	err := row.Scan(
		&res.ID, &res.StoreID, &res.Date, &res.Time, &res.PartySize,
		&res.SeatType, &res.SeatID, &res.Menu, &res.Staff, &res.Status,
		&res.CreatedAt,
	)
	return res, err
}
