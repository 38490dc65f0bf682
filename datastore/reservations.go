package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jcondina/sum-reservations/booking"
	"github.com/jcondina/sum-reservations/models"
)

// Postgres error codes that signal the slot exclusion constraint fired.
const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

type ReservationRepository struct {
	db *sqlx.DB
}

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts the reservation after re-counting overlaps inside the
// same transaction. The schema's exclusion constraint backs this up, so
// a concurrent insert that slips past the count still fails closed.
// Either path surfaces as booking.ErrSlotTaken.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM reservations
		WHERE date = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND status <> 'cancelled'
	`
	var conflicts int
	if err := tx.GetContext(ctx, &conflicts, countQuery, res.Date, res.StartTime, res.EndTime); err != nil {
		rollback(tx, err)
		return fmt.Errorf("failed to count overlapping reservations: %w", err)
	}
	if conflicts > 0 {
		rollback(tx, booking.ErrSlotTaken)
		return booking.ErrSlotTaken
	}

	insertQuery := `
		INSERT INTO reservations (date, start_time, end_time, name, email, phone, guests, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = tx.GetContext(ctx, &res.ID, insertQuery,
		res.Date, res.StartTime, res.EndTime,
		res.Name, res.Email, res.Phone, res.Guests,
		res.Status, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		rollback(tx, err)
		if isSlotConstraintViolation(err) {
			return booking.ErrSlotTaken
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isSlotConstraintViolation(err) {
			return booking.ErrSlotTaken
		}
		return fmt.Errorf("failed to commit reservation insert: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	query := `
		SELECT id, date, start_time, end_time, name, email, phone, guests, status, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`
	var res models.Reservation
	if err := r.db.GetContext(ctx, &res, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation %d not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to get reservation %d: %w", id, err)
	}
	return &res, nil
}

// Update writes the full merged record. The caller re-validates before
// calling, so every column is written, not only the changed ones.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	query := `
		UPDATE reservations
		SET date = $2,
			start_time = $3,
			end_time = $4,
			name = $5,
			email = $6,
			phone = $7,
			guests = $8,
			status = $9,
			updated_at = $10
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		res.ID, res.Date, res.StartTime, res.EndTime,
		res.Name, res.Email, res.Phone, res.Guests,
		res.Status, res.UpdatedAt,
	)
	if err != nil {
		if isSlotConstraintViolation(err) {
			return booking.ErrSlotTaken
		}
		return fmt.Errorf("failed to update reservation %d: %w", res.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("reservation %d not found: %w", res.ID, sql.ErrNoRows)
	}
	return nil
}

// Delete removes the reservation. Deleting an id that does not exist
// is not an error.
func (r *ReservationRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM reservations WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete reservation %d: %w", id, err)
	}
	return nil
}

func (r *ReservationRepository) ListAll(ctx context.Context) ([]models.Reservation, error) {
	query := `
		SELECT id, date, start_time, end_time, name, email, phone, guests, status, created_at, updated_at
		FROM reservations
		ORDER BY date ASC, start_time ASC
	`
	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

// ListAllWithRequester joins each reservation's contact email against
// the users table for the moderation view. Reservations whose email
// matches no user come back with a nil requester.
func (r *ReservationRepository) ListAllWithRequester(ctx context.Context) ([]models.AdminReservation, error) {
	query := `
		SELECT r.id, r.date, r.start_time, r.end_time, r.name, r.email, r.phone, r.guests, r.status, r.created_at, r.updated_at,
		       u.name AS requester_name, u.email AS requester_email
		FROM reservations r
		LEFT JOIN users u ON r.email = u.email
		ORDER BY r.date DESC, r.start_time DESC
	`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations with requester: %w", err)
	}
	defer rows.Close()

	var reservations []models.AdminReservation
	for rows.Next() {
		var res models.AdminReservation
		var requesterName, requesterEmail sql.NullString
		err := rows.Scan(
			&res.ID, &res.Date, &res.StartTime, &res.EndTime,
			&res.Name, &res.Email, &res.Phone, &res.Guests,
			&res.Status, &res.CreatedAt, &res.UpdatedAt,
			&requesterName, &requesterEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		if requesterEmail.Valid {
			res.Requester = &models.Requester{Email: requesterEmail.String}
			if requesterName.Valid {
				name := requesterName.String
				res.Requester.Name = &name
			}
		}
		reservations = append(reservations, res)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation rows: %w", err)
	}
	return reservations, nil
}

// CountOverlapping counts non-cancelled reservations on the given date
// whose [start, end) interval overlaps the proposed one. excludeID
// keeps a reservation from conflicting with itself on update; pass 0
// when creating.
func (r *ReservationRepository) CountOverlapping(ctx context.Context, date, start, end time.Time, excludeID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM reservations
		WHERE date = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND status <> 'cancelled'
		  AND id <> $4
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, date, start, end, excludeID); err != nil {
		return 0, fmt.Errorf("failed to count overlapping reservations: %w", err)
	}
	return count, nil
}

func rollback(tx *sqlx.Tx, cause error) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		slog.Error("rollback failed", "error", rbErr, "cause", cause)
	}
}

func isSlotConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqExclusionViolation || pqErr.Code == pqUniqueViolation
}
