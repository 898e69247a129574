package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shareit/internal/models"
)

// CreateBookingChecked вставляет бронирование, предварительно проверив
// пересечение по времени с любым существующим бронированием той же вещи.
// Проверка и вставка выполняются в одной транзакции.
func (db *DB) CreateBookingChecked(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	overlapQuery := `SELECT COUNT(*) FROM bookings
                     WHERE item_id = ? AND start_date <= ? AND end_date >= ?`
	err = tx.QueryRowContext(ctx, overlapQuery,
		booking.ItemID, toNanos(booking.End), toNanos(booking.Start)).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check booking overlap: %w", err)
	}
	if count > 0 {
		return ErrTimeCrossing
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (start_date, end_date, item_id, booker_id, status)
         VALUES (?, ?, ?, ?, ?)`,
		toNanos(booking.Start), toNanos(booking.End), booking.ItemID, booking.BookerID, booking.Status)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

const bookingSelect = `SELECT b.id, b.start_date, b.end_date, b.item_id, i.name, b.booker_id, b.status, i.owner_id
                       FROM bookings b JOIN items i ON i.id = b.item_id`

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, status string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBookingsForUser возвращает бронирования пользователя в роли арендатора
// или владельца вещей, отфильтрованные по состоянию, от новых к старым.
func (db *DB) GetBookingsForUser(ctx context.Context, userID int64, role models.Role, state models.BookingState, now time.Time, limit, offset int) ([]*models.Booking, error) {
	query := bookingSelect
	var args []interface{}

	switch role {
	case models.RoleOwner:
		query += ` WHERE i.owner_id = ?`
	default:
		query += ` WHERE b.booker_id = ?`
	}
	args = append(args, userID)

	switch state {
	case models.StateFuture:
		query += ` AND b.start_date > ?`
		args = append(args, toNanos(now))
	case models.StateCurrent:
		query += ` AND b.start_date <= ? AND b.end_date >= ?`
		args = append(args, toNanos(now), toNanos(now))
	case models.StatePast:
		query += ` AND b.end_date < ?`
		args = append(args, toNanos(now))
	case models.StateWaiting:
		query += ` AND b.status = ?`
		args = append(args, models.StatusWaiting)
	case models.StateRejected:
		query += ` AND b.status = ?`
		args = append(args, models.StatusRejected)
	}

	query += ` ORDER BY b.start_date DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// GetLastBooking возвращает последнее начавшееся бронирование вещи.
func (db *DB) GetLastBooking(ctx context.Context, itemID int64, now time.Time) (*models.BookingShort, error) {
	query := `SELECT id, booker_id FROM bookings
              WHERE item_id = ? AND start_date < ?
              ORDER BY end_date DESC LIMIT 1`
	return db.queryBookingShort(ctx, query, itemID, toNanos(now))
}

// GetNextBooking возвращает ближайшее будущее подтвержденное бронирование вещи.
func (db *DB) GetNextBooking(ctx context.Context, itemID int64, now time.Time) (*models.BookingShort, error) {
	query := `SELECT id, booker_id FROM bookings
              WHERE item_id = ? AND start_date > ? AND status = ?
              ORDER BY start_date ASC LIMIT 1`
	return db.queryBookingShort(ctx, query, itemID, toNanos(now), models.StatusApproved)
}

func (db *DB) queryBookingShort(ctx context.Context, query string, args ...interface{}) (*models.BookingShort, error) {
	var short models.BookingShort
	err := db.QueryRowContext(ctx, query, args...).Scan(&short.ID, &short.BookerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query booking: %w", err)
	}
	return &short, nil
}

// GetBookingsForItem возвращает все бронирования вещи, от новых к старым.
func (db *DB) GetBookingsForItem(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	query := bookingSelect + ` WHERE b.item_id = ? ORDER BY b.start_date DESC`
	rows, err := db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query item bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// GetPastApprovedBooking ищет завершенное подтвержденное бронирование вещи
// данным пользователем. Используется для проверки права на комментарий.
func (db *DB) GetPastApprovedBooking(ctx context.Context, bookerID, itemID int64, now time.Time) (*models.Booking, error) {
	query := bookingSelect + ` WHERE b.booker_id = ? AND b.item_id = ? AND b.status = ? AND b.end_date < ?
                               ORDER BY b.end_date DESC LIMIT 1`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, bookerID, itemID, models.StatusApproved, toNanos(now)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get past booking: %w", err)
	}
	return booking, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var booking models.Booking
	var start, end int64
	err := row.Scan(&booking.ID, &start, &end, &booking.ItemID, &booking.ItemName,
		&booking.BookerID, &booking.Status, &booking.ItemOwnerID)
	if err != nil {
		return nil, err
	}
	booking.Start = fromNanos(start)
	booking.End = fromNanos(end)
	return &booking, nil
}
