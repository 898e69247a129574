package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shareit/internal/models"
)

func (db *DB) CreateRequest(ctx context.Context, req *models.ItemRequest) error {
	query := `INSERT INTO requests (description, requester_id, created) VALUES (?, ?, ?)`
	result, err := db.ExecContext(ctx, query, req.Description, req.RequesterID, toNanos(req.Created))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

func (db *DB) GetRequestByID(ctx context.Context, id int64) (*models.ItemRequest, error) {
	query := `SELECT id, description, requester_id, created FROM requests WHERE id = ?`
	req, err := scanRequest(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// GetRequestsByRequesterID возвращает собственные запросы пользователя,
// свежие первыми.
func (db *DB) GetRequestsByRequesterID(ctx context.Context, requesterID int64) ([]*models.ItemRequest, error) {
	query := `SELECT id, description, requester_id, created FROM requests
              WHERE requester_id = ? ORDER BY created DESC`
	return db.queryRequests(ctx, query, requesterID)
}

// GetRequestsExcludingRequester возвращает чужие запросы постранично.
func (db *DB) GetRequestsExcludingRequester(ctx context.Context, requesterID int64, limit, offset int) ([]*models.ItemRequest, error) {
	query := `SELECT id, description, requester_id, created FROM requests
              WHERE requester_id != ? ORDER BY created DESC LIMIT ? OFFSET ?`
	return db.queryRequests(ctx, query, requesterID, limit, offset)
}

func (db *DB) queryRequests(ctx context.Context, query string, args ...interface{}) ([]*models.ItemRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.ItemRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*models.ItemRequest, error) {
	var req models.ItemRequest
	var created int64
	if err := row.Scan(&req.ID, &req.Description, &req.RequesterID, &created); err != nil {
		return nil, err
	}
	req.Created = fromNanos(created)
	return &req, nil
}
