package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/task/share"
)

const shareRequestColumns = `id, task_id, owner_id, owner_email, target_email,
	 target_id, permission, status, message, created_at, responded_at`

// CreateShareRequest inserts one pending share request.
func (s *Store) CreateShareRequest(ctx context.Context, req share.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	requestID := strings.TrimSpace(req.ID)
	if requestID == "" {
		return fmt.Errorf("share request id is required")
	}
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return fmt.Errorf("share request task id is required")
	}

	var respondedAt sql.NullInt64
	if req.RespondedAt != nil {
		respondedAt = sql.NullInt64{Int64: toMillis(*req.RespondedAt), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO share_requests (id, task_id, owner_id, owner_email, target_email,
		   target_id, permission, status, message, created_at, responded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		requestID,
		taskID,
		req.OwnerID,
		req.OwnerEmail,
		req.TargetEmail,
		req.TargetID,
		share.PermissionLabel(req.Permission),
		share.StatusLabel(req.Status),
		req.Message,
		toMillis(req.CreatedAt),
		respondedAt,
	)
	if err != nil {
		return fmt.Errorf("insert share request: %w", err)
	}
	return nil
}

// GetShareRequest returns one share request by ID.
func (s *Store) GetShareRequest(ctx context.Context, requestID string) (share.Request, error) {
	if err := ctx.Err(); err != nil {
		return share.Request{}, err
	}
	if s == nil || s.sqlDB == nil {
		return share.Request{}, fmt.Errorf("storage is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return share.Request{}, fmt.Errorf("share request id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+shareRequestColumns+` FROM share_requests WHERE id = ?`,
		requestID,
	)
	req, err := scanShareRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return share.Request{}, storage.ErrNotFound
		}
		return share.Request{}, err
	}
	return req, nil
}

// ListPendingRequests returns the pending requests addressed to an email,
// oldest first.
func (s *Store) ListPendingRequests(ctx context.Context, targetEmail string) ([]share.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	targetEmail = strings.TrimSpace(targetEmail)
	if targetEmail == "" {
		return nil, fmt.Errorf("target email is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+shareRequestColumns+` FROM share_requests
		 WHERE target_email = ? COLLATE NOCASE AND status = ?
		 ORDER BY created_at ASC, id ASC`,
		targetEmail,
		share.StatusLabel(share.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending share requests: %w", err)
	}
	defer rows.Close()

	var requests []share.Request
	for rows.Next() {
		req, err := scanShareRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query pending share requests: %w", err)
	}
	return requests, nil
}

// ApplyShareResponse commits a share decision in one transaction: the request
// row transitions, and on acceptance the target joins the task's sharing set.
func (s *Store) ApplyShareResponse(ctx context.Context, response storage.ShareResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	requestID := strings.TrimSpace(response.RequestID)
	if requestID == "" {
		return fmt.Errorf("share request id is required")
	}
	if !response.Status.Terminal() {
		return fmt.Errorf("share response status must be terminal")
	}
	targetID := strings.TrimSpace(response.TargetID)
	if targetID == "" {
		return fmt.Errorf("share response target id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin share response: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		`SELECT task_id, owner_id, status FROM share_requests WHERE id = ?`,
		requestID,
	)
	var taskID, ownerID, status string
	if err := row.Scan(&taskID, &ownerID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("get share request: %w", err)
	}
	if share.StatusFromLabel(status) != share.StatusPending {
		return fmt.Errorf("share request %s is not pending", requestID)
	}

	_, err = tx.ExecContext(
		ctx,
		`UPDATE share_requests SET status = ?, target_id = ?, responded_at = ? WHERE id = ?`,
		share.StatusLabel(response.Status),
		targetID,
		toMillis(response.RespondedAt),
		requestID,
	)
	if err != nil {
		return fmt.Errorf("update share request: %w", err)
	}

	if response.Status == share.StatusAccepted {
		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO task_shares (task_id, user_id) VALUES (?, ?)
			 ON CONFLICT(task_id, user_id) DO NOTHING`,
			taskID,
			targetID,
		)
		if err != nil {
			return fmt.Errorf("insert task share: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit share response: %w", err)
	}

	s.publishTaskUsers(ctx, []string{ownerID, targetID})
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShareRequest(row rowScanner) (share.Request, error) {
	var (
		req         share.Request
		permission  string
		status      string
		createdAt   int64
		respondedAt sql.NullInt64
	)
	err := row.Scan(
		&req.ID,
		&req.TaskID,
		&req.OwnerID,
		&req.OwnerEmail,
		&req.TargetEmail,
		&req.TargetID,
		&permission,
		&status,
		&req.Message,
		&createdAt,
		&respondedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return share.Request{}, err
		}
		return share.Request{}, fmt.Errorf("scan share request: %w", err)
	}
	req.Permission = share.PermissionFromLabel(permission)
	req.Status = share.StatusFromLabel(status)
	req.CreatedAt = fromMillis(createdAt)
	if respondedAt.Valid {
		responded := fromMillis(respondedAt.Int64)
		req.RespondedAt = &responded
	}
	return req, nil
}
