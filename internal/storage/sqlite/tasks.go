package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/storage/cursor"
	"github.com/louisbranch/taskhub/internal/task"
)

const taskColumns = `id, title, description, completed, owner_id, owner_email,
	 created_at, updated_at, last_modified_by, priority, due_date`

// CreateTask inserts one task and its tags.
func (s *Store) CreateTask(ctx context.Context, t task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	taskID := strings.TrimSpace(t.ID)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title is required")
	}
	ownerID := strings.TrimSpace(t.OwnerID)
	if ownerID == "" {
		return fmt.Errorf("task owner id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	completed := 0
	if t.Completed {
		completed = 1
	}
	var dueDate sql.NullInt64
	if t.DueDate != nil {
		dueDate = sql.NullInt64{Int64: toMillis(*t.DueDate), Valid: true}
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO tasks (id, title, description, completed, owner_id, owner_email,
		   created_at, updated_at, last_modified_by, priority, due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID,
		t.Title,
		t.Description,
		completed,
		ownerID,
		t.OwnerEmail,
		toMillis(t.CreatedAt),
		toMillis(t.UpdatedAt),
		t.LastModifiedBy,
		task.PriorityLabel(t.Priority),
		dueDate,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if err := insertTags(ctx, tx, taskID, t.Tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create task: %w", err)
	}

	s.publishTaskUsers(ctx, append([]string{ownerID}, t.SharedWith...))
	return nil
}

// GetTask returns one task with its sharing set and tags.
func (s *Store) GetTask(ctx context.Context, taskID string) (task.Task, error) {
	if err := ctx.Err(); err != nil {
		return task.Task{}, err
	}
	if s == nil || s.sqlDB == nil {
		return task.Task{}, fmt.Errorf("storage is not configured")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return task.Task{}, fmt.Errorf("task id is required")
	}

	tasks, err := s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if len(tasks) == 0 {
		return task.Task{}, storage.ErrNotFound
	}
	return tasks[0], nil
}

// UpdateTask replaces one task's mutable content and tags. The sharing set
// is managed through share acceptance and is not written here.
func (s *Store) UpdateTask(ctx context.Context, t task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	taskID := strings.TrimSpace(t.ID)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	completed := 0
	if t.Completed {
		completed = 1
	}
	var dueDate sql.NullInt64
	if t.DueDate != nil {
		dueDate = sql.NullInt64{Int64: toMillis(*t.DueDate), Valid: true}
	}
	result, err := tx.ExecContext(
		ctx,
		`UPDATE tasks SET
		   title = ?, description = ?, completed = ?,
		   updated_at = ?, last_modified_by = ?, priority = ?, due_date = ?
		 WHERE id = ?`,
		t.Title,
		t.Description,
		completed,
		toMillis(t.UpdatedAt),
		t.LastModifiedBy,
		task.PriorityLabel(t.Priority),
		dueDate,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("clear task tags: %w", err)
	}
	if err := insertTags(ctx, tx, taskID, t.Tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update task: %w", err)
	}

	s.notifyTask(ctx, taskID)
	return nil
}

// DeleteTask removes one task and cascades to its share grants, tags, and
// share requests.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return fmt.Errorf("task id is required")
	}

	// Capture the audience before the rows disappear.
	affected, err := s.taskUsers(ctx, taskID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM share_requests WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete share requests: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_shares WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task shares: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete task tags: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task rows affected: %w", err)
	}
	if deleted == 0 {
		return storage.ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete task: %w", err)
	}

	s.publishTaskUsers(ctx, affected)
	return nil
}

// ReadOwnedTasksPage returns one keyset page of a user's owned tasks, newest
// first. The returned token is opaque and bound to the owner.
func (s *Store) ReadOwnedTasksPage(ctx context.Context, userID string, pageToken string, pageSize int) (storage.TaskPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.TaskPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TaskPage{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.TaskPage{}, fmt.Errorf("user id is required")
	}
	if pageSize <= 0 {
		return storage.TaskPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		tasks []task.Task
		err   error
	)
	pageToken = strings.TrimSpace(pageToken)
	if pageToken == "" {
		tasks, err = s.queryTasks(
			ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE owner_id = ?
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			userID,
			pageSize+1,
		)
	} else {
		decoded, decodeErr := cursor.Decode(pageToken)
		if decodeErr != nil {
			return storage.TaskPage{}, fmt.Errorf("decode page token: %w", decodeErr)
		}
		if decoded.OwnerHash != cursor.HashOwner(userID) {
			return storage.TaskPage{}, fmt.Errorf("page token does not belong to this owner")
		}
		tasks, err = s.queryTasks(
			ctx,
			`SELECT `+taskColumns+` FROM tasks
			 WHERE owner_id = ?
			   AND (created_at < ? OR (created_at = ? AND id < ?))
			 ORDER BY created_at DESC, id DESC
			 LIMIT ?`,
			userID,
			decoded.CreatedAt,
			decoded.CreatedAt,
			decoded.ID,
			pageSize+1,
		)
	}
	if err != nil {
		return storage.TaskPage{}, err
	}

	page := storage.TaskPage{Tasks: tasks, IsLast: true}
	if len(tasks) > pageSize {
		page.Tasks = tasks[:pageSize]
		page.IsLast = false
		boundary := page.Tasks[pageSize-1]
		token, encodeErr := cursor.Encode(cursor.Cursor{
			CreatedAt: toMillis(boundary.CreatedAt),
			ID:        boundary.ID,
			OwnerHash: cursor.HashOwner(userID),
		})
		if encodeErr != nil {
			return storage.TaskPage{}, fmt.Errorf("encode page token: %w", encodeErr)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListOwnedTasks returns a point-in-time snapshot of a user's owned tasks,
// newest first.
func (s *Store) ListOwnedTasks(ctx context.Context, userID string) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.queryTasks(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// ListSharedTasks returns a point-in-time snapshot of the tasks shared with
// a user, newest first.
func (s *Store) ListSharedTasks(ctx context.Context, userID string) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.queryTasks(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE id IN (SELECT task_id FROM task_shares WHERE user_id = ?)
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
}

// SearchTasks returns the user's owned and shared tasks matching a
// case-insensitive substring across title, description, and tags.
func (s *Store) SearchTasks(ctx context.Context, userID string, substring string) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	substring = strings.TrimSpace(substring)
	if substring == "" {
		return nil, nil
	}

	pattern := "%" + strings.ToLower(substring) + "%"
	return s.queryTasks(
		ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE (owner_id = ? OR id IN (SELECT task_id FROM task_shares WHERE user_id = ?))
		   AND (lower(title) LIKE ?
		     OR lower(description) LIKE ?
		     OR id IN (SELECT task_id FROM task_tags WHERE lower(tag) LIKE ?))
		 ORDER BY created_at DESC, id DESC`,
		userID,
		userID,
		pattern,
		pattern,
		pattern,
	)
}

// queryTasks runs a task select and attaches sharing sets and tags.
func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]task.Task, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var (
			t         task.Task
			completed int
			createdAt int64
			updatedAt int64
			priority  string
			dueDate   sql.NullInt64
		)
		if err := rows.Scan(
			&t.ID,
			&t.Title,
			&t.Description,
			&completed,
			&t.OwnerID,
			&t.OwnerEmail,
			&createdAt,
			&updatedAt,
			&t.LastModifiedBy,
			&priority,
			&dueDate,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Completed = completed != 0
		t.CreatedAt = fromMillis(createdAt)
		t.UpdatedAt = fromMillis(updatedAt)
		t.Priority = task.PriorityFromLabel(priority)
		if dueDate.Valid {
			due := fromMillis(dueDate.Int64)
			t.DueDate = &due
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	if err := s.attachTaskDetails(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// attachTaskDetails fills SharedWith and Tags for the given tasks.
func (s *Store) attachTaskDetails(ctx context.Context, tasks []task.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	index := make(map[string]int, len(tasks))
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		placeholders = append(placeholders, "?")
		args = append(args, t.ID)
	}
	in := strings.Join(placeholders, ", ")

	shareRows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT task_id, user_id FROM task_shares
		 WHERE task_id IN (`+in+`)
		 ORDER BY user_id ASC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query task shares: %w", err)
	}
	defer shareRows.Close()
	for shareRows.Next() {
		var taskID, userID string
		if err := shareRows.Scan(&taskID, &userID); err != nil {
			return fmt.Errorf("scan task share: %w", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].SharedWith = append(tasks[i].SharedWith, userID)
		}
	}
	if err := shareRows.Err(); err != nil {
		return fmt.Errorf("query task shares: %w", err)
	}

	tagRows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT task_id, tag FROM task_tags
		 WHERE task_id IN (`+in+`)
		 ORDER BY task_id, position ASC`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query task tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var taskID, tag string
		if err := tagRows.Scan(&taskID, &tag); err != nil {
			return fmt.Errorf("scan task tag: %w", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Tags = append(tasks[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return fmt.Errorf("query task tags: %w", err)
	}
	return nil
}

// taskUsers returns the owner plus the sharing set of one task.
func (s *Store) taskUsers(ctx context.Context, taskID string) ([]string, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT owner_id FROM tasks WHERE id = ?`, taskID)
	var ownerID string
	if err := row.Scan(&ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get task owner: %w", err)
	}

	users := []string{ownerID}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT user_id FROM task_shares WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query task shares: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan task share: %w", err)
		}
		users = append(users, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query task shares: %w", err)
	}
	return users, nil
}

// notifyTask publishes feed updates to a task's current audience.
func (s *Store) notifyTask(ctx context.Context, taskID string) {
	users, err := s.taskUsers(ctx, taskID)
	if err != nil {
		return
	}
	s.publishTaskUsers(ctx, users)
}

func insertTags(ctx context.Context, tx *sql.Tx, taskID string, tags []string) error {
	for position, tag := range tags {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO task_tags (task_id, position, tag) VALUES (?, ?, ?)`,
			taskID,
			position,
			tag,
		); err != nil {
			return fmt.Errorf("insert task tag: %w", err)
		}
	}
	return nil
}
