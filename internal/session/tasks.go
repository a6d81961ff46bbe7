package session

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/task"
)

// CreateTaskInput describes a task creation request.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    task.Priority
	DueDate     *time.Time
	Tags        []string
}

// EditTaskInput describes a full content edit of an existing task.
type EditTaskInput struct {
	Title       string
	Description string
	Completed   bool
	Priority    task.Priority
	DueDate     *time.Time
	Tags        []string
}

// CreateTask creates a task owned by the session's user. The created task
// reaches the canonical set through the live feed, never by local insertion.
func (s *Session) CreateTask(ctx context.Context, input CreateTaskInput) (task.Task, error) {
	if err := s.guard(); err != nil {
		return task.Task{}, err
	}
	user := s.User()

	created, err := task.CreateTask(task.CreateTaskInput{
		Title:       input.Title,
		Description: input.Description,
		OwnerID:     user.ID,
		OwnerEmail:  user.Email,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Tags:        input.Tags,
	}, s.now, s.newID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.store.CreateTask(ctx, created); err != nil {
		return task.Task{}, apperrors.Wrap(apperrors.CodeStorageFailure, "create task", err)
	}
	return created, nil
}

// UpdateTask applies a content edit as the session's user.
func (s *Session) UpdateTask(ctx context.Context, taskID string, input EditTaskInput) (task.Task, error) {
	if err := s.guard(); err != nil {
		return task.Task{}, err
	}
	current, err := s.lookupTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}

	updated, err := task.ApplyEdit(current, task.EditTaskInput{
		Title:       input.Title,
		Description: input.Description,
		Completed:   input.Completed,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Tags:        input.Tags,
		EditorID:    s.User().ID,
	}, s.now)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.store.UpdateTask(ctx, updated); err != nil {
		return task.Task{}, s.storeErr("update task", err)
	}
	return updated, nil
}

// ToggleCompletion flips a task's completed flag, keeping its other content.
func (s *Session) ToggleCompletion(ctx context.Context, taskID string) (task.Task, error) {
	if err := s.guard(); err != nil {
		return task.Task{}, err
	}
	current, err := s.lookupTask(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}

	updated, err := task.ApplyEdit(current, task.EditTaskInput{
		Title:       current.Title,
		Description: current.Description,
		Completed:   !current.Completed,
		Priority:    current.Priority,
		DueDate:     current.DueDate,
		Tags:        current.Tags,
		EditorID:    s.User().ID,
	}, s.now)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.store.UpdateTask(ctx, updated); err != nil {
		return task.Task{}, s.storeErr("toggle task", err)
	}
	return updated, nil
}

// DeleteTask removes a task. Only the owner may delete; shared access never
// grants deletion.
func (s *Session) DeleteTask(ctx context.Context, taskID string) error {
	if err := s.guard(); err != nil {
		return err
	}
	current, err := s.lookupTask(ctx, taskID)
	if err != nil {
		return err
	}
	if current.OwnerID != s.User().ID {
		return apperrors.New(apperrors.CodeTaskDeleteForbidden, "only the task owner can delete it")
	}
	if err := s.store.DeleteTask(ctx, taskID); err != nil {
		return s.storeErr("delete task", err)
	}
	return nil
}

// LoadMoreTasks fetches the next owned page and appends it without
// reordering. Concurrent calls collapse into one in-flight load.
func (s *Session) LoadMoreTasks(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.loadingMore || !s.rec.HasMore() {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	token := s.rec.PageToken()
	userID := s.user.ID
	s.publishLocked()
	s.mu.Unlock()

	page, err := s.store.ReadOwnedTasksPage(ctx, userID, token, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingMore = false
	if err != nil {
		s.publishLocked()
		return s.storeErr("load more tasks", err)
	}
	s.rec.AppendOwnedPage(page.Tasks, page.NextPageToken, page.IsLast)
	s.publishLocked()
	return nil
}

// Refresh reloads the canonical state from scratch: the first owned page, the
// shared-with-me set, and the pending share requests. Pagination restarts.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	user := s.User()

	s.mu.Lock()
	s.loading = true
	s.publishLocked()
	s.mu.Unlock()

	page, pageErr := s.store.ReadOwnedTasksPage(ctx, user.ID, "", s.pageSize)
	shared, sharedErr := s.store.ListSharedTasks(ctx, user.ID)
	pending, pendingErr := s.store.ListPendingRequests(ctx, user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if pageErr != nil {
		s.publishLocked()
		return s.storeErr("refresh owned tasks", pageErr)
	}
	if sharedErr != nil {
		s.publishLocked()
		return s.storeErr("refresh shared tasks", sharedErr)
	}
	if pendingErr != nil {
		s.publishLocked()
		return s.storeErr("refresh share requests", pendingErr)
	}
	s.rec.ApplyOwnedSnapshot(nil)
	s.rec.ResetPagination()
	s.rec.AppendOwnedPage(page.Tasks, page.NextPageToken, page.IsLast)
	s.rec.ApplySharedSnapshot(shared)
	s.pending = pending
	s.publishLocked()
	return nil
}

// lookupTask resolves a task from the canonical set, falling back to storage
// for tasks not yet reconciled locally.
func (s *Session) lookupTask(ctx context.Context, taskID string) (task.Task, error) {
	s.mu.Lock()
	for _, t := range s.rec.Combined() {
		if t.ID == taskID {
			s.mu.Unlock()
			return t, nil
		}
	}
	s.mu.Unlock()

	current, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return task.Task{}, s.storeErr("get task", err)
	}
	return current, nil
}

// storeErr maps storage failures to domain errors.
func (s *Session) storeErr(verb string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.CodeNotFound, verb+": not found", err)
	}
	return apperrors.Wrap(apperrors.CodeStorageFailure, verb, err)
}
