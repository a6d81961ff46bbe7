// Package storage defines the persistence and live-feed contracts the task
// core requires from its backing store. The contracts are abstract: no wire
// protocol is implied, and implementations may be remote or in-process.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/taskhub/internal/task"
	"github.com/louisbranch/taskhub/internal/task/share"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// TaskPage stores one page of owned tasks plus the cursor for the next.
type TaskPage struct {
	Tasks         []task.Task
	NextPageToken string
	IsLast        bool
}

// TaskStore persists tasks and serves point-in-time reads.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) error
	GetTask(ctx context.Context, taskID string) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) error
	// DeleteTask removes a task and cascades to its share requests and
	// share grants.
	DeleteTask(ctx context.Context, taskID string) error
	ReadOwnedTasksPage(ctx context.Context, userID string, pageToken string, pageSize int) (TaskPage, error)
	ListOwnedTasks(ctx context.Context, userID string) ([]task.Task, error)
	ListSharedTasks(ctx context.Context, userID string) ([]task.Task, error)
	// SearchTasks is the remote full-scan fallback over owned and shared
	// tasks; consumers may ignore it and search their local projection.
	SearchTasks(ctx context.Context, userID string, substring string) ([]task.Task, error)
}

// UserStore persists account records.
type UserStore interface {
	PutUser(ctx context.Context, u task.User) error
	GetUser(ctx context.Context, userID string) (task.User, error)
	GetUserByEmail(ctx context.Context, email string) (task.User, error)
}

// ShareResponse describes the committed outcome of a share decision.
type ShareResponse struct {
	RequestID   string
	Status      share.Status
	TargetID    string
	RespondedAt time.Time
}

// ShareStore persists share requests.
type ShareStore interface {
	CreateShareRequest(ctx context.Context, req share.Request) error
	GetShareRequest(ctx context.Context, requestID string) (share.Request, error)
	ListPendingRequests(ctx context.Context, targetEmail string) ([]share.Request, error)
	// ApplyShareResponse commits a decision as a single atomic unit: the
	// request's status and responded-at, and on acceptance the grant of the
	// target user to the task's sharing set. Partial application is a
	// consistency violation the store must never expose.
	ApplyShareResponse(ctx context.Context, response ShareResponse) error
}

// TaskSubscription carries one live task feed. Updates deliver refreshed
// task sets; Errs delivers out-of-band feed failures; Cancel is idempotent
// and stops further deliveries.
type TaskSubscription struct {
	Updates <-chan []task.Task
	Errs    <-chan error
	Cancel  context.CancelFunc
}

// TaskFeed serves long-lived live-update subscriptions.
type TaskFeed interface {
	SubscribeOwnedTasks(ctx context.Context, userID string) (*TaskSubscription, error)
	SubscribeSharedTasks(ctx context.Context, userID string) (*TaskSubscription, error)
}

// Store aggregates the full collaborator contract the task core needs.
type Store interface {
	TaskStore
	UserStore
	ShareStore
	TaskFeed
}
