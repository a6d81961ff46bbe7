package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/taskhub/internal/auth/grant"
	"github.com/louisbranch/taskhub/internal/session"
	"github.com/louisbranch/taskhub/internal/storage/sqlite"
	"github.com/louisbranch/taskhub/internal/task"
)

func testSession(t *testing.T) *session.Session {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "taskhub.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sess, err := session.New(session.Config{
		Store: store,
		Identity: grant.StaticProvider{User: task.User{
			ID:    "me",
			Email: "me@example.com",
			Name:  "Me",
		}},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := sess.Start(context.Background()); err != nil {
		t.Fatalf("start session: %v", err)
	}
	t.Cleanup(sess.Close)

	// Seed a second account for share targets.
	if err := store.PutUser(context.Background(), task.User{
		ID:        "friend",
		Email:     "friend@example.com",
		CreatedAt: time.Now().UTC(),
		LastSeen:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed friend account: %v", err)
	}
	return sess
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNewRequiresSession(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil session")
	}
}

func TestTaskCreateAndListHandlers(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	create := taskCreateHandler(sess)
	_, first, err := create(ctx, nil, TaskCreateInput{Title: "Write report", Priority: "HIGH", Tags: []string{"work"}})
	if err != nil {
		t.Fatalf("task create: %v", err)
	}
	if first.Task.Priority != "HIGH" || first.Task.ID == "" {
		t.Fatalf("unexpected create result: %+v", first.Task)
	}
	if _, _, err := create(ctx, nil, TaskCreateInput{Title: "Walk dog"}); err != nil {
		t.Fatalf("task create: %v", err)
	}
	waitFor(t, func() bool { return len(sess.Current().AllTasks) == 2 })

	toggle := taskToggleHandler(sess)
	if _, _, err := toggle(ctx, nil, TaskIDInput{TaskID: first.Task.ID}); err != nil {
		t.Fatalf("task toggle: %v", err)
	}
	waitFor(t, func() bool {
		for _, tsk := range sess.Current().AllTasks {
			if tsk.ID == first.Task.ID && tsk.Completed {
				return true
			}
		}
		return false
	})

	list := taskListHandler(sess)
	_, completed, err := list(ctx, nil, TaskListInput{Filter: "COMPLETED"})
	if err != nil {
		t.Fatalf("task list: %v", err)
	}
	if len(completed.Tasks) != 1 || completed.Tasks[0].ID != first.Task.ID {
		t.Fatalf("expected one completed task, got %+v", completed.Tasks)
	}
	if completed.Total != 2 || completed.Filter != "COMPLETED" {
		t.Fatalf("unexpected list metadata: %+v", completed)
	}

	_, searched, err := list(ctx, nil, TaskListInput{Search: "report"})
	if err != nil {
		t.Fatalf("task search: %v", err)
	}
	// Search bypasses the completed filter set above.
	if len(searched.Tasks) != 1 || searched.Tasks[0].Title != "Write report" {
		t.Fatalf("expected search match, got %+v", searched.Tasks)
	}
}

func TestTaskCreateHandlerRejectsBadDueDate(t *testing.T) {
	sess := testSession(t)
	create := taskCreateHandler(sess)
	if _, _, err := create(context.Background(), nil, TaskCreateInput{Title: "x", DueDate: "tomorrow"}); err == nil {
		t.Fatal("expected due date parse error")
	}
}

func TestTaskCreateHandlerLocalizesErrors(t *testing.T) {
	sess := testSession(t)
	create := taskCreateHandler(sess)
	_, _, err := create(context.Background(), nil, TaskCreateInput{Title: "   "})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Task title cannot be empty") {
		t.Fatalf("expected localized message, got %v", err)
	}
}

func TestTaskDeleteHandler(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	_, created, err := taskCreateHandler(sess)(ctx, nil, TaskCreateInput{Title: "Temp"})
	if err != nil {
		t.Fatalf("task create: %v", err)
	}
	_, deleted, err := taskDeleteHandler(sess)(ctx, nil, TaskIDInput{TaskID: created.Task.ID})
	if err != nil {
		t.Fatalf("task delete: %v", err)
	}
	if !deleted.Deleted || deleted.TaskID != created.Task.ID {
		t.Fatalf("unexpected delete result: %+v", deleted)
	}
	waitFor(t, func() bool { return len(sess.Current().AllTasks) == 0 })
}

func TestShareHandlers(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	_, created, err := taskCreateHandler(sess)(ctx, nil, TaskCreateInput{Title: "Shared doc"})
	if err != nil {
		t.Fatalf("task create: %v", err)
	}

	shareCreate := shareCreateHandler(sess)
	_, offered, err := shareCreate(ctx, nil, ShareCreateInput{
		TaskID:      created.Task.ID,
		TargetEmail: "friend@example.com",
		Permission:  "EDIT",
		Message:     "have a look",
	})
	if err != nil {
		t.Fatalf("share create: %v", err)
	}
	if offered.Request.Status != "PENDING" || offered.Request.Permission != "EDIT" {
		t.Fatalf("unexpected share request: %+v", offered.Request)
	}

	_, _, err = shareCreate(ctx, nil, ShareCreateInput{
		TaskID:      created.Task.ID,
		TargetEmail: "ghost@example.com",
		Permission:  "VIEW",
	})
	if err == nil {
		t.Fatal("expected unknown target error")
	}
	if !strings.Contains(err.Error(), "ghost@example.com") {
		t.Fatalf("expected localized message with email, got %v", err)
	}

	// Nothing is pending for the offering user.
	_, pending, err := sharePendingHandler(sess)(ctx, nil, struct{}{})
	if err != nil {
		t.Fatalf("share pending: %v", err)
	}
	if len(pending.Requests) != 0 {
		t.Fatalf("expected no pending requests for owner, got %+v", pending.Requests)
	}
}

func TestPaginationHandlers(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	if _, _, err := taskCreateHandler(sess)(ctx, nil, TaskCreateInput{Title: "One"}); err != nil {
		t.Fatalf("task create: %v", err)
	}

	_, refreshed, err := taskRefreshHandler(sess)(ctx, nil, struct{}{})
	if err != nil {
		t.Fatalf("task refresh: %v", err)
	}
	if refreshed.Total != 1 || refreshed.HasMore {
		t.Fatalf("unexpected refresh result: %+v", refreshed)
	}

	_, more, err := taskLoadMoreHandler(sess)(ctx, nil, struct{}{})
	if err != nil {
		t.Fatalf("task load more: %v", err)
	}
	if more.HasMore {
		t.Fatalf("expected no further pages, got %+v", more)
	}
}

func TestAnalyticsResourceHandler(t *testing.T) {
	sess := testSession(t)
	ctx := context.Background()

	if _, _, err := taskCreateHandler(sess)(ctx, nil, TaskCreateInput{Title: "One"}); err != nil {
		t.Fatalf("task create: %v", err)
	}
	waitFor(t, func() bool { return len(sess.Current().AllTasks) == 1 })

	result, err := analyticsResourceHandler(sess)(ctx, nil)
	if err != nil {
		t.Fatalf("analytics resource: %v", err)
	}
	if len(result.Contents) != 1 || result.Contents[0].MIMEType != "application/json" {
		t.Fatalf("unexpected resource result: %+v", result)
	}

	var payload AnalyticsPayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Total != 1 || payload.Pending != 1 {
		t.Fatalf("unexpected analytics: %+v", payload)
	}
}
