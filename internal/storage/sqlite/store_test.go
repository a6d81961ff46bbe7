package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/task"
	"github.com/louisbranch/taskhub/internal/task/share"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "taskhub.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func baseTime() time.Time {
	return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func testTask(id, ownerID string, offset time.Duration) task.Task {
	createdAt := baseTime().Add(offset)
	return task.Task{
		ID:             id,
		Title:          "Task " + id,
		Description:    "description",
		OwnerID:        ownerID,
		OwnerEmail:     ownerID + "@example.com",
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
		LastModifiedBy: ownerID,
		Priority:       task.PriorityMedium,
	}
}

func testUser(id string) task.User {
	return task.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "User " + id,
		CreatedAt: baseTime(),
		LastSeen:  baseTime(),
		Online:    true,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestUserRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := testUser("u1")
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("put user: %v", err)
	}

	got, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != user.Email || !got.Online {
		t.Fatalf("unexpected user: %+v", got)
	}

	byEmail, err := store.GetUserByEmail(ctx, "u1@example.com")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if byEmail.ID != "u1" {
		t.Fatalf("expected u1, got %q", byEmail.ID)
	}

	user.Name = "Renamed"
	user.Online = false
	if err := store.PutUser(ctx, user); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	updated, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("get updated user: %v", err)
	}
	if updated.Name != "Renamed" || updated.Online {
		t.Fatalf("expected upsert to replace, got %+v", updated)
	}

	if _, err := store.GetUser(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	due := baseTime().Add(48 * time.Hour)
	created := testTask("t1", "u1", 0)
	created.Tags = []string{"work", "urgent"}
	created.DueDate = &due

	if err := store.CreateTask(ctx, created); err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Title != created.Title || got.Priority != task.PriorityMedium {
		t.Fatalf("unexpected task: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" || got.Tags[1] != "urgent" {
		t.Fatalf("expected tag order preserved, got %v", got.Tags)
	}
	if got.DueDate == nil || !got.DueDate.Equal(due) {
		t.Fatalf("expected due date %v, got %v", due, got.DueDate)
	}

	got.Title = "Renamed"
	got.Completed = true
	got.Tags = []string{"home"}
	got.DueDate = nil
	if err := store.UpdateTask(ctx, got); err != nil {
		t.Fatalf("update task: %v", err)
	}
	updated, err := store.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("get updated task: %v", err)
	}
	if updated.Title != "Renamed" || !updated.Completed || updated.DueDate != nil {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "home" {
		t.Fatalf("expected tags replaced, got %v", updated.Tags)
	}

	if err := store.UpdateTask(ctx, testTask("missing", "u1", 0)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing update, got %v", err)
	}
	if _, err := store.GetTask(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTaskCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateTask(ctx, testTask("t1", "u1", 0)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	request := share.Request{
		ID:          "r1",
		TaskID:      "t1",
		OwnerID:     "u1",
		TargetEmail: "u2@example.com",
		Permission:  share.PermissionView,
		Status:      share.StatusPending,
		CreatedAt:   baseTime(),
	}
	if err := store.CreateShareRequest(ctx, request); err != nil {
		t.Fatalf("create share request: %v", err)
	}
	if err := store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   "r1",
		Status:      share.StatusAccepted,
		TargetID:    "u2",
		RespondedAt: baseTime().Add(time.Minute),
	}); err != nil {
		t.Fatalf("apply share response: %v", err)
	}

	if err := store.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if _, err := store.GetTask(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected task gone, got %v", err)
	}
	if _, err := store.GetShareRequest(ctx, "r1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected share request cascade, got %v", err)
	}
	sharedWith, err := store.ListSharedTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("list shared tasks: %v", err)
	}
	if len(sharedWith) != 0 {
		t.Fatalf("expected share grants cascade, got %v", sharedWith)
	}

	if err := store.DeleteTask(ctx, "t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestReadOwnedTasksPage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Minute
		if err := store.CreateTask(ctx, testTask(string(rune('a'+i)), "u1", offset)); err != nil {
			t.Fatalf("create task %d: %v", i, err)
		}
	}
	if err := store.CreateTask(ctx, testTask("other", "u2", 0)); err != nil {
		t.Fatalf("create other task: %v", err)
	}

	first, err := store.ReadOwnedTasksPage(ctx, "u1", "", 2)
	if err != nil {
		t.Fatalf("read first page: %v", err)
	}
	if len(first.Tasks) != 2 || first.IsLast || first.NextPageToken == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}
	if first.Tasks[0].ID != "e" || first.Tasks[1].ID != "d" {
		t.Fatalf("expected newest first, got %v %v", first.Tasks[0].ID, first.Tasks[1].ID)
	}

	second, err := store.ReadOwnedTasksPage(ctx, "u1", first.NextPageToken, 2)
	if err != nil {
		t.Fatalf("read second page: %v", err)
	}
	if len(second.Tasks) != 2 || second.Tasks[0].ID != "c" || second.Tasks[1].ID != "b" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	last, err := store.ReadOwnedTasksPage(ctx, "u1", second.NextPageToken, 2)
	if err != nil {
		t.Fatalf("read last page: %v", err)
	}
	if len(last.Tasks) != 1 || last.Tasks[0].ID != "a" || !last.IsLast {
		t.Fatalf("unexpected last page: %+v", last)
	}

	// Tokens are bound to their owner.
	if _, err := store.ReadOwnedTasksPage(ctx, "u2", first.NextPageToken, 2); err == nil {
		t.Fatal("expected owner mismatch error")
	}
	if _, err := store.ReadOwnedTasksPage(ctx, "u1", "", 0); err == nil {
		t.Fatal("expected page size error")
	}
}

func TestPaginationTiebreakOnEqualCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.CreateTask(ctx, testTask(id, "u1", 0)); err != nil {
			t.Fatalf("create task %s: %v", id, err)
		}
	}

	var got []string
	token := ""
	for {
		page, err := store.ReadOwnedTasksPage(ctx, "u1", token, 1)
		if err != nil {
			t.Fatalf("read page: %v", err)
		}
		for _, tsk := range page.Tasks {
			got = append(got, tsk.ID)
		}
		if page.IsLast {
			break
		}
		token = page.NextPageToken
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestShareResponseAtomicAccept(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateTask(ctx, testTask("t1", "u1", 0)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	request := share.Request{
		ID:          "r1",
		TaskID:      "t1",
		OwnerID:     "u1",
		OwnerEmail:  "u1@example.com",
		TargetEmail: "u2@example.com",
		Permission:  share.PermissionEdit,
		Status:      share.StatusPending,
		Message:     "please",
		CreatedAt:   baseTime(),
	}
	if err := store.CreateShareRequest(ctx, request); err != nil {
		t.Fatalf("create share request: %v", err)
	}

	pending, err := store.ListPendingRequests(ctx, "U2@EXAMPLE.COM")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "r1" {
		t.Fatalf("expected case-insensitive pending match, got %+v", pending)
	}

	respondedAt := baseTime().Add(time.Minute)
	if err := store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   "r1",
		Status:      share.StatusAccepted,
		TargetID:    "u2",
		RespondedAt: respondedAt,
	}); err != nil {
		t.Fatalf("apply share response: %v", err)
	}

	accepted, err := store.GetShareRequest(ctx, "r1")
	if err != nil {
		t.Fatalf("get share request: %v", err)
	}
	if accepted.Status != share.StatusAccepted || accepted.TargetID != "u2" {
		t.Fatalf("unexpected request state: %+v", accepted)
	}
	if accepted.RespondedAt == nil || !accepted.RespondedAt.Equal(respondedAt) {
		t.Fatalf("expected responded at %v, got %v", respondedAt, accepted.RespondedAt)
	}

	sharedWith, err := store.ListSharedTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("list shared tasks: %v", err)
	}
	if len(sharedWith) != 1 || sharedWith[0].ID != "t1" {
		t.Fatalf("expected task shared with u2, got %+v", sharedWith)
	}
	if len(sharedWith[0].SharedWith) != 1 || sharedWith[0].SharedWith[0] != "u2" {
		t.Fatalf("expected sharing set [u2], got %v", sharedWith[0].SharedWith)
	}

	// Terminal requests never transition again.
	err = store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   "r1",
		Status:      share.StatusRejected,
		TargetID:    "u2",
		RespondedAt: respondedAt,
	})
	if err == nil {
		t.Fatal("expected error re-responding to terminal request")
	}

	stillPending, err := store.ListPendingRequests(ctx, "u2@example.com")
	if err != nil {
		t.Fatalf("list pending after accept: %v", err)
	}
	if len(stillPending) != 0 {
		t.Fatalf("expected no pending requests, got %+v", stillPending)
	}
}

func TestShareResponseRejectGrantsNothing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.CreateTask(ctx, testTask("t1", "u1", 0)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	request := share.Request{
		ID:          "r1",
		TaskID:      "t1",
		OwnerID:     "u1",
		TargetEmail: "u2@example.com",
		Permission:  share.PermissionView,
		Status:      share.StatusPending,
		CreatedAt:   baseTime(),
	}
	if err := store.CreateShareRequest(ctx, request); err != nil {
		t.Fatalf("create share request: %v", err)
	}
	if err := store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   "r1",
		Status:      share.StatusRejected,
		TargetID:    "u2",
		RespondedAt: baseTime().Add(time.Minute),
	}); err != nil {
		t.Fatalf("apply rejection: %v", err)
	}

	sharedWith, err := store.ListSharedTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("list shared tasks: %v", err)
	}
	if len(sharedWith) != 0 {
		t.Fatalf("expected no access after rejection, got %+v", sharedWith)
	}
}

func TestSearchTasks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := testTask("t1", "u1", 0)
	report.Title = "Quarterly report"
	tagged := testTask("t2", "u1", time.Minute)
	tagged.Title = "Chores"
	tagged.Tags = []string{"Errands"}
	foreign := testTask("t3", "u2", 0)
	foreign.Title = "Report for someone else"
	for _, tsk := range []task.Task{report, tagged, foreign} {
		if err := store.CreateTask(ctx, tsk); err != nil {
			t.Fatalf("create task %s: %v", tsk.ID, err)
		}
	}

	byTitle, err := store.SearchTasks(ctx, "u1", "REPORT")
	if err != nil {
		t.Fatalf("search by title: %v", err)
	}
	if len(byTitle) != 1 || byTitle[0].ID != "t1" {
		t.Fatalf("expected only accessible match, got %+v", byTitle)
	}

	byTag, err := store.SearchTasks(ctx, "u1", "errand")
	if err != nil {
		t.Fatalf("search by tag: %v", err)
	}
	if len(byTag) != 1 || byTag[0].ID != "t2" {
		t.Fatalf("expected tag match, got %+v", byTag)
	}

	empty, err := store.SearchTasks(ctx, "u1", "   ")
	if err != nil {
		t.Fatalf("search blank: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no results for blank query, got %+v", empty)
	}
}

func receiveTasks(t *testing.T, updates <-chan []task.Task) []task.Task {
	t.Helper()
	select {
	case tasks, ok := <-updates:
		if !ok {
			t.Fatal("updates channel closed")
		}
		return tasks
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed update")
	}
	return nil
}

func TestOwnedFeedDelivery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeOwnedTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe owned: %v", err)
	}
	defer sub.Cancel()

	initial := receiveTasks(t, sub.Updates)
	if len(initial) != 0 {
		t.Fatalf("expected empty initial set, got %+v", initial)
	}

	if err := store.CreateTask(ctx, testTask("t1", "u1", 0)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	update := receiveTasks(t, sub.Updates)
	if len(update) != 1 || update[0].ID != "t1" {
		t.Fatalf("expected created task in feed, got %+v", update)
	}

	if err := store.DeleteTask(ctx, "t1"); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	afterDelete := receiveTasks(t, sub.Updates)
	if len(afterDelete) != 0 {
		t.Fatalf("expected deletion to propagate, got %+v", afterDelete)
	}
}

func TestSharedFeedDeliveryOnAccept(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeSharedTasks(ctx, "u2")
	if err != nil {
		t.Fatalf("subscribe shared: %v", err)
	}
	defer sub.Cancel()
	if initial := receiveTasks(t, sub.Updates); len(initial) != 0 {
		t.Fatalf("expected empty initial set, got %+v", initial)
	}

	if err := store.CreateTask(ctx, testTask("t1", "u1", 0)); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := store.CreateShareRequest(ctx, share.Request{
		ID:          "r1",
		TaskID:      "t1",
		OwnerID:     "u1",
		TargetEmail: "u2@example.com",
		Permission:  share.PermissionView,
		Status:      share.StatusPending,
		CreatedAt:   baseTime(),
	}); err != nil {
		t.Fatalf("create share request: %v", err)
	}
	if err := store.ApplyShareResponse(ctx, storage.ShareResponse{
		RequestID:   "r1",
		Status:      share.StatusAccepted,
		TargetID:    "u2",
		RespondedAt: baseTime().Add(time.Minute),
	}); err != nil {
		t.Fatalf("apply share response: %v", err)
	}

	update := receiveTasks(t, sub.Updates)
	if len(update) != 1 || update[0].ID != "t1" {
		t.Fatalf("expected accepted task in shared feed, got %+v", update)
	}
}

func TestFeedCancelStopsDelivery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sub, err := store.SubscribeOwnedTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe owned: %v", err)
	}
	receiveTasks(t, sub.Updates)
	sub.Cancel()

	// Cancellation closes the channel; drain until closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("expected updates channel to close after cancel")
		}
	}
}
