// Package sync reconciles the owned-tasks and shared-with-me update streams
// into one canonical, de-duplicated task set.
//
// The reconciler is not safe for concurrent use; callers must serialize all
// access (the session guards it with a single mutex so feed callbacks and
// pagination never interleave).
package sync

import (
	"strings"

	"github.com/louisbranch/taskhub/internal/task"
)

// Reconciler maintains the canonical owned and shared-with-me collections
// for one user, keyed by task identity, latest write wins.
type Reconciler struct {
	ownerID string

	owned     []task.Task
	ownedIdx  map[string]int
	shared    []task.Task
	sharedIdx map[string]int

	pageToken string
	hasMore   bool
}

// NewReconciler creates an empty reconciler for the given user. Until the
// first owned page or snapshot arrives, more pages are assumed to exist.
func NewReconciler(ownerID string) *Reconciler {
	return &Reconciler{
		ownerID:   strings.TrimSpace(ownerID),
		ownedIdx:  make(map[string]int),
		sharedIdx: make(map[string]int),
		hasMore:   true,
	}
}

// ApplyOwnedSnapshot replaces the owned collection from a point-in-time read.
func (r *Reconciler) ApplyOwnedSnapshot(tasks []task.Task) {
	r.owned = r.owned[:0]
	r.ownedIdx = make(map[string]int, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if idx, ok := r.ownedIdx[t.ID]; ok {
			r.owned[idx] = t.Clone()
			continue
		}
		r.ownedIdx[t.ID] = len(r.owned)
		r.owned = append(r.owned, t.Clone())
	}
}

// ApplySharedSnapshot replaces the shared-with-me collection from a
// point-in-time read. Tasks owned by the reconciler's user never enter the
// shared collection.
func (r *Reconciler) ApplySharedSnapshot(tasks []task.Task) {
	r.shared = r.shared[:0]
	r.sharedIdx = make(map[string]int, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || t.OwnerID == r.ownerID {
			continue
		}
		if idx, ok := r.sharedIdx[t.ID]; ok {
			r.shared[idx] = t.Clone()
			continue
		}
		r.sharedIdx[t.ID] = len(r.shared)
		r.shared = append(r.shared, t.Clone())
	}
}

// ApplyOwnedDelta upserts live-feed updates into the owned collection. The
// feed carries no deletions, so deltas only replace or insert; removals wait
// for the next snapshot.
func (r *Reconciler) ApplyOwnedDelta(tasks []task.Task) {
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if idx, ok := r.ownedIdx[t.ID]; ok {
			r.owned[idx] = t.Clone()
			continue
		}
		r.ownedIdx[t.ID] = len(r.owned)
		r.owned = append(r.owned, t.Clone())
	}
}

// ApplySharedDelta upserts live-feed updates into the shared-with-me
// collection, skipping tasks owned by the reconciler's user.
func (r *Reconciler) ApplySharedDelta(tasks []task.Task) {
	for _, t := range tasks {
		if t.ID == "" || t.OwnerID == r.ownerID {
			continue
		}
		if idx, ok := r.sharedIdx[t.ID]; ok {
			r.shared[idx] = t.Clone()
			continue
		}
		r.sharedIdx[t.ID] = len(r.shared)
		r.shared = append(r.shared, t.Clone())
	}
}

// AppendOwnedPage appends a forward-only pagination result to the owned
// collection without reordering, skipping tasks already present. It records
// the next opaque cursor and clears the has-more flag once an empty page or
// the last page is observed.
func (r *Reconciler) AppendOwnedPage(tasks []task.Task, nextPageToken string, isLast bool) {
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		if _, ok := r.ownedIdx[t.ID]; ok {
			continue
		}
		r.ownedIdx[t.ID] = len(r.owned)
		r.owned = append(r.owned, t.Clone())
	}
	r.pageToken = nextPageToken
	if isLast || len(tasks) == 0 {
		r.hasMore = false
	} else {
		r.hasMore = true
	}
}

// ResetPagination restores the initial pagination state ahead of a full
// refresh.
func (r *Reconciler) ResetPagination() {
	r.pageToken = ""
	r.hasMore = true
}

// PageToken returns the opaque cursor for the next owned page.
func (r *Reconciler) PageToken() string {
	return r.pageToken
}

// HasMore reports whether further owned pages may exist.
func (r *Reconciler) HasMore() bool {
	return r.hasMore
}

// Combined returns the canonical union of owned and shared-with-me tasks.
// Owned entries take precedence: a task present in both collections appears
// once, with the owned copy. The result is a fresh slice of clones.
func (r *Reconciler) Combined() []task.Task {
	combined := make([]task.Task, 0, len(r.owned)+len(r.shared))
	for _, t := range r.owned {
		combined = append(combined, t.Clone())
	}
	for _, t := range r.shared {
		if _, ok := r.ownedIdx[t.ID]; ok {
			continue
		}
		combined = append(combined, t.Clone())
	}
	return combined
}

// SharedCount returns the size of the shared-with-me collection.
func (r *Reconciler) SharedCount() int {
	return len(r.shared)
}

// OwnedCount returns the size of the owned collection.
func (r *Reconciler) OwnedCount() int {
	return len(r.owned)
}
