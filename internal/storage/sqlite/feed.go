package sqlite

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/task"
)

type feedKind int

const (
	feedOwned feedKind = iota
	feedShared
)

// feedSubscriber carries one live feed. Channels hold a single slot and
// deliveries coalesce, so a slow consumer only ever sees the newest set.
type feedSubscriber struct {
	userID    string
	kind      feedKind
	updates   chan []task.Task
	errs      chan error
	cancelled bool
}

// feedHub tracks live feed subscribers and fans committed mutations out to
// the users they affect.
type feedHub struct {
	mu     sync.Mutex
	subs   map[*feedSubscriber]struct{}
	closed bool
}

func newFeedHub() *feedHub {
	return &feedHub{subs: make(map[*feedSubscriber]struct{})}
}

func (h *feedHub) add(sub *feedSubscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("task store is closed")
	}
	h.subs[sub] = struct{}{}
	return nil
}

// remove is idempotent; the first call closes the subscriber's channels.
func (h *feedHub) remove(sub *feedSubscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.cancelled {
		return
	}
	sub.cancelled = true
	delete(h.subs, sub)
	close(sub.updates)
	close(sub.errs)
}

func (h *feedHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.cancelled = true
		close(sub.updates)
		close(sub.errs)
	}
	h.subs = make(map[*feedSubscriber]struct{})
}

// snapshotFor returns the live subscribers belonging to any of the given users.
func (h *feedHub) snapshotFor(userIDs map[string]struct{}) []*feedSubscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	var matched []*feedSubscriber
	for sub := range h.subs {
		if _, ok := userIDs[sub.userID]; ok {
			matched = append(matched, sub)
		}
	}
	return matched
}

// sendTasks coalesces: when the slot is full the stale set is dropped in
// favor of the new one.
func (h *feedHub) sendTasks(sub *feedSubscriber, tasks []task.Task) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.cancelled {
		return
	}
	for {
		select {
		case sub.updates <- tasks:
			return
		default:
		}
		select {
		case <-sub.updates:
		default:
		}
	}
}

func (h *feedHub) sendErr(sub *feedSubscriber, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.cancelled {
		return
	}
	select {
	case sub.errs <- err:
	default:
	}
}

// SubscribeOwnedTasks opens a live feed of the user's owned tasks. The current
// set is delivered immediately, then a refreshed set after every committed
// mutation that touches the user.
func (s *Store) SubscribeOwnedTasks(ctx context.Context, userID string) (*storage.TaskSubscription, error) {
	return s.subscribeTasks(ctx, userID, feedOwned)
}

// SubscribeSharedTasks opens a live feed of the tasks shared with the user.
func (s *Store) SubscribeSharedTasks(ctx context.Context, userID string) (*storage.TaskSubscription, error) {
	return s.subscribeTasks(ctx, userID, feedShared)
}

func (s *Store) subscribeTasks(ctx context.Context, userID string, kind feedKind) (*storage.TaskSubscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil || s.hub == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	sub := &feedSubscriber{
		userID:  userID,
		kind:    kind,
		updates: make(chan []task.Task, 1),
		errs:    make(chan error, 1),
	}
	if err := s.hub.add(sub); err != nil {
		return nil, err
	}

	initial, err := s.loadFeedTasks(ctx, userID, kind)
	if err != nil {
		s.hub.remove(sub)
		return nil, err
	}
	s.hub.sendTasks(sub, initial)

	subCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-subCtx.Done()
		s.hub.remove(sub)
	}()

	return &storage.TaskSubscription{
		Updates: sub.updates,
		Errs:    sub.errs,
		Cancel:  cancel,
	}, nil
}

func (s *Store) loadFeedTasks(ctx context.Context, userID string, kind feedKind) ([]task.Task, error) {
	if kind == feedShared {
		return s.ListSharedTasks(ctx, userID)
	}
	return s.ListOwnedTasks(ctx, userID)
}

// publishTaskUsers fans a committed mutation out to every live feed belonging
// to the given users. Task sets are loaded outside the hub lock and cached per
// user and feed kind within one publish.
func (s *Store) publishTaskUsers(ctx context.Context, userIDs []string) {
	if s == nil || s.hub == nil {
		return
	}
	affected := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		if userID != "" {
			affected[userID] = struct{}{}
		}
	}
	if len(affected) == 0 {
		return
	}

	matched := s.hub.snapshotFor(affected)
	if len(matched) == 0 {
		return
	}

	type cacheKey struct {
		userID string
		kind   feedKind
	}
	cache := make(map[cacheKey][]task.Task, len(matched))
	for _, sub := range matched {
		key := cacheKey{userID: sub.userID, kind: sub.kind}
		tasks, ok := cache[key]
		if !ok {
			var err error
			tasks, err = s.loadFeedTasks(ctx, sub.userID, sub.kind)
			if err != nil {
				s.hub.sendErr(sub, fmt.Errorf("refresh task feed: %w", err))
				continue
			}
			cache[key] = tasks
		}
		s.hub.sendTasks(sub, tasks)
	}
}
