// Package session owns the canonical in-memory task state for one signed-in
// user. It serializes every state mutation behind a single mutex so live feed
// updates, pagination, and user actions never interleave, and publishes
// immutable snapshots to watchers after each change.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/taskhub/internal/id"
	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/storage"
	tasksync "github.com/louisbranch/taskhub/internal/sync"
	"github.com/louisbranch/taskhub/internal/task"
	"github.com/louisbranch/taskhub/internal/task/share"
	"github.com/louisbranch/taskhub/internal/view"
)

const defaultPageSize = 50

// ErrClosed indicates an operation on a closed session.
var ErrClosed = apperrors.New(apperrors.CodeSessionClosed, "session is closed")

// IdentityProvider resolves the account identity a session acts as.
type IdentityProvider interface {
	Identity(ctx context.Context) (task.User, error)
}

// Config wires a session's collaborators. Store and Identity are required;
// the rest default.
type Config struct {
	Store    storage.Store
	Identity IdentityProvider
	PageSize int
	Now      func() time.Time
	NewID    func() (string, error)
}

// Snapshot is an immutable view of session state at one point in time.
type Snapshot struct {
	User        task.User
	Tasks       []task.Task
	AllTasks    []task.Task
	Analytics   view.Analytics
	Tags        []string
	Pending     []share.Request
	Query       view.Query
	HasMore     bool
	Loading     bool
	LoadingMore bool
	Err         error
}

// Session coordinates storage, live feeds, and view state for one user.
type Session struct {
	store    storage.Store
	identity IdentityProvider
	pageSize int
	now      func() time.Time
	newID    func() (string, error)

	mu          sync.Mutex
	user        task.User
	rec         *tasksync.Reconciler
	query       view.Query
	pending     []share.Request
	loading     bool
	loadingMore bool
	lastErr     error
	started     bool
	closed      bool
	watchers    map[chan Snapshot]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an unstarted session.
func New(cfg Config) (*Session, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Identity == nil {
		return nil, fmt.Errorf("session identity provider is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Session{
		store:    cfg.Store,
		identity: cfg.Identity,
		pageSize: cfg.PageSize,
		now:      cfg.Now,
		newID:    cfg.NewID,
		query:    view.Query{Filter: view.FilterAll, Sort: view.SortCreatedAt},
		watchers: make(map[chan Snapshot]struct{}),
	}, nil
}

// Start resolves the identity, records the account, opens the live feeds, and
// performs the initial load. It may be called once.
func (s *Session) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("session is not configured")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.mu.Unlock()

	user, err := s.identity.Identity(ctx)
	if err != nil {
		return fmt.Errorf("resolve session identity: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return apperrors.New(apperrors.CodeSessionNoIdentity, "session has no identity")
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageFailure, "record session account", err)
	}

	s.mu.Lock()
	s.user = user
	s.rec = tasksync.NewReconciler(user.ID)
	s.loading = true
	s.mu.Unlock()

	feedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ownedSub, err := s.store.SubscribeOwnedTasks(feedCtx, user.ID)
	if err != nil {
		cancel()
		return apperrors.Wrap(apperrors.CodeFeedFailure, "subscribe owned tasks", err)
	}
	sharedSub, err := s.store.SubscribeSharedTasks(feedCtx, user.ID)
	if err != nil {
		ownedSub.Cancel()
		cancel()
		return apperrors.Wrap(apperrors.CodeFeedFailure, "subscribe shared tasks", err)
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.consumeFeed(feedCtx, ownedSub, true)
	go s.consumeFeed(feedCtx, sharedSub, false)

	return s.Refresh(ctx)
}

// Close stops the live feeds and detaches all watchers. It is idempotent.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	watchers := s.watchers
	s.watchers = make(map[chan Snapshot]struct{})
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	for ch := range watchers {
		close(ch)
	}
}

// Watch registers a snapshot watcher. The channel holds one slot and
// deliveries coalesce, so a slow watcher only ever sees the newest snapshot.
// The returned stop function detaches the watcher and closes the channel.
func (s *Session) Watch() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			_, ok := s.watchers[ch]
			delete(s.watchers, ch)
			s.mu.Unlock()
			if ok {
				close(ch)
			}
		})
	}
	return ch, stop
}

// consumeFeed applies live feed updates until the subscription ends. Feed
// payloads are complete task sets, so they replace the matching collection
// and removals propagate without tombstones.
func (s *Session) consumeFeed(ctx context.Context, sub *storage.TaskSubscription, owned bool) {
	defer s.wg.Done()
	defer sub.Cancel()
	updates := sub.Updates
	errs := sub.Errs
	for updates != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case tasks, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			if owned {
				s.rec.ApplyOwnedSnapshot(tasks)
			} else {
				s.rec.ApplySharedSnapshot(tasks)
			}
			s.publishLocked()
			s.mu.Unlock()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("task feed error: %v", err)
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			// Keep the last known tasks; only the error surfaces.
			s.lastErr = apperrors.Wrap(apperrors.CodeFeedFailure, "task feed interrupted", err)
			s.publishLocked()
			s.mu.Unlock()
		}
	}
}

// snapshotLocked builds an immutable snapshot. Callers must hold mu.
func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		User:        s.user,
		Query:       s.query,
		Pending:     append([]share.Request(nil), s.pending...),
		Loading:     s.loading,
		LoadingMore: s.loadingMore,
		Err:         s.lastErr,
	}
	if s.rec != nil {
		now := s.now().UTC()
		combined := s.rec.Combined()
		snapshot.AllTasks = combined
		snapshot.Tasks = view.Apply(combined, s.query, now)
		snapshot.Analytics = view.Compute(combined, s.rec.SharedCount(), now)
		snapshot.Tags = view.TagIndex(combined)
		snapshot.HasMore = s.rec.HasMore()
	}
	return snapshot
}

// publishLocked fans the current snapshot out to all watchers, coalescing.
// Callers must hold mu.
func (s *Session) publishLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for ch := range s.watchers {
		for {
			select {
			case ch <- snapshot:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// guard returns an error when the session cannot serve operations.
func (s *Session) guard() error {
	if s == nil {
		return fmt.Errorf("session is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.started || s.rec == nil {
		return fmt.Errorf("session not started")
	}
	return nil
}

// User returns the session's account identity.
func (s *Session) User() task.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Current returns a snapshot of the session state.
func (s *Session) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Err returns the most recent out-of-band failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearErr discards the most recent out-of-band failure.
func (s *Session) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return
	}
	s.lastErr = nil
	s.publishLocked()
}

// SetFilter selects the active filter and clears any search, since the most
// recent operation defines the projection.
func (s *Session) SetFilter(filter view.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filter == view.FilterUnspecified {
		filter = view.FilterAll
	}
	s.query.Filter = filter
	s.query.Search = ""
	s.publishLocked()
}

// SetSort selects the sort field and direction.
func (s *Session) SetSort(field view.SortField, ascending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field == view.SortUnspecified {
		field = view.SortCreatedAt
	}
	s.query.Sort = field
	s.query.Ascending = ascending
	s.publishLocked()
}

// Search sets the active search query. Search evaluates against the full
// combined set, bypassing the filter, until cleared.
func (s *Session) Search(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query.Search = strings.TrimSpace(query)
	s.publishLocked()
}

// ClearSearch restores the filtered projection.
func (s *Session) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.query.Search == "" {
		return
	}
	s.query.Search = ""
	s.publishLocked()
}
