// Package sqlite provides a SQLite-backed implementation of the task store
// contract, including the live task feeds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/taskhub/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/taskhub/internal/storage"
	"github.com/louisbranch/taskhub/internal/storage/sqlite/migrations"
	"github.com/louisbranch/taskhub/internal/task"
	_ "modernc.org/sqlite"
)

// Store persists task service state in SQLite and fans committed mutations
// out to live feed subscribers.
type Store struct {
	sqlDB *sql.DB
	hub   *feedHub
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite task store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, hub: newFeedHub()}, nil
}

// Close closes the SQLite handle and cancels all feed subscriptions.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	if s.hub != nil {
		s.hub.closeAll()
	}
	return s.sqlDB.Close()
}

// PutUser upserts one account record.
func (s *Store) PutUser(ctx context.Context, u task.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	userID := strings.TrimSpace(u.ID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	email := strings.TrimSpace(u.Email)
	if email == "" {
		return fmt.Errorf("user email is required")
	}

	online := 0
	if u.Online {
		online = 1
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO users (id, email, name, avatar_url, created_at, last_seen, online)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   email = excluded.email,
		   name = excluded.name,
		   avatar_url = excluded.avatar_url,
		   last_seen = excluded.last_seen,
		   online = excluded.online`,
		userID,
		email,
		u.Name,
		u.AvatarURL,
		toMillis(u.CreatedAt),
		toMillis(u.LastSeen),
		online,
	)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

// GetUser returns one account record by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (task.User, error) {
	return s.getUser(ctx, "id = ?", strings.TrimSpace(userID))
}

// GetUserByEmail returns one account record by its unique email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (task.User, error) {
	return s.getUser(ctx, "email = ?", strings.TrimSpace(email))
}

func (s *Store) getUser(ctx context.Context, where string, value string) (task.User, error) {
	if err := ctx.Err(); err != nil {
		return task.User{}, err
	}
	if s == nil || s.sqlDB == nil {
		return task.User{}, fmt.Errorf("storage is not configured")
	}
	if value == "" {
		return task.User{}, fmt.Errorf("user lookup value is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, email, name, avatar_url, created_at, last_seen, online
		 FROM users WHERE `+where,
		value,
	)
	var (
		u         task.User
		createdAt int64
		lastSeen  int64
		online    int
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.AvatarURL, &createdAt, &lastSeen, &online)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.User{}, storage.ErrNotFound
		}
		return task.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	u.LastSeen = fromMillis(lastSeen)
	u.Online = online != 0
	return u, nil
}

var _ storage.Store = (*Store)(nil)
