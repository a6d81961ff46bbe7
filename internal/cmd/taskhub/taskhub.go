// Package taskhub parses command flags and starts the task service runtime.
package taskhub

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/taskhub/internal/auth/grant"
	mcpserver "github.com/louisbranch/taskhub/internal/mcp"
	"github.com/louisbranch/taskhub/internal/platform/config"
	"github.com/louisbranch/taskhub/internal/platform/otel"
	"github.com/louisbranch/taskhub/internal/session"
	"github.com/louisbranch/taskhub/internal/storage/sqlite"
	"github.com/louisbranch/taskhub/internal/task"
)

const serviceName = "taskhub"

// Config holds taskhub command configuration.
type Config struct {
	DBPath   string `env:"TASKHUB_DB_PATH" envDefault:"taskhub.db"`
	PageSize int    `env:"TASKHUB_PAGE_SIZE" envDefault:"50"`

	// Dev identity bypasses grant verification for local development.
	DevUserID    string `env:"TASKHUB_DEV_USER_ID"`
	DevUserEmail string `env:"TASKHUB_DEV_USER_EMAIL"`
	DevUserName  string `env:"TASKHUB_DEV_USER_NAME"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	fs.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "The owned-tasks page size")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the task service and serves MCP on stdio until the context ends.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown telemetry: %v", err)
		}
	}()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open task store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close task store: %v", err)
		}
	}()

	identity, err := identityProvider(cfg)
	if err != nil {
		return err
	}

	sess, err := session.New(session.Config{
		Store:    store,
		Identity: identity,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Close()
	log.Printf("session started for %s", sess.User().Email)

	server, err := mcpserver.New(sess)
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}
	return server.Serve(ctx)
}

// identityProvider selects the dev identity when configured, otherwise the
// grant verifier.
func identityProvider(cfg Config) (session.IdentityProvider, error) {
	devID := strings.TrimSpace(cfg.DevUserID)
	devEmail := strings.TrimSpace(cfg.DevUserEmail)
	if devID != "" || devEmail != "" {
		if devID == "" || devEmail == "" {
			return nil, fmt.Errorf("dev identity requires both TASKHUB_DEV_USER_ID and TASKHUB_DEV_USER_EMAIL")
		}
		now := time.Now().UTC()
		return grant.StaticProvider{User: task.User{
			ID:        devID,
			Email:     devEmail,
			Name:      strings.TrimSpace(cfg.DevUserName),
			CreatedAt: now,
			LastSeen:  now,
			Online:    true,
		}}, nil
	}

	grantCfg, err := grant.LoadConfigFromEnv(nil)
	if err != nil {
		return nil, fmt.Errorf("load session grant config: %w", err)
	}
	return grant.Provider{Config: grantCfg}, nil
}
