// Package mcp exposes the task session over the Model Context Protocol so
// agent clients can manage and share tasks through tools and resources.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/taskhub/internal/platform/errors"
	"github.com/louisbranch/taskhub/internal/session"
	"github.com/louisbranch/taskhub/internal/task"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "TaskHub MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// locale selects the message catalog for client-facing errors.
	locale = "en-US"
)

// Server hosts the MCP server over one task session.
type Server struct {
	mcpServer *mcp.Server
	session   *session.Session
}

// New creates a configured MCP server bound to a started session.
func New(sess *session.Session) (*Server, error) {
	if sess == nil {
		return nil, fmt.Errorf("task session is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	server := &Server{mcpServer: mcpServer, session: sess}

	registerTaskTools(mcpServer, sess)
	registerShareTools(mcpServer, sess)
	registerAnalyticsResource(mcpServer, sess)

	return server, nil
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}

// toolError renders a failure with the client-facing catalog message.
func toolError(verb string, err error) error {
	return fmt.Errorf("%s: %s", verb, apperrors.Localize(err, locale))
}

// TaskPayload represents one task in tool and resource output.
type TaskPayload struct {
	ID             string   `json:"id" jsonschema:"task identifier"`
	Title          string   `json:"title" jsonschema:"task title"`
	Description    string   `json:"description,omitempty" jsonschema:"task description"`
	Completed      bool     `json:"completed" jsonschema:"whether the task is completed"`
	OwnerID        string   `json:"owner_id" jsonschema:"owner identifier"`
	OwnerEmail     string   `json:"owner_email,omitempty" jsonschema:"owner email"`
	SharedWith     []string `json:"shared_with,omitempty" jsonschema:"user ids granted access"`
	CreatedAt      string   `json:"created_at" jsonschema:"creation time (RFC 3339)"`
	UpdatedAt      string   `json:"updated_at" jsonschema:"last update time (RFC 3339)"`
	LastModifiedBy string   `json:"last_modified_by,omitempty" jsonschema:"last editor identifier"`
	Priority       string   `json:"priority" jsonschema:"priority (LOW, MEDIUM, HIGH)"`
	DueDate        string   `json:"due_date,omitempty" jsonschema:"due date (RFC 3339)"`
	Tags           []string `json:"tags,omitempty" jsonschema:"task tags"`
	Overdue        bool     `json:"overdue" jsonschema:"whether the task is overdue"`
}

func taskPayload(t task.Task, now time.Time) TaskPayload {
	payload := TaskPayload{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Completed:      t.Completed,
		OwnerID:        t.OwnerID,
		OwnerEmail:     t.OwnerEmail,
		SharedWith:     t.SharedWith,
		CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      t.UpdatedAt.UTC().Format(time.RFC3339),
		LastModifiedBy: t.LastModifiedBy,
		Priority:       task.PriorityLabel(t.Priority),
		Tags:           t.Tags,
		Overdue:        t.IsOverdue(now),
	}
	if t.DueDate != nil {
		payload.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	return payload
}

func taskPayloads(tasks []task.Task, now time.Time) []TaskPayload {
	payloads := make([]TaskPayload, 0, len(tasks))
	for _, t := range tasks {
		payloads = append(payloads, taskPayload(t, now))
	}
	return payloads
}

// parseDueDate parses an optional RFC 3339 due date.
func parseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("due_date must be RFC 3339: %w", err)
	}
	due := parsed.UTC()
	return &due, nil
}
