package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/taskhub/internal/session"
)

func registerAnalyticsResource(mcpServer *mcp.Server, sess *session.Session) {
	mcpServer.AddResource(analyticsResource(), analyticsResourceHandler(sess))
	mcpServer.AddResource(tagsResource(), tagsResourceHandler(sess))
}

// AnalyticsPayload represents the MCP resource payload for task analytics.
type AnalyticsPayload struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	Pending        int     `json:"pending"`
	Overdue        int     `json:"overdue"`
	Shared         int     `json:"shared"`
	CompletionRate float64 `json:"completion_rate"`
}

// TagsPayload represents the MCP resource payload for the tag index.
type TagsPayload struct {
	Tags []string `json:"tags"`
}

func analyticsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "task_analytics",
		Title:       "Task Analytics",
		Description: "Aggregate counters over the user's full task set",
		MIMEType:    "application/json",
		URI:         "taskhub://analytics",
	}
}

func analyticsResourceHandler(sess *session.Session) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("task session is not configured")
		}
		uri := analyticsResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		analytics := sess.Current().Analytics
		payload := AnalyticsPayload{
			Total:          analytics.Total,
			Completed:      analytics.Completed,
			Pending:        analytics.Pending,
			Overdue:        analytics.Overdue,
			Shared:         analytics.Shared,
			CompletionRate: analytics.CompletionRate,
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal task analytics: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

func tagsResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "task_tags",
		Title:       "Task Tags",
		Description: "Distinct tags across the user's full task set",
		MIMEType:    "application/json",
		URI:         "taskhub://tags",
	}
}

func tagsResourceHandler(sess *session.Session) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if sess == nil {
			return nil, fmt.Errorf("task session is not configured")
		}
		uri := tagsResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		data, err := json.MarshalIndent(TagsPayload{Tags: sess.Current().Tags}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal task tags: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}
