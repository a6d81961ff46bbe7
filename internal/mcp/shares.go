package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/taskhub/internal/session"
	"github.com/louisbranch/taskhub/internal/task/share"
)

func registerShareTools(mcpServer *mcp.Server, sess *session.Session) {
	mcp.AddTool(mcpServer, shareCreateTool(), shareCreateHandler(sess))
	mcp.AddTool(mcpServer, shareRespondTool(), shareRespondHandler(sess))
	mcp.AddTool(mcpServer, sharePendingTool(), sharePendingHandler(sess))
}

// ShareRequestPayload represents one share request in tool output.
type ShareRequestPayload struct {
	ID          string `json:"id" jsonschema:"share request identifier"`
	TaskID      string `json:"task_id" jsonschema:"task identifier"`
	OwnerID     string `json:"owner_id" jsonschema:"owner identifier"`
	OwnerEmail  string `json:"owner_email,omitempty" jsonschema:"owner email"`
	TargetEmail string `json:"target_email" jsonschema:"target email"`
	Permission  string `json:"permission" jsonschema:"permission (VIEW, EDIT, ADMIN)"`
	Status      string `json:"status" jsonschema:"status (PENDING, ACCEPTED, REJECTED)"`
	Message     string `json:"message,omitempty" jsonschema:"optional message to the target"`
	CreatedAt   string `json:"created_at" jsonschema:"creation time (RFC 3339)"`
	RespondedAt string `json:"responded_at,omitempty" jsonschema:"response time (RFC 3339)"`
}

func shareRequestPayload(request share.Request) ShareRequestPayload {
	payload := ShareRequestPayload{
		ID:          request.ID,
		TaskID:      request.TaskID,
		OwnerID:     request.OwnerID,
		OwnerEmail:  request.OwnerEmail,
		TargetEmail: request.TargetEmail,
		Permission:  share.PermissionLabel(request.Permission),
		Status:      share.StatusLabel(request.Status),
		Message:     request.Message,
		CreatedAt:   request.CreatedAt.UTC().Format(time.RFC3339),
	}
	if request.RespondedAt != nil {
		payload.RespondedAt = request.RespondedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

// ShareCreateInput represents the MCP tool input for offering a task share.
type ShareCreateInput struct {
	TaskID      string `json:"task_id" jsonschema:"task identifier"`
	TargetEmail string `json:"target_email" jsonschema:"email of the account to share with"`
	Permission  string `json:"permission" jsonschema:"permission (VIEW, EDIT, ADMIN)"`
	Message     string `json:"message,omitempty" jsonschema:"optional message to the target"`
}

// ShareRequestResult represents an MCP tool output carrying one share request.
type ShareRequestResult struct {
	Request ShareRequestPayload `json:"request" jsonschema:"the affected share request"`
}

func shareCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "share_create",
		Description: "Offers one of the current user's tasks to another account by email",
	}
}

func shareCreateHandler(sess *session.Session) mcp.ToolHandlerFor[ShareCreateInput, ShareRequestResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShareCreateInput) (*mcp.CallToolResult, ShareRequestResult, error) {
		request, err := sess.CreateShareRequest(ctx, session.ShareTaskInput{
			TaskID:      input.TaskID,
			TargetEmail: input.TargetEmail,
			Permission:  share.PermissionFromLabel(input.Permission),
			Message:     input.Message,
		})
		if err != nil {
			return nil, ShareRequestResult{}, toolError("share create failed", err)
		}
		return nil, ShareRequestResult{Request: shareRequestPayload(request)}, nil
	}
}

// ShareRespondInput represents the MCP tool input for deciding a request.
type ShareRespondInput struct {
	RequestID string `json:"request_id" jsonschema:"share request identifier"`
	Decision  string `json:"decision" jsonschema:"decision (ACCEPT, REJECT)"`
}

func shareRespondTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "share_respond",
		Description: "Accepts or rejects a pending share request addressed to the current user",
	}
}

func shareRespondHandler(sess *session.Session) mcp.ToolHandlerFor[ShareRespondInput, ShareRequestResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShareRespondInput) (*mcp.CallToolResult, ShareRequestResult, error) {
		responded, err := sess.RespondToShareRequest(ctx, input.RequestID, share.DecisionFromLabel(input.Decision))
		if err != nil {
			return nil, ShareRequestResult{}, toolError("share respond failed", err)
		}
		return nil, ShareRequestResult{Request: shareRequestPayload(responded)}, nil
	}
}

// SharePendingResult represents the MCP tool output for pending requests.
type SharePendingResult struct {
	Requests []ShareRequestPayload `json:"requests" jsonschema:"pending share requests addressed to the user"`
}

func sharePendingTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "share_pending",
		Description: "Lists the pending share requests addressed to the current user",
	}
}

func sharePendingHandler(sess *session.Session) mcp.ToolHandlerFor[struct{}, SharePendingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, SharePendingResult, error) {
		if err := sess.RefreshPendingRequests(ctx); err != nil {
			return nil, SharePendingResult{}, toolError("share pending failed", err)
		}
		requests := sess.PendingRequests()
		payloads := make([]ShareRequestPayload, 0, len(requests))
		for _, request := range requests {
			payloads = append(payloads, shareRequestPayload(request))
		}
		return nil, SharePendingResult{Requests: payloads}, nil
	}
}
