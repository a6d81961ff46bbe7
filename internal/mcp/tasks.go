package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/taskhub/internal/session"
	"github.com/louisbranch/taskhub/internal/task"
	"github.com/louisbranch/taskhub/internal/view"
)

func registerTaskTools(mcpServer *mcp.Server, sess *session.Session) {
	mcp.AddTool(mcpServer, taskListTool(), taskListHandler(sess))
	mcp.AddTool(mcpServer, taskCreateTool(), taskCreateHandler(sess))
	mcp.AddTool(mcpServer, taskUpdateTool(), taskUpdateHandler(sess))
	mcp.AddTool(mcpServer, taskToggleTool(), taskToggleHandler(sess))
	mcp.AddTool(mcpServer, taskDeleteTool(), taskDeleteHandler(sess))
	mcp.AddTool(mcpServer, taskLoadMoreTool(), taskLoadMoreHandler(sess))
	mcp.AddTool(mcpServer, taskRefreshTool(), taskRefreshHandler(sess))
}

// TaskListInput represents the MCP tool input for listing tasks. Providing a
// search replaces the filter for this session until cleared.
type TaskListInput struct {
	Filter      string `json:"filter,omitempty" jsonschema:"filter (ALL, COMPLETED, PENDING, OVERDUE, HIGH_PRIORITY)"`
	Sort        string `json:"sort,omitempty" jsonschema:"sort field (CREATED_AT, UPDATED_AT, TITLE, PRIORITY, DUE_DATE)"`
	Ascending   bool   `json:"ascending,omitempty" jsonschema:"sort ascending instead of descending"`
	Search      string `json:"search,omitempty" jsonschema:"case-insensitive substring over title, description, and tags"`
	ClearSearch bool   `json:"clear_search,omitempty" jsonschema:"clear the active search"`
}

// TaskListResult represents the MCP tool output for listing tasks.
type TaskListResult struct {
	Tasks   []TaskPayload `json:"tasks" jsonschema:"projected task list"`
	Total   int           `json:"total" jsonschema:"size of the full task set"`
	HasMore bool          `json:"has_more" jsonschema:"whether more owned pages may exist"`
	Filter  string        `json:"filter" jsonschema:"active filter"`
	Search  string        `json:"search,omitempty" jsonschema:"active search"`
}

func taskListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_list",
		Description: "Lists the user's tasks, optionally changing the active filter, sort, or search",
	}
}

func taskListHandler(sess *session.Session) mcp.ToolHandlerFor[TaskListInput, TaskListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskListInput) (*mcp.CallToolResult, TaskListResult, error) {
		if input.Filter != "" {
			sess.SetFilter(view.FilterFromLabel(input.Filter))
		}
		if input.Sort != "" {
			sess.SetSort(view.SortFieldFromLabel(input.Sort), input.Ascending)
		}
		if input.ClearSearch {
			sess.ClearSearch()
		} else if input.Search != "" {
			sess.Search(input.Search)
		}

		snapshot := sess.Current()
		result := TaskListResult{
			Tasks:   taskPayloads(snapshot.Tasks, time.Now().UTC()),
			Total:   len(snapshot.AllTasks),
			HasMore: snapshot.HasMore,
			Filter:  view.FilterLabel(snapshot.Query.Filter),
			Search:  snapshot.Query.Search,
		}
		return nil, result, nil
	}
}

// TaskCreateInput represents the MCP tool input for task creation.
type TaskCreateInput struct {
	Title       string   `json:"title" jsonschema:"task title"`
	Description string   `json:"description,omitempty" jsonschema:"task description"`
	Priority    string   `json:"priority,omitempty" jsonschema:"priority (LOW, MEDIUM, HIGH); defaults to MEDIUM"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"due date (RFC 3339)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"task tags"`
}

// TaskResult represents the MCP tool output carrying one task.
type TaskResult struct {
	Task TaskPayload `json:"task" jsonschema:"the affected task"`
}

func taskCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_create",
		Description: "Creates a task owned by the current user",
	}
}

func taskCreateHandler(sess *session.Session) mcp.ToolHandlerFor[TaskCreateInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskCreateInput) (*mcp.CallToolResult, TaskResult, error) {
		dueDate, err := parseDueDate(input.DueDate)
		if err != nil {
			return nil, TaskResult{}, err
		}
		created, err := sess.CreateTask(ctx, session.CreateTaskInput{
			Title:       input.Title,
			Description: input.Description,
			Priority:    task.PriorityFromLabel(input.Priority),
			DueDate:     dueDate,
			Tags:        input.Tags,
		})
		if err != nil {
			return nil, TaskResult{}, toolError("task create failed", err)
		}
		return nil, TaskResult{Task: taskPayload(created, time.Now().UTC())}, nil
	}
}

// TaskUpdateInput represents the MCP tool input for a full task edit. The
// edit replaces the task's content; omitted fields clear.
type TaskUpdateInput struct {
	TaskID      string   `json:"task_id" jsonschema:"task identifier"`
	Title       string   `json:"title" jsonschema:"task title"`
	Description string   `json:"description,omitempty" jsonschema:"task description"`
	Completed   bool     `json:"completed,omitempty" jsonschema:"whether the task is completed"`
	Priority    string   `json:"priority,omitempty" jsonschema:"priority (LOW, MEDIUM, HIGH); defaults to MEDIUM"`
	DueDate     string   `json:"due_date,omitempty" jsonschema:"due date (RFC 3339); omit to clear"`
	Tags        []string `json:"tags,omitempty" jsonschema:"task tags"`
}

func taskUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_update",
		Description: "Replaces a task's content as the current user",
	}
}

func taskUpdateHandler(sess *session.Session) mcp.ToolHandlerFor[TaskUpdateInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskUpdateInput) (*mcp.CallToolResult, TaskResult, error) {
		dueDate, err := parseDueDate(input.DueDate)
		if err != nil {
			return nil, TaskResult{}, err
		}
		updated, err := sess.UpdateTask(ctx, input.TaskID, session.EditTaskInput{
			Title:       input.Title,
			Description: input.Description,
			Completed:   input.Completed,
			Priority:    task.PriorityFromLabel(input.Priority),
			DueDate:     dueDate,
			Tags:        input.Tags,
		})
		if err != nil {
			return nil, TaskResult{}, toolError("task update failed", err)
		}
		return nil, TaskResult{Task: taskPayload(updated, time.Now().UTC())}, nil
	}
}

// TaskIDInput represents an MCP tool input naming one task.
type TaskIDInput struct {
	TaskID string `json:"task_id" jsonschema:"task identifier"`
}

func taskToggleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_toggle",
		Description: "Flips a task's completed flag",
	}
}

func taskToggleHandler(sess *session.Session) mcp.ToolHandlerFor[TaskIDInput, TaskResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskIDInput) (*mcp.CallToolResult, TaskResult, error) {
		updated, err := sess.ToggleCompletion(ctx, input.TaskID)
		if err != nil {
			return nil, TaskResult{}, toolError("task toggle failed", err)
		}
		return nil, TaskResult{Task: taskPayload(updated, time.Now().UTC())}, nil
	}
}

// TaskDeleteResult represents the MCP tool output for task deletion.
type TaskDeleteResult struct {
	TaskID  string `json:"task_id" jsonschema:"deleted task identifier"`
	Deleted bool   `json:"deleted" jsonschema:"whether the task was deleted"`
}

func taskDeleteTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_delete",
		Description: "Deletes a task the current user owns, revoking all shared access",
	}
}

func taskDeleteHandler(sess *session.Session) mcp.ToolHandlerFor[TaskIDInput, TaskDeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TaskIDInput) (*mcp.CallToolResult, TaskDeleteResult, error) {
		if err := sess.DeleteTask(ctx, input.TaskID); err != nil {
			return nil, TaskDeleteResult{}, toolError("task delete failed", err)
		}
		return nil, TaskDeleteResult{TaskID: input.TaskID, Deleted: true}, nil
	}
}

// TaskPageResult represents the MCP tool output for pagination and refresh.
type TaskPageResult struct {
	Total   int  `json:"total" jsonschema:"size of the full task set"`
	HasMore bool `json:"has_more" jsonschema:"whether more owned pages may exist"`
}

func taskLoadMoreTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_load_more",
		Description: "Loads the next page of the user's owned tasks",
	}
}

func taskLoadMoreHandler(sess *session.Session) mcp.ToolHandlerFor[struct{}, TaskPageResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TaskPageResult, error) {
		if err := sess.LoadMoreTasks(ctx); err != nil {
			return nil, TaskPageResult{}, toolError("task load more failed", err)
		}
		snapshot := sess.Current()
		return nil, TaskPageResult{Total: len(snapshot.AllTasks), HasMore: snapshot.HasMore}, nil
	}
}

func taskRefreshTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "task_refresh",
		Description: "Reloads tasks and share requests from storage, restarting pagination",
	}
}

func taskRefreshHandler(sess *session.Session) mcp.ToolHandlerFor[struct{}, TaskPageResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, TaskPageResult, error) {
		if err := sess.Refresh(ctx); err != nil {
			return nil, TaskPageResult{}, toolError("task refresh failed", err)
		}
		snapshot := sess.Current()
		return nil, TaskPageResult{Total: len(snapshot.AllTasks), HasMore: snapshot.HasMore}, nil
	}
}
