package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

// TaskTools handles the task/kanban tool group.
type TaskTools struct {
	base
	svc *service.Services
}

// NewTaskTools creates the task tool group.
func NewTaskTools(svc *service.Services, defaultProject string) *TaskTools {
	return &TaskTools{base: base{defaultProject: defaultProject}, svc: svc}
}

// GetCurrentTaskDefinition returns the get_current_task schema.
func (t *TaskTools) GetCurrentTaskDefinition() mcp.Tool {
	return mcp.NewTool("get_current_task",
		mcp.WithDescription("Get the task currently in progress, if any."),
		projectOption(),
	)
}

// HandleGetCurrentTask processes get_current_task.
func (t *TaskTools) HandleGetCurrentTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	task, err := t.svc.GetCurrentTask(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(task), nil
}

// ListTasksDefinition returns the list_tasks schema.
func (t *TaskTools) ListTasksDefinition() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List tasks, optionally filtered to one kanban column."),
		mcp.WithString("status", mcp.Description("Column filter"), mcp.Enum(store.TaskStatuses...)),
		projectOption(),
	)
}

// HandleListTasks processes list_tasks.
func (t *TaskTools) HandleListTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := t.svc.ListTasks(ctx, t.project(req), req.GetString("status", ""))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(tasks), nil
}

// CreateTaskDefinition returns the create_task schema.
func (t *TaskTools) CreateTaskDefinition() mcp.Tool {
	return mcp.NewTool("create_task",
		mcp.WithDescription("Create a task in the backlog, optionally linked to a spec."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithString("description", mcp.Description("Task details")),
		mcp.WithString("spec_id", mcp.Description("Spec this task implements")),
		mcp.WithString("priority", mcp.Description("low, medium, high, or critical"), mcp.Enum(store.Priorities...)),
		projectOption(),
	)
}

// HandleCreateTask processes create_task.
func (t *TaskTools) HandleCreateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := requireString(req, "title")
	if err != nil {
		return errResult(err), nil
	}
	task, err := t.svc.CreateTask(ctx, t.project(req), store.CreateTaskParams{
		Title:       title,
		Description: req.GetString("description", ""),
		SpecID:      req.GetString("spec_id", ""),
		Priority:    req.GetString("priority", ""),
	})
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(task), nil
}

// UpdateTaskStatusDefinition returns the update_task_status schema.
func (t *TaskTools) UpdateTaskStatusDefinition() mcp.Tool {
	return mcp.NewTool("update_task_status",
		mcp.WithDescription("Move a task to another kanban column, subject to the state machine and WIP limits."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target column"), mcp.Enum(store.TaskStatuses...)),
		mcp.WithNumber("position", mcp.Description("Insertion index within the target column (omit to append)")),
		projectOption(),
	)
}

// HandleUpdateTaskStatus processes update_task_status.
func (t *TaskTools) HandleUpdateTaskStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(req, "id")
	if err != nil {
		return errResult(err), nil
	}
	status, err := requireString(req, "status")
	if err != nil {
		return errResult(err), nil
	}
	task, err := t.svc.MoveTask(ctx, t.project(req), id, status, intArg(req, "position", -1))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(task), nil
}

// GenerateTasksDefinition returns the generate_tasks schema.
func (t *TaskTools) GenerateTasksDefinition() mcp.Tool {
	return mcp.NewTool("generate_tasks",
		mcp.WithDescription("Create one backlog task per acceptance criterion of a spec. Idempotent: criteria that already have a task are skipped."),
		mcp.WithString("spec_id", mcp.Required(), mcp.Description("Spec to expand")),
		projectOption(),
	)
}

// HandleGenerateTasks processes generate_tasks.
func (t *TaskTools) HandleGenerateTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	specID, err := requireString(req, "spec_id")
	if err != nil {
		return errResult(err), nil
	}
	result, err := t.svc.GenerateTasks(ctx, t.project(req), specID)
	if err != nil {
		// Partial success still reports what landed.
		if len(result.Created) > 0 {
			return resultJSONDegraded(result, err.Error()), nil
		}
		return errResult(err), nil
	}
	return resultJSON(result), nil
}

// GetWipStatusDefinition returns the get_wip_status schema.
func (t *TaskTools) GetWipStatusDefinition() mcp.Tool {
	return mcp.NewTool("get_wip_status",
		mcp.WithDescription("Report each kanban column's occupancy against its WIP limit."),
		projectOption(),
	)
}

// HandleGetWipStatus processes get_wip_status.
func (t *TaskTools) HandleGetWipStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := t.svc.WipStatus(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(status), nil
}

// SetWipLimitDefinition returns the set_wip_limit schema.
func (t *TaskTools) SetWipLimitDefinition() mcp.Tool {
	return mcp.NewTool("set_wip_limit",
		mcp.WithDescription("Set a column's WIP limit. A limit of 0 makes the column unlimited."),
		mcp.WithString("column", mcp.Required(), mcp.Description("Column name"), mcp.Enum(store.TaskStatuses...)),
		mcp.WithNumber("limit", mcp.Required(), mcp.Description("Maximum tasks, 0 for unlimited")),
		projectOption(),
	)
}

// HandleSetWipLimit processes set_wip_limit.
func (t *TaskTools) HandleSetWipLimit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	column, err := requireString(req, "column")
	if err != nil {
		return errResult(err), nil
	}
	if err := t.svc.SetWipLimit(ctx, t.project(req), column, int64(intArg(req, "limit", 0))); err != nil {
		return errResult(err), nil
	}
	status, err := t.svc.WipStatus(ctx, t.project(req))
	if err != nil {
		return errResult(err), nil
	}
	return resultJSON(status), nil
}
