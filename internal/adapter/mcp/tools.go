package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/AgentCorp/internal/domain/task"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.companyStatusTool(),
		s.orgChartTool(),
		s.listTasksTool(),
		s.getTaskTool(),
		s.costSummaryTool(),
		s.recentMessagesTool(),
	)
}

func (s *Server) companyStatusTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("company_status",
		mcplib.WithDescription("Get the aggregate company snapshot: agents, task counts, spend, goal state"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCompanyStatus}
}

func (s *Server) orgChartTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("org_chart",
		mcplib.WithDescription("Get the reporting tree of all hired agents"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleOrgChart}
}

func (s *Server) listTasksTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tasks",
		mcplib.WithDescription("List all tasks on the board, optionally filtered by status"),
		mcplib.WithString("status",
			mcplib.Description("Optional status filter: pending, assigned, in_progress, done, failed"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListTasks}
}

func (s *Server) getTaskTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_task",
		mcplib.WithDescription("Get one task by ID, including its result"),
		mcplib.WithString("task_id",
			mcplib.Required(),
			mcplib.Description("The task ID to look up"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetTask}
}

func (s *Server) costSummaryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cost_summary",
		mcplib.WithDescription("Get the aggregate LLM spend report, broken down by agent and model"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleCostSummary}
}

func (s *Server) recentMessagesTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("recent_messages",
		mcplib.WithDescription("Read the most recent bus messages, optionally filtered by topic"),
		mcplib.WithString("topic",
			mcplib.Description("Optional topic filter, e.g. task.delegate or broadcast"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRecentMessages}
}

func (s *Server) handleCompanyStatus(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Status == nil {
		return mcplib.NewToolResultError("status reader not configured"), nil
	}
	data, err := json.Marshal(s.deps.Status.Status())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal status", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleOrgChart(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Chart == nil {
		return mcplib.NewToolResultError("org chart reader not configured"), nil
	}
	data, err := json.Marshal(s.deps.Chart.OrgChart())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal org chart", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleListTasks(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Board == nil {
		return mcplib.NewToolResultError("task board not configured"), nil
	}

	var tasks []*task.Task
	if status, _ := req.GetArguments()["status"].(string); status != "" {
		tasks = s.deps.Board.ListByStatus(task.Status(status))
	} else {
		tasks = s.deps.Board.ListAll()
	}

	views := make([]task.View, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, t.Snapshot())
	}
	data, err := json.Marshal(views)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal tasks", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleGetTask(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Board == nil {
		return mcplib.NewToolResultError("task board not configured"), nil
	}
	taskID, ok := req.GetArguments()["task_id"].(string)
	if !ok || taskID == "" {
		return mcplib.NewToolResultError("task_id is required"), nil
	}

	t := s.deps.Board.Get(taskID)
	if t == nil {
		return mcplib.NewToolResultError(fmt.Sprintf("task %s not found", taskID)), nil
	}
	data, err := json.Marshal(t.Snapshot())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal task", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleCostSummary(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Tracker == nil {
		return mcplib.NewToolResultError("cost tracker not configured"), nil
	}
	data, err := json.Marshal(s.deps.Tracker.Summary())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal cost summary", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func (s *Server) handleRecentMessages(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Bus == nil {
		return mcplib.NewToolResultError("message bus not configured"), nil
	}
	topic, _ := req.GetArguments()["topic"].(string)
	data, err := json.Marshal(s.deps.Bus.History(50, topic))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal messages", err), nil
	}
	return toolResultJSON(string(data)), nil
}

// toolResultJSON wraps a JSON payload as a text tool result.
func toolResultJSON(data string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(data)
}
