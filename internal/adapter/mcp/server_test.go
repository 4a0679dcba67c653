package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	acmcp "github.com/Strob0t/AgentCorp/internal/adapter/mcp"
	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/service"
)

func newTestCompany() *service.Company {
	cfg := config.Defaults()
	cfg.Company.Name = "Acme Labs"
	return service.NewCompany(cfg, service.CompanyDeps{})
}

func newTestMCP(company *service.Company) *acmcp.Server {
	deps := acmcp.ServerDeps{}
	if company != nil {
		deps = acmcp.ServerDeps{
			Status:  company,
			Chart:   company,
			Board:   company.Board,
			Tracker: company.Tracker,
			Bus:     company.Bus,
		}
	}
	return acmcp.NewServer(acmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)
}

func callTool(t *testing.T, s *acmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tool, ok := s.MCPServer().ListTools()[name]
	if !ok {
		t.Fatalf("tool %s not registered", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func textOf(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	return text.Text
}

func TestToolRegistration(t *testing.T) {
	s := newTestMCP(newTestCompany())

	tools := s.MCPServer().ListTools()
	for _, name := range []string{"company_status", "org_chart", "list_tasks", "get_task", "cost_summary", "recent_messages"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
	if len(tools) != 6 {
		t.Errorf("registered tools = %d, want 6", len(tools))
	}
}

func TestCompanyStatusTool(t *testing.T) {
	company := newTestCompany()
	s := newTestMCP(company)

	var st service.Status
	if err := json.Unmarshal([]byte(textOf(t, callTool(t, s, "company_status", nil))), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Company != "Acme Labs" {
		t.Errorf("company = %q", st.Company)
	}
}

func TestListTasksToolWithFilter(t *testing.T) {
	company := newTestCompany()
	done := task.New("done work", "casey")
	done.Complete("finished")
	company.Board.Add(done)
	company.Board.Add(task.New("open work", "casey"))

	s := newTestMCP(company)

	var views []task.View
	if err := json.Unmarshal([]byte(textOf(t, callTool(t, s, "list_tasks", map[string]any{"status": "done"}))), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 1 || views[0].Result != "finished" {
		t.Errorf("filtered tasks = %+v", views)
	}

	if err := json.Unmarshal([]byte(textOf(t, callTool(t, s, "list_tasks", nil))), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("all tasks = %d, want 2", len(views))
	}
}

func TestGetTaskTool(t *testing.T) {
	company := newTestCompany()
	tk := task.New("the work", "casey")
	company.Board.Add(tk)
	s := newTestMCP(company)

	var v task.View
	if err := json.Unmarshal([]byte(textOf(t, callTool(t, s, "get_task", map[string]any{"task_id": tk.ID}))), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.ID != tk.ID {
		t.Errorf("task = %+v", v)
	}

	if result := callTool(t, s, "get_task", map[string]any{"task_id": "nope"}); !result.IsError {
		t.Error("expected error result for unknown task")
	}
	if result := callTool(t, s, "get_task", nil); !result.IsError {
		t.Error("expected error result for missing task_id")
	}
}

func TestNilDepsReturnToolErrors(t *testing.T) {
	s := newTestMCP(nil)

	for _, name := range []string{"company_status", "org_chart", "list_tasks", "get_task", "cost_summary", "recent_messages"} {
		args := map[string]any{}
		if name == "get_task" {
			args["task_id"] = "x"
		}
		if result := callTool(t, s, name, args); !result.IsError {
			t.Errorf("tool %s: expected error result with nil deps", name)
		}
	}
}

func TestServerStartStop(t *testing.T) {
	s := acmcp.NewServer(acmcp.ServerConfig{Addr: "127.0.0.1:0", Name: "test", Version: "0.1.0"}, acmcp.ServerDeps{})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
