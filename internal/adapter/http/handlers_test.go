package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/domain/role"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/service"
)

func newTestServer(t *testing.T) (*service.Company, *httptest.Server) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Company.Name = "Acme Labs"
	cfg.Company.OutputDir = ""

	company := service.NewCompany(cfg, service.CompanyDeps{})
	h := &Handlers{Company: company, Roles: &role.Loader{}, Log: testLogger()}

	r := chi.NewRouter()
	MountRoutes(r, h)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return company, srv
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHireAndListAgents(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("hire status = %d, want 201", resp.StatusCode)
	}
	created := decode[agentResponse](t, resp)
	if created.Name != "casey" || created.Role != "writer" {
		t.Errorf("created = %+v", created)
	}

	listResp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/agents", nil)
	agents := decode[[]agentResponse](t, listResp)
	if len(agents) != 1 || agents[0].Name != "casey" {
		t.Errorf("agents = %+v", agents)
	}
}

func TestHireValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "astronaut", Name: "buzz"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown role status = %d, want 404", resp.StatusCode)
	}
}

func TestHireDuplicateReturns409(t *testing.T) {
	_, srv := newTestServer(t)

	doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "engineer", Name: "casey"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate hire status = %d, want 409", resp.StatusCode)
	}
}

func TestFireAgent(t *testing.T) {
	_, srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/v1/agents/casey", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("fire status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/agents/casey", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double fire status = %d, want 404", resp.StatusCode)
	}
}

func TestAssignUnknownAgentReturns404(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", assignRequest{Description: "write", Assignee: "nobody"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestAssignAndGetTask(t *testing.T) {
	company, srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})

	// No provider resolver is wired, so the think loop fails the task with a
	// descriptive reason; the HTTP flow itself must still succeed.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", assignRequest{Description: "write a post", Assignee: "casey"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("assign status = %d, want 201", resp.StatusCode)
	}
	created := decode[task.View](t, resp)
	if created.Status != task.StatusFailed {
		t.Errorf("task status = %s, want failed (no provider)", created.Status)
	}

	getResp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/"+created.ID, nil)
	got := decode[task.View](t, getResp)
	if got.ID != created.ID {
		t.Errorf("get task = %+v", got)
	}

	if got := company.Board.Len(); got != 1 {
		t.Errorf("board size = %d, want 1", got)
	}
}

func TestListTasksFilterByStatus(t *testing.T) {
	_, srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/tasks", assignRequest{Description: "one", Assignee: "casey"})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks?status=failed", nil)
	tasks := decode[[]task.View](t, resp)
	if len(tasks) != 1 {
		t.Errorf("failed tasks = %d, want 1", len(tasks))
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks?status=done", nil)
	tasks = decode[[]task.View](t, resp)
	if len(tasks) != 0 {
		t.Errorf("done tasks = %d, want 0", len(tasks))
	}
}

func TestGetUnknownTaskReturns404(t *testing.T) {
	_, srv := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/tasks/nope", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestBroadcastAndMessages(t *testing.T) {
	_, srv := newTestServer(t)
	doJSON(t, http.MethodPost, srv.URL+"/api/v1/agents", hireRequest{Role: "writer", Name: "casey"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/broadcast", broadcastRequest{Content: "all hands"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("broadcast status = %d, want 202", resp.StatusCode)
	}

	msgResp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/messages?topic=broadcast", nil)
	msgs := decode[[]map[string]any](t, msgResp)
	if len(msgs) != 1 {
		t.Errorf("broadcast messages = %d, want 1", len(msgs))
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/status", nil)
	st := decode[service.Status](t, resp)
	if st.Company != "Acme Labs" {
		t.Errorf("company = %q", st.Company)
	}
	if st.GoalRunning {
		t.Error("goal running on a fresh company")
	}
}

func TestStartGoalValidation(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/goal", goalRequest{Description: ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty goal status = %d, want 400", resp.StatusCode)
	}
}

func TestCostEndpoints(t *testing.T) {
	company, srv := newTestServer(t)
	company.Tracker.Record("casey", "gpt-4o-mini", 100, 50)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/costs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("costs status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/costs/recent?limit=abc", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
}

func TestListRoles(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/roles", nil)
	roles := decode[[]string](t, resp)
	if len(roles) < 5 {
		t.Errorf("roles = %v, want at least the five presets", roles)
	}
}
