package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/AgentCorp/internal/adapter/ws"
	"github.com/Strob0t/AgentCorp/internal/domain/role"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Company *service.Company
	Hub     *ws.Hub
	Roles   *role.Loader
	Log     *slog.Logger
}

// Health responds to liveness probes.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetStatus returns the aggregate company snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Company.Status())
}

type hireRequest struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Provider string `json:"provider,omitempty"`
}

type agentResponse struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Title string `json:"title"`
	Model string `json:"model,omitempty"`
}

// HireAgent creates a new agent with a role loaded from the role library.
func (h *Handlers) HireAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[hireRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Role, "role") || !requireField(w, req.Name, "name") {
		return
	}

	agent, err := h.Company.Hire(r.Context(), req.Role, req.Name, req.Provider)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agentResponse{
		Name:  agent.Name,
		Role:  agent.Role.Name,
		Title: agent.Role.Title,
		Model: agent.Model(),
	})
}

// ListAgents returns all employed agents in hire order.
func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := h.Company.Agents()
	out := make([]agentResponse, 0, len(agents))
	for _, a := range agents {
		out = append(out, agentResponse{Name: a.Name, Role: a.Role.Name, Title: a.Role.Title, Model: a.Model()})
	}
	writeJSON(w, http.StatusOK, out)
}

// FireAgent removes an agent by name.
func (h *Handlers) FireAgent(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Company.Fire(r.Context(), name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOrgChart returns the reporting tree.
func (h *Handlers) GetOrgChart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Company.OrgChart())
}

// ListRoles returns the names of all loadable roles.
func (h *Handlers) ListRoles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Roles.Available())
}

type assignRequest struct {
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
}

// AssignTask creates a task and runs the assignee's think loop to a terminal
// state before responding. Clients that want progress watch the WebSocket feed.
func (h *Handlers) AssignTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[assignRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Description, "description") || !requireField(w, req.Assignee, "assignee") {
		return
	}

	t, err := h.Company.Assign(r.Context(), req.Description, req.Assignee)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t.Snapshot())
}

// ListTasks returns snapshots of all tasks, optionally filtered by status.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	var tasks []*task.Task
	if status := r.URL.Query().Get("status"); status != "" {
		tasks = h.Company.Board.ListByStatus(task.Status(status))
	} else {
		tasks = h.Company.Board.ListAll()
	}

	out := make([]task.View, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTask returns one task snapshot.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t := h.Company.Board.Get(chi.URLParam(r, "id"))
	if t == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t.Snapshot())
}

// ListTaskArtifacts returns the artifacts produced for one task.
func (h *Handlers) ListTaskArtifacts(w http.ResponseWriter, r *http.Request) {
	arts, err := h.Company.Artifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, arts)
}

type chatRequest struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// Chat relays one direct message to an agent and returns the reply.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[chatRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Agent, "agent") || !requireField(w, req.Content, "content") {
		return
	}

	reply, err := h.Company.Chat(r.Context(), req.Agent, req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

type broadcastRequest struct {
	Content string `json:"content"`
}

// Broadcast publishes an owner announcement to every agent.
func (h *Handlers) Broadcast(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[broadcastRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Content, "content") {
		return
	}

	h.Company.Broadcast(r.Context(), req.Content)
	w.WriteHeader(http.StatusAccepted)
}

// ListMessages returns the bus history, optionally filtered by topic.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.Company.Bus.History(limit, r.URL.Query().Get("topic")))
}

// GetCostSummary returns the aggregate spend report.
func (h *Handlers) GetCostSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Company.Tracker.Summary())
}

// ListRecentUsage returns the most recent usage records.
func (h *Handlers) ListRecentUsage(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, h.Company.Tracker.Recent(limit))
}

type goalRequest struct {
	Description string `json:"description"`
}

// StartGoal launches the autonomous goal loop in the background. Progress is
// observable via the WebSocket feed and the status endpoint.
func (h *Handlers) StartGoal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[goalRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Description, "description") {
		return
	}
	if h.Company.Status().GoalRunning {
		writeError(w, http.StatusConflict, "a goal is already running")
		return
	}

	go func() {
		// Detached from the request context: the goal outlives the response.
		if _, err := h.Company.RunGoal(context.Background(), req.Description); err != nil {
			h.Log.Error("goal run failed to start", "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// StopGoal asks the running goal to stop at its next checkpoint.
func (h *Handlers) StopGoal(w http.ResponseWriter, _ *http.Request) {
	h.Company.RequestStop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}
