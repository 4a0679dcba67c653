package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	otelx "github.com/Strob0t/AgentCorp/internal/adapter/otel"
	"github.com/Strob0t/AgentCorp/internal/adapter/ws"
	"github.com/Strob0t/AgentCorp/internal/bus"
	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/cost"
	"github.com/Strob0t/AgentCorp/internal/domain"
	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
	costdomain "github.com/Strob0t/AgentCorp/internal/domain/cost"
	"github.com/Strob0t/AgentCorp/internal/domain/goal"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/role"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/port/broadcast"
	"github.com/Strob0t/AgentCorp/internal/port/database"
	"github.com/Strob0t/AgentCorp/internal/port/llm"
	"github.com/Strob0t/AgentCorp/internal/tool"
)

// ProviderResolver resolves a provider name to a completion client.
type ProviderResolver interface {
	Provider(name string) (llm.Provider, error)
}

// BusMirror republishes bus messages to an external broker.
type BusMirror interface {
	Publish(ctx context.Context, msg message.Message) error
}

// CompanyDeps bundles the optional collaborators of a Company. Nil fields are
// tolerated everywhere.
type CompanyDeps struct {
	Log       *slog.Logger
	Store     database.Store
	Events    broadcast.Broadcaster
	Metrics   *otelx.Metrics
	Mirror    BusMirror
	Tools     *tool.Registry
	Providers ProviderResolver
	Roles     *role.Loader
}

// Company owns all agents, the task board, the bus, and the cost tracker. It
// is the single entry point the HTTP, MCP, and CLI surfaces talk to.
type Company struct {
	cfg  config.Config
	deps CompanyDeps

	Board   *task.Board
	Bus     *bus.Bus
	Tracker *cost.Tracker

	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string

	goalMu        sync.Mutex
	goalRunning   bool
	stopRequested bool
	currentGoal   *goal.Goal
}

// NewCompany creates the orchestrator and wires the bus's global listener to
// persistence, the dashboard, and the optional broker mirror.
func NewCompany(cfg config.Config, deps CompanyDeps) *Company {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Roles == nil {
		deps.Roles = &role.Loader{Dir: cfg.Company.RolesDir}
	}
	if deps.Tools == nil {
		deps.Tools = tool.NewRegistry()
	}

	c := &Company{
		cfg:     cfg,
		deps:    deps,
		Board:   task.NewBoard(),
		Bus:     bus.New(),
		Tracker: cost.NewTracker(),
		agents:  make(map[string]*Agent),
	}

	c.Bus.SetGlobalListener(func(ctx context.Context, msg message.Message) {
		if deps.Store != nil {
			if err := deps.Store.SaveMessage(ctx, msg); err != nil {
				deps.Log.Warn("persist bus message", "topic", msg.Topic, "error", err)
			}
		}
		if deps.Events != nil {
			deps.Events.BroadcastEvent(ctx, ws.EventMessage, ws.BusMessageEvent{
				From:    msg.From,
				To:      msg.To,
				Topic:   msg.Topic,
				Content: msg.Content,
			})
		}
		if deps.Mirror != nil {
			if err := deps.Mirror.Publish(ctx, msg); err != nil {
				deps.Log.Warn("mirror bus message", "topic", msg.Topic, "error", err)
			}
		}
	})

	return c
}

// Name returns the configured company name.
func (c *Company) Name() string { return c.cfg.Company.Name }

// Hire creates an agent with the given role. providerName may be empty to use
// the default provider. The agent name must be unique.
func (c *Company) Hire(ctx context.Context, roleName, agentName, providerName string) (*Agent, error) {
	if agentName == "" {
		return nil, fmt.Errorf("hire: agent name is required")
	}

	r, err := c.deps.Roles.Load(roleName)
	if err != nil {
		return nil, fmt.Errorf("hire %s: %w", agentName, err)
	}

	c.mu.Lock()
	if _, exists := c.agents[agentName]; exists {
		c.mu.Unlock()
		return nil, fmt.Errorf("hire %s: %w", agentName, domain.ErrConflict)
	}
	team := c.teamLocked()
	c.mu.Unlock()

	var provider llm.Provider
	if c.deps.Providers != nil {
		provider, err = c.deps.Providers.Provider(providerName)
		if err != nil {
			return nil, fmt.Errorf("hire %s: %w", agentName, err)
		}
	}
	if provider == nil {
		c.deps.Log.Warn("agent hired without provider", "agent", agentName, "role", roleName)
	}

	prompt := r.BuildSystemPrompt(c.cfg.Company.Name, team, c.cfg.Company.BusinessContext)
	inbox := c.Bus.RegisterAgent(agentName)

	agent := NewAgent(agentName, r, provider, prompt, inbox, AgentDeps{
		Board:         c.Board,
		Bus:           c.Bus,
		Tracker:       c.Tracker,
		Tools:         c.deps.Tools,
		Store:         c.deps.Store,
		Events:        c.deps.Events,
		Metrics:       c.deps.Metrics,
		Log:           c.deps.Log,
		OutputDir:     c.cfg.Company.OutputDir,
		MaxIterations: c.cfg.Autonomous.MaxAgentIterations,
	})

	c.mu.Lock()
	c.agents[agentName] = agent
	c.order = append(c.order, agentName)
	c.mu.Unlock()

	if c.deps.Store != nil {
		err := c.deps.Store.SaveAgent(ctx, database.AgentRecord{
			Name:      agentName,
			Role:      roleName,
			Provider:  providerName,
			Model:     agent.Model(),
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			c.deps.Log.Warn("persist agent", "agent", agentName, "error", err)
		}
	}
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventAgentHired, ws.AgentEvent{
			Name:  agentName,
			Role:  roleName,
			Model: agent.Model(),
		})
	}

	c.deps.Log.Info("agent hired", "agent", agentName, "role", roleName, "model", agent.Model())
	return agent, nil
}

// Fire removes an agent. Its inbox is dropped; queued messages are discarded.
func (c *Company) Fire(ctx context.Context, name string) error {
	c.mu.Lock()
	agent, ok := c.agents[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("fire %s: %w", name, domain.ErrNotFound)
	}
	delete(c.agents, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.Bus.UnregisterAgent(name)

	if c.deps.Store != nil {
		if err := c.deps.Store.MarkAgentFired(ctx, name); err != nil {
			c.deps.Log.Warn("persist fire", "agent", name, "error", err)
		}
	}
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventAgentFired, ws.AgentEvent{
			Name: name,
			Role: agent.Role.Name,
		})
	}

	c.deps.Log.Info("agent fired", "agent", name, "role", agent.Role.Name)
	return nil
}

// Agent returns the named agent, or nil.
func (c *Company) Agent(name string) *Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.agents[name]
}

// Agents returns all agents in hire order.
func (c *Company) Agents() []*Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Agent, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.agents[name])
	}
	return out
}

// agentByRole returns the first live agent with the given role, in hire order.
func (c *Company) agentByRole(roleName string) *Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, name := range c.order {
		if a := c.agents[name]; a.Role.Name == roleName {
			return a
		}
	}
	return nil
}

// OrgNode is one entry in the reporting tree.
type OrgNode struct {
	Name    string    `json:"name"`
	Role    string    `json:"role"`
	Title   string    `json:"title"`
	Reports []OrgNode `json:"reports,omitempty"`
}

// OrgChart returns the reporting tree. Agents whose role reports to "owner"
// (or to a role nobody holds) are roots.
func (c *Company) OrgChart() []OrgNode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	holders := make(map[string][]string) // role name -> agent names
	for _, name := range c.order {
		r := c.agents[name].Role.Name
		holders[r] = append(holders[r], name)
	}

	var build func(name string) OrgNode
	build = func(name string) OrgNode {
		a := c.agents[name]
		node := OrgNode{Name: name, Role: a.Role.Name, Title: a.Role.Title}
		for _, childName := range c.order {
			child := c.agents[childName]
			if child.Role.ReportsTo == a.Role.Name && childName != name {
				node.Reports = append(node.Reports, build(childName))
			}
		}
		return node
	}

	var roots []OrgNode
	for _, name := range c.order {
		boss := c.agents[name].Role.ReportsTo
		if boss == "owner" || len(holders[boss]) == 0 {
			roots = append(roots, build(name))
		}
	}
	return roots
}

// Assign creates a task for the named agent and runs it to a terminal state.
func (c *Company) Assign(ctx context.Context, description, assignee string) (*task.Task, error) {
	agent := c.Agent(assignee)
	if agent == nil {
		return nil, fmt.Errorf("assign: agent %q: %w", assignee, domain.ErrNotFound)
	}

	t := task.New(description, assignee)
	c.Board.Add(t)
	c.taskCreated(ctx, t)

	agent.Think(ctx, t)
	return t, nil
}

// Chat relays one direct message to an agent.
func (c *Company) Chat(ctx context.Context, agentName, content string) (string, error) {
	agent := c.Agent(agentName)
	if agent == nil {
		return "", fmt.Errorf("chat: agent %q: %w", agentName, domain.ErrNotFound)
	}

	c.Bus.Send(ctx, "", agentName, content, message.TopicGeneral)
	return agent.Chat(ctx, content)
}

// Broadcast publishes an owner announcement to every agent's inbox.
func (c *Company) Broadcast(ctx context.Context, content string) {
	c.Bus.Send(ctx, "", "", content, message.TopicBroadcast)
}

// Status is the aggregate company snapshot.
type Status struct {
	Company     string              `json:"company"`
	Agents      int                 `json:"agents"`
	Tasks       map[task.Status]int `json:"tasks"`
	Cost        costdomain.Summary  `json:"cost"`
	GoalRunning bool                `json:"goal_running"`
	Goal        *goal.Goal          `json:"goal,omitempty"`
}

// Status returns the current company snapshot.
func (c *Company) Status() Status {
	c.mu.RLock()
	agents := len(c.agents)
	c.mu.RUnlock()

	c.goalMu.Lock()
	running := c.goalRunning
	g := c.currentGoal
	c.goalMu.Unlock()

	return Status{
		Company:     c.cfg.Company.Name,
		Agents:      agents,
		Tasks:       c.Board.Summary(),
		Cost:        c.Tracker.Summary(),
		GoalRunning: running,
		Goal:        g,
	}
}

// Artifacts returns the artifacts of one task, preferring the persistence
// collaborator and falling back to the in-memory task record.
func (c *Company) Artifacts(ctx context.Context, taskID string) ([]artifact.Artifact, error) {
	if c.deps.Store != nil {
		arts, err := c.deps.Store.ListArtifacts(ctx, taskID)
		if err == nil {
			return arts, nil
		}
		c.deps.Log.Warn("list artifacts from store", "task", taskID, "error", err)
	}

	t := c.Board.Get(taskID)
	if t == nil {
		return nil, fmt.Errorf("artifacts: task %q: %w", taskID, domain.ErrNotFound)
	}
	return t.Artifacts(), nil
}

// Restore re-hires all active agents from the persistence collaborator.
// Called once on startup.
func (c *Company) Restore(ctx context.Context) error {
	if c.deps.Store == nil {
		return nil
	}
	recs, err := c.deps.Store.ListActiveAgents(ctx)
	if err != nil {
		return fmt.Errorf("restore agents: %w", err)
	}
	for _, rec := range recs {
		if _, err := c.Hire(ctx, rec.Role, rec.Name, rec.Provider); err != nil {
			c.deps.Log.Warn("restore agent", "agent", rec.Name, "error", err)
		}
	}
	c.deps.Log.Info("agents restored", "count", len(recs))
	return nil
}

// Shutdown requests a goal stop and unregisters all agents.
func (c *Company) Shutdown(ctx context.Context) {
	c.RequestStop()

	c.mu.Lock()
	names := append([]string(nil), c.order...)
	c.agents = make(map[string]*Agent)
	c.order = nil
	c.mu.Unlock()

	for _, name := range names {
		c.Bus.UnregisterAgent(name)
	}
	c.deps.Log.Info("company shut down", "agents_released", len(names))
}

// taskCreated persists and announces a new task.
func (c *Company) taskCreated(ctx context.Context, t *task.Task) {
	v := t.Snapshot()
	if c.deps.Store != nil {
		if err := c.deps.Store.UpsertTask(ctx, v); err != nil {
			c.deps.Log.Warn("persist task", "task", v.ID, "error", err)
		}
	}
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventTaskCreated, ws.TaskEvent{
			TaskID:   v.ID,
			Status:   string(v.Status),
			Assignee: v.Assignee,
			ParentID: v.ParentID,
		})
	}
	if c.deps.Metrics != nil {
		c.deps.Metrics.TasksCreated.Add(ctx, 1)
	}
}

// taskChanged persists the task snapshot and emits a dashboard event.
func (c *Company) taskChanged(ctx context.Context, t *task.Task) {
	v := t.Snapshot()
	if c.deps.Store != nil {
		if err := c.deps.Store.UpsertTask(ctx, v); err != nil {
			c.deps.Log.Warn("persist task", "task", v.ID, "error", err)
		}
	}
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventTaskUpdated, ws.TaskEvent{
			TaskID:   v.ID,
			Status:   string(v.Status),
			Assignee: v.Assignee,
			ParentID: v.ParentID,
		})
	}
}

// teamLocked must be called with c.mu held.
func (c *Company) teamLocked() []string {
	team := make([]string, 0, len(c.order))
	for _, name := range c.order {
		team = append(team, fmt.Sprintf("%s (%s)", name, c.agents[name].Role.Title))
	}
	sort.Strings(team)
	return team
}

// progressSummary renders one line per task for planning and review prompts.
func (c *Company) progressSummary() string {
	tasks := c.Board.ListAll()
	if len(tasks) == 0 {
		return "No tasks yet."
	}

	var b strings.Builder
	for _, t := range tasks {
		v := t.Snapshot()
		line := fmt.Sprintf("- [%s] %s: %s", v.Status, v.ID, truncate(v.Description, 120))
		if v.Result != "" {
			line += " => " + truncate(v.Result, 160)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
