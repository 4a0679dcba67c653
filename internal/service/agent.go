// Package service implements the orchestration core: agents, the company,
// and the autonomous goal loop.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/AgentCorp/internal/adapter/otel"
	"github.com/Strob0t/AgentCorp/internal/adapter/ws"
	"github.com/Strob0t/AgentCorp/internal/bus"
	"github.com/Strob0t/AgentCorp/internal/cost"
	"github.com/Strob0t/AgentCorp/internal/domain"
	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/role"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/port/broadcast"
	"github.com/Strob0t/AgentCorp/internal/port/database"
	"github.com/Strob0t/AgentCorp/internal/port/llm"
	"github.com/Strob0t/AgentCorp/internal/tool"
)

const (
	// minDeliverableLen is the minimum length of an acceptable deliverable.
	// Shorter report_result payloads are substituted or rejected.
	minDeliverableLen = 300

	// maxRejections bounds how often a short report_result is pushed back
	// before it is accepted as-is.
	maxRejections = 2
)

// AgentDeps bundles the collaborators every agent needs. Store, Events, and
// Metrics may be nil; the agent degrades to in-memory-only operation.
type AgentDeps struct {
	Board   *task.Board
	Bus     *bus.Bus
	Tracker *cost.Tracker
	Tools   *tool.Registry
	Store   database.Store
	Events  broadcast.Broadcaster
	Metrics *otel.Metrics
	Log     *slog.Logger

	OutputDir     string
	MaxIterations int
}

// Agent is one hired, role-bound persona. It executes tasks through a bounded
// tool-calling loop and keeps a private conversation history for direct chat.
type Agent struct {
	Name string
	Role *role.Role

	provider     llm.Provider
	systemPrompt string
	inbox        *bus.Inbox
	deps         AgentDeps

	mu      sync.Mutex
	history []llm.Message
}

// NewAgent creates an agent. provider may be nil when no completion backend
// is configured; every task assigned to such an agent fails immediately with
// a descriptive reason.
func NewAgent(name string, r *role.Role, provider llm.Provider, systemPrompt string, inbox *bus.Inbox, deps AgentDeps) *Agent {
	if deps.MaxIterations <= 0 {
		deps.MaxIterations = 15
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Agent{
		Name:         name,
		Role:         r,
		provider:     provider,
		systemPrompt: systemPrompt,
		inbox:        inbox,
		deps:         deps,
	}
}

// Model returns the model identifier of the agent's provider, or "".
func (a *Agent) Model() string {
	if a.provider == nil {
		return ""
	}
	return a.provider.Model()
}

// Chat sends one direct message to the agent outside of any task and returns
// the reply. The exchange is kept in the agent's private history.
func (a *Agent) Chat(ctx context.Context, content string) (string, error) {
	if a.provider == nil {
		return "", fmt.Errorf("agent %s: %w", a.Name, domain.ErrNoProvider)
	}

	a.mu.Lock()
	if len(a.history) == 0 {
		a.history = append(a.history, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	}
	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: content})
	msgs := append([]llm.Message(nil), a.history...)
	a.mu.Unlock()

	resp, err := a.provider.Complete(ctx, msgs, nil)
	if err != nil {
		return "", fmt.Errorf("agent %s chat: %w", a.Name, err)
	}
	a.recordUsage(ctx, resp)

	a.mu.Lock()
	a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
	a.mu.Unlock()
	return resp.Content, nil
}

// Think drives the task to a terminal state. It never returns an error; all
// failures are recorded on the task itself.
func (a *Agent) Think(ctx context.Context, t *task.Task) {
	ctx, span := otel.StartThinkSpan(ctx, a.Name, t.ID)
	defer span.End()
	started := time.Now()

	t.Start()
	a.taskChanged(ctx, t)
	a.deps.Log.Info("agent thinking", "agent", a.Name, "task", t.ID)

	if a.provider == nil {
		a.failTask(ctx, t, fmt.Sprintf("agent %s has no configured LLM provider", a.Name))
		return
	}

	msgs := a.initialTranscript(t)
	defs := a.toolDefinitions()

	var best string
	rejections := 0

	for i := 0; i < a.deps.MaxIterations; i++ {
		resp, err := a.provider.Complete(ctx, msgs, defs)
		if err != nil {
			a.failTask(ctx, t, fmt.Sprintf("completion failed: %v", err))
			return
		}
		a.recordUsage(ctx, resp)

		if len(resp.Content) > len(best) {
			best = resp.Content
		}

		// A plain text reply ends the loop; the text is the result as-is.
		if len(resp.ToolCalls) == 0 {
			t.Complete(resp.Content)
			a.taskChanged(ctx, t)
			a.observeThink(ctx, started)
			return
		}

		msgs = append(msgs, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			result, terminal := a.dispatch(ctx, t, tc, &best, &rejections)
			if terminal {
				a.observeThink(ctx, started)
				return
			}
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: tc.ID,
				Content:    result,
			})
		}
	}

	// Iteration budget exhausted. Salvage the longest narration if it looks
	// like a real deliverable, otherwise fail.
	if len(best) >= minDeliverableLen {
		a.finishWithDeliverable(ctx, t, best)
		a.observeThink(ctx, started)
		return
	}
	a.failTask(ctx, t, fmt.Sprintf("exceeded maximum iterations (%d) without producing a deliverable", a.deps.MaxIterations))
	a.observeThink(ctx, started)
}

// dispatch executes one tool call. It returns the tool-result string and
// whether the task reached a terminal state (in which case remaining calls in
// the same turn are skipped).
func (a *Agent) dispatch(ctx context.Context, t *task.Task, tc llm.ToolCall, best *string, rejections *int) (string, bool) {
	ctx, span := otel.StartToolCallSpan(ctx, tc.Name, t.ID)
	defer span.End()
	if a.deps.Metrics != nil {
		a.deps.Metrics.ToolCalls.Add(ctx, 1)
	}

	switch tc.Name {
	case "report_result":
		return a.handleReport(ctx, t, tc, best, rejections)
	case "delegate_task":
		return a.handleDelegate(ctx, t, tc), false
	}

	out, err := a.deps.Tools.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		a.deps.Log.Warn("tool failed", "agent", a.Name, "tool", tc.Name, "error", err)
		return fmt.Sprintf("ERROR: %v", err), false
	}

	if tc.Name == "write_file" {
		a.captureWrittenFile(ctx, t, tc.Arguments)
	}
	return out, false
}

// handleReport applies the deliverable quality gate and, when it passes,
// moves the task to DONE.
func (a *Agent) handleReport(ctx context.Context, t *task.Task, tc llm.ToolCall, best *string, rejections *int) (string, bool) {
	result, _ := tc.Arguments["result"].(string)
	status, _ := tc.Arguments["status"].(string)

	// An explicit failure verdict is accepted at any length; the quality gate
	// exists to force real deliverables, not to block failure reports.
	if status == "failed" {
		t.Fail(result)
		a.taskChanged(ctx, t)
		if a.deps.Metrics != nil {
			a.deps.Metrics.TasksFailed.Add(ctx, 1)
		}
		return "", true
	}

	// Models often narrate the full deliverable and then report a stub;
	// substitute the longest narration when it is the better text.
	if len(result) < minDeliverableLen && len(*best) > len(result) {
		result = *best
	}

	if len(result) < minDeliverableLen && *rejections < maxRejections {
		*rejections++
		a.deps.Log.Info("deliverable rejected as too short",
			"agent", a.Name, "task", t.ID, "length", len(result), "rejection", *rejections)
		return fmt.Sprintf(
			"REJECTED: your result is only %d characters. Produce the complete deliverable (at least %d characters of substantive content), then call report_result again with the full text.",
			len(result), minDeliverableLen), false
	}

	a.finishWithDeliverable(ctx, t, result)
	return "", true
}

// handleDelegate creates a subtask and publishes a structured delegation
// notice. Which concrete agent picks it up is the orchestrator's decision.
func (a *Agent) handleDelegate(ctx context.Context, t *task.Task, tc llm.ToolCall) string {
	targetRole, _ := tc.Arguments["role"].(string)
	description, _ := tc.Arguments["description"].(string)

	if targetRole == "" || description == "" {
		return "ERROR: delegate_task requires both role and description"
	}
	if !contains(a.Role.CanDelegate, targetRole) {
		return fmt.Sprintf("ERROR: your role cannot delegate to %q (allowed: %s)",
			targetRole, strings.Join(a.Role.CanDelegate, ", "))
	}

	sub := t.AddSubtask(description)
	a.deps.Board.Add(sub)
	a.taskChanged(ctx, sub)
	if a.deps.Metrics != nil {
		a.deps.Metrics.TasksCreated.Add(ctx, 1)
	}

	payload, _ := json.Marshal(message.Delegation{
		Action:      "delegate",
		From:        a.Name,
		ToRole:      targetRole,
		TaskID:      sub.ID,
		Description: description,
	})
	a.deps.Bus.Publish(ctx, message.Message{
		From:    a.Name,
		Content: string(payload),
		Topic:   message.TopicTaskDelegate,
	})

	a.deps.Log.Info("task delegated", "agent", a.Name, "subtask", sub.ID, "role", targetRole)
	return fmt.Sprintf("Delegated subtask %s to role %s. It will be executed by the next available wave.", sub.ID, targetRole)
}

// finishWithDeliverable marks the task DONE, registers the deliverable as an
// artifact, and exports it to the per-task output folder.
func (a *Agent) finishWithDeliverable(ctx context.Context, t *task.Task, result string) {
	t.Complete(result)

	art := artifact.Artifact{
		ID:        domain.NewID(),
		TaskID:    t.ID,
		AgentID:   a.Name,
		Name:      "deliverable.md",
		Content:   result,
		Type:      artifact.TypeText,
		CreatedAt: time.Now().UTC(),
	}
	t.AddArtifact(art)
	a.saveArtifact(ctx, art)
	a.exportDeliverable(t.ID, "deliverable.md", result)

	a.taskChanged(ctx, t)
	if a.deps.Metrics != nil {
		a.deps.Metrics.TasksDone.Add(ctx, 1)
	}
	a.publishCompleted(ctx, t)
}

// captureWrittenFile registers a successful write_file call as an artifact
// and copies it into the task's output folder.
func (a *Agent) captureWrittenFile(ctx context.Context, t *task.Task, args map[string]any) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return
	}

	name := filepath.Base(path)
	art := artifact.Artifact{
		ID:        domain.NewID(),
		TaskID:    t.ID,
		AgentID:   a.Name,
		Name:      name,
		Content:   content,
		Type:      artifact.TypeForPath(path),
		CreatedAt: time.Now().UTC(),
	}
	t.AddArtifact(art)
	a.saveArtifact(ctx, art)
	a.exportDeliverable(t.ID, name, content)
}

// exportDeliverable writes content under <output>/<task-id>/, renaming on
// collision so repeated writes never clobber earlier deliverables.
func (a *Agent) exportDeliverable(taskID, name, content string) {
	if a.deps.OutputDir == "" {
		return
	}
	dir := filepath.Join(a.deps.OutputDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.deps.Log.Warn("export deliverable", "task", taskID, "error", err)
		return
	}

	target := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			break
		}
		target = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, ext))
	}

	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		a.deps.Log.Warn("export deliverable", "task", taskID, "error", err)
	}
}

func (a *Agent) publishCompleted(ctx context.Context, t *task.Task) {
	a.deps.Bus.Publish(ctx, message.Message{
		From:    a.Name,
		Content: fmt.Sprintf("Task %s completed by %s", t.ID, a.Name),
		Topic:   message.TopicTaskCompleted,
	})
}

// initialTranscript builds the system turn, folds in any queued inbox
// messages, and states the task.
func (a *Agent) initialTranscript(t *task.Task) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: a.systemPrompt}}

	if queued := a.inbox.Drain(); len(queued) > 0 {
		var b strings.Builder
		b.WriteString("Messages received while you were idle:\n")
		for _, m := range queued {
			from := m.From
			if from == "" {
				from = "owner"
			}
			fmt.Fprintf(&b, "- from %s [%s]: %s\n", from, m.Topic, m.Content)
		}
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: b.String()})
	}

	msgs = append(msgs, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf(
			"Your task (id %s):\n%s\n\nWork the task with your tools. When the deliverable is complete, call report_result with the full deliverable text.",
			t.ID, t.Description),
	})
	return msgs
}

// toolDefinitions assembles the role's allowed workplace tools plus the two
// control tools handled by the agent itself.
func (a *Agent) toolDefinitions() []llm.ToolDefinition {
	defs := a.deps.Tools.Definitions(a.Role.DefaultTools...)

	defs = append(defs, llm.ToolDefinition{
		Name:        "report_result",
		Description: "Submit the final deliverable for your current task. Call this exactly once, when the work is complete.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"result": map[string]any{
					"type":        "string",
					"description": "The complete deliverable text",
				},
				"status": map[string]any{
					"type":        "string",
					"description": "done if the task succeeded, failed otherwise",
					"enum":        []any{"done", "failed"},
				},
			},
			"required": []any{"result"},
		},
	})

	if len(a.Role.CanDelegate) > 0 {
		defs = append(defs, llm.ToolDefinition{
			Name:        "delegate_task",
			Description: fmt.Sprintf("Delegate a subtask to another role. Allowed roles: %s.", strings.Join(a.Role.CanDelegate, ", ")),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"role": map[string]any{
						"type":        "string",
						"description": "Target role name",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "What the subtask should accomplish",
					},
				},
				"required": []any{"role", "description"},
			},
		})
	}
	return defs
}

func (a *Agent) recordUsage(ctx context.Context, resp *llm.Response) {
	if resp.Usage == nil {
		return
	}
	rec := a.deps.Tracker.Record(a.Name, a.Model(), resp.Usage.TokensIn, resp.Usage.TokensOut)
	if a.deps.Metrics != nil {
		a.deps.Metrics.CompletionCost.Record(ctx, rec.CostUSD)
	}
	if a.deps.Store != nil {
		if err := a.deps.Store.SaveUsage(ctx, rec); err != nil {
			a.deps.Log.Warn("save usage", "agent", a.Name, "error", err)
		}
	}
	if a.deps.Events != nil {
		a.deps.Events.BroadcastEvent(ctx, ws.EventCostUpdated, ws.CostEvent{
			Agent:        a.Name,
			Model:        rec.Model,
			CostUSD:      rec.CostUSD,
			TotalCostUSD: a.deps.Tracker.TotalCostUSD(),
		})
	}
}

func (a *Agent) failTask(ctx context.Context, t *task.Task, reason string) {
	a.deps.Log.Warn("task failed", "agent", a.Name, "task", t.ID, "reason", reason)
	t.Fail(reason)
	a.taskChanged(ctx, t)
	if a.deps.Metrics != nil {
		a.deps.Metrics.TasksFailed.Add(ctx, 1)
	}
}

// taskChanged persists the task snapshot and emits a dashboard event.
func (a *Agent) taskChanged(ctx context.Context, t *task.Task) {
	v := t.Snapshot()
	if a.deps.Store != nil {
		if err := a.deps.Store.UpsertTask(ctx, v); err != nil {
			a.deps.Log.Warn("persist task", "task", v.ID, "error", err)
		}
	}
	if a.deps.Events != nil {
		a.deps.Events.BroadcastEvent(ctx, ws.EventTaskUpdated, ws.TaskEvent{
			TaskID:   v.ID,
			Status:   string(v.Status),
			Assignee: v.Assignee,
			ParentID: v.ParentID,
		})
	}
}

func (a *Agent) saveArtifact(ctx context.Context, art artifact.Artifact) {
	if a.deps.Store == nil {
		return
	}
	if err := a.deps.Store.SaveArtifact(ctx, art); err != nil {
		a.deps.Log.Warn("save artifact", "artifact", art.ID, "error", err)
	}
}

func (a *Agent) observeThink(ctx context.Context, started time.Time) {
	if a.deps.Metrics != nil {
		a.deps.Metrics.ThinkDuration.Record(ctx, time.Since(started).Seconds())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
