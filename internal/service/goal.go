package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	otelx "github.com/Strob0t/AgentCorp/internal/adapter/otel"
	"github.com/Strob0t/AgentCorp/internal/adapter/ws"
	"github.com/Strob0t/AgentCorp/internal/domain"
	"github.com/Strob0t/AgentCorp/internal/domain/goal"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
)

const ceoRole = "ceo"

// RunGoal executes the autonomous plan/execute/review loop for one goal and
// blocks until it reaches a terminal status. Only one goal runs at a time.
func (c *Company) RunGoal(ctx context.Context, description string) (*goal.Goal, error) {
	ceo := c.agentByRole(ceoRole)
	if ceo == nil {
		return nil, fmt.Errorf("run goal: no agent with role %q hired: %w", ceoRole, domain.ErrNotFound)
	}

	c.goalMu.Lock()
	if c.goalRunning {
		c.goalMu.Unlock()
		return nil, fmt.Errorf("run goal: a goal is already running: %w", domain.ErrConflict)
	}
	g := &goal.Goal{
		ID:          domain.NewID(),
		Description: description,
		Status:      goal.StatusRunning,
		CreatedAt:   time.Now().UTC(),
	}
	c.goalRunning = true
	c.stopRequested = false
	c.currentGoal = g
	c.goalMu.Unlock()

	if c.deps.Store != nil {
		if err := c.deps.Store.CreateGoal(ctx, g); err != nil {
			c.deps.Log.Warn("persist goal", "goal", g.ID, "error", err)
		}
	}
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventGoalStarted, ws.GoalEvent{GoalID: g.ID})
	}
	c.deps.Log.Info("goal started", "goal", g.ID, "description", truncate(description, 120))

	started := time.Now()
	status := c.runCycles(ctx, g, ceo, started)
	c.finalizeGoal(ctx, g, status, started)
	return g, nil
}

// RequestStop asks the running goal to stop at the next checkpoint (top of a
// cycle or a wave). In-flight completions and tool calls are not interrupted.
func (c *Company) RequestStop() {
	c.goalMu.Lock()
	if c.goalRunning {
		c.stopRequested = true
	}
	c.goalMu.Unlock()
}

func (c *Company) stopWasRequested() bool {
	c.goalMu.Lock()
	defer c.goalMu.Unlock()
	return c.stopRequested
}

// runCycles drives the plan/execute-waves/review loop and returns the final
// goal status.
func (c *Company) runCycles(ctx context.Context, g *goal.Goal, ceo *Agent, started time.Time) goal.Status {
	limits := c.cfg.Autonomous

	for cycle := 1; cycle <= limits.MaxCycles; cycle++ {
		if c.stopWasRequested() {
			c.deps.Log.Info("goal stopped by request", "goal", g.ID, "cycle", cycle)
			return goal.StatusCancelled
		}
		if reason, exceeded := c.budgetExceeded(started); exceeded {
			c.deps.Log.Warn("goal budget exceeded", "goal", g.ID, "cycle", cycle, "reason", reason)
			return goal.StatusFailed
		}

		g.Cycles = cycle
		cycleCtx, span := otelx.StartGoalCycleSpan(ctx, g.ID, cycle)
		if c.deps.Metrics != nil {
			c.deps.Metrics.GoalCycles.Add(cycleCtx, 1)
		}
		if c.deps.Events != nil {
			c.deps.Events.BroadcastEvent(cycleCtx, ws.EventGoalCycle, ws.GoalEvent{GoalID: g.ID, Cycle: cycle})
		}

		// Plan. The CEO's think loop may delegate any number of subtasks.
		plan := task.New(c.planPrompt(g.Description, cycle), ceo.Name)
		c.Board.Add(plan)
		c.taskCreated(cycleCtx, plan)
		ceo.Think(cycleCtx, plan)

		// Execute delegated work in breadth-first waves.
		cancelled := c.runWaves(cycleCtx, g, plan.ID, started)
		if cancelled {
			span.End()
			return goal.StatusCancelled
		}

		// Review. The only signal read back is "did the CEO report done".
		review := task.New(c.reviewPrompt(g.Description), ceo.Name)
		c.Board.Add(review)
		c.taskCreated(cycleCtx, review)
		ceo.Think(cycleCtx, review)
		span.End()

		if review.Status() == task.StatusDone {
			return goal.StatusCompleted
		}
		c.deps.Log.Info("goal not complete, replanning", "goal", g.ID, "cycle", cycle)
	}

	return goal.StatusFailed
}

// runWaves repeatedly resolves delegations and runs all runnable tasks
// concurrently until no work remains or a limit fires. It returns true when
// the goal was cancelled mid-cycle.
func (c *Company) runWaves(ctx context.Context, g *goal.Goal, planID string, started time.Time) bool {
	limits := c.cfg.Autonomous

	for wave := 1; wave <= limits.MaxWavesPerCycle; wave++ {
		if c.stopWasRequested() {
			c.deps.Log.Info("wave stopped by request", "goal", g.ID, "wave", wave)
			return true
		}
		if _, exceeded := c.budgetExceeded(started); exceeded {
			return false // cycle loop decides the terminal status
		}

		c.resolveDelegations(ctx)

		runnable := c.runnableTasks(planID)
		if len(runnable) == 0 {
			return false
		}
		c.deps.Log.Info("executing wave", "goal", g.ID, "wave", wave, "tasks", len(runnable))

		c.runWave(ctx, runnable)
	}
	return false
}

// runWave runs one batch of tasks concurrently, bounded by MaxParallel. A
// panicking or failing task never aborts its siblings.
func (c *Company) runWave(ctx context.Context, tasks []*task.Task) {
	maxParallel := int64(c.cfg.Autonomous.MaxParallel)
	if maxParallel < 1 {
		maxParallel = 1
	}
	sem := semaphore.NewWeighted(maxParallel)

	var wg sync.WaitGroup
	for _, t := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			t.Fail(fmt.Sprintf("wave aborted: %v", err))
			continue
		}
		wg.Add(1)
		go func(t *task.Task) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					c.deps.Log.Error("task goroutine panicked", "task", t.ID, "panic", r)
					t.Fail(fmt.Sprintf("internal error: %v", r))
				}
			}()

			agent := c.Agent(t.Assignee())
			if agent == nil {
				t.Fail(fmt.Sprintf("assignee %q is no longer employed", t.Assignee()))
				return
			}
			agent.Think(ctx, t)
		}(t)
	}
	wg.Wait()
}

// resolveDelegations assigns every unclaimed delegated subtask to a live
// agent with the requested role. The most recent delegation message for a
// subtask id wins when duplicates exist.
func (c *Company) resolveDelegations(ctx context.Context) {
	for _, t := range c.Board.ListByStatus(task.StatusPending) {
		if t.Assignee() != "" || t.ParentID == "" {
			continue
		}

		targetRole, ok := c.delegationRole(t.ID)
		if !ok {
			c.deps.Log.Warn("delegation notice missing", "task", t.ID)
			t.Fail("No agent available for delegation.")
			c.taskChanged(ctx, t)
			continue
		}

		agent := c.agentByRole(targetRole)
		if agent == nil {
			c.deps.Log.Warn("delegation unresolvable", "task", t.ID, "role", targetRole)
			t.Fail("No agent available for delegation.")
			c.taskChanged(ctx, t)
			continue
		}

		t.Assign(agent.Name)
		c.taskChanged(ctx, t)
		c.deps.Log.Info("delegation resolved", "task", t.ID, "role", targetRole, "agent", agent.Name)
	}
}

// delegationRole scans the bus history backward for the latest task.delegate
// message carrying the given subtask id.
func (c *Company) delegationRole(taskID string) (string, bool) {
	history := c.Bus.History(0, message.TopicTaskDelegate)
	for i := len(history) - 1; i >= 0; i-- {
		var d message.Delegation
		if err := json.Unmarshal([]byte(history[i].Content), &d); err != nil {
			continue
		}
		if d.TaskID == taskID {
			return d.ToRole, true
		}
	}
	return "", false
}

// runnableTasks returns every assigned-but-unstarted task except the current
// planning task.
func (c *Company) runnableTasks(planID string) []*task.Task {
	var out []*task.Task
	for _, t := range c.Board.ListByStatus(task.StatusAssigned) {
		if t.ID != planID {
			out = append(out, t)
		}
	}
	return out
}

// budgetExceeded checks the wall-clock, task-count, and cost limits.
func (c *Company) budgetExceeded(started time.Time) (string, bool) {
	limits := c.cfg.Autonomous
	if limits.MaxTime > 0 && time.Since(started) >= limits.MaxTime {
		return "time budget exhausted", true
	}
	if limits.MaxTotalTasks > 0 && c.Board.Len() >= limits.MaxTotalTasks {
		return "task budget exhausted", true
	}
	if limits.MaxCostUSD > 0 && c.Tracker.TotalCostUSD() >= limits.MaxCostUSD {
		return "cost budget exhausted", true
	}
	return "", false
}

func (c *Company) finalizeGoal(ctx context.Context, g *goal.Goal, status goal.Status, started time.Time) {
	now := time.Now().UTC()
	g.Status = status
	g.CompletedAt = &now

	c.goalMu.Lock()
	c.goalRunning = false
	c.stopRequested = false
	c.goalMu.Unlock()

	if c.deps.Store != nil {
		if err := c.deps.Store.FinishGoal(ctx, g.ID, status, g.Cycles); err != nil {
			c.deps.Log.Warn("persist goal finish", "goal", g.ID, "error", err)
		}
	}

	elapsed := time.Since(started).Round(time.Second)
	summary := fmt.Sprintf("Goal %s finished with status %s after %d cycle(s) in %s.\n\n%s",
		g.ID, status, g.Cycles, elapsed, c.progressSummary())
	if c.deps.Events != nil {
		c.deps.Events.BroadcastEvent(ctx, ws.EventGoalFinished, ws.GoalEvent{
			GoalID: g.ID,
			Status: string(status),
			Cycle:  g.Cycles,
		})
	}
	c.Bus.Send(ctx, "", "", summary, message.TopicBroadcast)

	c.deps.Log.Info("goal finished",
		"goal", g.ID, "status", status, "cycles", g.Cycles,
		"elapsed", elapsed.String(), "cost_usd", c.Tracker.TotalCostUSD())
}

func (c *Company) planPrompt(description string, cycle int) string {
	prompt := fmt.Sprintf(
		"COMPANY GOAL:\n%s\n\nYou are the CEO. Break the goal into concrete subtasks and delegate them to your team with delegate_task. When the plan for this cycle is delegated, call report_result with a summary of the plan.",
		description)
	if c.cfg.Company.BusinessContext != "" {
		prompt += "\n\nBUSINESS CONTEXT:\n" + c.cfg.Company.BusinessContext
	}
	if cycle > 1 {
		prompt += fmt.Sprintf("\n\nThis is cycle %d. Progress so far:\n%s\nDelegate only the remaining work.", cycle, c.progressSummary())
	}
	return prompt
}

func (c *Company) reviewPrompt(description string) string {
	return fmt.Sprintf(
		"COMPANY GOAL:\n%s\n\nProgress so far:\n%s\nJudge whether the goal is fully achieved. Call report_result with status \"done\" if it is achieved, or status \"failed\" if work remains or the goal is impossible. Include your reasoning in the result.",
		description, c.progressSummary())
}
