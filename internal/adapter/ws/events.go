package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for dashboard messages.
const (
	EventAgentHired   = "agent.hired"
	EventAgentFired   = "agent.fired"
	EventTaskCreated  = "task.created"
	EventTaskUpdated  = "task.updated"
	EventMessage      = "bus.message"
	EventCostUpdated  = "cost.updated"
	EventGoalStarted  = "goal.started"
	EventGoalCycle    = "goal.cycle"
	EventGoalFinished = "goal.finished"
)

// AgentEvent is broadcast when an agent is hired or fired.
type AgentEvent struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Model string `json:"model,omitempty"`
}

// TaskEvent is broadcast when a task is created or changes status.
type TaskEvent struct {
	TaskID   string `json:"task_id"`
	Status   string `json:"status"`
	Assignee string `json:"assignee,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// BusMessageEvent mirrors a bus message to the dashboard.
type BusMessageEvent struct {
	From    string `json:"from"`
	To      string `json:"to,omitempty"`
	Topic   string `json:"topic"`
	Content string `json:"content"`
}

// CostEvent is broadcast after each recorded completion call.
type CostEvent struct {
	Agent        string  `json:"agent"`
	Model        string  `json:"model"`
	CostUSD      float64 `json:"cost_usd"`
	TotalCostUSD float64 `json:"total_cost_usd"`
}

// GoalEvent is broadcast at goal start, each cycle, and completion.
type GoalEvent struct {
	GoalID string `json:"goal_id"`
	Status string `json:"status,omitempty"`
	Cycle  int    `json:"cycle,omitempty"`
}

// BroadcastEvent marshals a typed event payload and broadcasts it. It
// implements the broadcast port.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
