package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "agentcorp"

// Metrics holds all AgentCorp metric instruments.
type Metrics struct {
	TasksCreated   metric.Int64Counter
	TasksDone      metric.Int64Counter
	TasksFailed    metric.Int64Counter
	ToolCalls      metric.Int64Counter
	GoalCycles     metric.Int64Counter
	ThinkDuration  metric.Float64Histogram
	CompletionCost metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TasksCreated, err = meter.Int64Counter("agentcorp.tasks.created",
		metric.WithDescription("Number of tasks created"))
	if err != nil {
		return nil, err
	}

	m.TasksDone, err = meter.Int64Counter("agentcorp.tasks.done",
		metric.WithDescription("Number of tasks completed"))
	if err != nil {
		return nil, err
	}

	m.TasksFailed, err = meter.Int64Counter("agentcorp.tasks.failed",
		metric.WithDescription("Number of tasks failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("agentcorp.toolcalls",
		metric.WithDescription("Number of tool calls executed"))
	if err != nil {
		return nil, err
	}

	m.GoalCycles, err = meter.Int64Counter("agentcorp.goal.cycles",
		metric.WithDescription("Number of autonomous goal cycles run"))
	if err != nil {
		return nil, err
	}

	m.ThinkDuration, err = meter.Float64Histogram("agentcorp.think.duration_seconds",
		metric.WithDescription("Agent think-loop duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CompletionCost, err = meter.Float64Histogram("agentcorp.completion.cost_usd",
		metric.WithDescription("Cost per completion call in USD"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
