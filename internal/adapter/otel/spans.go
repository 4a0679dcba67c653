// Package otel provides tracing spans and metric instruments for the
// orchestration core.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "agentcorp"

// StartThinkSpan starts a span for one agent think loop on a task.
func StartThinkSpan(ctx context.Context, agentName, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "think",
		trace.WithAttributes(
			attribute.String("agent.name", agentName),
			attribute.String("task.id", taskID),
		),
	)
}

// StartToolCallSpan starts a span for one tool call within a think loop.
func StartToolCallSpan(ctx context.Context, tool, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.tool", tool),
			attribute.String("task.id", taskID),
		),
	)
}

// StartGoalCycleSpan starts a span for one plan/execute/review cycle.
func StartGoalCycleSpan(ctx context.Context, goalID string, cycle int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "goal.cycle",
		trace.WithAttributes(
			attribute.String("goal.id", goalID),
			attribute.Int("goal.cycle", cycle),
		),
	)
}
