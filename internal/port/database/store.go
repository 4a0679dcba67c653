// Package database defines the persistence port (interface).
package database

import (
	"context"
	"time"

	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
	"github.com/Strob0t/AgentCorp/internal/domain/cost"
	"github.com/Strob0t/AgentCorp/internal/domain/goal"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
)

// AgentRecord is the persisted form of a hired agent.
type AgentRecord struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Status    string    `json:"status"` // active | fired
	CreatedAt time.Time `json:"created_at"`
}

// Store is the port interface for the persistence collaborator. The core
// treats it purely as an append/update/query surface; the schema belongs to
// the adapter.
type Store interface {
	// Agents
	SaveAgent(ctx context.Context, rec AgentRecord) error
	MarkAgentFired(ctx context.Context, name string) error
	ListActiveAgents(ctx context.Context) ([]AgentRecord, error)

	// Tasks. UpsertTask inserts or refreshes by task ID.
	UpsertTask(ctx context.Context, v task.View) error

	// Messages (append-only audit log).
	SaveMessage(ctx context.Context, msg message.Message) error

	// Artifacts (append-only).
	SaveArtifact(ctx context.Context, a artifact.Artifact) error
	ListArtifacts(ctx context.Context, taskID string) ([]artifact.Artifact, error)

	// Goals.
	CreateGoal(ctx context.Context, g *goal.Goal) error
	FinishGoal(ctx context.Context, id string, status goal.Status, cycles int) error

	// Usage (append-only).
	SaveUsage(ctx context.Context, rec cost.UsageRecord) error
}
