package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/AgentCorp/internal/domain"
	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
	"github.com/Strob0t/AgentCorp/internal/domain/cost"
	"github.com/Strob0t/AgentCorp/internal/domain/goal"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/port/database"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Agents ---

func (s *Store) SaveAgent(ctx context.Context, rec database.AgentRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agents (name, role, provider, model, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE
		 SET role = EXCLUDED.role, provider = EXCLUDED.provider,
		     model = EXCLUDED.model, status = EXCLUDED.status, updated_at = now()`,
		rec.Name, rec.Role, rec.Provider, rec.Model, rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", rec.Name, err)
	}
	return nil
}

func (s *Store) MarkAgentFired(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET status = 'fired', updated_at = now() WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("fire agent %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fire agent %s: %w", name, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListActiveAgents(ctx context.Context) ([]database.AgentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, role, provider, model, status, created_at
		 FROM agents WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var recs []database.AgentRecord
	for rows.Next() {
		var rec database.AgentRecord
		if err := rows.Scan(&rec.Name, &rec.Role, &rec.Provider, &rec.Model, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Tasks ---

func (s *Store) UpsertTask(ctx context.Context, v task.View) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tasks (id, description, status, assignee, result, parent_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE
		 SET status = EXCLUDED.status, assignee = EXCLUDED.assignee,
		     result = EXCLUDED.result, updated_at = EXCLUDED.updated_at`,
		v.ID, v.Description, string(v.Status), v.Assignee, v.Result, v.ParentID, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert task %s: %w", v.ID, err)
	}
	return nil
}

// --- Messages ---

func (s *Store) SaveMessage(ctx context.Context, msg message.Message) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (sender, recipient, topic, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.From, msg.To, msg.Topic, msg.Content, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// --- Artifacts ---

func (s *Store) SaveArtifact(ctx context.Context, a artifact.Artifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, task_id, agent_id, name, content, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TaskID, a.AgentID, a.Name, a.Content, a.Type, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save artifact %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) ListArtifacts(ctx context.Context, taskID string) ([]artifact.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, agent_id, name, content, type, created_at
		 FROM artifacts WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts for %s: %w", taskID, err)
	}
	defer rows.Close()

	var arts []artifact.Artifact
	for rows.Next() {
		var a artifact.Artifact
		if err := rows.Scan(&a.ID, &a.TaskID, &a.AgentID, &a.Name, &a.Content, &a.Type, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		arts = append(arts, a)
	}
	return arts, rows.Err()
}

// --- Goals ---

func (s *Store) CreateGoal(ctx context.Context, g *goal.Goal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO goals (id, description, status, cycles, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		g.ID, g.Description, string(g.Status), g.Cycles, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("create goal %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) FinishGoal(ctx context.Context, id string, status goal.Status, cycles int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE goals SET status = $2, cycles = $3, completed_at = $4 WHERE id = $1`,
		id, string(status), cycles, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish goal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish goal %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- Usage ---

func (s *Store) SaveUsage(ctx context.Context, rec cost.UsageRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_records (agent, model, tokens_in, tokens_out, cost_usd, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Agent, rec.Model, rec.TokensIn, rec.TokensOut, rec.CostUSD, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("save usage: %w", err)
	}
	return nil
}

// GetGoal returns one goal by ID.
func (s *Store) GetGoal(ctx context.Context, id string) (*goal.Goal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, description, status, cycles, created_at, completed_at
		 FROM goals WHERE id = $1`, id)

	var g goal.Goal
	var status string
	if err := row.Scan(&g.ID, &g.Description, &status, &g.Cycles, &g.CreatedAt, &g.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get goal %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get goal %s: %w", id, err)
	}
	g.Status = goal.Status(status)
	return &g, nil
}
