package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/AgentCorp/internal/config"
	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
	costdomain "github.com/Strob0t/AgentCorp/internal/domain/cost"
	"github.com/Strob0t/AgentCorp/internal/domain/goal"
	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/port/database"
	"github.com/Strob0t/AgentCorp/internal/port/llm"
)

// scriptedProvider replays canned completion steps. When the script is
// exhausted the last step repeats, which keeps iteration-budget tests simple.
type scriptedProvider struct {
	model string
	steps []func(msgs []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error)

	mu    sync.Mutex
	calls int
}

func (p *scriptedProvider) Model() string {
	if p.model == "" {
		return "gpt-4o-mini"
	}
	return p.model
}

func (p *scriptedProvider) Complete(_ context.Context, msgs []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	return p.steps[i](msgs, tools)
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func textStep(content string) func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	return func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
		return &llm.Response{Content: content, Usage: &llm.Usage{TokensIn: 100, TokensOut: 50}}, nil
	}
}

func toolStep(content string, calls ...llm.ToolCall) func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	return func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
		return &llm.Response{Content: content, ToolCalls: calls, Usage: &llm.Usage{TokensIn: 100, TokensOut: 50}}, nil
	}
}

func reportCall(result, status string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call_report",
		Name: "report_result",
		Arguments: map[string]any{
			"result": result,
			"status": status,
		},
	}
}

func delegateCall(role, description string) llm.ToolCall {
	return llm.ToolCall{
		ID:   "call_delegate",
		Name: "delegate_task",
		Arguments: map[string]any{
			"role":        role,
			"description": description,
		},
	}
}

// mapResolver hands out providers by name so different hires can follow
// different scripts.
type mapResolver struct {
	providers map[string]llm.Provider
}

func (r *mapResolver) Provider(name string) (llm.Provider, error) {
	return r.providers[name], nil
}

func longText(seed string) string {
	return seed + " " + strings.Repeat("All substantive detail of the deliverable goes here. ", 10)
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.Company.Name = "Acme Labs"
	cfg.Company.OutputDir = "" // no file exports during tests
	cfg.Autonomous.MaxAgentIterations = 6
	cfg.Autonomous.MaxCycles = 2
	cfg.Autonomous.MaxWavesPerCycle = 5
	cfg.Autonomous.MaxTime = time.Minute
	cfg.Autonomous.MaxTotalTasks = 50
	return cfg
}

func newTestCompany(t *testing.T, cfg config.Config, providers map[string]llm.Provider) *Company {
	t.Helper()
	return NewCompany(cfg, CompanyDeps{
		Providers: &mapResolver{providers: providers},
	})
}

// fakeStore is an in-memory database.Store used by restore tests.
type fakeStore struct {
	mu     sync.Mutex
	agents map[string]database.AgentRecord
	tasks  map[string]task.View
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		agents: make(map[string]database.AgentRecord),
		tasks:  make(map[string]task.View),
	}
}

func (s *fakeStore) SaveAgent(_ context.Context, rec database.AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[rec.Name] = rec
	return nil
}

func (s *fakeStore) MarkAgentFired(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.agents[name]
	rec.Status = "fired"
	s.agents[name] = rec
	return nil
}

func (s *fakeStore) ListActiveAgents(_ context.Context) ([]database.AgentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.AgentRecord
	for _, rec := range s.agents {
		if rec.Status == "active" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertTask(_ context.Context, v task.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[v.ID] = v
	return nil
}

func (s *fakeStore) SaveMessage(context.Context, message.Message) error    { return nil }
func (s *fakeStore) SaveArtifact(context.Context, artifact.Artifact) error { return nil }

func (s *fakeStore) ListArtifacts(context.Context, string) ([]artifact.Artifact, error) {
	return nil, nil
}

func (s *fakeStore) CreateGoal(context.Context, *goal.Goal) error { return nil }

func (s *fakeStore) FinishGoal(context.Context, string, goal.Status, int) error { return nil }

func (s *fakeStore) SaveUsage(context.Context, costdomain.UsageRecord) error { return nil }
