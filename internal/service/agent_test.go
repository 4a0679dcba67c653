package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Strob0t/AgentCorp/internal/domain/message"
	"github.com/Strob0t/AgentCorp/internal/domain/task"
	"github.com/Strob0t/AgentCorp/internal/port/llm"
)

func hire(t *testing.T, c *Company, roleName, agentName, providerKey string) *Agent {
	t.Helper()
	a, err := c.Hire(context.Background(), roleName, agentName, providerKey)
	if err != nil {
		t.Fatalf("Hire(%s as %s) error = %v", agentName, roleName, err)
	}
	return a
}

func TestAssignPlainTextCompletes(t *testing.T) {
	haiku := "silent harbor fog\nthe crane lifts one more container\nmorning coffee cools"
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"poet-llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			textStep(haiku),
		}},
	})
	hire(t, c, "writer", "poet", "poet-llm")

	tk, err := c.Assign(context.Background(), "write a haiku", "poet")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if got := tk.Result(); got != haiku {
		t.Errorf("result = %q, want the returned text as-is", got)
	}
}

func TestThinkSalvagesLongestNarration(t *testing.T) {
	narration := longText("Full market analysis follows.")
	cfg := testConfig()
	cfg.Autonomous.MaxAgentIterations = 3

	// Every turn narrates and calls an unknown tool, never report_result.
	c := newTestCompany(t, cfg, map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep(narration, llm.ToolCall{ID: "x", Name: "crystal_ball", Arguments: map[string]any{}}),
		}},
	})
	hire(t, c, "researcher", "riley", "llm")

	tk, err := c.Assign(context.Background(), "research the market", "riley")
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done via salvage", got)
	}
	if got := tk.Result(); got != narration {
		t.Errorf("result = %q, want salvaged narration", got)
	}
	if arts := tk.Artifacts(); len(arts) != 1 || arts[0].Name != "deliverable.md" {
		t.Errorf("artifacts = %v, want one deliverable", arts)
	}
}

func TestThinkFailsWithoutSalvageableText(t *testing.T) {
	cfg := testConfig()
	cfg.Autonomous.MaxAgentIterations = 3

	c := newTestCompany(t, cfg, map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep("hmm", llm.ToolCall{ID: "x", Name: "crystal_ball", Arguments: map[string]any{}}),
		}},
	})
	hire(t, c, "researcher", "riley", "llm")

	tk, _ := c.Assign(context.Background(), "research the market", "riley")
	if got := tk.Status(); got != task.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if !strings.Contains(tk.Result(), "exceeded maximum iterations") {
		t.Errorf("failure reason = %q", tk.Result())
	}
}

func TestReportResultRejectedTwiceThenAccepted(t *testing.T) {
	short := "done, see plan"
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep("", reportCall(short, "done")),
		}},
	})
	hire(t, c, "writer", "casey", "llm")

	tk, _ := c.Assign(context.Background(), "write the report", "casey")
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done after rejection budget", got)
	}
	if got := tk.Result(); got != short {
		t.Errorf("result = %q, want the short text accepted as-is", got)
	}

	// Two rejections then the accepted call: three completions total.
	p := c.Agent("casey").provider.(*scriptedProvider)
	if got := p.callCount(); got != 3 {
		t.Errorf("completion calls = %d, want 3", got)
	}
}

func TestRejectionMessageBeginsWithRejected(t *testing.T) {
	c := newTestCompany(t, testConfig(), nil)
	hire(t, c, "writer", "casey", "")

	a := c.Agent("casey")
	tk := task.New("write", "casey")
	best := ""
	rejections := 0

	msg, terminal := a.handleReport(context.Background(), tk, reportCall("stub", "done"), &best, &rejections)
	if terminal {
		t.Fatal("first short report accepted, want rejection")
	}
	if !strings.HasPrefix(msg, "REJECTED") {
		t.Errorf("rejection tool-result = %q, must begin with REJECTED", msg)
	}
}

func TestReportResultSubstitutesLongerNarration(t *testing.T) {
	narration := longText("The full deliverable text.")
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep(narration, reportCall("see above", "done")),
		}},
	})
	hire(t, c, "writer", "casey", "llm")

	tk, _ := c.Assign(context.Background(), "write the report", "casey")
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if got := tk.Result(); got != narration {
		t.Errorf("result = %q, want narration substituted for the stub", got)
	}
}

func TestReportResultFailedStatusFailsTask(t *testing.T) {
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep("", reportCall("the api credentials are invalid", "failed")),
		}},
	})
	hire(t, c, "engineer", "sam", "llm")

	tk, _ := c.Assign(context.Background(), "deploy the service", "sam")
	if got := tk.Status(); got != task.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
}

func TestThinkProviderErrorFailsTask(t *testing.T) {
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
				return nil, errors.New("upstream 401: invalid api key")
			},
		}},
	})
	hire(t, c, "writer", "casey", "llm")

	tk, _ := c.Assign(context.Background(), "write", "casey")
	if got := tk.Status(); got != task.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if !strings.Contains(tk.Result(), "completion failed") {
		t.Errorf("failure reason = %q", tk.Result())
	}
}

func TestThinkWithoutProviderFailsTask(t *testing.T) {
	c := newTestCompany(t, testConfig(), nil) // resolver returns nil providers
	hire(t, c, "writer", "casey", "")

	tk, _ := c.Assign(context.Background(), "write", "casey")
	if got := tk.Status(); got != task.StatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if !strings.Contains(tk.Result(), "no configured LLM provider") {
		t.Errorf("failure reason = %q", tk.Result())
	}
}

func TestDelegatePublishesNoticeAndSubtask(t *testing.T) {
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"ceo-llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep("", delegateCall("writer", "draft the announcement")),
			toolStep("", reportCall(longText("Plan: the announcement is delegated."), "done")),
		}},
	})
	hire(t, c, "ceo", "alex", "ceo-llm")

	tk, _ := c.Assign(context.Background(), "announce the launch", "alex")
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}

	subs := tk.Subtasks()
	if len(subs) != 1 {
		t.Fatalf("subtasks = %d, want 1", len(subs))
	}
	sub := subs[0]
	if sub.ParentID != tk.ID || sub.Assignee() != "" || sub.Status() != task.StatusPending {
		t.Errorf("subtask = %+v, want pending and unassigned", sub.Snapshot())
	}
	if got := c.Board.Get(sub.ID); got == nil {
		t.Error("subtask not registered on the board")
	}

	notices := c.Bus.History(0, message.TopicTaskDelegate)
	if len(notices) != 1 {
		t.Fatalf("delegation notices = %d, want 1", len(notices))
	}
	if !strings.Contains(notices[0].Content, sub.ID) || !strings.Contains(notices[0].Content, "writer") {
		t.Errorf("notice payload = %q", notices[0].Content)
	}
}

func TestDelegateOutsideAllowedRolesIsError(t *testing.T) {
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			toolStep("", delegateCall("ceo", "do my job for me")),
			toolStep("", reportCall(longText("Wrote it myself after all."), "done")),
		}},
	})
	hire(t, c, "writer", "casey", "llm") // writers delegate to nobody

	tk, _ := c.Assign(context.Background(), "write the post", "casey")
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if len(tk.Subtasks()) != 0 {
		t.Error("disallowed delegation still created a subtask")
	}
	if got := len(c.Bus.History(0, message.TopicTaskDelegate)); got != 0 {
		t.Errorf("delegation notices = %d, want 0", got)
	}
}

func TestToolErrorFedBackAsResult(t *testing.T) {
	cfg := testConfig()
	cfg.Autonomous.MaxAgentIterations = 2

	var sawToolError bool
	p := &scriptedProvider{}
	p.steps = []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
		toolStep("", llm.ToolCall{ID: "x", Name: "crystal_ball", Arguments: map[string]any{}}),
		func(msgs []llm.Message, _ []llm.ToolDefinition) (*llm.Response, error) {
			for _, m := range msgs {
				if m.Role == llm.RoleTool && strings.HasPrefix(m.Content, "ERROR:") {
					sawToolError = true
				}
			}
			return &llm.Response{Content: longText("Recovered without the tool.")}, nil
		},
	}

	c := newTestCompany(t, cfg, map[string]llm.Provider{"llm": p})
	hire(t, c, "researcher", "riley", "llm")

	tk, _ := c.Assign(context.Background(), "research", "riley")
	if got := tk.Status(); got != task.StatusDone {
		t.Fatalf("status = %s, want done", got)
	}
	if !sawToolError {
		t.Error("unknown-tool error was not fed back to the model")
	}
}

func TestCostRecordedPerCompletion(t *testing.T) {
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{
		"llm": &scriptedProvider{steps: []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
			textStep("quick answer"),
		}},
	})
	hire(t, c, "writer", "casey", "llm")

	if _, err := c.Assign(context.Background(), "write", "casey"); err != nil {
		t.Fatal(err)
	}

	sum := c.Tracker.Summary()
	if sum.APICalls != 1 {
		t.Errorf("api calls = %d, want 1", sum.APICalls)
	}
	if sum.ByAgent["casey"] <= 0 {
		t.Errorf("no cost attributed to casey: %v", sum.ByAgent)
	}
}

func TestChatKeepsHistory(t *testing.T) {
	var turns []int
	p := &scriptedProvider{}
	p.steps = []func([]llm.Message, []llm.ToolDefinition) (*llm.Response, error){
		func(msgs []llm.Message, _ []llm.ToolDefinition) (*llm.Response, error) {
			turns = append(turns, len(msgs))
			return &llm.Response{Content: "reply"}, nil
		},
	}
	c := newTestCompany(t, testConfig(), map[string]llm.Provider{"llm": p})
	hire(t, c, "writer", "casey", "llm")

	ctx := context.Background()
	if _, err := c.Chat(ctx, "casey", "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Chat(ctx, "casey", "again"); err != nil {
		t.Fatal(err)
	}

	// system+user, then system+user+assistant+user
	if len(turns) != 2 || turns[0] != 2 || turns[1] != 4 {
		t.Errorf("transcript lengths = %v, want [2 4]", turns)
	}
}
