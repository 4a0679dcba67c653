// Package task defines the Task domain entity and the in-memory task board.
package task

import (
	"sync"
	"time"

	"github.com/Strob0t/AgentCorp/internal/domain"
	"github.com/Strob0t/AgentCorp/internal/domain/artifact"
)

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review" // reserved; no code path enters it
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Task is a single unit of delegated work. Status, result, and subtask
// mutations are guarded by an internal mutex because task goroutines within
// a wave read each other's state through board snapshots.
type Task struct {
	ID          string
	Description string
	Priority    int
	ParentID    string
	CreatedAt   time.Time

	mu        sync.Mutex
	assignee  string
	status    Status
	result    string
	subtasks  []*Task
	artifacts []artifact.Artifact
	updatedAt time.Time
}

// New creates a task. The initial status is assigned when an assignee is
// given, pending otherwise.
func New(description, assignee string) *Task {
	now := time.Now().UTC()
	status := StatusPending
	if assignee != "" {
		status = StatusAssigned
	}
	return &Task{
		ID:          domain.NewID(),
		Description: description,
		CreatedAt:   now,
		assignee:    assignee,
		status:      status,
		updatedAt:   now,
	}
}

// Assign sets the assignee and moves the task to assigned.
func (t *Task) Assign(agentName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assignee = agentName
	t.status = StatusAssigned
	t.updatedAt = time.Now().UTC()
}

// Start moves the task to in_progress.
func (t *Task) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = StatusInProgress
	t.updatedAt = time.Now().UTC()
}

// Complete marks the task done with the given result. Terminal tasks are
// never re-completed; the result stays immutable after the first terminal
// transition.
func (t *Task) Complete(result string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.status = StatusDone
	t.result = result
	t.updatedAt = time.Now().UTC()
}

// Fail marks the task failed with a human-readable reason.
func (t *Task) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.status = StatusFailed
	t.result = reason
	t.updatedAt = time.Now().UTC()
}

// AddSubtask creates a child task linked by ParentID and records it on the
// parent. The caller is responsible for registering the subtask on the board.
func (t *Task) AddSubtask(description string) *Task {
	sub := New(description, "")
	sub.ParentID = t.ID
	t.mu.Lock()
	t.subtasks = append(t.subtasks, sub)
	t.mu.Unlock()
	return sub
}

// AddArtifact appends an artifact record to the task.
func (t *Task) AddArtifact(a artifact.Artifact) {
	t.mu.Lock()
	t.artifacts = append(t.artifacts, a)
	t.mu.Unlock()
}

// IsTerminal reports whether the task reached done or failed.
func (t *Task) IsTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status.IsTerminal()
}

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Assignee returns the current assignee, or "" when unassigned.
func (t *Task) Assignee() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assignee
}

// Result returns the deliverable text (done) or failure reason (failed).
func (t *Task) Result() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Subtasks returns a copy of the subtask list.
func (t *Task) Subtasks() []*Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Task, len(t.subtasks))
	copy(out, t.subtasks)
	return out
}

// Artifacts returns a copy of the artifact list.
func (t *Task) Artifacts() []artifact.Artifact {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]artifact.Artifact, len(t.artifacts))
	copy(out, t.artifacts)
	return out
}

// UpdatedAt returns the last mutation time.
func (t *Task) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// View is an immutable snapshot of a task used for events, HTTP responses,
// and persistence.
type View struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	Assignee     string    `json:"assignee,omitempty"`
	Status       Status    `json:"status"`
	Priority     int       `json:"priority"`
	ParentID     string    `json:"parent_id,omitempty"`
	Result       string    `json:"result,omitempty"`
	SubtaskCount int       `json:"subtask_count"`
	SubtasksDone int       `json:"subtasks_done"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot returns a consistent view of the task.
func (t *Task) Snapshot() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	done := 0
	for _, st := range t.subtasks {
		if st.IsTerminal() {
			done++
		}
	}
	return View{
		ID:           t.ID,
		Description:  t.Description,
		Assignee:     t.assignee,
		Status:       t.status,
		Priority:     t.Priority,
		ParentID:     t.ParentID,
		Result:       t.result,
		SubtaskCount: len(t.subtasks),
		SubtasksDone: done,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.updatedAt,
	}
}
