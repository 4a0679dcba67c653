package task

import (
	"sort"
	"sync"
)

// Board is the in-memory registry of all tasks the company has created.
// Wave goroutines mutate and query it concurrently, so all access goes
// through one mutex.
type Board struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string // insertion order, used to break CreatedAt ties
}

// NewBoard creates an empty task board.
func NewBoard() *Board {
	return &Board{tasks: make(map[string]*Task)}
}

// Add registers a task, indexed by ID. Re-adding an existing ID is a no-op.
func (b *Board) Add(t *Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[t.ID]; ok {
		return
	}
	b.tasks[t.ID] = t
	b.order = append(b.order, t.ID)
}

// Get returns the task with the given ID, or nil.
func (b *Board) Get(id string) *Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tasks[id]
}

// Len returns the number of registered tasks.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tasks)
}

// ListAll returns all tasks newest-first.
func (b *Board) ListAll() []*Task {
	b.mu.RLock()
	out := make([]*Task, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		out = append(out, b.tasks[b.order[i]])
	}
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ListByStatus returns all tasks currently in the given status.
func (b *Board) ListByStatus(status Status) []*Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Task
	for _, id := range b.order {
		if t := b.tasks[id]; t.Status() == status {
			out = append(out, t)
		}
	}
	return out
}

// ListByAssignee returns all tasks assigned to the given agent.
func (b *Board) ListByAssignee(agentName string) []*Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*Task
	for _, id := range b.order {
		if t := b.tasks[id]; t.Assignee() == agentName {
			out = append(out, t)
		}
	}
	return out
}

// Summary returns task counts per status. Used for progress reporting and
// goal-loop stop checks.
func (b *Board) Summary() map[Status]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[Status]int)
	for _, t := range b.tasks {
		counts[t.Status()]++
	}
	return counts
}
