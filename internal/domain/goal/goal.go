// Package goal defines the Goal domain entity for autonomous runs.
package goal

import "time"

// Status represents the state of an autonomous goal run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Goal is one autonomous run of the plan/execute/review loop.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Cycles      int        `json:"cycles"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
