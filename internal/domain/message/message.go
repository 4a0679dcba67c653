// Package message defines the bus envelope and the structured delegation
// payload exchanged between agents.
package message

import "time"

// Well-known topics.
const (
	TopicGeneral       = "general"
	TopicBroadcast     = "broadcast"
	TopicTaskDelegate  = "task.delegate"
	TopicTaskCompleted = "task.completed"
)

// Message is a single bus envelope. Messages are immutable once published.
type Message struct {
	From      string    `json:"from_agent,omitempty"` // "" = from the human owner
	To        string    `json:"to_agent,omitempty"`   // "" = broadcast
	Content   string    `json:"content"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// Delegation is the JSON payload carried by task.delegate messages. The
// orchestrator resolves the target role to a live agent; the delegating
// agent never learns which agent picked the subtask up.
type Delegation struct {
	Action      string `json:"action"`
	From        string `json:"from"`
	ToRole      string `json:"to_role"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}
