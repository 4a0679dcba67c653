// Package broadcast defines the port for pushing real-time events to
// connected dashboard clients.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected clients. Implementations
// must never panic into the caller; a broken client cannot be allowed to
// abort the orchestrator.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
