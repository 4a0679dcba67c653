// Package bus implements the in-process message bus used for delegation
// notices, completion events, and the append-only audit history.
package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Strob0t/AgentCorp/internal/domain/message"
)

// Listener receives every message published on the bus, or every message on
// a subscribed topic. Listener failures are logged and never propagate to
// the publisher.
type Listener func(ctx context.Context, msg message.Message)

// Inbox is an unbounded per-agent message queue. Delivery is best-effort:
// messages queued to an agent that later unregisters are dropped with it.
type Inbox struct {
	mu   sync.Mutex
	msgs []message.Message
}

// Drain removes and returns all queued messages in delivery order.
func (in *Inbox) Drain() []message.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.msgs
	in.msgs = nil
	return out
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

func (in *Inbox) put(msg message.Message) {
	in.mu.Lock()
	in.msgs = append(in.msgs, msg)
	in.mu.Unlock()
}

// Bus is a pub/sub message bus with per-agent inboxes, topic subscribers,
// one global listener, and a full ordered history. Publish is safe to call
// from concurrent task goroutines.
type Bus struct {
	mu          sync.Mutex
	history     []message.Message
	inboxes     map[string]*Inbox
	subscribers map[string][]Listener
	global      Listener
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		inboxes:     make(map[string]*Inbox),
		subscribers: make(map[string][]Listener),
	}
}

// SetGlobalListener registers the single listener notified of every message.
// The orchestrator uses it to persist messages and emit dashboard events.
func (b *Bus) SetGlobalListener(fn Listener) {
	b.mu.Lock()
	b.global = fn
	b.mu.Unlock()
}

// Subscribe registers a callback for one topic.
func (b *Bus) Subscribe(topic string, fn Listener) {
	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], fn)
	b.mu.Unlock()
}

// RegisterAgent creates and returns the inbox for the named agent.
func (b *Bus) RegisterAgent(name string) *Inbox {
	in := &Inbox{}
	b.mu.Lock()
	b.inboxes[name] = in
	b.mu.Unlock()
	return in
}

// UnregisterAgent drops the agent's inbox. In-flight messages are discarded.
func (b *Bus) UnregisterAgent(name string) {
	b.mu.Lock()
	delete(b.inboxes, name)
	b.mu.Unlock()
}

// Publish appends msg to the history and delivers it: to the addressed
// agent's inbox, or to every inbox except the sender's when unaddressed,
// then to topic subscribers and the global listener. Delivery happens after
// the history lock is released so a slow listener never blocks publishers.
func (b *Bus) Publish(ctx context.Context, msg message.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	global := b.global
	subs := append([]Listener(nil), b.subscribers[msg.Topic]...)
	targets := b.deliveryTargets(msg)
	b.mu.Unlock()

	if global != nil {
		notify(ctx, global, msg, "global listener")
	}
	for _, in := range targets {
		in.put(msg)
	}
	for _, fn := range subs {
		notify(ctx, fn, msg, "topic subscriber")
	}
}

// Send is a convenience wrapper that builds and publishes an envelope.
// Empty from means the human owner; empty to means broadcast.
func (b *Bus) Send(ctx context.Context, from, to, content, topic string) {
	b.Publish(ctx, message.Message{From: from, To: to, Content: content, Topic: topic})
}

// History returns up to limit messages, optionally filtered by topic. The
// returned slice holds the most recent matches in chronological order.
func (b *Bus) History(limit int, topic string) []message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matches []message.Message
	if topic == "" {
		matches = append(matches, b.history...)
	} else {
		for _, m := range b.history {
			if m.Topic == topic {
				matches = append(matches, m)
			}
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

// deliveryTargets must be called with b.mu held.
func (b *Bus) deliveryTargets(msg message.Message) []*Inbox {
	if msg.To != "" {
		if in, ok := b.inboxes[msg.To]; ok {
			return []*Inbox{in}
		}
		return nil
	}
	var targets []*Inbox
	for name, in := range b.inboxes {
		if name != msg.From {
			targets = append(targets, in)
		}
	}
	return targets
}

func notify(ctx context.Context, fn Listener, msg message.Message, kind string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus listener panicked", "kind", kind, "topic", msg.Topic, "panic", r)
		}
	}()
	fn(ctx, msg)
}
