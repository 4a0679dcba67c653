// Package tool implements the workplace tools agents can call and the
// registry that dispatches structured tool calls to them.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Strob0t/AgentCorp/internal/port/llm"
)

// Tool is one callable capability. Parameters returns a JSON Schema object
// describing the expected arguments.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the closed set of tools available to agents. Dispatch is by
// exact name; unknown names and missing required arguments are rejected
// before the tool runs.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns provider-facing definitions for the named tools.
// Unknown names are skipped. With no names given, all tools are returned
// sorted by name.
func (r *Registry) Definitions(names ...string) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		names = make([]string, 0, len(r.tools))
		for name := range r.tools {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute validates args against the tool's schema and runs it. A failed
// tool returns its error message as the result string so the model can see
// what went wrong; the error is also returned for logging.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if err := validateArgs(t.Parameters(), args); err != nil {
		return "", fmt.Errorf("tool %s: %w", name, err)
	}
	return t.Execute(ctx, args)
}

// validateArgs checks required properties declared by the schema are present
// and are strings where the schema says string. Anything deeper is left to
// the tool.
func validateArgs(schema, args map[string]any) error {
	required, _ := schema["required"].([]any)
	props, _ := schema["properties"].(map[string]any)
	for _, rv := range required {
		key, _ := rv.(string)
		v, ok := args[key]
		if !ok {
			return fmt.Errorf("missing required argument %q", key)
		}
		prop, _ := props[key].(map[string]any)
		if prop != nil && prop["type"] == "string" {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("argument %q must be a string", key)
			}
		}
	}
	return nil
}

// stringArg extracts a string argument, tolerating absence.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
