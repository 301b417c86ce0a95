package agent

import (
	"fmt"
	"strings"
	"sync"
)

// Registry is the in-memory catalog of callable tools. Tools are registered
// once at process start; lookups are concurrency-safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	specs map[string]ToolSpec
	order []string
}

// NewRegistry constructs a registry seeded with the provided tools. Invalid
// entries are rejected.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool),
		specs: make(map[string]ToolSpec),
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool to the registry. Duplicate names return an error.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	spec := tool.Spec()
	key := strings.ToLower(strings.TrimSpace(spec.Name))
	if key == "" {
		return fmt.Errorf("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[key]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	r.tools[key] = tool
	r.specs[key] = spec
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the tool and its specification if present.
func (r *Registry) Lookup(name string) (Tool, ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(name))
	tool, ok := r.tools[key]
	if !ok {
		return nil, ToolSpec{}, false
	}
	return tool, r.specs[key], true
}

// Specs returns a snapshot of the tool specifications in registration order.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ToolSpec, 0, len(r.order))
	for _, key := range r.order {
		specs = append(specs, r.specs[key])
	}
	return specs
}
