package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps tool names to tools and dispatches parsed calls to them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool. Registering a name twice is an error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute validates call and runs the tool it names.
func (r *Registry) Execute(ctx context.Context, call *ToolCall) Result {
	if err := ValidateToolCall(call); err != nil {
		return Result{Err: err}
	}

	t, ok := r.Get(call.ToolName)
	if !ok {
		return Result{ToolName: call.ToolName, Err: fmt.Errorf("unknown tool: %s", call.ToolName)}
	}

	output, metadata, err := t.Execute(ctx, call.GetArgumentsXML())
	return Result{
		ToolName: call.ToolName,
		Output:   output,
		Metadata: metadata,
		Err:      err,
	}
}
