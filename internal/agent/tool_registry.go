package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const (
	// MaxToolNameLength bounds a registered tool's name.
	MaxToolNameLength = 128

	// MaxToolParamsSize bounds a tool call's serialized parameters, to
	// keep a single runaway call from exhausting memory.
	MaxToolParamsSize = 256 * 1024
)

// ToolRegistry holds the tools available to one agent and is the only
// way the loop invokes them. It is safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *ToolRegistry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tool name %q exceeds %d characters", name, MaxToolNameLength)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
	return nil
}

// Unregister removes a tool by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a registered tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Execute validates params against size limits and runs the named tool.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (*ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if len(params) > MaxToolParamsSize {
		return nil, NewToolError(name, fmt.Errorf("parameters exceed %d bytes", MaxToolParamsSize)).WithType(ToolErrorInvalidInput)
	}
	result, err := tool.Execute(ctx, params)
	if err != nil {
		return nil, NewToolError(name, err)
	}
	return result, nil
}

// AsLLMTools converts every registered tool into the schema shape a
// Generator expects, sorted by name is not guaranteed; callers needing a
// stable order should sort the result themselves.
func (r *ToolRegistry) AsLLMTools() []ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]ToolSchema, 0, len(r.tools))
	for _, tool := range r.tools {
		schemas = append(schemas, ToolSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Schema(),
		})
	}
	return schemas
}

// Names returns every registered tool name.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
