package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeTool struct {
	name   string
	result *ToolResult
	err    error
}

func (f *fakeTool) Name() string                 { return f.name }
func (f *fakeTool) Description() string          { return "fake tool for tests" }
func (f *fakeTool) Schema() json.RawMessage      { return json.RawMessage(`{"type":"object"}`) }
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func TestToolRegistryRegisterAndExecute(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&fakeTool{name: "echo", result: &ToolResult{Content: "hi"}}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Content != "hi" {
		t.Fatalf("Execute() content = %q, want %q", result.Content, "hi")
	}
}

func TestToolRegistryExecuteUnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	if _, err := reg.Execute(context.Background(), "missing", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("Execute() on unknown tool: want error, got nil")
	}
}

func TestToolRegistryRegisterRejectsEmptyName(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&fakeTool{name: ""}); err == nil {
		t.Fatalf("Register() with empty name: want error, got nil")
	}
}

func TestToolRegistryAsLLMTools(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(&fakeTool{name: "a"})
	_ = reg.Register(&fakeTool{name: "b"})

	schemas := reg.AsLLMTools()
	if len(schemas) != 2 {
		t.Fatalf("AsLLMTools() returned %d schemas, want 2", len(schemas))
	}
}
