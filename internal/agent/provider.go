package agent

import (
	"context"
	"encoding/json"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// Generator is the external language-model collaborator. Concrete
// implementations (a hosted API client, a local model server) live
// outside this module; the loop only depends on this interface.
type Generator interface {
	// Generate streams a completion for the given conversation. The
	// channel is closed when the stream ends; a final chunk with Done
	// set to true carries usage totals. An error on the channel ends
	// the turn.
	Generate(ctx context.Context, req *GenerateRequest) (<-chan *GenerateChunk, error)
}

// GenerateRequest is one call to the Generator: the system prompt, the
// conversation so far, and the tool schemas currently available.
type GenerateRequest struct {
	System   string
	Messages []GenerateMessage
	Tools    []ToolSchema
}

// GenerateMessage is one turn of conversation history passed to the model.
type GenerateMessage struct {
	Role        string // "user", "assistant", or "tool"
	Content     string
	ToolCalls   []models.ToolCall
	ToolResults []models.ToolResult
}

// ToolSchema describes one callable tool to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// GenerateChunk is one unit of a streamed generation. Exactly one of
// Text, ToolCall, or Done should carry data for a given chunk.
type GenerateChunk struct {
	Text         string
	Thinking     string
	ToolCall     *models.ToolCall
	Done         bool
	InputTokens  int
	OutputTokens int
	Err          error
}

// Tool is one callable capability an agent can invoke. Concrete tools
// (file I/O, shell, HTTP) are registered into a ToolRegistry; the loop
// only ever calls through the registry.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolResult is the outcome of a Tool.Execute call.
type ToolResult struct {
	Content string
	IsError bool
}

// MemoryStore persists conversation turns and tool-usage history. The
// runtime depends only on this interface; concrete backends (in-memory,
// SQLite) implement it outside the core loop.
type MemoryStore interface {
	AppendTurn(ctx context.Context, turn *models.ConversationTurn) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error)
	RecordTaskExecution(ctx context.Context, exec *models.TaskExecution) error
	GetTaskExecution(ctx context.Context, id string) (*models.TaskExecution, error)
}

// ApprovalTransport delivers ApprovalRequest messages to a human reviewer
// and is the only way ApprovalResponse messages re-enter the runtime.
// HTTP/SSE transports implement this outside the core loop; tests use an
// in-process fake.
type ApprovalTransport interface {
	SendApprovalRequest(ctx context.Context, msg *models.Message) error
}
