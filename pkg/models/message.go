// Package models defines the data types shared across the conversation
// runtime: the message protocol, tool call/result shapes, and task
// definitions.
package models

import (
	"encoding/json"
	"time"
)

// MessageType discriminates the variants of Message. Exactly one payload
// field on a Message should be populated for a given Type.
type MessageType string

const (
	// MessageUser carries a user-authored chat message into an agent.
	MessageUser MessageType = "user"

	// MessageAgent carries the agent's final text response for a turn.
	MessageAgent MessageType = "agent"

	// MessageThinking carries intermediate model reasoning text, when the
	// provider streams it.
	MessageThinking MessageType = "thinking"

	// MessageSystem carries an out-of-band system notice (not part of the
	// conversation transcript sent back to the model).
	MessageSystem MessageType = "system"

	// MessageToolCall announces that the model requested a tool invocation.
	MessageToolCall MessageType = "tool_call"

	// MessageApprovalRequest announces that a tool call is blocked pending
	// user approval.
	MessageApprovalRequest MessageType = "approval_request"

	// MessageApprovalResponse carries the user's approve/reject decision
	// back into the runtime.
	MessageApprovalResponse MessageType = "approval_response"

	// MessageToolStarted announces that an approved tool call has begun
	// executing.
	MessageToolStarted MessageType = "tool_started"

	// MessageToolResult carries a tool's successful output.
	MessageToolResult MessageType = "tool_result"

	// MessageToolError carries a tool's failure.
	MessageToolError MessageType = "tool_error"

	// MessageUsage carries token/latency accounting for a turn.
	MessageUsage MessageType = "usage"

	// MessageError carries a terminal, turn-ending error.
	MessageError MessageType = "error"
)

// Message is the tagged union flowing between agents, the agent manager,
// and external clients. Every variant carries the four common fields;
// variant-specific data lives in the one non-nil payload field matching
// Type. This mirrors the single-discriminator, pointer-payload shape
// used for runtime event streams elsewhere in this codebase, generalized
// to also carry conversational content rather than only diagnostics.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	AgentID   string      `json:"agent_id"`
	SessionID string      `json:"session_id"`

	User             *UserPayload             `json:"user,omitempty"`
	Agent            *AgentPayload            `json:"agent,omitempty"`
	Thinking         *ThinkingPayload         `json:"thinking,omitempty"`
	System           *SystemPayload           `json:"system,omitempty"`
	ToolCall         *ToolCallPayload         `json:"tool_call,omitempty"`
	ApprovalRequest  *ApprovalRequestPayload  `json:"approval_request,omitempty"`
	ApprovalResponse *ApprovalResponsePayload `json:"approval_response,omitempty"`
	ToolStarted      *ToolStartedPayload      `json:"tool_started,omitempty"`
	ToolResult       *ToolResultPayload       `json:"tool_result,omitempty"`
	ToolError        *ToolErrorPayload        `json:"tool_error,omitempty"`
	Usage            *UsagePayload            `json:"usage,omitempty"`
	Error            *ErrorPayload            `json:"error,omitempty"`
}

// UserPayload is the content of a MessageUser.
type UserPayload struct {
	Content string `json:"content"`
}

// AgentPayload is the content of a MessageAgent.
type AgentPayload struct {
	Content string `json:"content"`
}

// ThinkingPayload is the content of a MessageThinking.
type ThinkingPayload struct {
	Content string `json:"content"`
}

// SystemPayload is the content of a MessageSystem.
type SystemPayload struct {
	Content string `json:"content"`
}

// ToolCallPayload is the content of a MessageToolCall.
type ToolCallPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	Iteration  int             `json:"iteration"`
}

// ApprovalRequestPayload is the content of a MessageApprovalRequest.
type ApprovalRequestPayload struct {
	RequestID  string          `json:"request_id"`
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input"`
	Reason     string          `json:"reason,omitempty"`
	ExpiresAt  time.Time       `json:"expires_at,omitempty"`
}

// ApprovalResponsePayload is the content of a MessageApprovalResponse.
type ApprovalResponsePayload struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Feedback  string `json:"feedback,omitempty"`
	DecidedBy string `json:"decided_by,omitempty"`
}

// ToolStartedPayload is the content of a MessageToolStarted.
type ToolStartedPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
}

// ToolResultPayload is the content of a MessageToolResult.
type ToolResultPayload struct {
	ToolCallID string        `json:"tool_call_id"`
	Name       string        `json:"name"`
	Content    string        `json:"content"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
}

// ToolErrorPayload is the content of a MessageToolError.
type ToolErrorPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
}

// UsagePayload is the content of a MessageUsage.
type UsagePayload struct {
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Elapsed      time.Duration `json:"elapsed,omitempty"`
}

// ErrorPayload is the content of a MessageError.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ToolCall represents a single tool invocation requested by the model
// within a turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ConversationTurn is one user-message-in, agent-response-out round,
// including every tool call/result exchanged along the way. Turns are
// the unit of persistence in MemoryStore.
type ConversationTurn struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	AgentID     string       `json:"agent_id"`
	UserText    string       `json:"user_text"`
	AgentText   string       `json:"agent_text"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// User represents an authenticated caller of the transport layer.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
