// Package observability provides diagnostic event types and emission.
package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// DiagnosticAgentState represents the state of an agent worker.
type DiagnosticAgentState string

const (
	AgentStateIdle            DiagnosticAgentState = "idle"
	AgentStateRunning         DiagnosticAgentState = "running"
	AgentStateWaitingApproval DiagnosticAgentState = "waiting_approval"
)

// DiagnosticEventType identifies the type of diagnostic event.
type DiagnosticEventType string

const (
	EventTypeModelUsage          DiagnosticEventType = "model.usage"
	EventTypeTurnStarted         DiagnosticEventType = "turn.started"
	EventTypeTurnCompleted       DiagnosticEventType = "turn.completed"
	EventTypeTurnError           DiagnosticEventType = "turn.error"
	EventTypeToolCallQueued      DiagnosticEventType = "tool_call.queued"
	EventTypeToolCallCompleted   DiagnosticEventType = "tool_call.completed"
	EventTypeAgentState          DiagnosticEventType = "agent.state"
	EventTypeAgentStuck          DiagnosticEventType = "agent.stuck"
	EventTypeLaneEnqueue         DiagnosticEventType = "queue.lane.enqueue"
	EventTypeLaneDequeue         DiagnosticEventType = "queue.lane.dequeue"
	EventTypeTaskDispatchAttempt DiagnosticEventType = "task_dispatch.attempt"
	EventTypeDiagnosticHeartbeat DiagnosticEventType = "diagnostic.heartbeat"
)

// DiagnosticEvent is the base event structure.
type DiagnosticEvent struct {
	Type DiagnosticEventType `json:"type"`
	Seq  int64               `json:"seq"`
	Ts   int64               `json:"ts"`
}

// ModelUsageEvent tracks token usage for a Generator request.
type ModelUsageEvent struct {
	DiagnosticEvent
	AgentID    string          `json:"agent_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
	Usage      UsageDetails    `json:"usage"`
	Context    *ContextDetails `json:"context,omitempty"`
	CostUSD    float64         `json:"cost_usd,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// UsageDetails contains token usage breakdown.
type UsageDetails struct {
	Input        int64 `json:"input,omitempty"`
	Output       int64 `json:"output,omitempty"`
	CacheRead    int64 `json:"cache_read,omitempty"`
	CacheWrite   int64 `json:"cache_write,omitempty"`
	PromptTokens int64 `json:"prompt_tokens,omitempty"`
	Total        int64 `json:"total,omitempty"`
}

// ContextDetails contains context window information.
type ContextDetails struct {
	Limit int64 `json:"limit,omitempty"`
	Used  int64 `json:"used,omitempty"`
}

// TurnStartedEvent tracks the start of an agent turn.
type TurnStartedEvent struct {
	DiagnosticEvent
	AgentID   string `json:"agent_id"`
	SessionID string `json:"session_id,omitempty"`
}

// TurnCompletedEvent tracks the end of an agent turn.
type TurnCompletedEvent struct {
	DiagnosticEvent
	AgentID    string `json:"agent_id"`
	SessionID  string `json:"session_id,omitempty"`
	Iterations int    `json:"iterations,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Outcome    string `json:"outcome"` // "completed", "error", "cancelled"
	Error      string `json:"error,omitempty"`
}

// ToolCallQueuedEvent tracks a tool call queued for execution or approval.
type ToolCallQueuedEvent struct {
	DiagnosticEvent
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	QueueDepth int    `json:"queue_depth,omitempty"`
}

// ToolCallCompletedEvent tracks a finished tool call.
type ToolCallCompletedEvent struct {
	DiagnosticEvent
	AgentID    string `json:"agent_id"`
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Outcome    string `json:"outcome"` // "success", "denied", "error"
	Error      string `json:"error,omitempty"`
}

// AgentStateEvent tracks agent worker state changes.
type AgentStateEvent struct {
	DiagnosticEvent
	AgentID    string               `json:"agent_id"`
	PrevState  DiagnosticAgentState `json:"prev_state,omitempty"`
	State      DiagnosticAgentState `json:"state"`
	Reason     string               `json:"reason,omitempty"`
	QueueDepth int                  `json:"queue_depth,omitempty"`
}

// AgentStuckEvent tracks an agent worker that hasn't progressed.
type AgentStuckEvent struct {
	DiagnosticEvent
	AgentID    string               `json:"agent_id"`
	State      DiagnosticAgentState `json:"state"`
	AgeMs      int64                `json:"age_ms"`
	QueueDepth int                  `json:"queue_depth,omitempty"`
}

// LaneEnqueueEvent tracks queue lane enqueues.
type LaneEnqueueEvent struct {
	DiagnosticEvent
	Lane      string `json:"lane"`
	QueueSize int    `json:"queue_size"`
}

// LaneDequeueEvent tracks queue lane dequeues.
type LaneDequeueEvent struct {
	DiagnosticEvent
	Lane      string `json:"lane"`
	QueueSize int    `json:"queue_size"`
	WaitMs    int64  `json:"wait_ms"`
}

// TaskDispatchAttemptEvent tracks an execute_task dispatch attempt.
type TaskDispatchAttemptEvent struct {
	DiagnosticEvent
	TaskID  string `json:"task_id"`
	AgentID string `json:"agent_id,omitempty"`
	Attempt int    `json:"attempt"`
}

// DiagnosticHeartbeatEvent periodically summarizes runtime activity.
type DiagnosticHeartbeatEvent struct {
	DiagnosticEvent
	Approvals ApprovalStats `json:"approvals"`
	Active    int           `json:"active"`
	Waiting   int           `json:"waiting"`
	Queued    int           `json:"queued"`
}

// ApprovalStats contains approval decision statistics.
type ApprovalStats struct {
	Requested int64 `json:"requested"`
	Approved  int64 `json:"approved"`
	Denied    int64 `json:"denied"`
}

// DiagnosticEventPayload is a union type for all diagnostic events.
type DiagnosticEventPayload interface {
	EventType() DiagnosticEventType
	Sequence() int64
	Timestamp() int64
}

// Implement DiagnosticEventPayload for all event types
func (e *DiagnosticEvent) EventType() DiagnosticEventType { return e.Type }
func (e *DiagnosticEvent) Sequence() int64                { return e.Seq }
func (e *DiagnosticEvent) Timestamp() int64               { return e.Ts }

// DiagnosticListener receives diagnostic events.
type DiagnosticListener func(event DiagnosticEventPayload)

// DiagnosticEmitter manages diagnostic event emission.
type DiagnosticEmitter struct {
	mu        sync.RWMutex
	seq       int64
	enabled   bool
	listeners []DiagnosticListener
}

var globalEmitter = &DiagnosticEmitter{}

// SetDiagnosticsEnabled enables or disables diagnostic events.
func SetDiagnosticsEnabled(enabled bool) {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.enabled = enabled
}

// IsDiagnosticsEnabled returns whether diagnostics are enabled.
func IsDiagnosticsEnabled() bool {
	globalEmitter.mu.RLock()
	defer globalEmitter.mu.RUnlock()
	return globalEmitter.enabled
}

// OnDiagnosticEvent registers a listener for diagnostic events.
func OnDiagnosticEvent(listener DiagnosticListener) func() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	globalEmitter.listeners = append(globalEmitter.listeners, listener)

	// Return unsubscribe function
	return func() {
		globalEmitter.mu.Lock()
		defer globalEmitter.mu.Unlock()
		for i, l := range globalEmitter.listeners {
			// Compare function pointers (this is a simplification)
			if &l == &listener {
				globalEmitter.listeners = append(globalEmitter.listeners[:i], globalEmitter.listeners[i+1:]...)
				break
			}
		}
	}
}

// nextSeq returns the next sequence number.
func nextSeq() int64 {
	return atomic.AddInt64(&globalEmitter.seq, 1)
}

// emit sends an event to all listeners.
func emit(event DiagnosticEventPayload) {
	globalEmitter.mu.RLock()
	if !globalEmitter.enabled {
		globalEmitter.mu.RUnlock()
		return
	}
	listeners := make([]DiagnosticListener, len(globalEmitter.listeners))
	copy(listeners, globalEmitter.listeners)
	globalEmitter.mu.RUnlock()

	for _, listener := range listeners {
		func() {
			defer func() {
				if recovered := recover(); recovered != nil {
					_ = recovered
				}
			}() // Ignore listener panics
			listener(event)
		}()
	}
}

// EmitModelUsage emits a model usage event.
func EmitModelUsage(e *ModelUsageEvent) {
	e.Type = EventTypeModelUsage
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitTurnStarted emits a turn started event.
func EmitTurnStarted(e *TurnStartedEvent) {
	e.Type = EventTypeTurnStarted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitTurnCompleted emits a turn completed event.
func EmitTurnCompleted(e *TurnCompletedEvent) {
	e.Type = EventTypeTurnCompleted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitToolCallQueued emits a tool call queued event.
func EmitToolCallQueued(e *ToolCallQueuedEvent) {
	e.Type = EventTypeToolCallQueued
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitToolCallCompleted emits a tool call completed event.
func EmitToolCallCompleted(e *ToolCallCompletedEvent) {
	e.Type = EventTypeToolCallCompleted
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitAgentState emits an agent state event.
func EmitAgentState(e *AgentStateEvent) {
	e.Type = EventTypeAgentState
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitAgentStuck emits an agent stuck event.
func EmitAgentStuck(e *AgentStuckEvent) {
	e.Type = EventTypeAgentStuck
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitLaneEnqueue emits a lane enqueue event.
func EmitLaneEnqueue(e *LaneEnqueueEvent) {
	e.Type = EventTypeLaneEnqueue
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitLaneDequeue emits a lane dequeue event.
func EmitLaneDequeue(e *LaneDequeueEvent) {
	e.Type = EventTypeLaneDequeue
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitTaskDispatchAttempt emits a task dispatch attempt event.
func EmitTaskDispatchAttempt(e *TaskDispatchAttemptEvent) {
	e.Type = EventTypeTaskDispatchAttempt
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// EmitDiagnosticHeartbeat emits a diagnostic heartbeat event.
func EmitDiagnosticHeartbeat(e *DiagnosticHeartbeatEvent) {
	e.Type = EventTypeDiagnosticHeartbeat
	e.Seq = nextSeq()
	e.Ts = time.Now().UnixMilli()
	emit(e)
}

// ResetDiagnosticsForTest resets diagnostic state for testing.
func ResetDiagnosticsForTest() {
	globalEmitter.mu.Lock()
	defer globalEmitter.mu.Unlock()
	atomic.StoreInt64(&globalEmitter.seq, 0)
	globalEmitter.listeners = nil
}
