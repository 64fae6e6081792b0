package agent

import (
	"log/slog"
	"time"
)

// Options configures a single agent's loop, tool execution, and approval
// behavior. Zero values are replaced by DefaultOptions' fields wherever
// mergeOptions is used, following the same override-only-nonzero-fields
// merge idiom used throughout this codebase's configuration layer.
type Options struct {
	// MaxIterations bounds the number of generate/tool-flow iterations
	// per turn before the loop gives up with ErrMaxIterations.
	MaxIterations int

	// MaxToolCalls limits the number of tool calls accepted in a single
	// turn across all iterations (0 = unlimited).
	MaxToolCalls int

	// MaxRepeatedCalls limits how many times the same tool name + canonical
	// arguments may be called within one turn before further identical
	// calls are rejected without execution.
	MaxRepeatedCalls int

	// MaxToolsPerTurn caps the total number of distinct tool calls tracked
	// in a single turn's ToolTracker.
	MaxToolsPerTurn int

	// ToolConcurrency caps the number of tool calls executing at once.
	ToolConcurrency int

	// ToolTimeout bounds a single tool call's execution time.
	ToolTimeout time.Duration

	// ApprovalTimeout bounds how long the loop waits for all pending
	// approvals in a batch to resolve before failing the turn.
	ApprovalTimeout time.Duration

	// ApprovalChecker evaluates whether a tool call needs approval. If
	// nil, no tool ever requires approval.
	ApprovalChecker *ApprovalChecker

	// ResultGuard redacts/truncates tool output before it is persisted or
	// streamed back to the model.
	ResultGuard ToolResultGuard

	// OnToolBatch, if set, is called with the ToolTracker for each new
	// batch of tool calls as soon as it is created, before any approval
	// decision is made. An agent manager uses this to route a later
	// ApprovalResponse message to the tracker awaiting it.
	OnToolBatch func(tracker *ToolTracker)

	Logger *slog.Logger
}

// DefaultOptions returns the baseline agent options.
func DefaultOptions() Options {
	return Options{
		MaxIterations:    50,
		MaxToolCalls:     0,
		MaxRepeatedCalls: 3,
		MaxToolsPerTurn:  100,
		ToolConcurrency:  4,
		ToolTimeout:      30 * time.Second,
		ApprovalTimeout:  30 * time.Second,
		Logger:           slog.Default(),
	}
}

func mergeOptions(base, override Options) Options {
	merged := base
	if override.MaxIterations > 0 {
		merged.MaxIterations = override.MaxIterations
	}
	if override.MaxToolCalls > 0 {
		merged.MaxToolCalls = override.MaxToolCalls
	}
	if override.MaxRepeatedCalls > 0 {
		merged.MaxRepeatedCalls = override.MaxRepeatedCalls
	}
	if override.MaxToolsPerTurn > 0 {
		merged.MaxToolsPerTurn = override.MaxToolsPerTurn
	}
	if override.ToolConcurrency > 0 {
		merged.ToolConcurrency = override.ToolConcurrency
	}
	if override.ToolTimeout > 0 {
		merged.ToolTimeout = override.ToolTimeout
	}
	if override.ApprovalTimeout > 0 {
		merged.ApprovalTimeout = override.ApprovalTimeout
	}
	if override.ApprovalChecker != nil {
		merged.ApprovalChecker = override.ApprovalChecker
	}
	if override.ResultGuard.active() {
		merged.ResultGuard = override.ResultGuard
	}
	if override.OnToolBatch != nil {
		merged.OnToolBatch = override.OnToolBatch
	}
	if override.Logger != nil {
		merged.Logger = override.Logger
	}
	return merged
}
