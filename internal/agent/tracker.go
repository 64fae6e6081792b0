package agent

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// ToolExecutionStage is a tool call's position in its lifecycle.
type ToolExecutionStage string

const (
	StagePendingApproval ToolExecutionStage = "pending_approval"
	StageApproved        ToolExecutionStage = "approved"
	StageExecuting       ToolExecutionStage = "executing"
	StageCompleted       ToolExecutionStage = "completed"
	StageFailed          ToolExecutionStage = "failed"
	StageRejected        ToolExecutionStage = "rejected"
)

// terminal reports whether a stage ends a tool call's lifecycle.
func (s ToolExecutionStage) terminal() bool {
	switch s {
	case StageCompleted, StageFailed, StageRejected:
		return true
	default:
		return false
	}
}

// TrackedTool is one tool call as it moves through StagePendingApproval
// (or StageApproved, if no approval is required) through to a terminal
// stage.
type TrackedTool struct {
	ID        string
	Name      string
	Args      json.RawMessage
	Stage     ToolExecutionStage
	CreatedAt time.Time
	UpdatedAt time.Time

	Result   *ToolResult
	Err      string
	Feedback string
}

// ToolTracker manages the lifecycle of every tool call issued within one
// batch (one model turn's set of concurrent tool calls). It enforces the
// duplicate-call and per-turn tool-count limits and signals exactly once
// when every pending approval in the batch has been resolved, allowing
// the agent loop to block on a single batch-wide wait rather than
// polling per-tool.
type ToolTracker struct {
	mu    sync.Mutex
	tools map[string]*TrackedTool

	maxToolsPerTurn  int
	maxRepeatedCalls int
	callHistory      map[string]int

	pendingApprovals int
	approvalDone     chan struct{}
}

// NewToolTracker creates a tracker for a single batch, with zero values
// replaced by sensible defaults (100 tools/turn, 3 repeated calls).
func NewToolTracker(maxToolsPerTurn, maxRepeatedCalls int) *ToolTracker {
	if maxToolsPerTurn <= 0 {
		maxToolsPerTurn = 100
	}
	if maxRepeatedCalls <= 0 {
		maxRepeatedCalls = 3
	}
	return &ToolTracker{
		tools:            make(map[string]*TrackedTool),
		maxToolsPerTurn:  maxToolsPerTurn,
		maxRepeatedCalls: maxRepeatedCalls,
		callHistory:      make(map[string]int),
		approvalDone:     make(chan struct{}),
	}
}

// CanExecute reports whether a new call to name with args is allowed
// under the per-turn count and repeated-call limits. It does not record
// the call; call RecordCall once the call is admitted.
func (t *ToolTracker) CanExecute(name string, args json.RawMessage) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if name == "" {
		return false, "tool name is required"
	}
	if len(t.tools) >= t.maxToolsPerTurn {
		return false, "maximum tools per turn exceeded"
	}
	key := callKey(name, args)
	if t.callHistory[key] >= t.maxRepeatedCalls {
		return false, "tool called too many times with identical arguments"
	}
	return true, ""
}

// RecordCall records an admitted call for duplicate-suppression purposes.
func (t *ToolTracker) RecordCall(name string, args json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callHistory[callKey(name, args)]++
}

// Add begins tracking a tool call. If it starts in StagePendingApproval,
// the tracker's pending-approval count is incremented.
func (t *ToolTracker) Add(tool *TrackedTool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	tool.CreatedAt = now
	tool.UpdatedAt = now
	t.tools[tool.ID] = tool
	if tool.Stage == StagePendingApproval {
		t.pendingApprovals++
	}
}

// UpdateStage transitions a tracked tool to a new stage. Moving out of
// StagePendingApproval decrements the pending count and, when it reaches
// zero, closes the channel returned by WaitForApprovals exactly once.
func (t *ToolTracker) UpdateStage(id string, stage ToolExecutionStage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tool, ok := t.tools[id]
	if !ok {
		return false
	}
	wasPending := tool.Stage == StagePendingApproval
	tool.Stage = stage
	tool.UpdatedAt = time.Now()

	if wasPending && (stage == StageApproved || stage == StageRejected) {
		t.pendingApprovals--
		if t.pendingApprovals <= 0 {
			t.pendingApprovals = 0
			select {
			case <-t.approvalDone:
			default:
				close(t.approvalDone)
			}
		}
	}
	return true
}

// Complete records a terminal result for a tool call.
func (t *ToolTracker) Complete(id string, result *ToolResult, execErr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tool, ok := t.tools[id]
	if !ok {
		return
	}
	tool.UpdatedAt = time.Now()
	if execErr != "" {
		tool.Stage = StageFailed
		tool.Err = execErr
		return
	}
	tool.Stage = StageCompleted
	tool.Result = result
}

// Reject marks a pending tool call rejected with optional user feedback.
func (t *ToolTracker) Reject(id, feedback string) {
	t.mu.Lock()
	tool, ok := t.tools[id]
	if ok {
		tool.Feedback = feedback
	}
	t.mu.Unlock()
	t.UpdateStage(id, StageRejected)
}

// Get returns the tracked tool by ID, if present.
func (t *ToolTracker) Get(id string) (*TrackedTool, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tool, ok := t.tools[id]
	return tool, ok
}

// PendingApprovalCount returns the number of tools awaiting a decision.
func (t *ToolTracker) PendingApprovalCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pendingApprovals
}

// HasPending reports whether any tool remains in a non-terminal stage.
func (t *ToolTracker) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tool := range t.tools {
		if !tool.Stage.terminal() {
			return true
		}
	}
	return false
}

// ByStage returns every tracked tool currently in the given stage.
func (t *ToolTracker) ByStage(stage ToolExecutionStage) []*TrackedTool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*TrackedTool
	for _, tool := range t.tools {
		if tool.Stage == stage {
			out = append(out, tool)
		}
	}
	return out
}

// WaitForApprovals returns a channel that is closed exactly once, when
// the pending-approval count for this batch reaches zero. If the batch
// started with zero pending approvals the channel is already closed.
func (t *ToolTracker) WaitForApprovals() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingApprovals == 0 {
		select {
		case <-t.approvalDone:
		default:
			close(t.approvalDone)
		}
	}
	return t.approvalDone
}

// callKey builds a duplicate-detection key from a tool name and its
// JSON-canonicalized (sorted-key) arguments, so semantically identical
// calls with differently-ordered object keys collapse to the same key.
func callKey(name string, args json.RawMessage) string {
	canonical, err := canonicalizeJSON(args)
	if err != nil {
		canonical = string(args)
	}
	return name + ":" + canonical
}

func canonicalizeJSON(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "{}", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	return canonicalValue(v), nil
}

func canonicalValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b, _ := json.Marshal(keys)
		_ = b
		out := "{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			kb, _ := json.Marshal(k)
			out += string(kb) + ":" + canonicalValue(val[k])
		}
		return out + "}"
	case []any:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += ","
			}
			out += canonicalValue(item)
		}
		return out + "]"
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
