package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
	"github.com/google/uuid"
)

// ToolFlowConfig configures one batch of concurrent tool execution.
type ToolFlowConfig struct {
	Registry        *ToolRegistry
	Tracker         *ToolTracker
	Approval        *ApprovalChecker
	ResultGuard     ToolResultGuard
	Concurrency     int
	ToolTimeout     time.Duration
	ApprovalTimeout time.Duration
	AgentID         string
	SessionID       string
}

// ToolFlow drives one batch of tool calls from admission through approval
// gating to concurrent execution, emitting a Message for every state
// transition a client needs to observe.
type ToolFlow struct {
	cfg ToolFlowConfig
}

// NewToolFlow creates a flow for one batch using cfg.
func NewToolFlow(cfg ToolFlowConfig) *ToolFlow {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 30 * time.Second
	}
	return &ToolFlow{cfg: cfg}
}

// Admit registers calls with the tracker, classifying each via the
// approval checker and rejecting any that exceed per-turn or
// repeated-call limits. It returns the messages a client should see
// immediately (tool_call and, for gated calls, approval_request).
func (f *ToolFlow) Admit(ctx context.Context, calls []models.ToolCall) []*models.Message {
	var out []*models.Message
	now := time.Now()

	for i, call := range calls {
		out = append(out, &models.Message{
			Type:      models.MessageToolCall,
			Timestamp: now,
			AgentID:   f.cfg.AgentID,
			SessionID: f.cfg.SessionID,
			ToolCall: &models.ToolCallPayload{
				ToolCallID: call.ID,
				Name:       call.Name,
				Input:      call.Input,
				Iteration:  i,
			},
		})

		if ok, reason := f.cfg.Tracker.CanExecute(call.Name, call.Input); !ok {
			f.cfg.Tracker.Add(&TrackedTool{ID: call.ID, Name: call.Name, Args: call.Input, Stage: StageRejected, Feedback: reason})
			out = append(out, &models.Message{
				Type:      models.MessageToolError,
				Timestamp: time.Now(),
				AgentID:   f.cfg.AgentID,
				SessionID: f.cfg.SessionID,
				ToolError: &models.ToolErrorPayload{ToolCallID: call.ID, Name: call.Name, Message: reason},
			})
			continue
		}
		f.cfg.Tracker.RecordCall(call.Name, call.Input)

		stage := StageApproved
		if f.cfg.Approval != nil {
			decision, reason := f.cfg.Approval.Check(f.cfg.AgentID, call.Name)
			switch decision {
			case ApprovalDenied:
				f.cfg.Tracker.Add(&TrackedTool{ID: call.ID, Name: call.Name, Args: call.Input, Stage: StageRejected, Feedback: reason})
				out = append(out, &models.Message{
					Type:      models.MessageToolError,
					Timestamp: time.Now(),
					AgentID:   f.cfg.AgentID,
					SessionID: f.cfg.SessionID,
					ToolError: &models.ToolErrorPayload{ToolCallID: call.ID, Name: call.Name, Message: "denied: " + reason},
				})
				continue
			case ApprovalPending:
				stage = StagePendingApproval
			default:
				stage = StageApproved
			}
		}

		f.cfg.Tracker.Add(&TrackedTool{ID: call.ID, Name: call.Name, Args: call.Input, Stage: stage})

		if stage == StagePendingApproval {
			req, err := f.cfg.Approval.CreateApprovalRequest(ctx, f.cfg.AgentID, f.cfg.SessionID, call, "tool requires approval")
			if err != nil {
				continue
			}
			out = append(out, &models.Message{
				Type:      models.MessageApprovalRequest,
				Timestamp: time.Now(),
				AgentID:   f.cfg.AgentID,
				SessionID: f.cfg.SessionID,
				ApprovalRequest: &models.ApprovalRequestPayload{
					RequestID:  req.ID,
					ToolCallID: call.ID,
					Name:       call.Name,
					Input:      call.Input,
					Reason:     req.Reason,
					ExpiresAt:  req.ExpiresAt,
				},
			})
		}
	}

	return out
}

// Resolve applies an ApprovalResponse to the matching tracked tool,
// moving it from StagePendingApproval to StageApproved or StageRejected.
func (f *ToolFlow) Resolve(toolCallID string, approved bool, feedback string) {
	if approved {
		f.cfg.Tracker.UpdateStage(toolCallID, StageApproved)
		return
	}
	f.cfg.Tracker.Reject(toolCallID, feedback)
}

// WaitAndExecute blocks until every pending approval in the batch
// resolves (or cfg.ApprovalTimeout elapses), then executes every
// approved call concurrently up to cfg.Concurrency, returning the
// resulting messages in completion order.
func (f *ToolFlow) WaitAndExecute(ctx context.Context) ([]*models.Message, error) {
	select {
	case <-f.cfg.Tracker.WaitForApprovals():
	case <-time.After(f.cfg.ApprovalTimeout):
		return nil, fmt.Errorf("timed out waiting for tool approvals")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	approved := f.cfg.Tracker.ByStage(StageApproved)
	if len(approved) == 0 {
		return nil, nil
	}

	sem := make(chan struct{}, f.cfg.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var messages []*models.Message

	for _, tool := range approved {
		tool := tool
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			msgs := f.executeOne(ctx, tool)
			mu.Lock()
			messages = append(messages, msgs...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	return messages, nil
}

func (f *ToolFlow) executeOne(ctx context.Context, tool *TrackedTool) []*models.Message {
	f.cfg.Tracker.UpdateStage(tool.ID, StageExecuting)

	started := &models.Message{
		Type:      models.MessageToolStarted,
		Timestamp: time.Now(),
		AgentID:   f.cfg.AgentID,
		SessionID: f.cfg.SessionID,
		ToolStarted: &models.ToolStartedPayload{
			ToolCallID: tool.ID,
			Name:       tool.Name,
		},
	}

	start := time.Now()
	result, err := f.executeWithTimeout(ctx, tool)
	elapsed := time.Since(start)

	if err != nil {
		f.cfg.Tracker.Complete(tool.ID, nil, err.Error())
		return []*models.Message{started, {
			Type:      models.MessageToolError,
			Timestamp: time.Now(),
			AgentID:   f.cfg.AgentID,
			SessionID: f.cfg.SessionID,
			ToolError: &models.ToolErrorPayload{
				ToolCallID: tool.ID,
				Name:       tool.Name,
				Message:    err.Error(),
				Retryable:  IsToolRetryable(err),
			},
		}}
	}

	f.cfg.ResultGuard.SanitizeToolResult(result)
	f.cfg.Tracker.Complete(tool.ID, result, "")

	return []*models.Message{started, {
		Type:      models.MessageToolResult,
		Timestamp: time.Now(),
		AgentID:   f.cfg.AgentID,
		SessionID: f.cfg.SessionID,
		ToolResult: &models.ToolResultPayload{
			ToolCallID: tool.ID,
			Name:       tool.Name,
			Content:    result.Content,
			Elapsed:    elapsed,
		},
	}}
}

// executeWithTimeout runs the tool call in its own goroutine so a tool
// that ignores context cancellation cannot block the batch past
// cfg.ToolTimeout; a non-blocking send lets that goroutine exit on its
// own once it eventually returns.
func (f *ToolFlow) executeWithTimeout(ctx context.Context, tool *TrackedTool) (result *ToolResult, execErr error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.cfg.ToolTimeout)
	defer cancel()

	type outcome struct {
		result *ToolResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				select {
				case done <- outcome{nil, fmt.Errorf("%w: %v", ErrToolPanic, r)}:
				default:
				}
			}
		}()
		res, err := f.cfg.Registry.Execute(timeoutCtx, tool.Name, json.RawMessage(tool.Args))
		select {
		case done <- outcome{res, err}:
		default:
		}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("%w: %s", ErrToolTimeout, tool.Name)
	}
}

// newToolCallID generates a unique ID for a synthesized tool call, used
// when a caller builds ToolCall values outside the Generator stream.
func newToolCallID() string {
	return uuid.NewString()
}
