package agent

import (
	"context"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/internal/observability"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// Loop runs one agent's bounded generate/tool-flow cycle for a turn:
// Init -> Stream -> (ExecuteTools -> Continue)* -> Complete. Each call to
// Run handles exactly one user turn and returns once the model produces
// a final text response with no further tool calls, or a limit/error
// ends the turn early.
type Loop struct {
	id        string
	sessionID string

	generator Generator
	registry  *ToolRegistry
	memory    MemoryStore
	opts      Options

	systemPrompt string
}

// NewLoop creates a loop for one agent. opts is merged over
// DefaultOptions so callers only need to set the fields they care about.
func NewLoop(id, sessionID string, generator Generator, registry *ToolRegistry, memory MemoryStore, systemPrompt string, opts Options) *Loop {
	return &Loop{
		id:           id,
		sessionID:    sessionID,
		generator:    generator,
		registry:     registry,
		memory:       memory,
		opts:         mergeOptions(DefaultOptions(), opts),
		systemPrompt: systemPrompt,
	}
}

// Run executes one turn for userText, emitting every Message produced
// along the way on out. Run blocks until the turn completes, the
// iteration limit is hit, or ctx is cancelled.
func (l *Loop) Run(ctx context.Context, userText string, out chan<- *models.Message) (runErr error) {
	turnStart := time.Now()
	var iterations int
	observability.EmitTurnStarted(&observability.TurnStartedEvent{AgentID: l.id, SessionID: l.sessionID})
	defer func() {
		outcome := "completed"
		var errMsg string
		if runErr != nil {
			outcome = "error"
			errMsg = runErr.Error()
		}
		observability.EmitTurnCompleted(&observability.TurnCompletedEvent{
			AgentID:    l.id,
			SessionID:  l.sessionID,
			Iterations: iterations,
			DurationMs: time.Since(turnStart).Milliseconds(),
			Outcome:    outcome,
			Error:      errMsg,
		})
	}()

	emit := func(msg *models.Message) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	history, err := l.loadHistory(ctx)
	if err != nil {
		return &LoopError{Phase: PhaseInit, Message: "loading history", Cause: err}
	}

	turn := &models.ConversationTurn{
		ID:        newToolCallID(),
		SessionID: l.sessionID,
		AgentID:   l.id,
		UserText:  userText,
		CreatedAt: time.Now(),
	}

	emit(&models.Message{
		Type:      models.MessageUser,
		Timestamp: time.Now(),
		AgentID:   l.id,
		SessionID: l.sessionID,
		User:      &models.UserPayload{Content: userText},
	})

	messages := append(history, GenerateMessage{Role: "user", Content: userText})
	var finalText string
	var toolCallCount int

	for iteration := 0; ; iteration++ {
		iterations = iteration + 1
		if iteration >= l.opts.MaxIterations {
			return &LoopError{Phase: PhaseStream, Iteration: iteration, Cause: ErrMaxIterations}
		}

		chunks, err := l.generator.Generate(ctx, &GenerateRequest{
			System:   l.systemPrompt,
			Messages: messages,
			Tools:    l.registry.AsLLMTools(),
		})
		if err != nil {
			return &LoopError{Phase: PhaseStream, Iteration: iteration, Cause: err}
		}

		var text string
		var calls []models.ToolCall
		var usage *models.UsagePayload

		for chunk := range chunks {
			if chunk.Err != nil {
				return &LoopError{Phase: PhaseStream, Iteration: iteration, Cause: chunk.Err}
			}
			if chunk.Thinking != "" {
				emit(&models.Message{
					Type:      models.MessageThinking,
					Timestamp: time.Now(),
					AgentID:   l.id,
					SessionID: l.sessionID,
					Thinking:  &models.ThinkingPayload{Content: chunk.Thinking},
				})
			}
			if chunk.Text != "" {
				text += chunk.Text
			}
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
			if chunk.Done {
				usage = &models.UsagePayload{InputTokens: chunk.InputTokens, OutputTokens: chunk.OutputTokens}
			}
		}

		if len(calls) == 0 {
			finalText = text
			emit(&models.Message{
				Type:      models.MessageAgent,
				Timestamp: time.Now(),
				AgentID:   l.id,
				SessionID: l.sessionID,
				Agent:     &models.AgentPayload{Content: text},
			})
			if usage != nil {
				emit(&models.Message{
					Type:      models.MessageUsage,
					Timestamp: time.Now(),
					AgentID:   l.id,
					SessionID: l.sessionID,
					Usage:     usage,
				})
				observability.EmitModelUsage(&observability.ModelUsageEvent{
					AgentID:   l.id,
					SessionID: l.sessionID,
					Usage: observability.UsageDetails{
						Input:  int64(usage.InputTokens),
						Output: int64(usage.OutputTokens),
						Total:  int64(usage.InputTokens + usage.OutputTokens),
					},
				})
			}
			break
		}

		if l.opts.MaxToolCalls > 0 && toolCallCount+len(calls) > l.opts.MaxToolCalls {
			return &LoopError{Phase: PhaseExecuteTools, Iteration: iteration, Message: "maximum tool calls exceeded for this turn"}
		}
		toolCallCount += len(calls)

		tracker := NewToolTracker(l.opts.MaxToolsPerTurn, l.opts.MaxRepeatedCalls)
		if l.opts.OnToolBatch != nil {
			l.opts.OnToolBatch(tracker)
		}
		flow := NewToolFlow(ToolFlowConfig{
			Registry:        l.registry,
			Tracker:         tracker,
			Approval:        l.opts.ApprovalChecker,
			ResultGuard:     l.opts.ResultGuard,
			Concurrency:     l.opts.ToolConcurrency,
			ToolTimeout:     l.opts.ToolTimeout,
			ApprovalTimeout: l.opts.ApprovalTimeout,
			AgentID:         l.id,
			SessionID:       l.sessionID,
		})

		for _, msg := range flow.Admit(ctx, calls) {
			emit(msg)
		}
		for i, tc := range calls {
			observability.EmitToolCallQueued(&observability.ToolCallQueuedEvent{
				AgentID:    l.id,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				QueueDepth: len(calls) - i,
			})
		}

		toolCallStart := time.Now()
		resultMsgs, err := flow.WaitAndExecute(ctx)
		if err != nil {
			return &LoopError{Phase: PhaseExecuteTools, Iteration: iteration, Cause: err}
		}
		for _, msg := range resultMsgs {
			emit(msg)
		}

		var toolResults []models.ToolResult
		for _, tc := range calls {
			tracked, ok := tracker.Get(tc.ID)
			if !ok {
				continue
			}
			outcome := "success"
			var toolErr string
			switch tracked.Stage {
			case StageFailed:
				outcome, toolErr = "error", tracked.Err
			case StageRejected:
				outcome, toolErr = "denied", tracked.Feedback
			}
			observability.EmitToolCallCompleted(&observability.ToolCallCompletedEvent{
				AgentID:    l.id,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
				DurationMs: time.Since(toolCallStart).Milliseconds(),
				Outcome:    outcome,
				Error:      toolErr,
			})
			switch tracked.Stage {
			case StageCompleted:
				toolResults = append(toolResults, models.ToolResult{ToolCallID: tc.ID, Content: tracked.Result.Content, IsError: tracked.Result.IsError})
			case StageFailed:
				toolResults = append(toolResults, models.ToolResult{ToolCallID: tc.ID, Content: tracked.Err, IsError: true})
			case StageRejected:
				toolResults = append(toolResults, models.ToolResult{ToolCallID: tc.ID, Content: "rejected: " + tracked.Feedback, IsError: true})
			}
		}
		turn.ToolCalls = append(turn.ToolCalls, calls...)
		turn.ToolResults = append(turn.ToolResults, toolResults...)

		messages = append(messages, GenerateMessage{Role: "assistant", Content: text, ToolCalls: calls})
		messages = append(messages, GenerateMessage{Role: "tool", ToolResults: toolResults})
	}

	turn.AgentText = finalText
	if l.memory != nil {
		if err := l.memory.AppendTurn(ctx, turn); err != nil {
			return &LoopError{Phase: PhaseComplete, Cause: err}
		}
	}
	return nil
}

func (l *Loop) loadHistory(ctx context.Context) ([]GenerateMessage, error) {
	if l.memory == nil {
		return nil, nil
	}
	turns, err := l.memory.GetHistory(ctx, l.sessionID, 0)
	if err != nil {
		return nil, err
	}
	var messages []GenerateMessage
	for _, turn := range turns {
		messages = append(messages, GenerateMessage{Role: "user", Content: turn.UserText})
		messages = append(messages, GenerateMessage{Role: "assistant", Content: turn.AgentText, ToolCalls: turn.ToolCalls})
		if len(turn.ToolResults) > 0 {
			messages = append(messages, GenerateMessage{Role: "tool", ToolResults: turn.ToolResults})
		}
	}
	return messages, nil
}
