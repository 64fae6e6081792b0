// Package memory adapts the session/message persistence layer to the
// narrower agent.MemoryStore interface the agent loop depends on:
// turn-level conversation history plus task-execution bookkeeping.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/internal/sessions"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// Store implements agent.MemoryStore over a sessions.Store, folding each
// ConversationTurn into the three messages (user, agent, tool-result)
// that make it up, and reconstructing turns from message history on read.
type Store struct {
	sessions sessions.Store

	mu    sync.RWMutex
	execs map[string]*models.TaskExecution
}

// NewStore wraps a sessions.Store. Task-execution records are kept
// in-memory only; they are operational bookkeeping, not conversation
// history, and do not need to survive a restart.
func NewStore(store sessions.Store) *Store {
	return &Store{sessions: store, execs: make(map[string]*models.TaskExecution)}
}

// AppendTurn persists a completed turn as its constituent messages.
func (s *Store) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn == nil {
		return errors.New("turn is required")
	}
	now := time.Now()
	if err := s.sessions.AppendMessage(ctx, turn.SessionID, &models.Message{
		Type:      models.MessageUser,
		Timestamp: now,
		AgentID:   turn.AgentID,
		SessionID: turn.SessionID,
		User:      &models.UserPayload{Content: turn.UserText},
	}); err != nil {
		return err
	}

	for i, call := range turn.ToolCalls {
		if err := s.sessions.AppendMessage(ctx, turn.SessionID, &models.Message{
			Type:      models.MessageToolCall,
			Timestamp: now,
			AgentID:   turn.AgentID,
			SessionID: turn.SessionID,
			ToolCall: &models.ToolCallPayload{
				ToolCallID: call.ID,
				Name:       call.Name,
				Input:      call.Input,
				Iteration:  i,
			},
		}); err != nil {
			return err
		}
	}
	for _, result := range turn.ToolResults {
		msgType := models.MessageToolResult
		if result.IsError {
			msgType = models.MessageToolError
		}
		msg := &models.Message{Type: msgType, Timestamp: now, AgentID: turn.AgentID, SessionID: turn.SessionID}
		if result.IsError {
			msg.ToolError = &models.ToolErrorPayload{ToolCallID: result.ToolCallID, Message: result.Content}
		} else {
			msg.ToolResult = &models.ToolResultPayload{ToolCallID: result.ToolCallID, Content: result.Content}
		}
		if err := s.sessions.AppendMessage(ctx, turn.SessionID, msg); err != nil {
			return err
		}
	}

	return s.sessions.AppendMessage(ctx, turn.SessionID, &models.Message{
		Type:      models.MessageAgent,
		Timestamp: now,
		AgentID:   turn.AgentID,
		SessionID: turn.SessionID,
		Agent:     &models.AgentPayload{Content: turn.AgentText},
	})
}

// GetHistory reconstructs turns from the raw message history, grouping
// consecutive messages between one user message and the next into a
// single ConversationTurn.
func (s *Store) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.ConversationTurn, error) {
	messages, err := s.sessions.GetHistory(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}

	var turns []*models.ConversationTurn
	var current *models.ConversationTurn
	for _, msg := range messages {
		switch msg.Type {
		case models.MessageUser:
			if current != nil {
				turns = append(turns, current)
			}
			current = &models.ConversationTurn{
				SessionID: sessionID,
				AgentID:   msg.AgentID,
				UserText:  msg.User.Content,
				CreatedAt: msg.Timestamp,
			}
		case models.MessageAgent:
			if current != nil {
				current.AgentText = msg.Agent.Content
			}
		case models.MessageToolCall:
			if current != nil && msg.ToolCall != nil {
				current.ToolCalls = append(current.ToolCalls, models.ToolCall{
					ID: msg.ToolCall.ToolCallID, Name: msg.ToolCall.Name, Input: msg.ToolCall.Input,
				})
			}
		case models.MessageToolResult:
			if current != nil && msg.ToolResult != nil {
				current.ToolResults = append(current.ToolResults, models.ToolResult{
					ToolCallID: msg.ToolResult.ToolCallID, Content: msg.ToolResult.Content,
				})
			}
		case models.MessageToolError:
			if current != nil && msg.ToolError != nil {
				current.ToolResults = append(current.ToolResults, models.ToolResult{
					ToolCallID: msg.ToolError.ToolCallID, Content: msg.ToolError.Message, IsError: true,
				})
			}
		}
	}
	if current != nil {
		turns = append(turns, current)
	}

	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// RecordTaskExecution upserts a task execution's progress snapshot.
func (s *Store) RecordTaskExecution(ctx context.Context, exec *models.TaskExecution) error {
	if exec == nil {
		return errors.New("task execution is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *exec
	s.execs[exec.ID] = &clone
	return nil
}

// GetTaskExecution returns a previously recorded task execution by ID.
func (s *Store) GetTaskExecution(ctx context.Context, id string) (*models.TaskExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exec, ok := s.execs[id]
	if !ok {
		return nil, errors.New("task execution not found")
	}
	clone := *exec
	return &clone, nil
}
