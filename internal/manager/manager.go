// Package manager implements AgentManager: the session-to-agent router
// that owns one worker goroutine per active agent, dispatches execute_task
// calls to a dedicated task agent, and routes ApprovalResponse messages
// back to whichever tool batch is waiting on them.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Crestview-Labs/metagen-sub001/internal/agent"
	"github.com/Crestview-Labs/metagen-sub001/internal/observability"
	"github.com/Crestview-Labs/metagen-sub001/internal/tasks"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
	"github.com/google/uuid"
)

// turnRequest is one user turn queued for a worker.
type turnRequest struct {
	ctx      context.Context
	userText string
	out      chan<- *models.Message
	done     chan error
}

// worker owns one agent's serialized turn queue and the tracker of its
// currently in-flight tool batch, if any.
type worker struct {
	agentID string
	queue   chan *turnRequest

	mu             sync.Mutex
	activeTracker  *agent.ToolTracker
}

// taskCompletion is how a dispatched task's result is handed back to the
// goroutine that called DispatchTask, mirroring the FIFO
// pending-completion coordination used for task dispatch.
type taskCompletion struct {
	exec *models.TaskExecution
	err  error
}

// AgentManager routes conversation turns to per-agent workers and task
// executions to the task agent, fanning every produced Message out to
// whichever caller is listening for that agent+session.
type AgentManager struct {
	mu      sync.RWMutex
	workers map[string]*worker

	tasks *tasks.Registry

	pendingMu        sync.Mutex
	pendingTaskCalls map[string]chan taskCompletion

	newMetaAgent func(agentID, sessionID string, opts agent.Options) *agent.MetaAgent
	newTaskAgent func(agentID, sessionID string, def models.TaskDefinition, opts agent.Options) *agent.TaskAgent

	approval *agent.ApprovalChecker
	opts     agent.Options
}

// Dependencies bundles the agent constructors and shared services an
// AgentManager needs; tests substitute fakes for the constructors to
// avoid a real Generator/MemoryStore.
type Dependencies struct {
	NewMetaAgent func(agentID, sessionID string, opts agent.Options) *agent.MetaAgent
	NewTaskAgent func(agentID, sessionID string, def models.TaskDefinition, opts agent.Options) *agent.TaskAgent
	Approval     *agent.ApprovalChecker
	Options      agent.Options
}

// New creates an AgentManager. deps.Approval may be nil if no tool ever
// requires approval.
func New(deps Dependencies) *AgentManager {
	return &AgentManager{
		workers:          make(map[string]*worker),
		tasks:            tasks.NewRegistry(),
		pendingTaskCalls: make(map[string]chan taskCompletion),
		newMetaAgent:     deps.NewMetaAgent,
		newTaskAgent:     deps.NewTaskAgent,
		approval:         deps.Approval,
		opts:             deps.Options,
	}
}

// RegisterTask adds or replaces a reusable task definition.
func (m *AgentManager) RegisterTask(def models.TaskDefinition) {
	m.tasks.Register(def)
}

// ListTasks implements agent.TaskDispatcher.
func (m *AgentManager) ListTasks(ctx context.Context) ([]models.TaskDefinition, error) {
	return m.tasks.List(), nil
}

// CreateTask implements agent.TaskDispatcher.
func (m *AgentManager) CreateTask(ctx context.Context, def models.TaskDefinition) (models.TaskDefinition, error) {
	return m.tasks.Create(def, uuid.NewString)
}

// Submit enqueues one user turn for agentID/sessionID and returns a
// channel carrying every Message the turn produces. The channel is
// closed when the turn completes or fails.
func (m *AgentManager) Submit(ctx context.Context, agentID, sessionID, userText string) (<-chan *models.Message, error) {
	w := m.workerFor(agentID, sessionID)
	out := make(chan *models.Message, 16)
	req := &turnRequest{ctx: ctx, userText: userText, out: out, done: make(chan error, 1)}

	select {
	case w.queue <- req:
		observability.EmitLaneEnqueue(&observability.LaneEnqueueEvent{Lane: agentID, QueueSize: len(w.queue)})
	case <-ctx.Done():
		close(out)
		return out, ctx.Err()
	}

	go func() {
		<-req.done
		close(out)
	}()

	return out, nil
}

// workerFor returns the worker for agentID, starting it if this is the
// first turn submitted for that agent.
func (m *AgentManager) workerFor(agentID, sessionID string) *worker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.workers[agentID]; ok {
		return w
	}

	w := &worker{agentID: agentID, queue: make(chan *turnRequest, 64)}
	m.workers[agentID] = w

	opts := m.opts
	opts.OnToolBatch = func(tracker *agent.ToolTracker) {
		w.mu.Lock()
		w.activeTracker = tracker
		w.mu.Unlock()
	}
	meta := m.newMetaAgent(agentID, sessionID, opts)

	go m.run(w, meta)
	return w
}

func (m *AgentManager) run(w *worker, meta *agent.MetaAgent) {
	observability.EmitAgentState(&observability.AgentStateEvent{AgentID: w.agentID, State: observability.AgentStateIdle})
	for req := range w.queue {
		observability.EmitLaneDequeue(&observability.LaneDequeueEvent{Lane: w.agentID, QueueSize: len(w.queue)})
		observability.EmitAgentState(&observability.AgentStateEvent{
			AgentID: w.agentID, PrevState: observability.AgentStateIdle, State: observability.AgentStateRunning, QueueDepth: len(w.queue),
		})
		err := meta.Run(req.ctx, req.userText, req.out)
		req.done <- err
		observability.EmitAgentState(&observability.AgentStateEvent{
			AgentID: w.agentID, PrevState: observability.AgentStateRunning, State: observability.AgentStateIdle,
		})
	}
}

// HandleApprovalResponse routes an ApprovalResponse to the tool batch
// currently waiting on it. It resolves the policy store decision and,
// if the agent that issued the request still has an active tool batch
// tracking that call, advances the tracker so a blocked WaitAndExecute
// can proceed.
func (m *AgentManager) HandleApprovalResponse(ctx context.Context, resp *models.ApprovalResponsePayload) error {
	if resp == nil {
		return errors.New("approval response is required")
	}
	if m.approval == nil {
		return errors.New("no approval checker configured")
	}

	pending, err := m.approval.GetPendingRequests(ctx, "")
	if err != nil {
		return err
	}
	var match *agent.ApprovalRequest
	for _, req := range pending {
		if req.ID == resp.RequestID {
			match = req
			break
		}
	}
	if match == nil {
		return fmt.Errorf("no pending approval request %q", resp.RequestID)
	}

	if resp.Approved {
		if err := m.approval.Approve(ctx, resp.RequestID, resp.DecidedBy); err != nil {
			return err
		}
	} else {
		if err := m.approval.Deny(ctx, resp.RequestID, resp.DecidedBy); err != nil {
			return err
		}
	}

	m.mu.RLock()
	w, ok := m.workers[match.AgentID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	tracker := w.activeTracker
	w.mu.Unlock()
	if tracker == nil {
		return nil
	}

	if resp.Approved {
		tracker.UpdateStage(match.ToolCallID, agent.StageApproved)
	} else {
		tracker.Reject(match.ToolCallID, resp.Feedback)
	}
	return nil
}

// DispatchTask implements agent.TaskDispatcher: it looks up the task
// definition, starts (or reuses) the deterministic task-exec-<task_id>
// agent's worker, and blocks until that agent's run completes, using a
// FIFO pending-completion channel exactly as the caller (execute_task)
// expects a synchronous result.
func (m *AgentManager) DispatchTask(ctx context.Context, req *models.TaskExecutionRequest) (*models.TaskExecution, error) {
	def, ok := m.tasks.Get(req.TaskID)
	if !ok {
		return nil, fmt.Errorf("unknown task %q", req.TaskID)
	}

	completion := make(chan taskCompletion, 1)
	m.pendingMu.Lock()
	m.pendingTaskCalls[req.ID] = completion
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		delete(m.pendingTaskCalls, req.ID)
		m.pendingMu.Unlock()
	}()

	go m.executeTask(ctx, req, def, completion)

	select {
	case result := <-completion:
		return result.exec, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *AgentManager) executeTask(ctx context.Context, req *models.TaskExecutionRequest, def models.TaskDefinition, completion chan<- taskCompletion) {
	observability.EmitTaskDispatchAttempt(&observability.TaskDispatchAttemptEvent{TaskID: req.TaskID, AgentID: req.AgentID, Attempt: 1})

	opts := m.opts
	taskAgent := m.newTaskAgent(req.AgentID, req.ID, def, opts)

	out := make(chan *models.Message, 16)
	go func() {
		for range out {
			// Task agent progress messages are not surfaced to the caller
			// directly; the meta agent only sees the final TaskExecution.
		}
	}()

	exec, err := taskAgent.Execute(ctx, req, out)
	close(out)
	completion <- taskCompletion{exec: exec, err: err}
}
