package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// defaultMetaSystemPrompt is used when no system prompt override is given.
const defaultMetaSystemPrompt = `You are the primary conversational agent for this session. You have ` +
	`access to general-purpose tools directly and may delegate well-defined, ` +
	`repeatable units of work to the task agent via execute_task rather than ` +
	`performing them yourself.`

// TaskDispatcher hands a task execution request off to the agent manager
// and blocks until the task agent's result is available. The manager
// implements this with its FIFO pending-completion bookkeeping; the meta
// agent only depends on this narrow interface.
type TaskDispatcher interface {
	DispatchTask(ctx context.Context, req *models.TaskExecutionRequest) (*models.TaskExecution, error)
	ListTasks(ctx context.Context) ([]models.TaskDefinition, error)
	CreateTask(ctx context.Context, def models.TaskDefinition) (models.TaskDefinition, error)
}

// MetaAgent is the conversation-facing agent: it runs the standard loop
// plus three additional tools (list_tasks, create_task, execute_task)
// that let it delegate to a TaskAgent instead of doing everything itself.
type MetaAgent struct {
	loop       *Loop
	dispatcher TaskDispatcher
}

// NewMetaAgent wires a Loop with the delegation tools registered into
// registry before the loop is constructed, so AsLLMTools already
// advertises them to the model.
func NewMetaAgent(id, sessionID string, generator Generator, registry *ToolRegistry, memory MemoryStore, dispatcher TaskDispatcher, systemPrompt string, opts Options) *MetaAgent {
	if systemPrompt == "" {
		systemPrompt = defaultMetaSystemPrompt
	}
	m := &MetaAgent{dispatcher: dispatcher}
	_ = registry.Register(&listTasksTool{dispatcher: dispatcher})
	_ = registry.Register(&createTaskTool{dispatcher: dispatcher})
	_ = registry.Register(&executeTaskTool{dispatcher: dispatcher})
	m.loop = NewLoop(id, sessionID, generator, registry, memory, systemPrompt, opts)
	return m
}

// Run executes one conversational turn.
func (m *MetaAgent) Run(ctx context.Context, userText string, out chan<- *models.Message) error {
	return m.loop.Run(ctx, userText, out)
}

type listTasksParams struct{}

type listTasksTool struct {
	dispatcher TaskDispatcher
}

func (t *listTasksTool) Name() string        { return "list_tasks" }
func (t *listTasksTool) Description() string { return "List the reusable task definitions available to execute_task." }
func (t *listTasksTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *listTasksTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	defs, err := t.dispatcher.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(defs)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: string(body)}, nil
}

type createTaskTool struct {
	dispatcher TaskDispatcher
}

func (t *createTaskTool) Name() string        { return "create_task" }
func (t *createTaskTool) Description() string {
	return "Define a new reusable task that execute_task can later dispatch."
}
func (t *createTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"description": {"type": "string"},
			"instructions": {"type": "string"},
			"input_parameters": {"type": "array"}
		},
		"required": ["name", "instructions"]
	}`)
}
func (t *createTaskTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var def models.TaskDefinition
	if err := json.Unmarshal(params, &def); err != nil {
		return nil, NewToolError(t.Name(), err).WithType(ToolErrorInvalidInput)
	}
	created, err := t.dispatcher.CreateTask(ctx, def)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(created)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: string(body)}, nil
}

type executeTaskTool struct {
	dispatcher TaskDispatcher
}

func (t *executeTaskTool) Name() string        { return "execute_task" }
func (t *executeTaskTool) Description() string {
	return "Dispatch a defined task to the task agent and wait for its result."
}
func (t *executeTaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"task_id": {"type": "string"},
			"input_values": {"type": "object"}
		},
		"required": ["task_id"]
	}`)
}
func (t *executeTaskTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var input struct {
		TaskID      string         `json:"task_id"`
		InputValues map[string]any `json:"input_values"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, NewToolError(t.Name(), err).WithType(ToolErrorInvalidInput)
	}
	if input.TaskID == "" {
		return nil, NewToolError(t.Name(), fmt.Errorf("task_id is required")).WithType(ToolErrorInvalidInput)
	}

	req := models.NewTaskExecutionRequest(newToolCallID(), input.TaskID, input.InputValues)
	exec, err := t.dispatcher.DispatchTask(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(exec)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: string(body), IsError: exec.Status == models.TaskStatusFailed}, nil
}
