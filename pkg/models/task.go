package models

import "time"

// TaskParameter describes one named input or output value of a
// TaskDefinition.
type TaskParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, number, bool, list, ...
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// TaskDefinition is a named, reusable unit of work the meta agent can
// dispatch via execute_task. Instructions is a parameterized prompt
// template; InputParameters/OutputParameters give it a typed schema so
// list_tasks/create_task can present and validate it like a tool.
type TaskDefinition struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Instructions    string          `json:"instructions"`
	InputParameters []TaskParameter `json:"input_parameters,omitempty"`
	OutputParams    []TaskParameter `json:"output_parameters,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TaskExecutionStatus tracks the lifecycle of one dispatch of a
// TaskDefinition to the task agent.
type TaskExecutionStatus string

const (
	TaskStatusPending    TaskExecutionStatus = "pending"
	TaskStatusInProgress TaskExecutionStatus = "in_progress"
	TaskStatusCompleted  TaskExecutionStatus = "completed"
	TaskStatusFailed     TaskExecutionStatus = "failed"
)

// TaskExecutionRequest is what the agent manager's execute_task
// interceptor builds from a TaskDefinition lookup plus the caller's
// input values, and hands to the task agent.
type TaskExecutionRequest struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"task_id"`
	InputValues map[string]any `json:"input_values"`
	AgentID     string         `json:"agent_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTaskExecutionRequest builds a request with the task agent's
// deterministic identity, so repeated executions of the same task
// definition correlate to the same agent ID across restarts.
func NewTaskExecutionRequest(id, taskID string, inputValues map[string]any) *TaskExecutionRequest {
	return &TaskExecutionRequest{
		ID:          id,
		TaskID:      taskID,
		InputValues: inputValues,
		AgentID:     "task-exec-" + taskID,
		CreatedAt:   time.Now(),
	}
}

// TaskExecution tracks one in-flight or completed dispatch for
// observability: progress, step history, and result.
type TaskExecution struct {
	ID             string              `json:"id"`
	TaskID         string              `json:"task_id"`
	AgentID        string              `json:"agent_id"`
	Status         TaskExecutionStatus `json:"status"`
	StepsCompleted []string            `json:"steps_completed,omitempty"`
	CurrentStep    string              `json:"current_step,omitempty"`
	Result         string              `json:"result,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	ToolCallsCount int                 `json:"tool_calls_count,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at,omitempty"`
}
