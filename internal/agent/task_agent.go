package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// TaskAgent executes one TaskDefinition at a time. Its identity is
// deterministic (task-exec-<task_id>, set by models.NewTaskExecutionRequest)
// so repeated dispatches of the same definition correlate to the same
// agent across restarts rather than spawning a fresh identity per call.
type TaskAgent struct {
	loop *Loop
	def  models.TaskDefinition
}

// NewTaskAgent builds the agent for one TaskDefinition. The registry
// passed in should already contain whatever tools this task is allowed
// to use; TaskAgent does not register delegation tools of its own, since
// a task agent performs its work directly rather than delegating further.
func NewTaskAgent(agentID, sessionID string, generator Generator, registry *ToolRegistry, memory MemoryStore, def models.TaskDefinition, opts Options) *TaskAgent {
	prompt := renderTaskPrompt(def)
	return &TaskAgent{
		loop: NewLoop(agentID, sessionID, generator, registry, memory, prompt, opts),
		def:  def,
	}
}

// Execute runs the task to completion against the given input values,
// tracking progress in a TaskExecution the caller can persist via
// MemoryStore.RecordTaskExecution.
func (t *TaskAgent) Execute(ctx context.Context, req *models.TaskExecutionRequest, out chan<- *models.Message) (*models.TaskExecution, error) {
	exec := &models.TaskExecution{
		ID:        req.ID,
		TaskID:    req.TaskID,
		AgentID:   req.AgentID,
		Status:    models.TaskStatusInProgress,
		StartedAt: time.Now(),
	}

	userText := renderTaskInvocation(t.def, req.InputValues)

	err := t.loop.Run(ctx, userText, out)
	exec.CompletedAt = time.Now()
	if err != nil {
		exec.Status = models.TaskStatusFailed
		exec.ErrorMessage = err.Error()
		return exec, err
	}

	exec.Status = models.TaskStatusCompleted
	exec.StepsCompleted = append(exec.StepsCompleted, "generate")
	return exec, nil
}

func renderTaskPrompt(def models.TaskDefinition) string {
	var b strings.Builder
	b.WriteString("You are a task-execution agent. Perform exactly the following task and nothing else:\n\n")
	b.WriteString(def.Instructions)
	if len(def.OutputParams) > 0 {
		b.WriteString("\n\nReturn your result with these fields: ")
		names := make([]string, 0, len(def.OutputParams))
		for _, p := range def.OutputParams {
			names = append(names, p.Name)
		}
		b.WriteString(strings.Join(names, ", "))
	}
	return b.String()
}

func renderTaskInvocation(def models.TaskDefinition, inputValues map[string]any) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Execute task %q with the following inputs:\n", def.Name))
	for _, p := range def.InputParameters {
		value, ok := inputValues[p.Name]
		if !ok {
			value = p.Default
		}
		b.WriteString(fmt.Sprintf("- %s: %v\n", p.Name, value))
	}
	return b.String()
}
