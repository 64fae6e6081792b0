package sessions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sessionstore "github.com/Crestview-Labs/metagen-sub001/internal/sessions"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// fakeSubmitter replies with a fixed agent message for every Submit call.
type fakeSubmitter struct {
	reply string
}

func (f fakeSubmitter) Submit(ctx context.Context, agentID, sessionID, userText string) (<-chan *models.Message, error) {
	ch := make(chan *models.Message, 2)
	ch <- &models.Message{Type: models.MessageAgent, Agent: &models.AgentPayload{Content: f.reply}}
	close(ch)
	return ch, nil
}

// ListTool tests

func TestNewListTool(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewListTool(store, "")
	if tool.defaultAgent != "main" {
		t.Errorf("expected default agent 'main', got %q", tool.defaultAgent)
	}
}

func TestListTool_Name(t *testing.T) {
	tool := NewListTool(nil, "")
	if tool.Name() != "sessions_list" {
		t.Errorf("expected 'sessions_list', got %q", tool.Name())
	}
}

func TestListTool_Description(t *testing.T) {
	tool := NewListTool(nil, "")
	if tool.Description() == "" {
		t.Error("expected non-empty description")
	}
}

func TestListTool_Schema(t *testing.T) {
	tool := NewListTool(nil, "")
	schema := tool.Schema()
	var parsed map[string]interface{}
	if err := json.Unmarshal(schema, &parsed); err != nil {
		t.Fatalf("schema should be valid JSON: %v", err)
	}
}

func TestListTool_Execute_NilStore(t *testing.T) {
	tool := NewListTool(nil, "main")
	params, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for nil store")
	}
}

func TestListTool_Execute_InvalidParams(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewListTool(store, "main")
	result, err := tool.Execute(context.Background(), json.RawMessage(`{invalid`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for invalid params")
	}
}

// HistoryTool tests

func TestHistoryTool_Name(t *testing.T) {
	tool := NewHistoryTool(nil)
	if tool.Name() != "sessions_history" {
		t.Errorf("expected 'sessions_history', got %q", tool.Name())
	}
}

func TestHistoryTool_Execute_NilStore(t *testing.T) {
	tool := NewHistoryTool(nil)
	params, _ := json.Marshal(map[string]interface{}{"session_id": "test"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for nil store")
	}
}

func TestHistoryTool_Execute_MissingSessionID(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewHistoryTool(store)
	params, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing session_id/session_key")
	}
}

// StatusTool tests

func TestStatusTool_Name(t *testing.T) {
	tool := NewStatusTool(nil)
	if tool.Name() != "session_status" {
		t.Errorf("expected 'session_status', got %q", tool.Name())
	}
}

func TestStatusTool_Execute_NilStore(t *testing.T) {
	tool := NewStatusTool(nil)
	params, _ := json.Marshal(map[string]interface{}{"session_id": "test"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for nil store")
	}
}

func TestStatusTool_Execute_MissingSessionID(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewStatusTool(store)
	params, _ := json.Marshal(map[string]interface{}{})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing session_id/session_key")
	}
}

// SendTool tests

func TestSendTool_Name(t *testing.T) {
	tool := NewSendTool(nil, nil, "main")
	if tool.Name() != "sessions_send" {
		t.Errorf("expected 'sessions_send', got %q", tool.Name())
	}
}

func TestSendTool_Execute_NilStore(t *testing.T) {
	tool := NewSendTool(nil, nil, "main")
	params, _ := json.Marshal(map[string]interface{}{"message": "hi"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for nil store")
	}
}

func TestSendTool_Execute_MissingSessionID(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewSendTool(store, fakeSubmitter{reply: "pong"}, "main")
	params, _ := json.Marshal(map[string]interface{}{"message": "hi"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing session_id/session_key")
	}
}

func TestSendTool_Execute_MissingMessage(t *testing.T) {
	store := sessionstore.NewMemoryStore()
	tool := NewSendTool(store, fakeSubmitter{reply: "pong"}, "main")
	params, _ := json.Marshal(map[string]interface{}{"session_id": "test"})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected error for missing message")
	}
}

func TestSessionsListHistoryStatus(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemoryStore()

	session, err := store.GetOrCreate(ctx, sessionstore.SessionKey("main", "user-1"), "main")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.AppendMessage(ctx, session.ID, &models.Message{
		Type:      models.MessageUser,
		Timestamp: time.Now(),
		User:      &models.UserPayload{Content: "hello"},
	}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	listTool := NewListTool(store, "main")
	params, _ := json.Marshal(map[string]interface{}{"agent_id": "main"})
	result, err := listTool.Execute(ctx, params)
	if err != nil || result.IsError {
		t.Fatalf("list execute failed: %v %+v", err, result)
	}

	historyTool := NewHistoryTool(store)
	params, _ = json.Marshal(map[string]interface{}{"session_id": session.ID})
	result, err = historyTool.Execute(ctx, params)
	if err != nil || result.IsError {
		t.Fatalf("history execute failed: %v %+v", err, result)
	}

	statusTool := NewStatusTool(store)
	params, _ = json.Marshal(map[string]interface{}{"session_key": session.Key})
	result, err = statusTool.Execute(ctx, params)
	if err != nil || result.IsError {
		t.Fatalf("status execute failed: %v %+v", err, result)
	}
}

func TestSessionsSendWaitsForResponse(t *testing.T) {
	ctx := context.Background()
	store := sessionstore.NewMemoryStore()
	session, err := store.GetOrCreate(ctx, sessionstore.SessionKey("main", "user-1"), "main")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	tool := NewSendTool(store, fakeSubmitter{reply: "pong"}, "main")
	params, _ := json.Marshal(map[string]interface{}{
		"session_id": session.ID,
		"message":    "ping",
	})
	result, err := tool.Execute(ctx, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content)
	}

	var decoded struct {
		Status   string `json:"status"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal([]byte(result.Content), &decoded); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if decoded.Status != "completed" {
		t.Errorf("expected status 'completed', got %q", decoded.Status)
	}
	if decoded.Response != "pong" {
		t.Errorf("expected response 'pong', got %q", decoded.Response)
	}
}
