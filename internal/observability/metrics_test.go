package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// NewMetrics registers against the default Prometheus registry, so all
// assertions run against one shared instance to avoid duplicate
// registration panics across test functions.
var testMetrics = NewMetrics()

func TestRecordTurn(t *testing.T) {
	testMetrics.RecordTurn("main", "completed")
	testMetrics.RecordTurn("main", "error")
	if count := testutil.CollectAndCount(testMetrics.TurnCounter); count < 2 {
		t.Errorf("expected at least 2 label combinations, got %d", count)
	}
}

func TestRecordToolCall(t *testing.T) {
	testMetrics.RecordToolCall("read_file", "success", 0.05)
	testMetrics.RecordToolCall("run_shell", "denied", 0.0)
	if count := testutil.CollectAndCount(testMetrics.ToolCallCounter); count < 2 {
		t.Errorf("expected at least 2 label combinations, got %d", count)
	}
	if count := testutil.CollectAndCount(testMetrics.ToolExecutionDuration); count < 1 {
		t.Error("expected tool execution duration to have observations")
	}
}

func TestRecordApproval(t *testing.T) {
	testMetrics.RecordApproval("write_file", "approved")
	testMetrics.RecordApproval("write_file", "denied")
	if count := testutil.CollectAndCount(testMetrics.ApprovalCounter); count < 2 {
		t.Errorf("expected at least 2 label combinations, got %d", count)
	}
}

func TestAgentStartedStopped(t *testing.T) {
	testMetrics.AgentStarted()
	testMetrics.AgentStarted()
	testMetrics.AgentStopped()
	if got := testutil.ToFloat64(testMetrics.ActiveAgents); got != 1 {
		t.Errorf("expected active agents gauge 1, got %v", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	testMetrics.RecordHTTPRequest("GET", "/healthz", "200", 0.002)
	if count := testutil.CollectAndCount(testMetrics.HTTPRequestDuration); count < 1 {
		t.Error("expected http request duration to have observations")
	}
}
