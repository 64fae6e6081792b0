package agent

import (
	"context"
	"testing"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

func TestApprovalCheckerCheck(t *testing.T) {
	tests := []struct {
		name     string
		policy   *ApprovalPolicy
		toolName string
		want     ApprovalDecision
	}{
		{
			name:     "allowlisted tool is allowed",
			policy:   &ApprovalPolicy{Allowlist: []string{"read_file"}},
			toolName: "read_file",
			want:     ApprovalAllowed,
		},
		{
			name:     "denylisted tool is denied even if also allowlisted",
			policy:   &ApprovalPolicy{Allowlist: []string{"*"}, Denylist: []string{"run_shell"}},
			toolName: "run_shell",
			want:     ApprovalDenied,
		},
		{
			name:     "require_approval tool is pending",
			policy:   &ApprovalPolicy{RequireApproval: []string{"write_file"}},
			toolName: "write_file",
			want:     ApprovalPending,
		},
		{
			name:     "wildcard prefix pattern matches",
			policy:   &ApprovalPolicy{Allowlist: []string{"read_*"}},
			toolName: "read_file",
			want:     ApprovalAllowed,
		},
		{
			name:     "default decision applies when nothing matches",
			policy:   &ApprovalPolicy{DefaultDecision: ApprovalAllowed},
			toolName: "http_fetch",
			want:     ApprovalAllowed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checker := NewApprovalChecker(tc.policy)
			got, _ := checker.Check("agent-1", tc.toolName)
			if got != tc.want {
				t.Fatalf("Check() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestApprovalCheckerPerAgentPolicyOverride(t *testing.T) {
	checker := NewApprovalChecker(&ApprovalPolicy{DefaultDecision: ApprovalPending})
	checker.SetAgentPolicy("task-exec-1", &ApprovalPolicy{DefaultDecision: ApprovalAllowed})

	if got, _ := checker.Check("other-agent", "run_shell"); got != ApprovalPending {
		t.Fatalf("unaffected agent Check() = %s, want pending", got)
	}
	if got, _ := checker.Check("task-exec-1", "run_shell"); got != ApprovalAllowed {
		t.Fatalf("overridden agent Check() = %s, want allowed", got)
	}
}

func TestApprovalCheckerLifecycleWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	checker := NewApprovalChecker(nil)
	checker.SetStore(NewMemoryApprovalStore())

	req, err := checker.CreateApprovalRequest(ctx, "agent-1", "session-1", models.ToolCall{ID: "call-1", Name: "run_shell"}, "needs review")
	if err != nil {
		t.Fatalf("CreateApprovalRequest() error = %v", err)
	}

	pending, err := checker.GetPendingRequests(ctx, "agent-1")
	if err != nil || len(pending) != 1 {
		t.Fatalf("GetPendingRequests() = %v, %v, want 1 pending", pending, err)
	}

	if err := checker.Approve(ctx, req.ID, "reviewer-1"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	pending, err = checker.GetPendingRequests(ctx, "agent-1")
	if err != nil || len(pending) != 0 {
		t.Fatalf("GetPendingRequests() after approval = %v, %v, want none pending", pending, err)
	}
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		toolName string
		want     bool
	}{
		{"empty patterns", nil, "read_file", false},
		{"exact match", []string{"read_file"}, "read_file", true},
		{"wildcard matches everything", []string{"*"}, "anything", true},
		{"prefix wildcard", []string{"read_*"}, "read_file", true},
		{"prefix wildcard no match", []string{"read_*"}, "write_file", false},
		{"suffix wildcard", []string{"*_file"}, "write_file", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := matchesPattern(tc.patterns, tc.toolName); got != tc.want {
				t.Fatalf("matchesPattern(%v, %q) = %v, want %v", tc.patterns, tc.toolName, got, tc.want)
			}
		})
	}
}
