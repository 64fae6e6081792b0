package agent

import "testing"

func TestMergeOptionsOverridesOnlyNonZero(t *testing.T) {
	base := DefaultOptions()
	override := Options{MaxIterations: 5}

	merged := mergeOptions(base, override)

	if merged.MaxIterations != 5 {
		t.Fatalf("MaxIterations = %d, want 5", merged.MaxIterations)
	}
	if merged.ToolConcurrency != base.ToolConcurrency {
		t.Fatalf("ToolConcurrency = %d, want unchanged %d", merged.ToolConcurrency, base.ToolConcurrency)
	}
	if merged.MaxToolsPerTurn != base.MaxToolsPerTurn {
		t.Fatalf("MaxToolsPerTurn = %d, want unchanged %d", merged.MaxToolsPerTurn, base.MaxToolsPerTurn)
	}
}

func TestMergeOptionsApprovalChecker(t *testing.T) {
	base := DefaultOptions()
	checker := NewApprovalChecker(nil)
	merged := mergeOptions(base, Options{ApprovalChecker: checker})

	if merged.ApprovalChecker != checker {
		t.Fatalf("ApprovalChecker not carried through merge")
	}
}

func TestToolResultGuardApplyRedactsSecrets(t *testing.T) {
	guard := ToolResultGuard{}
	out := guard.Apply("token: sk-abcdefghijklmnopqrstuvwx")
	if out == "token: sk-abcdefghijklmnopqrstuvwx" {
		t.Fatalf("Apply() did not redact an API-key-shaped secret")
	}
}

func TestToolResultGuardDisabledPassesThrough(t *testing.T) {
	guard := ToolResultGuard{Disabled: true}
	in := "token: sk-abcdefghijklmnopqrstuvwx"
	if out := guard.Apply(in); out != in {
		t.Fatalf("Apply() with Disabled modified content: got %q", out)
	}
}

func TestToolResultGuardTruncates(t *testing.T) {
	guard := ToolResultGuard{MaxContentLength: 5}
	out := guard.Apply("abcdefghij")
	if len(out) <= 5 {
		t.Fatalf("Apply() truncated output unexpectedly short: %q", out)
	}
	if out[:5] != "abcde" {
		t.Fatalf("Apply() truncated output = %q, want prefix %q", out, "abcde")
	}
}
