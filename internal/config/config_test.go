package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Transport.Host != "0.0.0.0" {
		t.Errorf("expected default host 0.0.0.0, got %q", cfg.Transport.Host)
	}
	if cfg.Transport.HTTPPort != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.Transport.HTTPPort)
	}
	if cfg.Loop.MaxIterations != 25 {
		t.Errorf("expected default max iterations 25, got %d", cfg.Loop.MaxIterations)
	}
	if cfg.Approval.DefaultDecision != "pending" {
		t.Errorf("expected default decision 'pending', got %q", cfg.Approval.DefaultDecision)
	}
	if cfg.Memory.Backend != "memory" {
		t.Errorf("expected default memory backend 'memory', got %q", cfg.Memory.Backend)
	}
	if cfg.Tasks.PruneInterval != time.Minute {
		t.Errorf("expected default prune interval 1m, got %v", cfg.Tasks.PruneInterval)
	}
}

func TestLoad_AppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
transport:
  http_port: 9999
approval:
  default_decision: allow
  allowlist:
    - "read_*"
memory:
  backend: sqlite
  sqlite_path: /tmp/data.db
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport.HTTPPort != 9999 {
		t.Errorf("expected http_port 9999, got %d", cfg.Transport.HTTPPort)
	}
	if cfg.Transport.Host != "0.0.0.0" {
		t.Errorf("expected default host to still apply, got %q", cfg.Transport.Host)
	}
	if cfg.Approval.DefaultDecision != "allow" {
		t.Errorf("expected default_decision 'allow', got %q", cfg.Approval.DefaultDecision)
	}
	if len(cfg.Approval.Allowlist) != 1 || cfg.Approval.Allowlist[0] != "read_*" {
		t.Errorf("unexpected allowlist: %v", cfg.Approval.Allowlist)
	}
	if cfg.Memory.Backend != "sqlite" || cfg.Memory.SQLitePath != "/tmp/data.db" {
		t.Errorf("unexpected memory config: %+v", cfg.Memory)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("transport:\n  host: 127.0.0.1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONDUCTOR_HOST", "10.0.0.1")
	t.Setenv("CONDUCTOR_JWT_SECRET", "env-supplied-secret-value-long-enough")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transport.Host != "10.0.0.1" {
		t.Errorf("expected env override host 10.0.0.1, got %q", cfg.Transport.Host)
	}
	if cfg.Auth.JWTSecret != "env-supplied-secret-value-long-enough" {
		t.Errorf("expected env-supplied jwt secret, got %q", cfg.Auth.JWTSecret)
	}
}

func TestValidateConfig_ShortJWTSecret(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "too-short"
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for short jwt secret")
	}
}

func TestValidateConfig_DuplicateAPIKeys(t *testing.T) {
	cfg := Default()
	cfg.Auth.APIKeys = []APIKeyConfig{
		{Key: "abc", UserID: "u1"},
		{Key: "abc", UserID: "u2"},
	}
	err := validateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error for duplicate api keys")
	}
	var verr *ConfigValidationError
	if !asConfigValidationError(err, &verr) {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
}

func TestValidateConfig_InvalidApprovalDecision(t *testing.T) {
	cfg := Default()
	cfg.Approval.DefaultDecision = "maybe"
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for invalid approval decision")
	}
}

func TestValidateConfig_InvalidMemoryBackend(t *testing.T) {
	cfg := Default()
	cfg.Memory.Backend = "postgres"
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for unsupported memory backend")
	}
}

func TestValidateConfig_MissingDefaultProvider(t *testing.T) {
	cfg := Default()
	cfg.LLM.DefaultProvider = "openai"
	cfg.LLM.Providers = map[string]LLMProviderConfig{
		"anthropic": {APIKey: "key"},
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatal("expected validation error for missing default provider entry")
	}
}

func TestValidateConfig_Valid(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = "a-sufficiently-long-secret-value-123456"
	if err := validateConfig(cfg); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func asConfigValidationError(err error, target **ConfigValidationError) bool {
	if verr, ok := err.(*ConfigValidationError); ok {
		*target = verr
		return true
	}
	return false
}
