// Package config loads the runtime's YAML configuration file into a
// Config struct with one section per concern, applies defaults and
// environment overrides, and validates the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for a running instance: transport,
// auth, the agent loop, tool approval, observability, scheduled tasks,
// and memory persistence.
type Config struct {
	Transport     TransportConfig     `yaml:"transport"`
	Auth          AuthConfig          `yaml:"auth"`
	LLM           LLMConfig           `yaml:"llm"`
	Loop          LoopConfig          `yaml:"loop"`
	Approval      ApprovalConfig      `yaml:"approval"`
	Observability ObservabilityConfig `yaml:"observability"`
	Tasks         TasksConfig         `yaml:"tasks"`
	Memory        MemoryConfig        `yaml:"memory"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// TransportConfig configures the HTTP/SSE server.
type TransportConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// AuthConfig configures bearer-token authentication for the transport.
type AuthConfig struct {
	JWTSecret   string         `yaml:"jwt_secret"`
	TokenExpiry time.Duration  `yaml:"token_expiry"`
	APIKeys     []APIKeyConfig `yaml:"api_keys"`
}

// APIKeyConfig maps a static API key to the user it authenticates as.
type APIKeyConfig struct {
	Key    string `yaml:"key"`
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`
}

// LLMConfig configures the generator providers an agent can use.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
	FallbackChain   []string                     `yaml:"fallback_chain"`
}

// LLMProviderConfig configures one generator provider.
type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

// LoopConfig configures the bounded generate/tool-flow cycle an agent
// runs for each turn. These map directly onto agent.Options.
type LoopConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	MaxToolCalls     int           `yaml:"max_tool_calls"`
	MaxToolsPerTurn  int           `yaml:"max_tools_per_turn"`
	MaxRepeatedCalls int           `yaml:"max_repeated_calls"`
	ToolConcurrency  int           `yaml:"tool_concurrency"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	ApprovalTimeout  time.Duration `yaml:"approval_timeout"`
}

// ApprovalConfig controls tool approval policy.
type ApprovalConfig struct {
	// Allowlist contains tool name patterns that never require approval.
	// Supports "*" wildcards, e.g. "read_*", "mcp:*".
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tool name patterns that are always denied.
	Denylist []string `yaml:"denylist"`

	// DefaultDecision is applied when no allow/deny rule matches:
	// "allow", "deny", or "pending" (require approval).
	DefaultDecision string `yaml:"default_decision"`

	// RequestTTL is how long a pending approval request remains valid
	// before ApprovalStore.Prune expires it.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	Endpoint       string  `yaml:"endpoint"`
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	Insecure       bool    `yaml:"insecure"`
}

// TasksConfig configures the scheduled-task registry and its pruning
// sweep for expired approval requests.
type TasksConfig struct {
	Enabled         bool          `yaml:"enabled"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PruneInterval   time.Duration `yaml:"prune_interval"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	DefaultTimeout  time.Duration `yaml:"default_timeout"`
}

// MemoryConfig selects and configures the turn-persistence backend.
type MemoryConfig struct {
	// Backend selects the sessions.Store implementation: "memory" or
	// "sqlite".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path when Backend is "sqlite".
	SQLitePath string `yaml:"sqlite_path"`
}

// LoggingConfig configures the slog-based logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration file at path, resolving any $include
// directives, and decodes it into a Config.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with every default applied, for callers that
// don't load from a file (tests, the chat CLI's in-process mode).
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Transport.Host == "" {
		cfg.Transport.Host = "0.0.0.0"
	}
	if cfg.Transport.HTTPPort == 0 {
		cfg.Transport.HTTPPort = 8080
	}
	if cfg.Transport.MetricsPort == 0 {
		cfg.Transport.MetricsPort = 9090
	}

	if cfg.Auth.TokenExpiry == 0 {
		cfg.Auth.TokenExpiry = 24 * time.Hour
	}

	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}

	if cfg.Loop.MaxIterations == 0 {
		cfg.Loop.MaxIterations = 25
	}
	if cfg.Loop.MaxToolsPerTurn == 0 {
		cfg.Loop.MaxToolsPerTurn = 16
	}
	if cfg.Loop.MaxRepeatedCalls == 0 {
		cfg.Loop.MaxRepeatedCalls = 3
	}
	if cfg.Loop.ToolConcurrency == 0 {
		cfg.Loop.ToolConcurrency = 4
	}
	if cfg.Loop.ToolTimeout == 0 {
		cfg.Loop.ToolTimeout = 30 * time.Second
	}
	if cfg.Loop.ApprovalTimeout == 0 {
		cfg.Loop.ApprovalTimeout = 5 * time.Minute
	}

	if cfg.Approval.DefaultDecision == "" {
		cfg.Approval.DefaultDecision = "pending"
	}
	if cfg.Approval.RequestTTL == 0 {
		cfg.Approval.RequestTTL = 15 * time.Minute
	}

	if cfg.Tasks.PollInterval == 0 {
		cfg.Tasks.PollInterval = 10 * time.Second
	}
	if cfg.Tasks.PruneInterval == 0 {
		cfg.Tasks.PruneInterval = time.Minute
	}
	if cfg.Tasks.MaxConcurrency == 0 {
		cfg.Tasks.MaxConcurrency = 5
	}
	if cfg.Tasks.DefaultTimeout == 0 {
		cfg.Tasks.DefaultTimeout = 5 * time.Minute
	}

	if cfg.Memory.Backend == "" {
		cfg.Memory.Backend = "memory"
	}
	if cfg.Memory.SQLitePath == "" {
		cfg.Memory.SQLitePath = "conductor.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HOST")); value != "" {
		cfg.Transport.Host = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_HTTP_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Transport.HTTPPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_METRICS_PORT")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Transport.MetricsPort = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("JWT_SECRET")); value != "" {
		cfg.Auth.JWTSecret = value
	}
	if value := strings.TrimSpace(os.Getenv("CONDUCTOR_JWT_SECRET")); value != "" {
		cfg.Auth.JWTSecret = value
	}
}

// ConfigValidationError reports every issue found while validating a
// Config, rather than failing on the first one.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	if jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret); jwtSecret != "" && len(jwtSecret) < 32 {
		issues = append(issues, "auth.jwt_secret must be at least 32 characters for security")
	}
	seenKeys := map[string]struct{}{}
	for i, entry := range cfg.Auth.APIKeys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be set", i))
			continue
		}
		if _, ok := seenKeys[key]; ok {
			issues = append(issues, fmt.Sprintf("auth.api_keys[%d].key must be unique", i))
		}
		seenKeys[key] = struct{}{}
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" && len(cfg.LLM.Providers) > 0 {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	if cfg.Loop.MaxIterations < 0 {
		issues = append(issues, "loop.max_iterations must be >= 0")
	}
	if cfg.Loop.ToolConcurrency < 0 {
		issues = append(issues, "loop.tool_concurrency must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Approval.DefaultDecision)) {
	case "allow", "deny", "pending":
	default:
		issues = append(issues, "approval.default_decision must be \"allow\", \"deny\", or \"pending\"")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Memory.Backend)) {
	case "memory", "sqlite":
	default:
		issues = append(issues, "memory.backend must be \"memory\" or \"sqlite\"")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
