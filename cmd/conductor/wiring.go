package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Crestview-Labs/metagen-sub001/internal/agent"
	"github.com/Crestview-Labs/metagen-sub001/internal/auth"
	"github.com/Crestview-Labs/metagen-sub001/internal/config"
	"github.com/Crestview-Labs/metagen-sub001/internal/cron"
	"github.com/Crestview-Labs/metagen-sub001/internal/manager"
	"github.com/Crestview-Labs/metagen-sub001/internal/memory"
	"github.com/Crestview-Labs/metagen-sub001/internal/observability"
	"github.com/Crestview-Labs/metagen-sub001/internal/sessions"
	"github.com/Crestview-Labs/metagen-sub001/internal/tools/exec"
	"github.com/Crestview-Labs/metagen-sub001/internal/tools/files"
	"github.com/Crestview-Labs/metagen-sub001/internal/tools/httpfetch"
	toolsessions "github.com/Crestview-Labs/metagen-sub001/internal/tools/sessions"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// runtime bundles the services a command needs to build an AgentManager
// and, for serve, the HTTP transport around it.
type runtime struct {
	cfg           *config.Config
	logger        *observability.Logger
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	shutdownTrace func(context.Context) error
	jwt           *auth.JWTService
	scheduler     *cron.Scheduler
	store         sessions.Store
	memory        *memory.Store
	approval      *agent.ApprovalChecker
	approvalStore *agent.MemoryApprovalStore
	execMgr       *exec.Manager
	manager       *manager.AgentManager
}

// newRuntime wires every dependency named in the configuration: session
// persistence, the approval checker and its pruning sweep, observability,
// and the agent manager itself. workspace scopes the filesystem/shell
// built-in tools.
func newRuntime(cfg *config.Config, workspace string) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	rt.logger = observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	rt.metrics = observability.NewMetrics()

	if cfg.Observability.Tracing.Enabled {
		tracer, shutdown := observability.NewTracer(observability.TraceConfig{
			ServiceName:    cfg.Observability.Tracing.ServiceName,
			ServiceVersion: version,
			Environment:    cfg.Observability.Tracing.Environment,
			Endpoint:       cfg.Observability.Tracing.Endpoint,
			SamplingRate:   cfg.Observability.Tracing.SamplingRate,
			Insecure:       cfg.Observability.Tracing.Insecure,
		})
		rt.tracer = tracer
		rt.shutdownTrace = shutdown
	}

	store, err := newSessionStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	rt.store = store
	rt.memory = memory.NewStore(store)

	rt.approvalStore = agent.NewMemoryApprovalStore()
	rt.approval = agent.NewApprovalChecker(approvalPolicyFromConfig(cfg))
	rt.approval.SetStore(rt.approvalStore)

	rt.scheduler = cron.NewScheduler(slog.Default())
	pruneTTL := cfg.Approval.RequestTTL
	if err := rt.scheduler.Register(cron.Job{
		ID:         "approval-prune",
		Expression: "@every 1m",
		Run: func(ctx context.Context) error {
			_, err := rt.approvalStore.Prune(ctx, pruneTTL)
			return err
		},
	}); err != nil {
		return nil, fmt.Errorf("register approval prune job: %w", err)
	}

	rt.execMgr = exec.NewManager(workspace)

	opts := agentOptionsFromConfig(cfg, rt)

	var mgr *manager.AgentManager
	deps := manager.Dependencies{
		NewMetaAgent: func(agentID, sessionID string, opts agent.Options) *agent.MetaAgent {
			registry := buildToolRegistry(rt, mgr, workspace)
			return agent.NewMetaAgent(agentID, sessionID, echoGenerator{}, registry, rt.memory, mgr, "", opts)
		},
		NewTaskAgent: func(agentID, sessionID string, def models.TaskDefinition, opts agent.Options) *agent.TaskAgent {
			registry := buildToolRegistry(rt, mgr, workspace)
			return agent.NewTaskAgent(agentID, sessionID, echoGenerator{}, registry, rt.memory, def, opts)
		},
		Approval: rt.approval,
		Options:  opts,
	}
	mgr = manager.New(deps)
	rt.manager = mgr

	if cfg.Auth.JWTSecret != "" {
		rt.jwt = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	}

	rt.scheduler.Start()

	return rt, nil
}

// Close stops the scheduler and flushes the tracer, if tracing is enabled.
func (rt *runtime) Close(ctx context.Context) error {
	if err := rt.scheduler.Stop(ctx); err != nil {
		rt.logger.Warn(ctx, "scheduler stop", "error", err)
	}
	if rt.shutdownTrace != nil {
		return rt.shutdownTrace(ctx)
	}
	return nil
}

func newSessionStore(cfg *config.Config) (sessions.Store, error) {
	switch cfg.Memory.Backend {
	case "sqlite":
		return sessions.OpenSQLiteStore(cfg.Memory.SQLitePath)
	case "memory", "":
		return sessions.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Memory.Backend)
	}
}

func approvalPolicyFromConfig(cfg *config.Config) *agent.ApprovalPolicy {
	decision := agent.ApprovalPending
	switch cfg.Approval.DefaultDecision {
	case "allow":
		decision = agent.ApprovalAllowed
	case "deny":
		decision = agent.ApprovalDenied
	}
	return &agent.ApprovalPolicy{
		Allowlist:       cfg.Approval.Allowlist,
		Denylist:        cfg.Approval.Denylist,
		RequireApproval: []string{"write_file", "run_shell"},
		DefaultDecision: decision,
		RequestTTL:      cfg.Approval.RequestTTL,
	}
}

func agentOptionsFromConfig(cfg *config.Config, rt *runtime) agent.Options {
	return agent.Options{
		MaxIterations:    cfg.Loop.MaxIterations,
		MaxToolCalls:     cfg.Loop.MaxToolCalls,
		MaxRepeatedCalls: cfg.Loop.MaxRepeatedCalls,
		MaxToolsPerTurn:  cfg.Loop.MaxToolsPerTurn,
		ToolConcurrency:  cfg.Loop.ToolConcurrency,
		ToolTimeout:      cfg.Loop.ToolTimeout,
		ApprovalTimeout:  cfg.Loop.ApprovalTimeout,
		ApprovalChecker:  rt.approval,
		Logger:           slog.Default(),
	}
}

// buildToolRegistry assembles the built-in tools available to a freshly
// constructed agent: workspace-scoped file I/O, a sandboxed shell,
// outbound HTTP, and session introspection/messaging. Each agent gets
// its own registry instance so MetaAgent's delegation tools are scoped
// to the dispatcher that created it, even though the underlying manager
// and session store are shared.
func buildToolRegistry(rt *runtime, submitter toolsessions.Submitter, workspace string) *agent.ToolRegistry {
	registry := agent.NewToolRegistry()

	filesCfg := files.Config{Workspace: workspace}
	_ = registry.Register(files.NewReadTool(filesCfg))
	_ = registry.Register(files.NewWriteTool(filesCfg))
	_ = registry.Register(files.NewEditTool(filesCfg))
	_ = registry.Register(files.NewApplyPatchTool(filesCfg))
	_ = registry.Register(exec.NewExecTool("run_shell", rt.execMgr))
	_ = registry.Register(exec.NewProcessTool(rt.execMgr))
	_ = registry.Register(httpfetch.NewTool(httpfetch.Config{}))

	_ = registry.Register(toolsessions.NewListTool(rt.store, "main"))
	_ = registry.Register(toolsessions.NewHistoryTool(rt.store))
	_ = registry.Register(toolsessions.NewStatusTool(rt.store))
	_ = registry.Register(toolsessions.NewSendTool(rt.store, submitter, "main"))

	return registry
}
