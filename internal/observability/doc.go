// Package observability provides comprehensive monitoring and debugging capabilities
// for the agent runtime through metrics, structured logging, and distributed tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: Minimal performance impact on production systems
//   - Type-safe: Strongly-typed APIs reduce configuration errors
//   - Production-ready: Built-in security (redaction) and reliability features
//   - Standards-based: Uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Agent turns (per agent, by outcome)
//   - Tool call latency and outcome
//   - Approval decisions (auto/manual, approved/denied)
//   - Active agent worker counts
//   - HTTP request/response metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	// Track a completed turn
//	metrics.RecordTurn(agentID, "completed")
//
//	// Track a tool call
//	start := time.Now()
//	// ... execute tool ...
//	metrics.RecordToolCall("run_shell", "success", time.Since(start).Seconds())
//
//	// Track an approval decision
//	metrics.RecordApproval("run_shell", "approved")
//
//	// Track worker lifecycle
//	metrics.AgentStarted()
//	defer metrics.AgentStopped()
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	// Add context IDs for correlation
//	ctx := observability.AddRequestID(ctx, requestID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//	ctx = observability.AddAgentID(ctx, agentID)
//
//	// Structured logging with automatic context correlation
//	logger.Info(ctx, "tool call completed",
//	    "tool_name", "read_file",
//	    "bytes", 1024,
//	)
//
//	// Error logging with automatic redaction
//	logger.Error(ctx, "generate request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across components:
//   - End-to-end turn visualization
//   - Performance bottleneck identification
//   - Tool and generate call dependency mapping
//   - Error correlation across an agent's iterations
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "conductor",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4318", // OTLP/HTTP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	// Trace a turn
//	ctx, span := tracer.TraceTurn(ctx, agentID, sessionID)
//	defer span.End()
//
//	// Trace an iteration within the turn
//	ctx, iterSpan := tracer.TraceIteration(ctx, agentID, iteration)
//	defer iterSpan.End()
//
//	// Trace a generate call
//	ctx, genSpan := tracer.TraceGenerate(ctx, "anthropic", "claude-3-opus")
//	defer genSpan.End()
//	tracer.SetAttributes(genSpan, "prompt_tokens", 100, "completion_tokens", 500)
//
//	// Trace tool execution
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "run_shell")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	// Add IDs to context
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//	ctx = observability.AddAgentID(ctx, "main")
//
//	// IDs automatically appear in logs
//	logger.Info(ctx, "turn started") // Includes request_id, session_id, agent_id
//
//	// Spans inherit context
//	ctx, span := tracer.Start(ctx, "operation")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating all three components around one turn:
//
//	func RunTurn(ctx context.Context, agentID, sessionID, userText string) error {
//	    // Add correlation IDs
//	    ctx = observability.AddRequestID(ctx, generateID())
//	    ctx = observability.AddSessionID(ctx, sessionID)
//	    ctx = observability.AddAgentID(ctx, agentID)
//
//	    // Start tracing
//	    ctx, span := tracer.TraceTurn(ctx, agentID, sessionID)
//	    defer span.End()
//
//	    // Track metrics
//	    metrics.AgentStarted()
//	    defer metrics.AgentStopped()
//
//	    // Structured logging
//	    logger.Info(ctx, "turn started", "content_length", len(userText))
//
//	    // Generate with full observability
//	    genStart := time.Now()
//	    ctx, genSpan := tracer.TraceGenerate(ctx, "anthropic", "claude-3-opus")
//	    defer genSpan.End()
//
//	    response, err := generator.Generate(ctx, userText)
//	    genDuration := time.Since(genStart).Seconds()
//
//	    if err != nil {
//	        tracer.RecordError(genSpan, err)
//	        logger.Error(ctx, "generate request failed", "error", err)
//	        metrics.RecordTurn(agentID, "error")
//	        return err
//	    }
//
//	    metrics.RecordTurn(agentID, "completed")
//	    logger.Info(ctx, "turn completed",
//	        "duration_ms", genDuration*1000,
//	        "tokens", response.OutputTokens)
//
//	    return nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "conductor",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	        "deployment.cluster": cluster,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic systems
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Turn throughput
//	rate(conductor_turns_total[5m])
//
//	# Tool call latency (95th percentile)
//	histogram_quantile(0.95, rate(conductor_tool_execution_duration_seconds_bucket[5m]))
//
//	# Approval rate
//	rate(conductor_approvals_total{decision="denied"}[5m])
//
//	# Active agent workers
//	conductor_active_agents
//
//	# Tool execution time
//	rate(conductor_tool_execution_duration_seconds_sum[5m]) /
//	rate(conductor_tool_execution_duration_seconds_count[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High turn error rate: rate(conductor_turns_total{outcome="error"}[5m]) > threshold
//   - High tool latency: p95 conductor_tool_execution_duration_seconds > 10s
//   - Low turn throughput: rate(conductor_turns_total[5m]) < threshold
//   - Worker accumulation: conductor_active_agents growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
