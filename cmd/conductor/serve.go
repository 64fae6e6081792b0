package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Crestview-Labs/metagen-sub001/internal/auth"
	"github.com/Crestview-Labs/metagen-sub001/internal/config"
	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// buildServeCmd creates the "serve" command: an HTTP/SSE server exposing
// POST /chat/stream and POST /approval-response on Transport.HTTPPort
// (behind bearer auth, if Auth.JWTSecret is set), and a Prometheus
// /metrics endpoint on Transport.MetricsPort.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		workspace  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the conductor HTTP/SSE server",
		Long: `Start the conductor server: load configuration, build the agent
manager and its dependencies, and serve the chat/approval transport and
the metrics endpoint until a shutdown signal arrives.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, workspace)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration file (uses defaults if empty)")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "workspace root for file/shell tools")
	return cmd
}

func runServe(ctx context.Context, configPath, workspace string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := newRuntime(cfg, workspace)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.HTTPPort),
		Handler:           buildAPIHandler(rt),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Transport.Host, cfg.Transport.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		rt.logger.Info(ctx, "api server listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		rt.logger.Info(ctx, "metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	rt.logger.Info(context.Background(), "shutdown signal received, draining connections")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn(shutdownCtx, "api server shutdown", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn(shutdownCtx, "metrics server shutdown", "error", err)
	}
	return rt.Close(shutdownCtx)
}

func buildAPIHandler(rt *runtime) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/stream", chatStreamHandler(rt))
	mux.HandleFunc("/approval-response", approvalResponseHandler(rt))

	var handler http.Handler = mux
	handler = auth.RequireBearer(rt.jwt, slog.Default())(handler)
	return instrumentHTTP(rt, handler)
}

// instrumentHTTP records transport latency on Metrics.HTTPRequestDuration
// for every request, and opens an OpenTelemetry span when tracing is
// enabled.
func instrumentHTTP(rt *runtime, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if rt.tracer != nil {
			traceCtx, span := rt.tracer.TraceHTTPRequest(r.Context(), r.Method, r.URL.Path)
			defer span.End()
			r = r.WithContext(traceCtx)
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		rt.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// chatStreamHandler starts one conversation turn and streams every
// Message it produces back to the client as server-sent events.
func chatStreamHandler(rt *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			AgentID   string `json:"agent_id"`
			SessionID string `json:"session_id"`
			Message   string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.AgentID == "" {
			body.AgentID = "main"
		}
		if body.SessionID == "" {
			http.Error(w, "session_id is required", http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		out, err := rt.manager.Submit(r.Context(), body.AgentID, body.SessionID, body.Message)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		writer := bufio.NewWriter(w)
		for msg := range out {
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(writer, "event: %s\ndata: %s\n\n", msg.Type, payload)
			writer.Flush()
			flusher.Flush()
		}
	}
}

// approvalResponseHandler routes a human decision back to whichever
// tool batch is waiting on it.
func approvalResponseHandler(rt *runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var resp struct {
			RequestID string `json:"request_id"`
			Approved  bool   `json:"approved"`
			Feedback  string `json:"feedback"`
			DecidedBy string `json:"decided_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if user, ok := auth.UserFromContext(r.Context()); ok && resp.DecidedBy == "" {
			resp.DecidedBy = user.ID
		}

		err := rt.manager.HandleApprovalResponse(r.Context(), &models.ApprovalResponsePayload{
			RequestID: resp.RequestID,
			Approved:  resp.Approved,
			Feedback:  resp.Feedback,
			DecidedBy: resp.DecidedBy,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadConfigOrDefault(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return config.Load(path)
}
