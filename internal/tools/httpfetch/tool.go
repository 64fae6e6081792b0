// Package httpfetch implements the auto-approved http_fetch built-in
// tool: an outbound GET request with a bounded response size.
package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/internal/agent"
)

// Config controls the tool's HTTP client defaults.
type Config struct {
	Timeout     time.Duration
	MaxBodyLen  int
	AllowedHost []string // empty means any host is allowed
}

// Tool fetches a URL over HTTP GET and returns a truncated response
// body. Unlike run_shell/write_file it is auto-approved by default
// (see agent.ApprovalPolicy.Allowlist), since an outbound GET has no
// local side effects.
type Tool struct {
	client       *http.Client
	maxBodyLen   int
	allowedHosts []string
}

// NewTool creates an http_fetch tool.
func NewTool(cfg Config) *Tool {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxBody := cfg.MaxBodyLen
	if maxBody <= 0 {
		maxBody = 200000
	}
	return &Tool{
		client:       &http.Client{Timeout: timeout},
		maxBodyLen:   maxBody,
		allowedHosts: cfg.AllowedHost,
	}
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return "http_fetch"
}

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Fetch a URL over HTTP GET and return the response body, truncated to a byte limit."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to fetch (http or https).",
			},
			"max_bytes": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum response bytes to return (capped by tool default).",
				"minimum":     0,
			},
		},
		"required": []string{"url"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute performs the GET request.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		URL      string `json:"url"`
		MaxBytes int    `json:"max_bytes"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.URL) == "" {
		return toolError("url is required"), nil
	}

	parsed, err := url.Parse(input.URL)
	if err != nil {
		return toolError(fmt.Sprintf("invalid url: %v", err)), nil
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return toolError("url must use http or https"), nil
	}
	if len(t.allowedHosts) > 0 && !matchesHost(t.allowedHosts, parsed.Hostname()) {
		return toolError(fmt.Sprintf("host %q is not in the allowed list", parsed.Hostname())), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return toolError(fmt.Sprintf("build request: %v", err)), nil
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return toolError(fmt.Sprintf("request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	limit := t.maxBodyLen
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return toolError(fmt.Sprintf("read response: %v", err)), nil
	}
	truncated := len(body) > limit
	if truncated {
		body = body[:limit]
	}

	result := map[string]interface{}{
		"url":         input.URL,
		"status_code": resp.StatusCode,
		"content":     string(body),
		"bytes":       len(body),
		"truncated":   truncated,
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return &agent.ToolResult{Content: string(payload), IsError: resp.StatusCode >= 400}, nil
}

func matchesHost(allowed []string, host string) bool {
	for _, h := range allowed {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}

func toolError(message string) *agent.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &agent.ToolResult{Content: message, IsError: true}
	}
	return &agent.ToolResult{Content: string(payload), IsError: true}
}
