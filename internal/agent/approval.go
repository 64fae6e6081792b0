package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// ApprovalDecision is the result of evaluating a tool call against an
// ApprovalPolicy.
type ApprovalDecision string

const (
	ApprovalAllowed ApprovalDecision = "allowed"
	ApprovalDenied  ApprovalDecision = "denied"
	ApprovalPending ApprovalDecision = "pending"
)

// ApprovalRequest is a persisted record of a tool call awaiting a human
// decision.
type ApprovalRequest struct {
	ID         string
	ToolCallID string
	ToolName   string
	AgentID    string
	SessionID  string
	Reason     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Decision   ApprovalDecision
	DecidedAt  time.Time
	DecidedBy  string
}

// ApprovalPolicy configures which tools are auto-allowed, auto-denied,
// or require a pending decision.
type ApprovalPolicy struct {
	// Allowlist tools never require approval. Supports "*", "prefix*",
	// and "*suffix" patterns.
	Allowlist []string `yaml:"allowlist" json:"allowlist"`

	// Denylist tools are never executed.
	Denylist []string `yaml:"denylist" json:"denylist"`

	// RequireApproval tools always need a pending decision, even if they
	// would otherwise match the default.
	RequireApproval []string `yaml:"require_approval" json:"require_approval"`

	// DefaultDecision applies when no list matches (default: pending).
	DefaultDecision ApprovalDecision `yaml:"default_decision" json:"default_decision"`

	// RequestTTL bounds how long a pending request stays valid.
	RequestTTL time.Duration `yaml:"request_ttl" json:"request_ttl"`
}

// DefaultApprovalPolicy returns a policy requiring approval by default.
func DefaultApprovalPolicy() *ApprovalPolicy {
	return &ApprovalPolicy{
		DefaultDecision: ApprovalPending,
		RequestTTL:      5 * time.Minute,
	}
}

// ApprovalStore persists pending approval requests.
type ApprovalStore interface {
	Create(ctx context.Context, req *ApprovalRequest) error
	Get(ctx context.Context, id string) (*ApprovalRequest, error)
	Update(ctx context.Context, req *ApprovalRequest) error
	ListPending(ctx context.Context, agentID string) ([]*ApprovalRequest, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ApprovalChecker evaluates tool calls against per-agent policies and
// manages the lifecycle of pending approval requests.
type ApprovalChecker struct {
	mu            sync.RWMutex
	agentPolicies map[string]*ApprovalPolicy
	defaultPolicy *ApprovalPolicy
	store         ApprovalStore
}

// NewApprovalChecker creates a checker with the given default policy
// (DefaultApprovalPolicy if nil).
func NewApprovalChecker(defaultPolicy *ApprovalPolicy) *ApprovalChecker {
	return &ApprovalChecker{
		agentPolicies: make(map[string]*ApprovalPolicy),
		defaultPolicy: normalizeApprovalPolicy(defaultPolicy),
	}
}

// SetStore sets the store used to persist pending requests.
func (c *ApprovalChecker) SetStore(store ApprovalStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = store
}

// SetAgentPolicy overrides the default policy for one agent.
func (c *ApprovalChecker) SetAgentPolicy(agentID string, policy *ApprovalPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agentPolicies[agentID] = normalizeApprovalPolicy(policy)
}

// PolicyFor returns the effective (read-only) policy for agentID.
func (c *ApprovalChecker) PolicyFor(agentID string) *ApprovalPolicy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.agentPolicies[agentID]; ok && p != nil {
		return p
	}
	return c.defaultPolicy
}

// Check evaluates a tool call and returns the decision plus a short
// human-readable reason.
func (c *ApprovalChecker) Check(agentID string, toolName string) (ApprovalDecision, string) {
	policy := c.PolicyFor(agentID)

	if matchesPattern(policy.Denylist, toolName) {
		return ApprovalDenied, "tool in denylist"
	}
	if matchesPattern(policy.Allowlist, toolName) {
		return ApprovalAllowed, "tool in allowlist"
	}
	if matchesPattern(policy.RequireApproval, toolName) {
		return ApprovalPending, "tool requires approval"
	}
	if policy.DefaultDecision == "" {
		return ApprovalPending, "default policy"
	}
	return policy.DefaultDecision, "default policy"
}

// CreateApprovalRequest persists a pending request for toolCall and
// returns it alongside the ApprovalRequest message payload a transport
// would send to the reviewer.
func (c *ApprovalChecker) CreateApprovalRequest(ctx context.Context, agentID, sessionID string, toolCall models.ToolCall, reason string) (*ApprovalRequest, error) {
	c.mu.RLock()
	policy := c.PolicyFor(agentID)
	store := c.store
	c.mu.RUnlock()

	ttl := policy.RequestTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	req := &ApprovalRequest{
		ID:         toolCall.ID + "-approval",
		ToolCallID: toolCall.ID,
		ToolName:   toolCall.Name,
		AgentID:    agentID,
		SessionID:  sessionID,
		Reason:     reason,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(ttl),
		Decision:   ApprovalPending,
	}

	if store != nil {
		if err := store.Create(ctx, req); err != nil {
			return nil, err
		}
	}
	return req, nil
}

// Approve records an approval decision for a pending request.
func (c *ApprovalChecker) Approve(ctx context.Context, requestID, decidedBy string) error {
	return c.decide(ctx, requestID, ApprovalAllowed, decidedBy)
}

// Deny records a rejection decision for a pending request.
func (c *ApprovalChecker) Deny(ctx context.Context, requestID, decidedBy string) error {
	return c.decide(ctx, requestID, ApprovalDenied, decidedBy)
}

func (c *ApprovalChecker) decide(ctx context.Context, requestID string, decision ApprovalDecision, decidedBy string) error {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		return nil
	}
	req, err := store.Get(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return nil
	}
	req.Decision = decision
	req.DecidedAt = time.Now()
	req.DecidedBy = decidedBy
	return store.Update(ctx, req)
}

// GetPendingRequests returns all pending requests for agentID.
func (c *ApprovalChecker) GetPendingRequests(ctx context.Context, agentID string) ([]*ApprovalRequest, error) {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		return nil, nil
	}
	return store.ListPending(ctx, agentID)
}

// matchesPattern reports whether toolName matches any of patterns.
// Supports exact match, "*", "prefix*", and "*suffix".
func matchesPattern(patterns []string, toolName string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if pattern == "*" || pattern == toolName {
			return true
		}
		if strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(toolName, pattern[:len(pattern)-1]) {
				return true
			}
		}
		if strings.HasPrefix(pattern, "*") {
			if strings.HasSuffix(toolName, pattern[1:]) {
				return true
			}
		}
	}
	return false
}

func normalizeApprovalPolicy(policy *ApprovalPolicy) *ApprovalPolicy {
	defaults := DefaultApprovalPolicy()
	if policy == nil {
		return defaults
	}
	merged := *policy
	if merged.DefaultDecision == "" {
		merged.DefaultDecision = defaults.DefaultDecision
	}
	if merged.RequestTTL <= 0 {
		merged.RequestTTL = defaults.RequestTTL
	}
	return &merged
}

// MemoryApprovalStore is a thread-safe in-memory ApprovalStore, suitable
// for tests and single-instance deployments without the sqlite backend.
type MemoryApprovalStore struct {
	mu       sync.RWMutex
	requests map[string]*ApprovalRequest
}

// NewMemoryApprovalStore creates an empty in-memory store.
func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{requests: make(map[string]*ApprovalRequest)}
}

func (s *MemoryApprovalStore) Create(ctx context.Context, req *ApprovalRequest) error {
	if req == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryApprovalStore) Get(ctx context.Context, id string) (*ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests[id], nil
}

func (s *MemoryApprovalStore) Update(ctx context.Context, req *ApprovalRequest) error {
	if req == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryApprovalStore) ListPending(ctx context.Context, agentID string) ([]*ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ApprovalRequest
	now := time.Now()
	for _, req := range s.requests {
		if req.Decision != ApprovalPending {
			continue
		}
		if !req.ExpiresAt.IsZero() && req.ExpiresAt.Before(now) {
			continue
		}
		if agentID != "" && req.AgentID != agentID {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (s *MemoryApprovalStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var pruned int64
	for id, req := range s.requests {
		if req.CreatedAt.Before(cutoff) {
			delete(s.requests, id)
			pruned++
		}
	}
	return pruned, nil
}
