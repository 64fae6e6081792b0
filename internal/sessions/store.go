// Package sessions persists conversation sessions and their message
// history behind a backend-agnostic Store interface.
package sessions

import (
	"context"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
)

// Session is one conversation thread between a user and an agent.
type Session struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the interface for session persistence. Concrete backends
// (in-memory, SQLite) implement it outside the agent runtime, which only
// depends on agent.MemoryStore (turn-level history, not raw messages).
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error

	GetByKey(ctx context.Context, key string) (*Session, error)
	GetOrCreate(ctx context.Context, key, agentID string) (*Session, error)
	List(ctx context.Context, agentID string, opts ListOptions) ([]*Session, error)

	AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error
	GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error)
}

// ListOptions configures session listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// SessionKey builds a unique session key scoping a conversation to one
// agent and one external identity (a user ID, a CLI invocation, etc).
func SessionKey(agentID, externalID string) string {
	return agentID + ":" + externalID
}
