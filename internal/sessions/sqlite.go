package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Crestview-Labs/metagen-sub001/pkg/models"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a local SQLite database, for
// deployments that need sessions and message history to survive a
// restart without standing up a separate database server.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at
// path and ensures its schema exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid pool contention

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_agent_id ON sessions(agent_id);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
	`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now()
	session.CreatedAt, session.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, agent_id, key, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.AgentID, session.Key, session.CreatedAt, session.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	return s.scanOne(ctx, `SELECT id, agent_id, key, created_at, updated_at FROM sessions WHERE id = ?`, id)
}

func (s *SQLiteStore) GetByKey(ctx context.Context, key string) (*Session, error) {
	return s.scanOne(ctx, `SELECT id, agent_id, key, created_at, updated_at FROM sessions WHERE key = ?`, key)
}

func (s *SQLiteStore) scanOne(ctx context.Context, query string, arg string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, query, arg)
	var session Session
	if err := row.Scan(&session.ID, &session.AgentID, &session.Key, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("session not found")
		}
		return nil, err
	}
	return &session, nil
}

func (s *SQLiteStore) Update(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is required")
	}
	session.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET agent_id = ?, key = ?, updated_at = ? WHERE id = ?`,
		session.AgentID, session.Key, session.UpdatedAt, session.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("session not found")
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id)
	return err
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, key, agentID string) (*Session, error) {
	if existing, err := s.GetByKey(ctx, key); err == nil {
		return existing, nil
	}
	session := &Session{AgentID: agentID, Key: key}
	if err := s.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SQLiteStore) List(ctx context.Context, agentID string, opts ListOptions) ([]*Session, error) {
	query := `SELECT id, agent_id, key, created_at, updated_at FROM sessions`
	var args []any
	if agentID != "" {
		query += ` WHERE agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var session Session
		if err := rows.Scan(&session.ID, &session.AgentID, &session.Key, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &session)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendMessage(ctx context.Context, sessionID string, msg *models.Message) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, body, created_at) VALUES (?, ?, ?)`,
		sessionID, string(body), msg.Timestamp,
	)
	return err
}

func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]*models.Message, error) {
	query := `SELECT body FROM messages WHERE session_id = ? ORDER BY id ASC`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT body FROM (SELECT id, body FROM messages WHERE session_id = ? ORDER BY id DESC LIMIT ?) ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var msg models.Message
		if err := json.Unmarshal([]byte(body), &msg); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}
