// Package memory persists conversation history per session and hands out
// the per-session locks that serialize turns.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/internal/log"
)

// Role identifies the author of a message.
type Role string

// Valid message roles. The messages table enforces the same set.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one conversation turn entry.
type Message struct {
	ID        int64
	SessionID uuid.UUID
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Store manages conversation history backed by PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewStore creates a conversation memory Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:   pool,
		logger: logger.With("component", "memory"),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}, nil
}

// Append records one message for the session. The insert is synchronous:
// when Append returns nil the message is durable.
func (s *Store) Append(ctx context.Context, sessionID uuid.UUID, role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role: %q", role)
	}
	if content == "" {
		return fmt.Errorf("content is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, string(role), content,
	)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	return nil
}

// RecentContext returns the most recent limit messages for the session in
// chronological order. A session with no history yields an empty slice.
func (s *Store) RecentContext(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM messages
		 WHERE session_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Reset deletes the session's history. Resetting a session with no
// history succeeds.
func (s *Store) Reset(ctx context.Context, sessionID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("resetting session %s: %w", sessionID, err)
	}
	return nil
}

// ResetAll deletes every session's history.
func (s *Store) ResetAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM messages`)
	if err != nil {
		return fmt.Errorf("resetting all sessions: %w", err)
	}
	s.logger.Info("conversation memory reset")
	return nil
}

// SessionLock returns the mutex serializing turns for the session,
// creating it on first use. The same session always gets the same mutex.
func (s *Store) SessionLock(sessionID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks == nil {
		s.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}
