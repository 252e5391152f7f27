package store

import (
	"fmt"
	"time"

	"github.com/aidehq/aide/internal/core"
)

// StoredMessage is one row of the append-only conversation log.
type StoredMessage struct {
	ID        int64
	SessionID string
	UserID    string
	Role      core.Role
	Content   string
	CreatedAt time.Time
}

// ConversationStore persists conversation messages. The log is append-only
// and is the source of truth; the orchestrator's in-memory window is only a
// cache rebuilt from it.
type ConversationStore struct {
	db *DB
}

// NewConversationStore creates a conversation store
func NewConversationStore(db *DB) *ConversationStore {
	return &ConversationStore{db: db}
}

// AppendMessage appends one message to a session's log.
func (s *ConversationStore) AppendMessage(sessionID string, role core.Role, content string) error {
	return s.append(sessionID, "", role, content)
}

// AppendExchange appends a user message and the assistant response that
// answered it, in order.
func (s *ConversationStore) AppendExchange(sessionID, userID, userText, aiText string) error {
	if err := s.append(sessionID, userID, core.RoleUser, userText); err != nil {
		return err
	}
	return s.append(sessionID, userID, core.RoleAssistant, aiText)
}

func (s *ConversationStore) append(sessionID, userID string, role core.Role, content string) error {
	if sessionID == "" {
		return core.ErrInvalidInput
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO messages (session_id, user_id, role, content) VALUES (?, ?, ?, ?)`,
		sessionID, userID, string(role), content,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// RecentMessages returns the last n messages of a session in chronological
// order. Used to rebuild the in-memory window.
func (s *ConversationStore) RecentMessages(sessionID string, n int) ([]StoredMessage, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, session_id, user_id, role, content, created_at
		 FROM messages WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		var role string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = core.Role(role)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages returns how many messages a session holds.
func (s *ConversationStore) CountMessages(sessionID string) (int, error) {
	var count int
	err := s.db.conn.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&count)
	return count, err
}
