package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lifeos/lifeosd/internal/session"
)

// ConversationRecord is a conversation row with its message count.
type ConversationRecord struct {
	SessionID    string
	Title        string
	Tier         string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConversationStore persists conversation transcripts. Writes are idempotent:
// replaying the same transcript for a session leaves the stored state
// unchanged, because messages key on (session_id, seq) and the full
// transcript is written every time.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a conversation store from a Store
func NewConversationStore(store *Store) *ConversationStore {
	return &ConversationStore{db: store.db}
}

// Upsert writes the full transcript for a session in a single transaction.
// The conversation row is created on first write; messages are written with
// INSERT OR REPLACE keyed on (session_id, seq), so retries and duplicate
// deliveries converge on the same stored state.
func (s *ConversationStore) Upsert(ctx context.Context, conv *session.Conversation) error {
	if conv.SessionID == "" {
		return fmt.Errorf("upsert requires a session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	title := conversationTitle(conv)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (session_id, title, tier, created_at, updated_at)
		VALUES (?, ?, ?, unixepoch(), unixepoch())
		ON CONFLICT(session_id) DO UPDATE SET
			title = excluded.title,
			tier = excluded.tier,
			updated_at = unixepoch()
	`, conv.SessionID, title, conv.Tier)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}

	for seq, msg := range conv.Messages {
		var createdAt int64
		if msg.CreatedAt.IsZero() {
			createdAt = time.Now().Unix()
		} else {
			createdAt = msg.CreatedAt.Unix()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO conversation_messages
				(session_id, seq, role, content, tool_calls, tool_results, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, conv.SessionID, seq, msg.Role, msg.Content,
			nullableJSON(msg.ToolCalls), nullableJSON(msg.ToolResults), createdAt)
		if err != nil {
			return fmt.Errorf("failed to upsert message %d: %w", seq, err)
		}
	}

	return tx.Commit()
}

// List returns conversation metadata, most recently updated first.
func (s *ConversationStore) List(ctx context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.session_id, COALESCE(c.title, ''), COALESCE(c.tier, ''),
			(SELECT COUNT(*) FROM conversation_messages m WHERE m.session_id = c.session_id),
			c.created_at, c.updated_at
		FROM conversations c
		ORDER BY c.updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var records []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		var createdAt, updatedAt int64
		if err := rows.Scan(&rec.SessionID, &rec.Title, &rec.Tier, &rec.MessageCount, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Messages returns the stored transcript for a session in seq order.
func (s *ConversationStore) Messages(ctx context.Context, sessionID string, limit int) ([]session.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, COALESCE(content, ''), COALESCE(tool_calls, ''), COALESCE(tool_results, ''), created_at
		FROM conversation_messages
		WHERE session_id = ?
		ORDER BY seq ASC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []session.Message
	for rows.Next() {
		var msg session.Message
		var toolCalls, toolResults string
		var createdAt int64
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &toolResults, &createdAt); err != nil {
			return nil, err
		}
		msg.SessionID = sessionID
		if toolCalls != "" {
			msg.ToolCalls = []byte(toolCalls)
		}
		if toolResults != "" {
			msg.ToolResults = []byte(toolResults)
		}
		msg.CreatedAt = time.Unix(createdAt, 0)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// PurgeEmptyMessages removes messages with no content, no tool calls, and no
// tool results. These ghost records accumulate from interrupted runs.
func (s *ConversationStore) PurgeEmptyMessages() (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM conversation_messages
		WHERE (content IS NULL OR content = '')
		  AND (tool_calls IS NULL OR tool_calls = '')
		  AND (tool_results IS NULL OR tool_results = '')
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// conversationTitle derives a display title from the first user message.
func conversationTitle(conv *session.Conversation) string {
	for _, msg := range conv.Messages {
		if msg.Role == "user" && msg.Content != "" {
			title := msg.Content
			// Cut on a rune boundary so multi-byte text stays valid UTF-8.
			if runes := []rune(title); len(runes) > 80 {
				title = string(runes[:80])
			}
			return title
		}
	}
	return ""
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
