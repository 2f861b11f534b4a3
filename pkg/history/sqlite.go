package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT    NOT NULL,
	role            TEXT    NOT NULL,
	content         TEXT    NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, id);
`

// SQLiteStore is a Store backed by a SQLite database, so histories survive a
// restart of a single relay process.
type SQLiteStore struct {
	db  *sql.DB
	max int
	now func() time.Time
}

// ConversationSummary describes one stored conversation.
type ConversationSummary struct {
	ConversationID string
	Turns          int
	LastSeen       time.Time
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(path string, maxHistory int) (*SQLiteStore, error) {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection serializes every append, which is what makes Append
	// atomic per conversation. It also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, max: maxHistory, now: time.Now}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	return s.turns(ctx, s.db, conversationID)
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, turn llm.Turn) ([]llm.Turn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO turns (conversation_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		conversationID, string(turn.Role), turn.Content, s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting turn: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM turns
		WHERE conversation_id = ?
		  AND id NOT IN (
			SELECT id FROM turns WHERE conversation_id = ? ORDER BY id DESC LIMIT ?
		  )`,
		conversationID, conversationID, s.max,
	)
	if err != nil {
		return nil, fmt.Errorf("evicting old turns: %w", err)
	}

	turns, err := s.turns(ctx, tx, conversationID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing append: %w", err)
	}
	return turns, nil
}

// Conversations implements Store.
func (s *SQLiteStore) Conversations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT conversation_id) FROM turns`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return n, nil
}

// EvictIdle implements Store.
func (s *SQLiteStore) EvictIdle(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning eviction: %w", err)
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT conversation_id FROM turns GROUP BY conversation_id HAVING MAX(created_at) < ?
		)`, before.UnixNano()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting idle conversations: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM turns WHERE conversation_id IN (
			SELECT conversation_id FROM turns GROUP BY conversation_id HAVING MAX(created_at) < ?
		)`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("deleting idle conversations: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing eviction: %w", err)
	}
	return n, nil
}

// List returns a summary of every stored conversation, most recent first.
func (s *SQLiteStore) List(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*), MAX(created_at)
		FROM turns
		GROUP BY conversation_id
		ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	summaries := []ConversationSummary{}
	for rows.Next() {
		var (
			sum      ConversationSummary
			lastSeen int64
		)
		if err := rows.Scan(&sum.ConversationID, &sum.Turns, &lastSeen); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		sum.LastSeen = time.Unix(0, lastSeen)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) turns(ctx context.Context, q querier, conversationID string) ([]llm.Turn, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT role, content FROM turns WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	turns := []llm.Turn{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, llm.Turn{Role: llm.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading turns: %w", err)
	}
	return turns, nil
}
