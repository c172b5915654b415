package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Abhinay1235/aichatbot-service/internal/session"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

// AppendTurns upserts the session row and inserts the turns in one
// transaction, so a recorded turn pair is all-or-nothing.
func (r *Repository) AppendTurns(ctx context.Context, sessionID string, turns []session.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append turns: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
INSERT INTO chat_session (session_id)
VALUES ($1)
ON CONFLICT (session_id) DO UPDATE SET updated_at = now()`
	if _, err := tx.ExecContext(ctx, upsert, sessionID); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	insert := `
INSERT INTO chat_message (session_id, role, content, created_at)
VALUES ($1, $2, $3, $4)`
	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx, insert, sessionID, turn.Role, turn.Content, turn.Timestamp); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append turns: %w", err)
	}
	return nil
}

// DeleteSession removes the session row; messages follow via the foreign
// key cascade. Unknown sessions delete zero rows without error.
func (r *Repository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM chat_session WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// ListTurns returns one session's history, oldest first.
func (r *Repository) ListTurns(ctx context.Context, sessionID string) ([]session.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content, created_at
FROM chat_message
WHERE session_id = $1
ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]session.Turn, 0)
	for rows.Next() {
		var turn session.Turn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

// LoadAll returns every session's history keyed by session id, each
// oldest first. Used to hydrate the arena at startup.
func (r *Repository) LoadAll(ctx context.Context) (map[string][]session.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT session_id, role, content, created_at
FROM chat_message
ORDER BY session_id ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	histories := map[string][]session.Turn{}
	for rows.Next() {
		var sessionID string
		var turn session.Turn
		if err := rows.Scan(&sessionID, &turn.Role, &turn.Content, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		histories[sessionID] = append(histories[sessionID], turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return histories, nil
}
