package repositories

import (
	"context"
	"fmt"

	"github.com/betweenus/backend/internal/db"
)

// EnsureSchema creates the sessions table when it does not exist yet. It is
// idempotent; init-schema runs it on every deploy before serve starts.
func EnsureSchema(ctx context.Context, pool db.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS sessions (
        refresh_token TEXT PRIMARY KEY,
        uid TEXT NOT NULL,
        device_id TEXT NOT NULL DEFAULT '',
        expires_at TIMESTAMPTZ NOT NULL
    )`); err != nil {
		return fmt.Errorf("ensure sessions table: %w", err)
	}

	return nil
}
