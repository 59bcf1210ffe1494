package projectstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Well-known keys in the session store.
const (
	KeyProjectDir  = "project_dir"
	KeyAPIKey      = "gemini_api_key"
	KeyRenderKey   = "render_api_key"
	archivePrefix  = "archive/"
	defaultDirMode = 0o755
)

// KV is a small persistent key-value store backed by SQLite.
type KV struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// DefaultKVPath resolves the per-user state database location.
func DefaultKVPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "storyforge", "storyforge.db"), nil
}

// OpenKV initializes or connects to the session database at path.
func OpenKV(path string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	kv := &KV{db: db, path: path}
	if err := kv.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *KV) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`
	return retryOnBusy(ctx, func() error {
		_, err := kv.db.ExecContext(ctx, schema)
		return err
	})
}

// Close releases the database connection.
func (kv *KV) Close() error {
	return kv.db.Close()
}

// Set stores value under key, replacing any previous value.
func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := kv.db.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339))
		return err
	})
}

// Get returns the value for key, or (nil, false) when absent.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx = ensureContext(ctx)
	var value []byte
	err := retryOnBusy(ctx, func() error {
		row := kv.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key)
		return row.Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes key; deleting an absent key is not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return err
	})
}

// ListPrefix returns key/value pairs whose key starts with prefix, ordered
// by key.
func (kv *KV) ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error) {
	ctx = ensureContext(ctx)
	out := make(map[string][]byte)
	err := retryOnBusy(ctx, func() error {
		rows, err := kv.db.QueryContext(ctx,
			`SELECT key, value FROM kv WHERE key LIKE ? ORDER BY key`, prefix+"%")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var value []byte
			if err := rows.Scan(&key, &value); err != nil {
				return err
			}
			out[key] = value
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
