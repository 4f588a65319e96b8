package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore key-value хранилище поверх SQLite. Истечение ленивое:
// просроченные записи игнорируются при чтении и перезаписываются при Set.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore открывает (или создаёт) базу по указанному пути
// и гарантирует наличие схемы.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db at %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM blobs WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select blob %s: %w", key, err)
	}

	if expiresAt > 0 && time.Now().Unix() > expiresAt {
		// Ленивая очистка; ошибка удаления не мешает ответу "не найдено".
		_, _ = s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	// ttl == 0 — без истечения; отрицательный ttl даёт уже истёкшую запись.
	var expiresAt int64
	if ttl != 0 {
		expiresAt = time.Now().Add(ttl).Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert blob %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Close закрывает подключение к базе.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
