package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"audiora/internal/logger"
)

var (
	// ErrNotFound is returned when a key has no value.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrConflict is returned when an Update loses the version race too
	// many times in a row.
	ErrConflict = errors.New("kvstore: version conflict")
)

const maxUpdateAttempts = 5

// Store is a namespaced key -> JSON blob store. Set is a blind
// last-write-wins write; Update is a read-modify-write guarded by a
// per-key version counter so concurrent writers to the same key cannot
// silently drop each other's changes.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error)
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, key string, fn func(cur json.RawMessage) (json.RawMessage, error)) error
}

type sqliteStore struct {
	db  *sql.DB
	log *logger.Logger
}

func New(db *sql.DB, baseLog *logger.Logger) Store {
	return &sqliteStore{db: db, log: baseLog.With("component", "kvstore")}
}

func (s *sqliteStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return json.RawMessage(value), nil
}

func (s *sqliteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO kv_store(key, value) VALUES(?, ?)
	ON CONFLICT(key)
	DO UPDATE SET value=excluded.value,
	              version=version+1,
	              updated_at=CURRENT_TIMESTAMP
	`, key, string(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *sqliteStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_store WHERE key >= ? AND key < ? ORDER BY key`,
		prefix, prefix+"\xff")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	defer rows.Close()

	var results []json.RawMessage
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		results = append(results, json.RawMessage(value))
	}
	return results, rows.Err()
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Update runs fn against the current value (nil when the key is absent)
// and writes the result back only if the key's version has not moved in
// the meantime. On a lost race it re-reads and retries.
func (s *sqliteStore) Update(ctx context.Context, key string, fn func(cur json.RawMessage) (json.RawMessage, error)) error {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		var value string
		var version int64
		exists := true
		err := s.db.QueryRowContext(ctx,
			`SELECT value, version FROM kv_store WHERE key = ?`, key).Scan(&value, &version)
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return fmt.Errorf("update read %s: %w", key, err)
		}

		var cur json.RawMessage
		if exists {
			cur = json.RawMessage(value)
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}

		if !exists {
			res, err := s.db.ExecContext(ctx,
				`INSERT INTO kv_store(key, value) VALUES(?, ?) ON CONFLICT(key) DO NOTHING`,
				key, string(next))
			if err != nil {
				return fmt.Errorf("update insert %s: %w", key, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				return nil
			}
			// someone created the key first; retry against their value
			continue
		}

		res, err := s.db.ExecContext(ctx, `
		UPDATE kv_store SET value=?, version=version+1, updated_at=CURRENT_TIMESTAMP
		WHERE key=? AND version=?`,
			string(next), key, version)
		if err != nil {
			return fmt.Errorf("update write %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}
		s.log.Debug("version conflict, retrying", "key", key, "attempt", attempt+1)
	}
	return fmt.Errorf("update %s: %w", key, ErrConflict)
}
