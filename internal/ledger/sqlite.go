package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/releve-dev/releve/internal/model"
)

const (
	keyLedger  = "ledger"
	keyIgnored = "ignored_groups"
	keyRules   = "category_rules"
)

const createKV = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStore keeps each value as a JSON document in a single key-value
// table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createKV); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetLedger(ctx context.Context) ([]model.Transaction, error) {
	var txs []model.Transaction
	if err := s.get(ctx, keyLedger, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *SQLiteStore) PutLedger(ctx context.Context, txs []model.Transaction) error {
	return s.put(ctx, keyLedger, txs)
}

func (s *SQLiteStore) GetIgnoredGroupIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.get(ctx, keyIgnored, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) PutIgnoredGroupIDs(ctx context.Context, ids []string) error {
	return s.put(ctx, keyIgnored, ids)
}

func (s *SQLiteStore) GetCategoryRules(ctx context.Context) ([]model.CategoryRule, error) {
	var rules []model.CategoryRule
	if err := s.get(ctx, keyRules, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func (s *SQLiteStore) PutCategoryRules(ctx context.Context, rules []model.CategoryRule) error {
	return s.put(ctx, keyRules, rules)
}

func (s *SQLiteStore) get(ctx context.Context, key string, v any) error {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, data)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}
