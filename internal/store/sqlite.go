package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT    NOT NULL,
	id         TEXT    NOT NULL,
	text       TEXT    NOT NULL,
	metadata   TEXT    NOT NULL DEFAULT '{}',
	vector     BLOB    NOT NULL,
	dims       INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
)`

// collectionsSchema holds a revision per collection, bumped in the same
// transaction as every write. A persisted graph is only trusted when it was
// saved at the current revision.
const collectionsSchema = `
CREATE TABLE IF NOT EXISTS collections (
	collection TEXT    PRIMARY KEY,
	revision   INTEGER NOT NULL
)`

const bumpRevisionSQL = `
INSERT INTO collections (collection, revision) VALUES (?, 1)
ON CONFLICT (collection) DO UPDATE SET revision = revision + 1`

const upsertSQL = `
INSERT INTO records (collection, id, text, metadata, vector, dims, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (collection, id) DO UPDATE SET
	text = excluded.text,
	metadata = excluded.metadata,
	vector = excluded.vector,
	dims = excluded.dims,
	updated_at = excluded.updated_at`

// RecordDB is the durable record table shared by all collections in a db directory.
type RecordDB struct {
	db   *sql.DB
	path string
}

// OpenRecordDB opens (or creates) the database at path.
// If path is empty, an in-memory database is used for testing.
func OpenRecordDB(path string) (*RecordDB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; the in-memory database also lives on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN parameters, so pragmas are set explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	for _, schema := range []string{recordsSchema, collectionsSchema} {
		if _, err := db.Exec(schema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &RecordDB{db: db, path: path}, nil
}

// Path returns the database file, empty for in-memory databases.
func (d *RecordDB) Path() string {
	return d.path
}

// Upsert writes records in a single transaction.
func (d *RecordDB) Upsert(ctx context.Context, collection string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().Unix()
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, r.ID, r.Text, string(meta),
			encodeVector(r.Vector), len(r.Vector), now); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, bumpRevisionSQL, collection); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteBySource removes every record whose metadata names source and
// returns the removed IDs.
func (d *RecordDB) DeleteBySource(ctx context.Context, collection, source string) ([]string, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM records WHERE collection = ? AND json_extract(metadata, '$.`+SourceKey+`') = ?`,
		collection, source)
	if err != nil {
		return nil, fmt.Errorf("query records of %s: %w", source, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query records of %s: %w", source, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND json_extract(metadata, '$.`+SourceKey+`') = ?`,
		collection, source); err != nil {
		return nil, fmt.Errorf("delete records of %s: %w", source, err)
	}
	if _, err := tx.ExecContext(ctx, bumpRevisionSQL, collection); err != nil {
		return nil, fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// Revision returns the write counter of the collection, 0 before any write.
func (d *RecordDB) Revision(ctx context.Context, collection string) (int64, error) {
	var rev int64
	err := d.db.QueryRowContext(ctx,
		`SELECT revision FROM collections WHERE collection = ?`, collection).Scan(&rev)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

// Get returns the records with the given IDs, keyed by ID. Vectors are not loaded.
func (d *RecordDB) Get(ctx context.Context, collection string, ids []string) (map[string]Record, error) {
	out := make(map[string]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, text, metadata FROM records WHERE collection = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r Record
		var meta string
		if err := rows.Scan(&r.ID, &r.Text, &meta); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
		out[r.ID] = r
	}
	return out, rows.Err()
}

// Each calls fn for every record of the collection, vectors included, in ID order.
func (d *RecordDB) Each(ctx context.Context, collection string, fn func(Record) error) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, text, metadata, vector FROM records WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r Record
		var meta string
		var blob []byte
		if err := rows.Scan(&r.ID, &r.Text, &meta, &blob); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return fmt.Errorf("decode metadata for %s: %w", r.ID, err)
		}
		if r.Vector, err = decodeVector(blob); err != nil {
			return fmt.Errorf("decode vector for %s: %w", r.ID, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of records in the collection.
func (d *RecordDB) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Dimensions returns the vector length stored for the collection, 0 if empty.
func (d *RecordDB) Dimensions(ctx context.Context, collection string) (int, error) {
	var dims int
	err := d.db.QueryRowContext(ctx,
		`SELECT dims FROM records WHERE collection = ? LIMIT 1`, collection).Scan(&dims)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read dimensions: %w", err)
	}
	return dims, nil
}

// Checkpoint folds the WAL back into the main database file.
func (d *RecordDB) Checkpoint(ctx context.Context) error {
	if d.path == "" {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *RecordDB) Close() error {
	return d.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
