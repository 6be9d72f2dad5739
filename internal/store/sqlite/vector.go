// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/cerebro-notes/cerebro/internal/store"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore implements store.VectorStore backed by SQLite with sqlite-vec.
// The dense dimension is fixed per instance; changing the embedder requires
// deleting the database and rebuilding.
type VectorStore struct {
	db         *sql.DB
	dimensions int
}

// NewVectorStore opens (or creates) a SQLite database at dbPath and
// initialises the vec0 virtual table and the companion chunk table.
func NewVectorStore(dbPath string, dimensions int) (*VectorStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "migrating vector tables: %w", err)
	}

	return &VectorStore{db: db, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return err
	}

	const chunkDDL = `
CREATE TABLE IF NOT EXISTS chunks (
	id     TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	text   TEXT NOT NULL,
	links  TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source)`
	_, err := db.Exec(chunkDDL)
	return err
}

// Dimensions returns the fixed dense dimension of this store.
func (v *VectorStore) Dimensions() int { return v.dimensions }

// Upsert adds or replaces records by chunk ID inside one transaction.
func (v *VectorStore) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if len(rec.Vector) != v.dimensions {
			return cerebroerr.Errorf(cerebroerr.CodeStoreInvalidInput,
				"record %s has dimension %d, store requires %d", rec.ID, len(rec.Vector), v.dimensions)
		}

		blob, err := sqlite_vec.SerializeFloat32(rec.Vector)
		if err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "serializing embedding %s: %w", rec.ID, err)
		}

		links, err := json.Marshal(rec.Links)
		if err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreInvalidInput, "marshalling links %s: %w", rec.ID, err)
		}

		// vec0 does not support ON CONFLICT; delete first for upsert.
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, rec.ID); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "deleting existing vector %s: %w", rec.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO vectors(id, embedding) VALUES (?, ?)`, rec.ID, blob); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "inserting vector %s: %w", rec.ID, err)
		}

		const chunkQ = `INSERT INTO chunks(id, source, text, links) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET source = excluded.source, text = excluded.text, links = excluded.links`
		if _, err := tx.ExecContext(ctx, chunkQ, rec.ID, rec.Source, rec.Text, string(links)); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "upserting chunk %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "committing upsert: %w", err)
	}
	return nil
}

// Delete removes vectors and their chunk rows by ID.
func (v *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "deleting vectors: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "committing delete: %w", err)
	}
	return nil
}

// Query performs a k-nearest-neighbor search. sqlite-vec reports distance
// (lower = closer); it is mapped to a similarity of 1/(1+distance) so the
// returned scores descend.
func (v *VectorStore) Query(ctx context.Context, vector []float32, k int) ([]store.Result, error) {
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "serializing query vector: %w", err)
	}

	const q = `SELECT v.id, v.distance, c.source, c.text, c.links
FROM vectors v
JOIN chunks c ON c.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := v.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "querying vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []store.Result
	for rows.Next() {
		var (
			r        store.Result
			distance float64
			links    string
		)
		if err := rows.Scan(&r.ID, &distance, &r.Source, &r.Text, &links); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning vector result: %w", err)
		}
		if err := json.Unmarshal([]byte(links), &r.Links); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "unmarshalling links %s: %w", r.ID, err)
		}
		r.Score = 1.0 / (1.0 + distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "iterating vector results: %w", err)
	}

	return results, nil
}

// Count reports the number of stored records.
func (v *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "counting chunks: %w", err)
	}
	return n, nil
}

// All scans every stored record without its vector.
func (v *VectorStore) All(ctx context.Context) ([]store.Record, error) {
	rows, err := v.db.QueryContext(ctx, `SELECT id, source, text, links FROM chunks ORDER BY source, id`)
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []store.Record
	for rows.Next() {
		var (
			rec   store.Record
			links string
		)
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Text, &links); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(links), &rec.Links); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "unmarshalling links %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "iterating chunks: %w", err)
	}

	return records, nil
}

// Close closes the underlying database connection.
func (v *VectorStore) Close() error {
	return v.db.Close()
}
