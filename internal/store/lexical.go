// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package store

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver; FTS5 behind the sqlite_fts5 build tag.

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// LexicalStore is a BM25 index over chunk text, backed by an FTS5 virtual
// table in an in-memory SQLite database. It is rebuilt at server startup
// from the vector store's persisted contents and kept in sync on every
// chunk upsert and delete. A RWMutex admits many concurrent readers and
// one exclusive writer during rebuilds.
//
// Some SQLite builds omit FTS5; in that case queries fall back to a
// term-match scan over the chunk table.
type LexicalStore struct {
	mu           sync.RWMutex
	db           *sql.DB
	ftsAvailable bool
}

// LexicalHit is one keyword match. Score descends with relevance.
type LexicalHit struct {
	ID     string
	Source string
	Text   string
	Score  float64
}

// NewLexicalStore creates an empty in-memory index.
func NewLexicalStore() (*LexicalStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "opening in-memory sqlite db: %w", err)
	}
	// Each connection gets its own private :memory: database; pin the
	// pool to one connection so the index survives between calls. The
	// RWMutex already serializes access above the pool.
	db.SetMaxOpenConns(1)

	const chunkDDL = `CREATE TABLE IF NOT EXISTS chunks_lex (
	id     TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	text   TEXT NOT NULL
)`
	if _, err := db.Exec(chunkDDL); err != nil {
		_ = db.Close()
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "creating lexical table: %w", err)
	}

	l := &LexicalStore{db: db, ftsAvailable: true}

	const ftsDDL = `CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(id UNINDEXED, source UNINDEXED, text)`
	if _, err := db.Exec(ftsDDL); err != nil {
		// FTS5 not compiled in; term-match fallback takes over.
		l.ftsAvailable = false
		slog.Warn("FTS5 not available, lexical queries use term-match fallback", "error", err)
	}

	return l, nil
}

// Rebuild replaces the whole index with the given records.
func (l *LexicalStore) Rebuild(ctx context.Context, records []Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "beginning rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_lex`); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "clearing lexical table: %w", err)
	}
	if l.ftsAvailable {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts`); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "clearing fts index: %w", err)
		}
	}

	for _, rec := range records {
		if err := l.insert(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "committing rebuild: %w", err)
	}
	return nil
}

// Upsert replaces the index entries for the given records.
func (l *LexicalStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "beginning upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		if err := l.remove(ctx, tx, rec.ID); err != nil {
			return err
		}
		if err := l.insert(ctx, tx, rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "committing upsert: %w", err)
	}
	return nil
}

// Delete removes index entries by chunk ID.
func (l *LexicalStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "beginning delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if err := l.remove(ctx, tx, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "committing delete: %w", err)
	}
	return nil
}

// Query returns the k best keyword matches for the query text. With FTS5,
// ranking is BM25: the rank is negative (more negative = better) and is
// mapped to 1/(1+|rank|) so higher scores mean better matches. An empty
// or all-operator query returns no hits.
func (l *LexicalStore) Query(ctx context.Context, text string, k int) ([]LexicalHit, error) {
	if k <= 0 {
		return nil, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.ftsAvailable {
		return l.queryFTS(ctx, text, k)
	}
	return l.queryFallback(ctx, text, k)
}

// Count reports the number of indexed chunks.
func (l *LexicalStore) Count(ctx context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks_lex`).Scan(&n); err != nil {
		return 0, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "counting lexical rows: %w", err)
	}
	return n, nil
}

// Close releases the in-memory database.
func (l *LexicalStore) Close() error {
	return l.db.Close()
}

func (l *LexicalStore) insert(ctx context.Context, tx *sql.Tx, rec Record) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks_lex(id, source, text) VALUES (?, ?, ?)`,
		rec.ID, rec.Source, rec.Text); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "indexing chunk %s: %w", rec.ID, err)
	}
	if l.ftsAvailable {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts(id, source, text) VALUES (?, ?, ?)`,
			rec.ID, rec.Source, rec.Text); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "fts-indexing chunk %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (l *LexicalStore) remove(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_lex WHERE id = ?`, id); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "deleting lexical row %s: %w", id, err)
	}
	if l.ftsAvailable {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE id = ?`, id); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "deleting fts row %s: %w", id, err)
		}
	}
	return nil
}

func (l *LexicalStore) queryFTS(ctx context.Context, text string, k int) ([]LexicalHit, error) {
	safe := sanitizeFTSQuery(text)
	if safe == "" {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `
SELECT id, source, text, rank
FROM chunks_fts
WHERE chunks_fts MATCH ?
ORDER BY rank, id
LIMIT ?`, safe, k)
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "querying fts index: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []LexicalHit
	for rows.Next() {
		var (
			h    LexicalHit
			rank float64
		)
		if err := rows.Scan(&h.ID, &h.Source, &h.Text, &rank); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning fts hit: %w", err)
		}
		h.Score = 1.0 / (1.0 + math.Abs(rank))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "iterating fts hits: %w", err)
	}

	return hits, nil
}

// queryFallback scans the chunk table and scores by matched query terms,
// damped by document length. Deterministic: ties break on chunk ID.
func (l *LexicalStore) queryFallback(ctx context.Context, text string, k int) ([]LexicalHit, error) {
	terms := queryTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := l.db.QueryContext(ctx, `SELECT id, source, text FROM chunks_lex`)
	if err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning lexical table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.ID, &h.Source, &h.Text); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "scanning lexical row: %w", err)
		}

		lower := strings.ToLower(h.Text)
		var matched float64
		for _, term := range terms {
			if n := strings.Count(lower, term); n > 0 {
				matched += 1 + math.Log(float64(n))
			}
		}
		if matched == 0 {
			continue
		}
		h.Score = matched / float64(len(terms)) / (1 + math.Log(1+float64(len(h.Text))/1024))
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeStoreDatabaseFailure, "iterating lexical rows: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// sanitizeFTSQuery strips FTS5 operator characters and turns the
// remaining terms into an OR query so conversational questions still
// match.
func sanitizeFTSQuery(query string) string {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

func queryTerms(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '"', '(', ')', '*', '^', ':', '{', '}', '-', '.', ',', ';', '!', '?', '\'':
			return ' '
		default:
			return r
		}
	}, strings.ToLower(query))

	return strings.Fields(cleaned)
}
