// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cerebro-notes/cerebro/internal/embed"
	"github.com/cerebro-notes/cerebro/internal/store"
	"github.com/cerebro-notes/cerebro/internal/vault"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// embedBatchSize bounds the number of chunk texts sent to the embedder in
// one call.
const embedBatchSize = 32

// Summary reports what one reconciliation pass did.
type Summary struct {
	Files    int `json:"files"`    // markdown files discovered
	Changed  int `json:"changed"`  // files (re)processed
	Skipped  int `json:"skipped"`  // files whose hash matched the manifest
	Failed   int `json:"failed"`   // files that errored and were skipped
	Upserted int `json:"upserted"` // chunk records written
	Deleted  int `json:"deleted"`  // chunk records removed
}

// Indexer walks the vault, diffs it against the manifest, and drives
// add/update/delete through the vector and lexical stores. One mutex
// serializes concurrent passes; the manifest is written once at the end
// of a successful pass.
type Indexer struct {
	mu sync.Mutex

	vault    *vault.Vault
	chunker  vault.Chunker
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  *store.LexicalStore
	manifest *Manifest
	logger   *slog.Logger
}

// New wires an Indexer over the given collaborators.
func New(v *vault.Vault, chunker vault.Chunker, embedder embed.Embedder, vectors store.VectorStore, lexical *store.LexicalStore, manifest *Manifest) *Indexer {
	return &Indexer{
		vault:    v,
		chunker:  chunker,
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		manifest: manifest,
		logger:   slog.Default(),
	}
}

// Manifest exposes the indexer-owned manifest for read-only inspection.
func (ix *Indexer) Manifest() *Manifest { return ix.manifest }

// KnownPaths snapshots the vault-relative paths the manifest currently
// tracks, sorted. Safe to call while a pass runs; the snapshot is taken
// under the indexer mutex.
func (ix *Indexer) KnownPaths() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	paths := make([]string, 0, len(ix.manifest.Entries))
	for rel := range ix.manifest.Entries {
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths
}

// Index reconciles the vault with the stores. With force, every file is
// reprocessed regardless of its manifest hash. A per-file failure is
// logged and skipped; the manifest entry for that file is left untouched
// so the next pass retries it.
func (ix *Indexer) Index(ctx context.Context, force bool) (Summary, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var sum Summary

	paths, err := ix.vault.Walk()
	if err != nil {
		return sum, err
	}
	sum.Files = len(paths)

	onDisk := make(map[string]struct{}, len(paths))
	for _, rel := range paths {
		onDisk[rel] = struct{}{}
	}

	// Files gone from disk: drop their chunks and manifest entries.
	for rel, entry := range ix.manifest.Entries {
		if _, ok := onDisk[rel]; ok {
			continue
		}
		if err := ix.vectors.Delete(ctx, entry.ChunkIDs); err != nil {
			return sum, err
		}
		if err := ix.lexical.Delete(ctx, entry.ChunkIDs); err != nil {
			return sum, err
		}
		sum.Deleted += len(entry.ChunkIDs)
		delete(ix.manifest.Entries, rel)
		ix.logger.Info("removed deleted note", "path", rel, "chunks", len(entry.ChunkIDs))
	}

	for _, rel := range paths {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		changed, err := ix.indexFile(ctx, rel, force, &sum)
		if err != nil {
			// Per-file failure: log, skip, retry next pass. Embedder
			// outage is not recoverable within the pass, so stop early.
			if cerebroerr.HasCode(err, cerebroerr.CodeEmbedUnavailable) {
				return sum, err
			}
			sum.Failed++
			ix.logger.Warn("indexing file failed",
				"path", rel,
				"error", cerebroerr.Wrap(err, cerebroerr.CodeIndexFileFailed, "indexing file"))
			continue
		}
		if changed {
			sum.Changed++
		} else {
			sum.Skipped++
		}
	}

	if err := ix.manifest.Save(); err != nil {
		return sum, err
	}

	ix.logger.Info("index pass complete",
		"files", sum.Files, "changed", sum.Changed, "skipped", sum.Skipped,
		"failed", sum.Failed, "upserted", sum.Upserted, "deleted", sum.Deleted)
	return sum, nil
}

// RebuildLexical repopulates the in-memory BM25 index from the vector
// store's persisted contents. Called at startup and after the forced
// /rebuild_db pass.
func (ix *Indexer) RebuildLexical(ctx context.Context) error {
	records, err := ix.vectors.All(ctx)
	if err != nil {
		return err
	}
	return ix.lexical.Rebuild(ctx, records)
}

func (ix *Indexer) indexFile(ctx context.Context, rel string, force bool, sum *Summary) (bool, error) {
	data, err := ix.vault.Read(rel)
	if err != nil {
		return false, err
	}

	hash := contentHash(data)
	old, known := ix.manifest.Entries[rel]
	if known && !force && old.Hash == hash {
		return false, nil
	}

	chunks := ix.chunker.Split(rel, data)

	newIDs := make(map[string]struct{}, len(chunks))
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		newIDs[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	oldIDs := make(map[string]struct{}, len(old.ChunkIDs))
	if known {
		for _, id := range old.ChunkIDs {
			oldIDs[id] = struct{}{}
		}
	}

	// Deterministic chunk IDs: a chunk whose ID survived the edit is
	// already stored with identical content and costs nothing.
	var fresh []vault.Chunk
	for _, c := range chunks {
		if _, ok := oldIDs[c.ID]; !ok || force {
			fresh = append(fresh, c)
		}
	}

	records, err := ix.embedChunks(ctx, fresh)
	if err != nil {
		return false, err
	}

	if err := ix.vectors.Upsert(ctx, records); err != nil {
		return false, err
	}
	if err := ix.lexical.Upsert(ctx, records); err != nil {
		return false, err
	}
	sum.Upserted += len(records)

	// Stale chunks from the previous version of this file.
	var stale []string
	for _, id := range old.ChunkIDs {
		if _, ok := newIDs[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := ix.vectors.Delete(ctx, stale); err != nil {
			return false, err
		}
		if err := ix.lexical.Delete(ctx, stale); err != nil {
			return false, err
		}
		sum.Deleted += len(stale)
	}

	ix.manifest.Entries[rel] = Entry{
		Path:      rel,
		Hash:      hash,
		IndexedAt: time.Now().UTC(),
		ChunkIDs:  ids,
	}
	return true, nil
}

func (ix *Indexer) embedChunks(ctx context.Context, chunks []vault.Chunk) ([]store.Record, error) {
	records := make([]store.Record, 0, len(chunks))

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}

		for i, c := range batch {
			records = append(records, store.Record{
				ID:     c.ID,
				Vector: vectors[i],
				Text:   c.Text,
				Source: c.Source,
				Links:  c.Links,
			})
		}
	}
	return records, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
