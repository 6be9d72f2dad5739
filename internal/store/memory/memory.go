// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package memory provides an in-process store.VectorStore. It backs tests
// and very small vaults; nothing is persisted across restarts.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/cerebro-notes/cerebro/internal/store"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// Compile-time interface check.
var _ store.VectorStore = (*VectorStore)(nil)

// VectorStore holds records and vectors in maps guarded by a RWMutex.
type VectorStore struct {
	mu         sync.RWMutex
	records    map[string]store.Record
	dimensions int
}

// NewVectorStore creates an empty store with the given fixed dimension.
func NewVectorStore(dimensions int) *VectorStore {
	return &VectorStore{
		records:    make(map[string]store.Record),
		dimensions: dimensions,
	}
}

func (m *VectorStore) Upsert(_ context.Context, records []store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		if len(rec.Vector) != m.dimensions {
			return cerebroerr.Errorf(cerebroerr.CodeStoreInvalidInput,
				"record %s has dimension %d, store requires %d", rec.ID, len(rec.Vector), m.dimensions)
		}
	}
	for _, rec := range records {
		m.records[rec.ID] = rec
	}
	return nil
}

func (m *VectorStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

// Query ranks by cosine similarity, breaking score ties by chunk ID so
// results are deterministic.
func (m *VectorStore) Query(_ context.Context, vector []float32, k int) ([]store.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]store.Result, 0, len(m.records))
	for _, rec := range m.records {
		results = append(results, store.Result{Record: rec, Score: cosine(vector, rec.Vector)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (m *VectorStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *VectorStore) All(_ context.Context) ([]store.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]store.Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Source != records[j].Source {
			return records[i].Source < records[j].Source
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (m *VectorStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
