// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/store"
	"github.com/cerebro-notes/cerebro/internal/store/sqlite"
)

func newStore(t *testing.T) *sqlite.VectorStore {
	t.Helper()
	v, err := sqlite.NewVectorStore(filepath.Join(t.TempDir(), "vectors.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestUpsertAndQuery(t *testing.T) {
	v := newStore(t)
	ctx := context.Background()

	require.NoError(t, v.Upsert(ctx, []store.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Text: "alpha", Source: "a.md", Links: []string{"b"}},
		{ID: "b", Vector: []float32{0, 1, 0}, Text: "beta", Source: "b.md"},
	}))

	n, err := v.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := v.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "alpha", results[0].Text)
	assert.Equal(t, []string{"b"}, results[0].Links)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestUpsertReplaces(t *testing.T) {
	v := newStore(t)
	ctx := context.Background()

	require.NoError(t, v.Upsert(ctx, []store.Record{{ID: "a", Vector: []float32{1, 0, 0}, Text: "old", Source: "a.md"}}))
	require.NoError(t, v.Upsert(ctx, []store.Record{{ID: "a", Vector: []float32{0, 0, 1}, Text: "new", Source: "a.md"}}))

	n, err := v.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := v.Query(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", results[0].Text)
}

func TestDeleteAndAll(t *testing.T) {
	v := newStore(t)
	ctx := context.Background()

	require.NoError(t, v.Upsert(ctx, []store.Record{
		{ID: "a", Vector: []float32{1, 0, 0}, Text: "alpha", Source: "a.md"},
		{ID: "b", Vector: []float32{0, 1, 0}, Text: "beta", Source: "b.md"},
	}))
	require.NoError(t, v.Delete(ctx, []string{"a"}))

	records, err := v.All(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ID)

	// Deleting unknown IDs is a no-op.
	require.NoError(t, v.Delete(ctx, []string{"ghost"}))
}

func TestDimensionEnforced(t *testing.T) {
	v := newStore(t)

	err := v.Upsert(context.Background(), []store.Record{{ID: "a", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.db")
	ctx := context.Background()

	first, err := sqlite.NewVectorStore(path, 3)
	require.NoError(t, err)
	require.NoError(t, first.Upsert(ctx, []store.Record{{ID: "a", Vector: []float32{1, 0, 0}, Text: "alpha", Source: "a.md"}}))
	require.NoError(t, first.Close())

	second, err := sqlite.NewVectorStore(path, 3)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
