// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/store"
)

func newLexical(t *testing.T) *store.LexicalStore {
	t.Helper()
	l, err := store.NewLexicalStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func lexRecords() []store.Record {
	return []store.Record{
		{ID: "c1", Source: "garden.md", Text: "Tomatoes need full sun and regular watering in spring."},
		{ID: "c2", Source: "finance.md", Text: "Quarterly revenue grew while expenses stayed flat."},
		{ID: "c3", Source: "garden.md", Text: "Basil grows well next to tomatoes."},
	}
}

func TestLexicalRebuildAndQuery(t *testing.T) {
	l := newLexical(t)
	ctx := context.Background()

	require.NoError(t, l.Rebuild(ctx, lexRecords()))

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := l.Query(ctx, "tomatoes", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	for _, h := range hits {
		assert.Contains(t, []string{"c1", "c3"}, h.ID)
		assert.Greater(t, h.Score, 0.0)
	}
}

func TestLexicalQueryRespectsK(t *testing.T) {
	l := newLexical(t)
	ctx := context.Background()

	require.NoError(t, l.Rebuild(ctx, lexRecords()))

	hits, err := l.Query(ctx, "tomatoes", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestLexicalUpsertReplaces(t *testing.T) {
	l := newLexical(t)
	ctx := context.Background()

	require.NoError(t, l.Rebuild(ctx, lexRecords()))
	require.NoError(t, l.Upsert(ctx, []store.Record{
		{ID: "c2", Source: "finance.md", Text: "Now this chunk is about tomatoes too."},
	}))

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := l.Query(ctx, "tomatoes", 10)
	require.NoError(t, err)

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	assert.Contains(t, ids, "c2")
}

func TestLexicalDelete(t *testing.T) {
	l := newLexical(t)
	ctx := context.Background()

	require.NoError(t, l.Rebuild(ctx, lexRecords()))
	require.NoError(t, l.Delete(ctx, []string{"c1", "c3"}))

	hits, err := l.Query(ctx, "tomatoes", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLexicalQueryOperatorCharacters(t *testing.T) {
	l := newLexical(t)
	ctx := context.Background()

	require.NoError(t, l.Rebuild(ctx, lexRecords()))

	// Operator soup must not error, just sanitize.
	hits, err := l.Query(ctx, `"tomatoes" AND (sun:*)^`, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)

	hits, err = l.Query(ctx, `"(){}^:*`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalQueryEmptyIndex(t *testing.T) {
	l := newLexical(t)

	hits, err := l.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
