// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package embed_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerebro-notes/cerebro/internal/embed"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := embed.NewLocalEmbedder("")

	first, err := e.Embed(context.Background(), []string{"the quick brown fox", "jumps over"})
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), []string{"the quick brown fox", "jumps over"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Len(t, first[0], e.Dimension())
}

func TestLocalEmbedderNormalised(t *testing.T) {
	e := embed.NewLocalEmbedder("")

	vecs, err := e.Embed(context.Background(), []string{"some note text about gardening"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocalEmbedderSimilarTextsCloser(t *testing.T) {
	e := embed.NewLocalEmbedder("")

	vecs, err := e.Embed(context.Background(), []string{
		"gardening tips for spring tomatoes",
		"spring gardening and growing tomatoes",
		"quarterly financial report revenue",
	})
	require.NoError(t, err)

	related := dot(vecs[0], vecs[1])
	unrelated := dot(vecs[0], vecs[2])
	assert.Greater(t, related, unrelated)
}

func TestLocalEmbedderEmptyText(t *testing.T) {
	e := embed.NewLocalEmbedder("")

	vecs, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Len(t, vecs[0], e.Dimension())
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
