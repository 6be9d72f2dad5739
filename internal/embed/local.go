// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// localDimension is the fixed width of the in-process embedder.
const localDimension = 384

// LocalEmbedder is the in-process variant: a deterministic feature-hashing
// embedder. Tokens hash into a fixed number of buckets, weighted by term
// frequency with sublinear damping, and the result is L2-normalised so
// cosine and dot product agree. It needs no network and produces identical
// vectors for identical text on every run.
type LocalEmbedder struct {
	name string
}

// NewLocalEmbedder creates the hashing embedder. The model name is only a
// label reported in /health.
func NewLocalEmbedder(name string) *LocalEmbedder {
	if name == "" {
		name = "feature-hash-384"
	}
	return &LocalEmbedder{name: name}
}

func (l *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashEmbed(text)
	}
	return vectors, nil
}

func (l *LocalEmbedder) Dimension() int { return localDimension }

func (l *LocalEmbedder) ModelName() string { return l.name }

func hashEmbed(text string) []float32 {
	vec := make([]float32, localDimension)

	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		counts[tok]++
	}

	for tok, n := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % localDimension)
		// The top hash bit picks the sign, spreading collisions.
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign * float32(1+math.Log(float64(n)))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
