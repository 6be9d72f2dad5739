// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package retrieve

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Scorer scores (question, text) pairs jointly, cross-encoder style.
// Higher means more relevant; scores need not be normalised.
type Scorer interface {
	Score(ctx context.Context, question string, texts []string) ([]float64, error)
}

// Reranker re-scores a candidate list with a Scorer, reorders descending,
// normalises into [0, 1], and truncates to the top N.
type Reranker struct {
	scorer Scorer
	topN   int
}

// NewReranker wires a reranker over the given scorer.
func NewReranker(scorer Scorer, topN int) *Reranker {
	return &Reranker{scorer: scorer, topN: topN}
}

// Rerank replaces each candidate's score with the normalised cross score
// and returns the top N. Linked candidates keep their provenance score
// and are not expected here; callers rerank before graph expansion.
func (r *Reranker) Rerank(ctx context.Context, question string, cands []Candidate) ([]Candidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}

	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = c.Text
	}

	scores, err := r.scorer.Score(ctx, question, texts)
	if err != nil {
		return nil, err
	}

	var max float64
	for _, s := range scores {
		if s > max {
			max = s
		}
	}

	out := make([]Candidate, len(cands))
	copy(out, cands)
	for i := range out {
		score := scores[i]
		if max > 0 {
			score /= max
		}
		out[i].Score = score
	}

	sortCandidates(out)
	if r.topN > 0 && len(out) > r.topN {
		out = out[:r.topN]
	}
	return out, nil
}

// OverlapScorer is the in-process cross scorer: a token-overlap measure
// between question and candidate text with sublinear length damping. It
// is deterministic and needs no model host.
type OverlapScorer struct{}

// Score returns one raw score per text; Rerank max-normalises them.
func (OverlapScorer) Score(_ context.Context, question string, texts []string) ([]float64, error) {
	qTokens := scoreTokens(question)

	scores := make([]float64, len(texts))
	if len(qTokens) == 0 {
		return scores, nil
	}

	for i, text := range texts {
		docTokens := scoreTokens(text)
		if len(docTokens) == 0 {
			continue
		}

		var matched float64
		for tok := range qTokens {
			if n, ok := docTokens[tok]; ok {
				// Repeats help, but sublinearly.
				matched += 1 + math.Log(float64(n))
			}
		}
		scores[i] = matched / float64(len(qTokens)) / (1 + math.Log(1+float64(len(docTokens))/256))
	}
	return scores, nil
}

func scoreTokens(text string) map[string]int {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		counts[tok]++
	}
	return counts
}
