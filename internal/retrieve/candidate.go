// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package retrieve implements the scoring stack that selects, orders,
// filters, and enriches context for the generator.
package retrieve

import "sort"

// Provenance tags where a candidate came from.
type Provenance string

const (
	ProvenanceLexical Provenance = "lexical"
	ProvenanceVector  Provenance = "vector"
	ProvenanceLinked  Provenance = "linked"
)

// Candidate is the transient per-question record shared by the hybrid
// retriever, reranker, and graph expander. It lives only within a single
// question's lifecycle.
type Candidate struct {
	ID         string
	Source     string // vault-relative path
	Text       string
	Links      []string
	Score      float64 // current fused/reranked score, in [0, 1]
	Provenance Provenance

	// Per-retriever raw scores, kept for deterministic tie-breaking.
	VectorScore  float64
	LexicalScore float64
}

// RetrievalType is the wire-level provenance reported to clients.
func (c Candidate) RetrievalType() string {
	if c.Provenance == ProvenanceLinked {
		return "linked"
	}
	return "retrieved"
}

// sortCandidates orders by score descending, breaking ties by vector
// score descending and then chunk ID ascending, so the ordering is
// deterministic across runs.
func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		if cands[i].VectorScore != cands[j].VectorScore {
			return cands[i].VectorScore > cands[j].VectorScore
		}
		return cands[i].ID < cands[j].ID
	})
}

// ApplyThreshold drops candidates scoring below min, except linked
// candidates, which carry a fixed provenance score and bypass the
// threshold. If filtering would leave no candidates at all, the single
// highest-scored one is kept regardless.
func ApplyThreshold(cands []Candidate, min float64) []Candidate {
	if len(cands) == 0 {
		return cands
	}

	kept := cands[:0:0]
	for _, c := range cands {
		if c.Provenance == ProvenanceLinked || c.Score >= min {
			kept = append(kept, c)
		}
	}

	if len(kept) == 0 {
		best := cands[0]
		for _, c := range cands[1:] {
			if c.Score > best.Score {
				best = c
			}
		}
		return []Candidate{best}
	}
	return kept
}
