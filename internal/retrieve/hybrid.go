// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package retrieve

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cerebro-notes/cerebro/internal/embed"
	"github.com/cerebro-notes/cerebro/internal/store"
)

// HybridConfig carries the retrieval knobs from the frozen config.
type HybridConfig struct {
	RetrievalK   int
	BM25K        int
	VectorWeight float64
	BM25Weight   float64
}

// Hybrid runs lexical and vector retrieval concurrently and fuses their
// results with configurable weights.
type Hybrid struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	lexical  *store.LexicalStore
	cfg      HybridConfig
}

// NewHybrid wires a hybrid retriever over the two stores.
func NewHybrid(embedder embed.Embedder, vectors store.VectorStore, lexical *store.LexicalStore, cfg HybridConfig) *Hybrid {
	return &Hybrid{embedder: embedder, vectors: vectors, lexical: lexical, cfg: cfg}
}

// Retrieve returns the fused, ordered, deduplicated candidate list for a
// question. Scores from each source are max-normalised into [0, 1] before
// fusing; a candidate present in only one source contributes 0 for the
// missing side.
func (h *Hybrid) Retrieve(ctx context.Context, question string) ([]Candidate, error) {
	var (
		vecResults []store.Result
		lexHits    []store.LexicalHit
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		vector, err := h.embedder.Embed(gctx, []string{question})
		if err != nil {
			return err
		}
		vecResults, err = h.vectors.Query(gctx, vector[0], h.cfg.RetrievalK)
		return err
	})

	g.Go(func() error {
		var err error
		lexHits, err = h.lexical.Query(gctx, question, h.cfg.BM25K)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return h.fuse(vecResults, lexHits), nil
}

func (h *Hybrid) fuse(vecResults []store.Result, lexHits []store.LexicalHit) []Candidate {
	var vecMax float64
	for _, r := range vecResults {
		if r.Score > vecMax {
			vecMax = r.Score
		}
	}
	var lexMax float64
	for _, hit := range lexHits {
		if hit.Score > lexMax {
			lexMax = hit.Score
		}
	}

	byID := make(map[string]*Candidate, len(vecResults)+len(lexHits))
	order := make([]string, 0, len(vecResults)+len(lexHits))

	for _, r := range vecResults {
		score := r.Score
		if vecMax > 0 {
			score /= vecMax
		}
		byID[r.ID] = &Candidate{
			ID:          r.ID,
			Source:      r.Source,
			Text:        r.Text,
			Links:       r.Links,
			Provenance:  ProvenanceVector,
			VectorScore: score,
		}
		order = append(order, r.ID)
	}

	for _, hit := range lexHits {
		score := hit.Score
		if lexMax > 0 {
			score /= lexMax
		}
		if c, ok := byID[hit.ID]; ok {
			c.LexicalScore = score
			continue
		}
		byID[hit.ID] = &Candidate{
			ID:           hit.ID,
			Source:       hit.Source,
			Text:         hit.Text,
			Provenance:   ProvenanceLexical,
			LexicalScore: score,
		}
		order = append(order, hit.ID)
	}

	cands := make([]Candidate, 0, len(order))
	for _, id := range order {
		c := byID[id]
		c.Score = h.cfg.VectorWeight*c.VectorScore + h.cfg.BM25Weight*c.LexicalScore
		cands = append(cands, *c)
	}

	sortCandidates(cands)
	return cands
}
