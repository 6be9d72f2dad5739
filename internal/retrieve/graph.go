// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package retrieve

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cerebro-notes/cerebro/internal/vault"
)

// LinkedScore is the fixed provenance score attached to graph-expanded
// candidates. It sits below any reranker output that survives the
// threshold, so linked context never outranks directly retrieved context.
const LinkedScore = 0.25

// Expander follows outbound wiki-links from retrieved candidates and
// appends directly linked documents as additional context. Expansion is
// bounded to depth 1 with a dedup set on source path; wiki-link graphs
// are cyclic.
type Expander struct {
	vault  *vault.Vault
	paths  func() []string // snapshot of known vault-relative note paths
	logger *slog.Logger
}

// NewExpander wires a graph expander. paths supplies the currently
// indexed note paths for link resolution.
func NewExpander(v *vault.Vault, paths func() []string) *Expander {
	return &Expander{vault: v, paths: paths, logger: slog.Default()}
}

// Expand appends one whole-document candidate per resolvable link target
// not already represented in cands. Broken links are dropped silently;
// expansion never fails the question.
func (e *Expander) Expand(ctx context.Context, cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return cands
	}

	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		seen[strings.ToLower(c.Source)] = struct{}{}
	}

	var targets []string
	targetSeen := make(map[string]struct{})
	for _, c := range cands {
		for _, t := range c.Links {
			if _, ok := targetSeen[t]; ok {
				continue
			}
			targetSeen[t] = struct{}{}
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return cands
	}

	known := e.paths()
	out := cands

	for _, target := range targets {
		if ctx.Err() != nil {
			return out
		}

		rel := e.vault.Resolve(target, known)
		if rel == "" {
			continue // broken link
		}
		if _, ok := seen[strings.ToLower(rel)]; ok {
			continue
		}

		data, err := e.vault.Read(rel)
		if err != nil {
			e.logger.Debug("skipping unreadable linked note", "path", rel, "error", err)
			continue
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			continue
		}

		seen[strings.ToLower(rel)] = struct{}{}
		out = append(out, Candidate{
			ID:         vault.ChunkID(rel, 0, text),
			Source:     rel,
			Text:       text,
			Links:      vault.ExtractLinks(text),
			Score:      LinkedScore,
			Provenance: ProvenanceLinked,
		})
	}
	return out
}
