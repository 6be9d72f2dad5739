// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"context"
	"path/filepath"

	"github.com/cerebro-notes/cerebro/internal/config"
	"github.com/cerebro-notes/cerebro/internal/embed"
	"github.com/cerebro-notes/cerebro/internal/generate"
	"github.com/cerebro-notes/cerebro/internal/index"
	"github.com/cerebro-notes/cerebro/internal/qa"
	"github.com/cerebro-notes/cerebro/internal/retrieve"
	"github.com/cerebro-notes/cerebro/internal/server"
	"github.com/cerebro-notes/cerebro/internal/store"
	storesqlite "github.com/cerebro-notes/cerebro/internal/store/sqlite"
	"github.com/cerebro-notes/cerebro/internal/vault"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// version is stamped by the build; "dev" otherwise.
var version = "dev"

// WireApp constructs the single process-wide state object: every
// subsystem, wired in dependency order.
func WireApp(ctx context.Context, cfg *config.Config) (*server.App, error) {
	v, err := vault.New(cfg.VaultPath, cfg.ExcludeGlobs)
	if err != nil {
		return nil, err
	}

	stateDir, err := v.StateDir()
	if err != nil {
		return nil, err
	}

	embedder, err := embed.New(cfg)
	if err != nil {
		return nil, err
	}

	// The vector store's dense dimension is fixed at open time; probe the
	// embedder once so both agree. Changing the embedder model requires
	// deleting the db directory and rebuilding.
	probe, err := embedder.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return nil, err
	}
	dimensions := len(probe[0])
	if dimensions == 0 {
		return nil, cerebroerr.New(cerebroerr.CodeEmbedDimMismatch, "embedder returned an empty vector")
	}

	vectors, err := storesqlite.NewVectorStore(filepath.Join(stateDir, "db", "vectors.db"), dimensions)
	if err != nil {
		return nil, err
	}

	lexical, err := store.NewLexicalStore()
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	manifest, err := index.LoadManifest(filepath.Join(stateDir, index.ManifestFileName))
	if err != nil {
		_ = lexical.Close()
		_ = vectors.Close()
		return nil, err
	}

	chunker := vault.Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	indexer := index.New(v, chunker, embedder, vectors, lexical, manifest)

	generator := generate.NewClient(cfg.OllamaBaseURL, cfg.LLMModel)

	hybrid := retrieve.NewHybrid(embedder, vectors, lexical, retrieve.HybridConfig{
		RetrievalK:   cfg.RetrievalK,
		BM25K:        cfg.BM25K,
		VectorWeight: cfg.VectorWeight,
		BM25Weight:   cfg.BM25Weight,
	})
	reranker := retrieve.NewReranker(retrieve.OverlapScorer{}, cfg.RerankerTopN)
	expander := retrieve.NewExpander(v, indexer.KnownPaths)

	orchestrator := qa.New(hybrid, reranker, expander, generator, cfg.UseReranker, cfg.MinScore)

	return &server.App{
		Config:       cfg,
		Vault:        v,
		Vectors:      vectors,
		Lexical:      lexical,
		Indexer:      indexer,
		Embedder:     embedder,
		Generator:    generator,
		Orchestrator: orchestrator,
		Version:      version,
	}, nil
}
