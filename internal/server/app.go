// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

// Package server exposes the HTTP/SSE surface over the QA engine.
package server

import (
	"github.com/cerebro-notes/cerebro/internal/config"
	"github.com/cerebro-notes/cerebro/internal/embed"
	"github.com/cerebro-notes/cerebro/internal/generate"
	"github.com/cerebro-notes/cerebro/internal/index"
	"github.com/cerebro-notes/cerebro/internal/qa"
	"github.com/cerebro-notes/cerebro/internal/store"
	"github.com/cerebro-notes/cerebro/internal/vault"
)

// App is the single process-wide state object: the frozen config and
// every long-lived subsystem handle. It is constructed once at startup
// (cmd wire.go), passed into request handlers, and torn down on shutdown.
type App struct {
	Config       *config.Config
	Vault        *vault.Vault
	Vectors      store.VectorStore
	Lexical      *store.LexicalStore
	Indexer      *index.Indexer
	Embedder     embed.Embedder
	Generator    generate.Generator
	Orchestrator *qa.Orchestrator
	Version      string
}

// Close releases the app's store handles.
func (a *App) Close() error {
	var first error
	if a.Lexical != nil {
		if err := a.Lexical.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.Vectors != nil {
		if err := a.Vectors.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
