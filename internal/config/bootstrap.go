// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package config

import (
	"log/slog"
	"os"
	"path/filepath"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
	"gopkg.in/yaml.v3"
)

// bootstrapConfig mirrors Config with yaml tags for the generated default
// file. Kept separate so the mapstructure tags on Config stay the single
// source of truth for loading.
type bootstrapConfig struct {
	VaultPath        string   `yaml:"vault_path"`
	BindHost         string   `yaml:"bind_host"`
	BindPort         int      `yaml:"bind_port"`
	LLMModel         string   `yaml:"llm_model"`
	OllamaBaseURL    string   `yaml:"ollama_base_url"`
	EmbedderProvider string   `yaml:"embedder_provider"`
	EmbedderModel    string   `yaml:"embedder_model"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
	RetrievalK       int      `yaml:"retrieval_k"`
	BM25K            int      `yaml:"bm25_k"`
	VectorWeight     float64  `yaml:"vector_weight"`
	BM25Weight       float64  `yaml:"bm25_weight"`
	UseReranker      bool     `yaml:"use_reranker"`
	RerankerTopN     int      `yaml:"reranker_top_n"`
	MinScore         float64  `yaml:"min_score"`
	ExcludeGlobs     []string `yaml:"exclude_globs"`
	Watch            bool     `yaml:"watch"`
}

// DefaultConfigPath returns ~/.config/cerebro/cerebro.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cerebroerr.Errorf(cerebroerr.CodeConfigLoadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cerebro", "cerebro.yaml"), nil
}

// BootstrapConfig writes a default config file to the standard location if
// none exists yet. Returns the path written, or empty string if the file
// already existed or an error occurred (non-fatal — logged and skipped).
func BootstrapConfig(vaultPath string) string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	defaults := bootstrapConfig{
		VaultPath:        vaultPath,
		BindHost:         "127.0.0.1",
		BindPort:         8000,
		LLMModel:         "gemma3",
		OllamaBaseURL:    "http://localhost:11434",
		EmbedderProvider: "ollama",
		EmbedderModel:    "nomic-embed-text",
		ChunkSize:        1500,
		ChunkOverlap:     300,
		RetrievalK:       12,
		BM25K:            5,
		VectorWeight:     0.6,
		BM25Weight:       0.4,
		UseReranker:      true,
		RerankerTopN:     6,
		MinScore:         0.3,
		ExcludeGlobs:     []string{"**/*.excalidraw.md", "**/.obsidian/**", "**/untitled*"},
	}

	out, err := yaml.Marshal(defaults)
	if err != nil {
		slog.Debug("skipping config bootstrap: cannot marshal defaults", "error", err)
		return ""
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
