// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package config

import (
	"errors"
	"net"
	"os"
	"strconv"
	"strings"

	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the frozen application configuration. It is assembled once at
// startup from defaults, an optional YAML file, environment variables
// (prefix CEREBRO_), and CLI flags; the rest of the process reads it by
// value and never mutates it.
type Config struct {
	VaultPath string `mapstructure:"vault_path"`
	BindHost  string `mapstructure:"bind_host"`
	BindPort  int    `mapstructure:"bind_port"`

	LLMModel      string `mapstructure:"llm_model"`
	OllamaBaseURL string `mapstructure:"ollama_base_url"`

	EmbedderProvider string `mapstructure:"embedder_provider"`
	EmbedderModel    string `mapstructure:"embedder_model"`

	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	RetrievalK   int     `mapstructure:"retrieval_k"`
	BM25K        int     `mapstructure:"bm25_k"`
	VectorWeight float64 `mapstructure:"vector_weight"`
	BM25Weight   float64 `mapstructure:"bm25_weight"`

	UseReranker  bool    `mapstructure:"use_reranker"`
	RerankerTopN int     `mapstructure:"reranker_top_n"`
	MinScore     float64 `mapstructure:"min_score"`

	ExcludeGlobs []string `mapstructure:"exclude_globs"`
	Watch        bool     `mapstructure:"watch"`
}

// SetDefaults installs the default value for every config key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bind_host", "127.0.0.1")
	v.SetDefault("bind_port", 8000)
	v.SetDefault("llm_model", "gemma3")
	v.SetDefault("ollama_base_url", "http://localhost:11434")
	v.SetDefault("embedder_provider", "ollama")
	v.SetDefault("embedder_model", "nomic-embed-text")
	v.SetDefault("chunk_size", 1500)
	v.SetDefault("chunk_overlap", 300)
	v.SetDefault("retrieval_k", 12)
	v.SetDefault("bm25_k", 5)
	v.SetDefault("vector_weight", 0.6)
	v.SetDefault("bm25_weight", 0.4)
	v.SetDefault("use_reranker", true)
	v.SetDefault("reranker_top_n", 6)
	v.SetDefault("min_score", 0.3)
	v.SetDefault("exclude_globs", []string{
		"**/*.excalidraw.md",
		"**/.obsidian/**",
		"**/untitled*",
	})
	v.SetDefault("watch", false)
}

// SetupEnv binds environment variables with the CEREBRO_ prefix.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("CEREBRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given file path (or defaults-only when
// empty) with environment variable overrides, then validates.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cerebroerr.Errorf(cerebroerr.CodeConfigLoadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config out of an already-populated
// viper instance (used by the CLI, where flags are bound on the global viper).
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerebroerr.Errorf(cerebroerr.CodeConfigLoadFailure, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a slice
// of all validation errors found, collecting all issues rather than
// stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.VaultPath == "" {
		errs = append(errs, cerebroerr.New(cerebroerr.CodeVaultMissing, "config: vault_path must be set"))
	} else if info, err := os.Stat(c.VaultPath); err != nil || !info.IsDir() {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeVaultMissing,
			"config: vault_path %q does not exist or is not a directory", c.VaultPath))
	}

	if c.BindPort < 1 || c.BindPort > 65535 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: bind_port must be between 1 and 65535, got %d", c.BindPort))
	}

	if c.LLMModel == "" {
		errs = append(errs, cerebroerr.New(cerebroerr.CodeConfigInvalidValue, "config: llm_model must not be empty"))
	}

	validProviders := map[string]bool{"ollama": true, "local": true}
	if !validProviders[c.EmbedderProvider] {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: embedder_provider must be one of [ollama, local], got %q", c.EmbedderProvider))
	}

	if c.ChunkSize <= 0 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: chunk_size must be greater than 0, got %d", c.ChunkSize))
	}

	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: chunk_overlap must be in [0, chunk_size), got %d", c.ChunkOverlap))
	}

	if c.RetrievalK <= 0 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: retrieval_k must be greater than 0, got %d", c.RetrievalK))
	}

	if c.BM25K <= 0 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: bm25_k must be greater than 0, got %d", c.BM25K))
	}

	if c.VectorWeight < 0 || c.BM25Weight < 0 {
		errs = append(errs, cerebroerr.New(cerebroerr.CodeConfigInvalidValue,
			"config: retrieval weights must not be negative"))
	}

	if c.RerankerTopN <= 0 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: reranker_top_n must be greater than 0, got %d", c.RerankerTopN))
	}

	if c.MinScore < 0 || c.MinScore > 1 {
		errs = append(errs, cerebroerr.Errorf(cerebroerr.CodeConfigInvalidValue,
			"config: min_score must be in [0, 1], got %g", c.MinScore))
	}

	return errs
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.BindPort))
}
