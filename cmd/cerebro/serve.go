// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cerebro-notes/cerebro/internal/index"
	"github.com/cerebro-notes/cerebro/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the vault and start the HTTP server",
		Long:  "Reconcile the vault with the stores, then serve /health, /stats, /ask, /ask/stream, and /rebuild_db on loopback.",
		RunE:  runServe,
	}

	cmd.Flags().Int("port", 0, "override bind port")
	cmd.Flags().String("model", "", "override generation model")
	cmd.Flags().Bool("reranker", true, "enable the cross-encoder reranker")
	cmd.Flags().Bool("watch", false, "reindex automatically when notes change")
	_ = viper.BindPFlag("bind_port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("llm_model", cmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("use_reranker", cmd.Flags().Lookup("reranker"))
	_ = viper.BindPFlag("watch", cmd.Flags().Lookup("watch"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	// Startup reconciliation: a missing or stale manifest forces work, an
	// up-to-date one makes this a cheap no-op pass.
	sum, err := app.Indexer.Index(ctx, false)
	if err != nil {
		return err
	}
	if err := app.Indexer.RebuildLexical(ctx); err != nil {
		return err
	}
	slog.Info("vault indexed",
		"files", sum.Files, "changed", sum.Changed, "upserted", sum.Upserted, "deleted", sum.Deleted)

	if cfg.Watch {
		watcher := index.NewWatcher(app.Indexer, cfg.VaultPath)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("vault watcher stopped", "error", err)
			}
		}()
	}

	srv, err := server.New(app)
	if err != nil {
		return err
	}

	slog.Info("serving", "addr", cfg.ListenAddr(), "model", cfg.LLMModel, "reranker", cfg.UseReranker)
	return srv.Start(ctx)
}
