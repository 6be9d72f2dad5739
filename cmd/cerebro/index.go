// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run one reconciliation pass over the vault",
		RunE:  runIndex,
	}

	cmd.Flags().Bool("force", false, "reprocess every file regardless of its manifest hash")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")

	app, err := WireApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	sum, err := app.Indexer.Index(cmd.Context(), force)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(),
		"indexed %d files: %d changed, %d unchanged, %d failed (%d chunks written, %d removed)\n",
		sum.Files, sum.Changed, sum.Skipped, sum.Failed, sum.Upserted, sum.Deleted)
	return err
}
