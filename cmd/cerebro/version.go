// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cerebro version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "cerebro "+version)
			return err
		},
	}
}
