// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cerebro-notes/cerebro/internal/config"
	cerebroerr "github.com/cerebro-notes/cerebro/pkg/errors"
)

// NewRootCmd creates the root cerebro command with all subcommands
// registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cerebro",
		Short:         "Cerebro — ask questions about your Markdown notes",
		Long:          "Cerebro indexes a vault of Markdown notes and answers natural-language questions about them with a locally hosted model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("vault", "", "path to the notes vault")

	root.AddCommand(
		newServeCmd(),
		newIndexCmd(),
		newChatCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return cerebroerr.Errorf(cerebroerr.CodeConfigLoadFailure, "reading config file: %w", err)
		}
	} else {
		v.SetConfigName("cerebro")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/cerebro")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return cerebroerr.Errorf(cerebroerr.CodeConfigLoadFailure, "reading config: %w", err)
			}
		}
	}

	if err := v.BindPFlag("vault_path", cmd.Root().PersistentFlags().Lookup("vault")); err != nil {
		return cerebroerr.Errorf(cerebroerr.CodeCLISetupFailure, "binding vault flag: %w", err)
	}

	return nil
}

// loadConfig resolves the frozen config from the global viper.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}
