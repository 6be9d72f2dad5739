// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cerebro Contributors

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cerebro-notes/cerebro/internal/tui"
	"github.com/cerebro-notes/cerebro/pkg/health"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running cerebro server",
		RunE:  runChat,
	}

	cmd.Flags().String("server", "", "server base URL (default from bind_host/bind_port)")
	_ = viper.BindPFlag("chat_server", cmd.Flags().Lookup("server"))

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	base := viper.GetString("chat_server")
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		base = "http://" + cfg.ListenAddr()
	}

	if !health.WaitReady(cmd.Context(), base) {
		return fmt.Errorf("no cerebro server at %s; start one with `cerebro serve`", base)
	}

	client := tui.NewClient(base)
	model, err := client.Health(cmd.Context())
	if err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(client, model), tea.WithAltScreen())
	_, err = program.Run()
	return err
}
