package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nocturn-hq/concierge-widget/internal/logging"
	"github.com/nocturn-hq/concierge-widget/internal/terminal"
	"github.com/nocturn-hq/concierge-widget/internal/widget"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// The terminal belongs to the panel, so logs go to a file.
			logPath := filepath.Join(os.TempDir(), "nocturn-chat.log")
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			defer logFile.Close()
			logger := logging.NewJSON(logFile, cfg.LogLevel)

			surface := terminal.NewSurface()
			session, err := widget.New(cmd.Context(), cfg,
				widget.WithSurface(surface),
				widget.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer session.Dispose()

			session.OpenPanel()
			program := tea.NewProgram(
				terminal.NewModel(cmd.Context(), session, surface),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("error running chat panel: %w", err)
			}
			return nil
		},
	}
}
