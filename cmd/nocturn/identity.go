package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nocturn-hq/concierge-widget/internal/identity"
	"github.com/nocturn-hq/concierge-widget/internal/logging"
)

func newIdentityCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "identity",
		Short: "Show the persisted guest identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewConsole(os.Stderr, cfg.LogLevel)

			backend, err := identity.OpenStorage(cmd.Context(), cfg.Storage)
			if err != nil {
				logger.Warn().Err(err).Str("driver", cfg.Storage.Driver).Msg("identity storage unavailable")
				backend = nil
			}
			store := identity.Open(cmd.Context(), backend, identity.WithLogger(logger))
			defer store.Close()

			id := store.Identity(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session:  %s\n", id.SessionID)
			fmt.Fprintf(out, "consent:  %t\n", id.ConsentGiven)
			fmt.Fprintf(out, "storage:  %s (scope %s)\n", cfg.Storage.Driver, cfg.Storage.Scope)
			fmt.Fprintf(out, "degraded: %t\n", store.Degraded())
			return nil
		},
	}
}
