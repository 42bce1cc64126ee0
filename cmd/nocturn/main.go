package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nocturn-hq/concierge-widget/internal/config"
)

type rootOptions struct {
	configPath string
	propertyID string
	apiURL     string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "nocturn",
		Short:         "Guest chat for the Nocturn hotel concierge",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML file overlaid on the environment configuration")
	root.PersistentFlags().StringVar(&opts.propertyID, "property", "", "property (tenant) id, overrides NOCTURN_PROPERTY_ID")
	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "backend base address, overrides NOCTURN_API_URL")

	root.AddCommand(
		newChatCommand(opts),
		newSendCommand(opts),
		newIdentityCommand(opts),
	)
	return root
}

// loadConfig layers .env, the environment, the optional YAML file and
// the command-line flags, in that order.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.configPath != "" {
		if err := cfg.ApplyFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.propertyID != "" {
		cfg.Widget.PropertyID = o.propertyID
	}
	if o.apiURL != "" {
		cfg.Widget.APIURL = o.apiURL
	}
	return cfg, nil
}
