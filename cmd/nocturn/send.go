package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nocturn-hq/concierge-widget/internal/logging"
	"github.com/nocturn-hq/concierge-widget/internal/model/chat"
	"github.com/nocturn-hq/concierge-widget/internal/view"
	"github.com/nocturn-hq/concierge-widget/internal/widget"
)

func newSendCommand(opts *rootOptions) *cobra.Command {
	var accept bool

	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the concierge's reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			logger := logging.NewConsole(os.Stderr, cfg.LogLevel)

			replies := make(chan string, 1)
			var seen int
			surface := view.SurfaceFunc(func(snap view.Snapshot) {
				for ; seen < len(snap.Turns); seen++ {
					if turn := snap.Turns[seen]; turn.Role == chat.RoleAI {
						select {
						case replies <- turn.Text:
						default:
						}
					}
				}
			})

			session, err := widget.New(cmd.Context(), cfg,
				widget.WithSurface(surface),
				widget.WithLogger(logger),
			)
			if err != nil {
				return err
			}
			defer session.Dispose()

			if accept {
				session.AcceptConsent(cmd.Context())
			}

			err = session.Submit(cmd.Context(), strings.Join(args, " "))
			if errors.Is(err, widget.ErrConsentRequired) {
				return fmt.Errorf("consent required: review %s and rerun with --accept", cfg.Widget.PrivacyURL)
			}
			if err != nil {
				return err
			}

			// Over the fallback path the reply is already queued; over the
			// duplex channel it arrives later.
			select {
			case reply := <-replies:
				fmt.Fprintln(cmd.OutOrStdout(), reply)
				return nil
			case <-time.After(cfg.Transport.HTTPTimeout):
				return errors.New("timed out waiting for a reply")
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().BoolVar(&accept, "accept", false, "accept the privacy policy before sending")
	return cmd
}
