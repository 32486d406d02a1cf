package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"silent/internal/domain"
	"silent/internal/services/message"
)

// recv: fetch and decrypt queued messages for --username.
func recvCmd() *cobra.Command {
	var (
		follow   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			me, err := whoami()
			if err != nil {
				return err
			}

			if follow {
				err := appCtx.Messages.Listen(cmd.Context(), passphrase, me, interval, printMessage)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			msgs, err := appCtx.Messages.ReceiveMessages(cmd.Context(), passphrase, me, 0)
			for _, m := range msgs {
				printMessage(m.From, m)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "your username (default: the one registered on this relay)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new messages until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", message.DefaultPollInterval, "poll interval with --follow")
	return cmd
}

func printMessage(from domain.Username, m domain.DecryptedMessage) {
	fmt.Printf("[%s %s] %s\n", time.Unix(m.Timestamp, 0).Format(time.DateTime), from, m.Plaintext)
}
