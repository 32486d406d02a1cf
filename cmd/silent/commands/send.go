package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"silent/internal/domain"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			me, err := whoami()
			if err != nil {
				return err
			}
			peer := domain.Username(args[0])
			msg := []byte(args[1])

			if err := appCtx.Messages.SendMessage(cmd.Context(), passphrase, me, peer, msg); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "your username (default: the one registered on this relay)")
	return cmd
}
