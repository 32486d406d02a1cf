package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"silent/internal/domain"
)

func registerCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Publish your pre-key bundle to the relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			me := domain.Username(args[0])

			// Generate a signed pre-key and a batch of one-time pre-keys.
			if _, _, err := appCtx.Prekey.GenerateAndStorePreKeys(passphrase, count); err != nil {
				return err
			}

			// Assemble the public bundle and cache it.
			bundle, err := appCtx.Prekey.LoadPreKeyBundle(passphrase, me)
			if err != nil {
				return err
			}

			if err := appCtx.Relay.PublishBundle(cmd.Context(), bundle); err != nil {
				return err
			}

			// Remember who we are on this relay so send and recv can default --username.
			if err := appCtx.Accounts.SaveAccount(domain.Account{
				RelayURL:     appCtx.RelayURL,
				Username:     me,
				RegisteredAt: time.Now().Unix(),
			}); err != nil {
				return err
			}
			fmt.Printf("Registered %s with relay (%d one-time pre-keys)\n", me, len(bundle.OneTimePreKeys))
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "prekeys", 10, "number of one-time pre-keys to generate")
	return cmd
}
