package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"silent/internal/domain"
	"silent/internal/services/identity"
)

// startSessionCmd performs the X3DH handshake against a peer's pre-key bundle
// and persists a new session for future messaging.
func startSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-session <peer>",
		Short: "Establish a secure session with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			peer := domain.Username(args[0])

			sess, err := appCtx.Sessions.InitiateSession(cmd.Context(), passphrase, peer)
			if err != nil {
				return fmt.Errorf("starting session with %q: %w", peer, err)
			}

			// Print the peer's fingerprint so users can verify it out of band.
			fmt.Printf("Session created with %s.\nPeer fingerprint: %s\n",
				peer, identity.Fingerprint(sess.PeerIdentityKey))
			return nil
		},
	}
}

func closeSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close-session <peer>",
		Short: "Forget all session state for a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := domain.Username(args[0])
			if err := appCtx.Sessions.CloseSession(peer); err != nil {
				return err
			}
			fmt.Printf("Session with %s closed\n", peer)
			return nil
		},
	}
}

// sessionsCmd lists contacts with an active ratchet session.
func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List peers with an active session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, err := appCtx.Sessions.Peers()
			if err != nil {
				return err
			}
			if len(peers) == 0 {
				fmt.Println("No sessions")
				return nil
			}
			for _, peer := range peers {
				rec, ok, err := appCtx.Sessions.GetSession(peer)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Printf("%s\n", peer)
					continue
				}
				status := "confirmed"
				if rec.Pending {
					status = "pending"
				}
				fmt.Printf("%s\t%s\t%s\n", peer, status, identity.Fingerprint(rec.PeerIdentityKey))
			}
			return nil
		},
	}
}
