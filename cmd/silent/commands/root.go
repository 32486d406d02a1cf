package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"silent/internal/app"
	"silent/internal/domain"
)

var (
	home       string
	passphrase string
	appCtx     *app.Wire

	configFile string
	relayURL   string
	debugLevel string
	username   string
)

var errNoPassphrase = errors.New("passphrase required (-p)")

// Execute runs the CLI until it finishes or is interrupted.
func Execute() error {
	root := &cobra.Command{
		Use:           "silent",
		Short:         "End-to-end encrypted messaging CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".silent")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadHome(home, configFile)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.Relay.URL = relayURL
			}
			if debugLevel != "" {
				cfg.Logging.Level = debugLevel
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}

			appCtx, err = app.NewWire(app.Options{Home: home, Config: cfg, Stdout: os.Stderr})
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.silent)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase to protect keys")
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default <home>/config.toml)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&debugLevel, "debuglevel", "", "log level, optionally per subsystem (e.g. info,SESS=debug)")

	root.AddCommand(
		initCmd(),
		fingerprintCmd(),
		registerCmd(),
		startSessionCmd(),
		closeSessionCmd(),
		sessionsCmd(),
		sendCmd(),
		recvCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := root.ExecuteContext(ctx)
	if appCtx != nil {
		err = errors.Join(err, appCtx.Close())
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func requirePassphrase() error {
	if passphrase == "" {
		return errNoPassphrase
	}
	return nil
}

// whoami returns --username, or the account registered on the configured relay.
func whoami() (domain.Username, error) {
	if username != "" {
		return domain.Username(username), nil
	}
	acct, ok, err := appCtx.Accounts.LoadAccount(appCtx.RelayURL)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no account registered on %s; pass --username or run register", appCtx.RelayURL)
	}
	return acct.Username, nil
}
