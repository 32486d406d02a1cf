package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"silent/internal/app"
	"silent/internal/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		listen     string
		logFile    string
		debugLevel string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "In-memory relay for silent key bundles and envelopes",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := app.NewLogBackend(logFile, debugLevel, os.Stdout)
			if err != nil {
				return err
			}
			defer logs.Close()
			log := logs.Logger(app.SubsysRelay)

			srv := &http.Server{
				Addr:              listen,
				Handler:           relay.NewServer(log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				log.Infof("Relay listening on %s", listen)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				log.Infof("Shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "listen address")
	cmd.Flags().StringVar(&logFile, "logfile", "", "rotating log file (default stdout only)")
	cmd.Flags().StringVar(&debugLevel, "debuglevel", "info", "log level, optionally per subsystem (e.g. info,RLAY=debug)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
