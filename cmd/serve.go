package cmd

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

	"github.com/naka-gawa/github-pr-exporter/internal/exporter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves pull request metrics on /metrics",
	Long: `Starts an HTTP server exposing '/' and '/metrics'. Every scrape of '/metrics'
runs a collection pass, unless --poll-interval is set, in which case passes run
in the background and scrapes return the latest values.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		registry := exporter.NewRegistry()
		exp := exporter.NewExporter(rt.collector, rt.repos, registry, rt.logger, rt.cfg.PollInterval == 0)

		if rt.cfg.PollInterval > 0 {
			poller, err := exporter.NewPoller(exp, rt.cfg.PollInterval)
			if err != nil {
				return err
			}
			if err := poller.Start(ctx); err != nil {
				return err
			}
			defer func() {
				if err := poller.Stop(); err != nil {
					rt.logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
				}
			}()
		}

		srv := &http.Server{
			Addr:              rt.cfg.ListenAddr,
			Handler:           exp.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info().Str("addr", rt.cfg.ListenAddr).Int("repositories", len(rt.repos)).Msg("Listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		rt.logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen-addr", ":3000", "Address to serve metrics on")
	serveCmd.Flags().Duration("poll-interval", 0, "Collect in the background on this interval instead of on every scrape")
}
