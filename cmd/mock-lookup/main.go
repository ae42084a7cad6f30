// Command mock-lookup serves canned address lookups for local development.
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

	"addressbook/internal/mocklookup"
	"addressbook/internal/platform/config"
	"addressbook/internal/platform/httpserver"
	"addressbook/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		addr        string
		fixturePath string
		latency     time.Duration
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:          "mock-lookup",
		Short:        "Serve GET /api/getAddresses from a YAML fixture",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger.New(config.LogConfig{Level: logLevel})

			fixture, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}

			srv := httpserver.New(addr, mocklookup.NewServer(fixture,
				mocklookup.WithLogger(log),
				mocklookup.WithLatency(latency),
			).Router())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("starting mock lookup API", "addr", addr, "entries", len(fixture.Entries))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serve: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8081", "listen address")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture file (default: built-in fixture)")
	cmd.Flags().DurationVar(&latency, "latency", 0, "artificial delay added to every response")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	return cmd
}

func loadFixture(path string) (mocklookup.Fixture, error) {
	if path == "" {
		return mocklookup.DefaultFixture()
	}
	return mocklookup.LoadFixture(path)
}
