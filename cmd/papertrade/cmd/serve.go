package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/papertrade/api"
	"github.com/rustyeddy/papertrade/sim"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and serve it over HTTP",
	Long: `Start the simulation clock together with the HTTP API and the
notification websocket used by the browser UI.

Example:
  papertrade serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().DurationVar(&runInterval, "interval", 0, "tick interval (overrides config)")
	serveCmd.Flags().Uint64Var(&runTicks, "ticks", 0, "stop the clock after this many ticks")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	cc, err := clockConfig(cmd)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := api.NewServer(a.engine, a.feed, a.metrics, api.Config{
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	}, logger)

	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.Hub().Run(ctx)
		return nil
	})

	g.Go(func() error {
		// A finished tick limit leaves the API up until shutdown.
		return sim.NewClock(a.engine, cc, logger).Run(ctx)
	})

	g.Go(func() error {
		logger.Info("papertrade listening", slog.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
