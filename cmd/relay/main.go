package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cipherchat/internal/app"
	"cipherchat/internal/relay/server"
	"cipherchat/internal/store"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		dataDir    string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Store-and-forward relay for cipherchat",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadRelayConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to relay.yaml")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "badger directory; empty keeps state in memory")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level")
	return cmd
}

func serve(ctx context.Context, cfg app.RelayConfig) error {
	log, err := app.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	st, err := store.OpenBadger(cfg.DataDir, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Error("close store")
		}
	}()

	srv := server.New(st, log, server.WithMaxBodyBytes(cfg.MaxBodyBytes))
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Listen).Info("relay listening")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	srv.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
