package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cipherchat/internal/app"
)

var (
	home     string
	password string
	appCtx   *app.App

	relayURL string
	username string
	logLevel string
)

// Execute runs the root command until ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Flag variables are reset on every call.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cipherchat",
		Short:        "End-to-end encrypted chat CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".cipherchat")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			cfg, err := app.LoadConfig(home)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if username != "" {
				cfg.Username = username
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			log, err := app.NewLogger(cfg.LogLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			appCtx, err = app.New(cfg, log)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.cipherchat)")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "password your keys are derived from")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVar(&username, "username", "", "your username (overrides config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: panic, fatal, error, warn, info, debug, trace")

	root.AddCommand(
		fingerprintCmd(),
		registerCmd(),
		sendCmd(),
		sendFileCmd(),
		recvCmd(),
		listenCmd(),
		groupCmd(),
	)
	return root
}

func requirePassword() error {
	if password == "" {
		return errors.New("password required (-p)")
	}
	return nil
}

// unlock derives the identity and opens the session controller.
func unlock(ctx context.Context) error {
	if err := requirePassword(); err != nil {
		return err
	}
	return appCtx.Unlock(ctx, password)
}
