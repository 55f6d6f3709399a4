package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
	"cipherchat/internal/services/session"
)

// listen: print messages as they arrive until interrupted.
func listenCmd() *cobra.Command {
	var saveDir string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print direct and group messages as the relay pushes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := unlock(ctx); err != nil {
				return err
			}
			defer appCtx.Session.Lock()

			// Anything queued while offline comes first.
			msgs, err := appCtx.Session.ReceiveDirect(ctx, 0)
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m, saveDir)
			}
			if errors.Is(err, session.ErrMessagesPending) {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			} else if err != nil {
				return err
			}

			me, _, _ := appCtx.Session.Self()
			fmt.Fprintf(cmd.ErrOrStderr(), "listening as %s, Ctrl-C to stop\n", me)
			err = appCtx.Session.Listen(ctx, func(m domain.DecryptedMessage) {
				printMessage(cmd.OutOrStdout(), m, saveDir)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "write received files into this directory")
	return cmd
}
