package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cipherchat/internal/crypto"
)

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassword(); err != nil {
				return err
			}
			id, err := appCtx.DeriveIdentity(cmd.Context(), password)
			if err != nil {
				return err
			}
			defer crypto.Wipe(id.Private[:])
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\nPublic key:  %s\n",
				crypto.Fingerprint(id.Public.Slice()), id.Public.Hex())
			return nil
		},
	}
}
