package commands

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

// send <peer> <message>: encrypt and send a message to <peer>.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendDirect(cmd, domain.Username(args[0]), domain.OutgoingMessage{
				Type: domain.PayloadText,
				Body: []byte(args[1]),
			})
		},
	}
}

// send-file <peer> <path>: encrypt a file and send it to <peer>.
func sendFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-file <peer> <path>",
		Short: "Encrypt and send a file to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := fileMessage(args[1])
			if err != nil {
				return err
			}
			return sendDirect(cmd, domain.Username(args[0]), msg)
		},
	}
}

func sendDirect(cmd *cobra.Command, peer domain.Username, msg domain.OutgoingMessage) error {
	ctx := cmd.Context()
	if err := unlock(ctx); err != nil {
		return err
	}
	defer appCtx.Session.Lock()

	conv, err := appCtx.Session.OpenDirect(ctx, peer)
	if err != nil {
		return fmt.Errorf("open conversation with %q: %w", peer, err)
	}
	env, err := appCtx.Session.Send(ctx, conv, msg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", env.ID)
	return nil
}

func fileMessage(path string) (domain.OutgoingMessage, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return domain.OutgoingMessage{}, err
	}
	kind := mime.TypeByExtension(filepath.Ext(path))
	if kind == "" {
		kind = "application/octet-stream"
	}
	return domain.OutgoingMessage{
		Type:     domain.PayloadFile,
		Body:     body,
		FileName: filepath.Base(path),
		FileType: kind,
	}, nil
}
