package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"cipherchat/internal/domain"
)

// recv: fetch, decrypt and acknowledge queued direct messages.
func recvCmd() *cobra.Command {
	var (
		limit   int
		saveDir string
	)
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := unlock(ctx); err != nil {
				return err
			}
			defer appCtx.Session.Lock()

			msgs, err := appCtx.Session.ReceiveDirect(ctx, limit)
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m, saveDir)
			}
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages to fetch (0 = all)")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "write received files into this directory")
	return cmd
}

// printMessage writes one line per message. Decrypted files are saved
// under saveDir when it is set.
func printMessage(w io.Writer, m domain.DecryptedMessage, saveDir string) {
	at := time.UnixMilli(m.Timestamp).Format("2006-01-02 15:04:05")
	prefix := fmt.Sprintf("%s [%s] %s:", at, m.Conversation, m.From)

	if m.Status != domain.StatusDecrypted {
		fmt.Fprintf(w, "%s <%s>\n", prefix, m.Status)
		return
	}
	if m.Type != domain.PayloadFile {
		fmt.Fprintf(w, "%s %s\n", prefix, m.Plaintext)
		return
	}

	line := fmt.Sprintf("%s file %q (%s, %d bytes)", prefix, m.FileName, m.FileType, len(m.Plaintext))
	if saveDir != "" {
		// Only the base name: a sender cannot pick the path.
		path := filepath.Join(saveDir, filepath.Base(m.FileName))
		if err := os.WriteFile(path, m.Plaintext, 0o600); err != nil {
			line += fmt.Sprintf(" not saved: %v", err)
		} else {
			line += " saved to " + path
		}
	}
	fmt.Fprintln(w, line)
}
