package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cipherchat/internal/crypto"
	"cipherchat/internal/domain"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Create and use group conversations",
	}
	cmd.AddCommand(
		groupCreateCmd(),
		groupAddCmd(),
		groupRemoveCmd(),
		groupRotateCmd(),
		groupSendCmd(),
		groupRecvCmd(),
		groupInfoCmd(),
	)
	return cmd
}

// withIdentity runs fn with the caller's derived identity and wipes it after.
func withIdentity(cmd *cobra.Command, fn func(id domain.Identity) error) error {
	if err := requirePassword(); err != nil {
		return err
	}
	id, err := appCtx.DeriveIdentity(cmd.Context(), password)
	if err != nil {
		return err
	}
	defer crypto.Wipe(id.Private[:])
	return fn(id)
}

func groupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <member>...",
		Short: "Create a group; you become its admin",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			members := make([]domain.Username, 0, len(args)-1)
			for _, m := range args[1:] {
				members = append(members, domain.Username(m))
			}
			return withIdentity(cmd, func(id domain.Identity) error {
				g, err := appCtx.Groups.CreateGroup(cmd.Context(), id, args[0], members)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created group %q: %s\n", g.Name, g.ID)
				return nil
			})
		},
	}
}

func groupAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <group> <member>",
		Short: "Add a member and give them the current key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentity(cmd, func(id domain.Identity) error {
				if err := appCtx.Groups.AddMember(cmd.Context(), id, domain.GroupID(args[0]), domain.Username(args[1])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[1])
				return nil
			})
		},
	}
}

func groupRemoveCmd() *cobra.Command {
	var noRotate bool
	cmd := &cobra.Command{
		Use:   "remove <group> <member>",
		Short: "Remove a member; the key is rotated so they cannot read new messages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentity(cmd, func(id domain.Identity) error {
				err := appCtx.Groups.RemoveMember(cmd.Context(), id, domain.GroupID(args[0]), domain.Username(args[1]), !noRotate)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[1])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noRotate, "no-rotate", false, "keep the current key (the removed member can still read new messages)")
	return cmd
}

func groupRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate <group>",
		Short: "Replace the group key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIdentity(cmd, func(id domain.Identity) error {
				v, err := appCtx.Groups.RotateKey(cmd.Context(), id, domain.GroupID(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Group key is now version %d\n", v)
				return nil
			})
		},
	}
}

func groupSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <group> <message>",
		Short: "Encrypt and send a group message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := unlock(ctx); err != nil {
				return err
			}
			defer appCtx.Session.Lock()

			conv, err := appCtx.Session.OpenGroup(ctx, domain.GroupID(args[0]))
			if err != nil {
				return err
			}
			env, err := appCtx.Session.Send(ctx, conv, domain.OutgoingMessage{
				Type: domain.PayloadText,
				Body: []byte(args[1]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s (key version %d)\n", env.ID, env.KeyVersion)
			return nil
		},
	}
}

func groupRecvCmd() *cobra.Command {
	var (
		since   int64
		saveDir string
	)
	cmd := &cobra.Command{
		Use:   "recv <group>",
		Short: "Fetch and decrypt group messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := unlock(ctx); err != nil {
				return err
			}
			defer appCtx.Session.Lock()

			msgs, err := appCtx.Session.ReceiveGroup(ctx, domain.GroupConversation(domain.GroupID(args[0])), since)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), m, saveDir)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "only messages after this unix-millisecond timestamp")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "write received files into this directory")
	return cmd
}

func groupInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <group>",
		Short: "Show a group's members and key version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := appCtx.Relay.FetchGroup(cmd.Context(), domain.GroupID(args[0]))
			if err != nil {
				return err
			}
			members := make([]string, len(g.Members))
			for i, m := range g.Members {
				members[i] = m.String()
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Group:       %s (%s)\n", g.Name, g.ID)
			fmt.Fprintf(w, "Admin:       %s\n", g.Admin)
			fmt.Fprintf(w, "Members:     %s\n", strings.Join(members, ", "))
			fmt.Fprintf(w, "Key version: %d\n", g.KeyVersion)
			return nil
		},
	}
}
