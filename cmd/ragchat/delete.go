package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a stored conversation",
		Long: `Delete a stored conversation and all of its messages from the backend.

Examples:
  ragchat delete 7f1c2d`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.requireBackend()
			if err != nil {
				return err
			}
			n, err := backend.Delete(cmd.Context(), args[0], a.cfg.API.UserID)
			if err != nil {
				return fmt.Errorf("delete conversation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d messages from %s\n", n, args[0])
			return nil
		},
	}
}
