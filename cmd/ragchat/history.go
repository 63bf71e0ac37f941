package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sanitize"
	"github.com/spf13/cobra"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "List stored conversations or print one",
		Long: `Without arguments, list the configured user's conversations, most recent
first. With a conversation ID, print its stored messages and sources.

Examples:
  ragchat history
  ragchat history --limit 50
  ragchat history 7f1c2d`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.requireBackend()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				convs, more, err := backend.Conversations(cmd.Context(), a.cfg.API.UserID, limit)
				if err != nil {
					return fmt.Errorf("list conversations: %w", err)
				}
				if len(convs) == 0 {
					fmt.Fprintln(out, "No conversations found.")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CONVERSATION\tLAST MESSAGE AT\tLAST MESSAGE")
				for _, c := range convs {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", sanitize.Text(c.ConversationID), formatTime(c.LastMessageAt), oneLine(c.LastMessage))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if more {
					fmt.Fprintln(out, "(more conversations available, raise --limit)")
				}
				return nil
			}

			msgs, err := a.historyCache(backend).History(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load history: %w", err)
			}
			for i, m := range msgs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s (%s):\n%s\n", m.Role, formatTime(m.Timestamp), strings.TrimRight(sanitize.Text(m.Display()), "\n"))
				if m.Role == ragchat.RoleAssistant {
					writeCitations(out, m.Citations)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum conversations to list")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(sanitize.Text(s)), " ")
}
