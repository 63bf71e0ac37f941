package main

import (
	"fmt"
	"text/tabwriter"

	ragjson "github.com/fwojciec/ragchat/json"
	"github.com/spf13/cobra"
)

func (a *app) sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved chat sessions",
		Long: `List the chat sessions saved under the session directory, most recently
updated first. Resume one with "ragchat chat --session <path>".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := ragjson.List(a.cfg.SessionDir)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintf(out, "No sessions in %s.\n", a.cfg.SessionDir)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "UPDATED\tMESSAGES\tCONVERSATION\tFIRST QUESTION\tPATH")
			for _, s := range infos {
				conv := s.ConversationID
				if conv == "" {
					conv = "-"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", formatTime(s.UpdatedAt), s.Messages, conv, s.Preview, s.Path)
			}
			return tw.Flush()
		},
	}
}
