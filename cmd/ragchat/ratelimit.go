package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) rateLimitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate-limit",
		Short: "Show the backend's remaining quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := a.requireBackend()
			if err != nil {
				return err
			}
			st, err := backend.RateLimit(cmd.Context(), a.cfg.API.UserID)
			if err != nil {
				return fmt.Errorf("rate limit: %w", err)
			}
			out := cmd.OutOrStdout()
			if st.UserID != "" {
				fmt.Fprintf(out, "User:               %s\n", st.UserID)
			}
			fmt.Fprintf(out, "Requests remaining: %d\n", st.RequestsRemaining)
			fmt.Fprintf(out, "Tokens remaining:   %d\n", st.TokensRemaining)
			if !st.ResetAt.IsZero() {
				fmt.Fprintf(out, "Resets at:          %s\n", formatTime(st.ResetAt))
			}
			if st.Limited {
				fmt.Fprintf(out, "Limited:            yes, retry after %s\n", st.RetryAfter)
			} else {
				fmt.Fprintln(out, "Limited:            no")
			}
			return nil
		},
	}
}
