package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fwojciec/ragchat"
	bt "github.com/fwojciec/ragchat/bubbletea"
	ragjson "github.com/fwojciec/ragchat/json"
	"github.com/fwojciec/ragchat/lru"
	promobs "github.com/fwojciec/ragchat/prometheus"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// chatCmd runs the interactive chat. Its flags are bound on both the root
// command and the explicit chat subcommand.
type chatCmd struct {
	app            *app
	sessionPath    string
	conversationID string
}

func (c *chatCmd) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat (default)",
		Long: `Start the interactive chat.

Enter sends a question, Tab expands the sources of the focused answer,
Ctrl+N starts a new conversation and Ctrl+C cancels an answer or quits.
The transcript is saved on exit.

Examples:
  ragchat chat
  ragchat chat --session ~/.ragchat/sessions/abc.json
  ragchat chat --conversation 7f1c2d`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	c.bindFlags(cmd)
	return cmd
}

func (c *chatCmd) bindFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.sessionPath, "session", "", "resume a saved session file")
	cmd.Flags().StringVar(&c.conversationID, "conversation", "", "resume a stored conversation from the backend")
	cmd.MarkFlagsMutuallyExclusive("session", "conversation")
}

func (c *chatCmd) run(cmd *cobra.Command, _ []string) error {
	a := c.app
	ctx := cmd.Context()

	provider, backend, err := a.answerProvider(ctx)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics, err := promobs.New(reg)
	if err != nil {
		return err
	}
	notifier := bt.NewNotifier()
	opts := append(a.reducerOptions(),
		ragchat.WithObserver(notifier.Observe),
		ragchat.WithObserver(metrics.Observe),
	)
	var cache *lru.HistoryCache
	if backend != nil {
		cache = a.historyCache(backend)
		opts = append(opts, ragchat.WithObserver(cache.Observer()))
	}
	r := ragchat.NewReducer(provider, opts...)

	session, err := c.resume(cmd, r, cache)
	if err != nil {
		return err
	}

	stopMetrics := a.serveMetrics(reg)
	defer stopMetrics()

	if err := bt.Run(ctx, bt.New(r, notifier, ragchat.DefaultTheme())); err != nil {
		return fmt.Errorf("TUI: %w", err)
	}

	// Save session on exit.
	session.Transcript = r.Snapshot()
	if !hasUserMessage(session.Transcript) {
		return nil
	}
	session.UpdatedAt = time.Now()
	path := c.sessionPath
	if path == "" {
		path = filepath.Join(a.cfg.SessionDir, session.ID+".json")
	}
	if err := ragjson.Save(path, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Session saved to %s\n", path)
	return nil
}

// resume restores the transcript named by the flags into r and returns the
// session it will be saved as.
func (c *chatCmd) resume(cmd *cobra.Command, r *ragchat.Reducer, cache *lru.HistoryCache) (ragjson.Session, error) {
	now := time.Now()
	switch {
	case c.sessionPath != "":
		s, err := ragjson.Load(c.sessionPath)
		if err != nil {
			return ragjson.Session{}, fmt.Errorf("load session: %w", err)
		}
		r.Restore(s.Transcript)
		return s, nil
	case c.conversationID != "":
		if cache == nil {
			return ragjson.Session{}, fmt.Errorf("resume conversation: %w", errNoBackend)
		}
		msgs, err := cache.History(cmd.Context(), c.conversationID)
		if err != nil {
			return ragjson.Session{}, fmt.Errorf("resume conversation: %w", err)
		}
		r.Restore(ragchat.Transcript{ConversationID: c.conversationID, Messages: msgs})
	}
	return ragjson.Session{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now}, nil
}

func hasUserMessage(t ragchat.Transcript) bool {
	for _, m := range t.Messages {
		if m.Role == ragchat.RoleUser {
			return true
		}
	}
	return false
}
