package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/sanitize"
	"github.com/spf13/cobra"
)

// errAnswerFailed is returned by ask when the answer ends in the failed
// state. The explanation has already been printed.
var errAnswerFailed = errors.New("answer failed")

func (a *app) askCmd() *cobra.Command {
	var noStream bool
	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask one question and print the answer",
		Long: `Ask one question and print the answer with its numbered sources.

The answer is streamed to stdout as it arrives unless --no-stream is set.

Examples:
  ragchat ask "What does the contract say about termination?"
  ragchat ask --no-stream "Summarize chapter 2"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, backend, err := a.answerProvider(cmd.Context())
			if err != nil {
				return err
			}
			if noStream {
				if backend == nil {
					return fmt.Errorf("--no-stream: %w", errNoBackend)
				}
				provider = ragchat.AnswerProvider{Answerer: backend}
			}
			return a.ask(cmd, provider, args[0])
		},
	}
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "request the complete answer in one response")
	return cmd
}

func (a *app) ask(cmd *cobra.Command, provider ragchat.Provider, query string) error {
	out := cmd.OutOrStdout()
	p := &deltaPrinter{w: out}
	r := ragchat.NewReducer(provider, append(a.reducerOptions(), ragchat.WithObserver(p.Observe))...)

	msg, err := r.Submit(cmd.Context(), query)
	if err != nil {
		return err
	}
	if p.written > 0 && !strings.HasSuffix(sanitize.Stream(msg.Content), "\n") {
		fmt.Fprintln(out)
	}
	if msg.IsError {
		fmt.Fprintln(cmd.ErrOrStderr(), sanitize.Text(msg.ErrorText))
		return errAnswerFailed
	}
	writeCitations(out, msg.Citations)
	if id := r.Snapshot().ConversationID; id != "" {
		fmt.Fprintf(out, "\nConversation: %s\n", id)
	}
	return nil
}

// deltaPrinter writes the streaming assistant message to w as it grows.
// written counts bytes of the sanitized content already printed.
type deltaPrinter struct {
	w       io.Writer
	written int
}

// Observe implements ragchat.Observer.
func (p *deltaPrinter) Observe(c ragchat.Change) {
	if c.Message.Role != ragchat.RoleAssistant {
		return
	}
	switch c.Kind {
	case ragchat.ChangeUpdated, ragchat.ChangeSealed, ragchat.ChangeFailed:
		content := sanitize.Stream(c.Message.Content)
		if len(content) > p.written {
			io.WriteString(p.w, content[p.written:])
			p.written = len(content)
		}
	}
}

// writeCitations prints a numbered source list.
func writeCitations(w io.Writer, cs []ragchat.Citation) {
	if len(cs) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, c := range cs {
		fmt.Fprintf(w, "  [%d] %s", c.ID, sanitize.Text(c.DocumentID))
		if c.Page > 0 {
			fmt.Fprintf(w, ", p. %d", c.Page)
		}
		fmt.Fprintf(w, " (%d%%)\n", c.Percent())
		if snippet := strings.Join(strings.Fields(sanitize.Text(c.TextSnippet)), " "); snippet != "" {
			fmt.Fprintf(w, "      %s\n", snippet)
		}
	}
}
