// Command ragchat is a terminal client for a document question-answering
// backend.
//
// Usage:
//
//	ragchat [flags]                       interactive chat (default)
//	ragchat ask <query>                   stream one answer to stdout
//	ragchat history [conversation-id]     list conversations or print one
//	ragchat sessions                      list saved sessions
//	ragchat rate-limit                    show the remaining quota
//	ragchat delete <conversation-id>      delete a stored conversation
//
// Configuration is read from ~/.ragchat/config.yaml, a .env file and
// RAGCHAT_* environment variables; global flags override all of them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ragchat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Handle OS signals for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	defer a.close()
	return a.rootCmd().ExecuteContext(ctx)
}
