package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/fwojciec/ragchat"
	"github.com/fwojciec/ragchat/anthropic"
	"github.com/fwojciec/ragchat/config"
	"github.com/fwojciec/ragchat/gemini"
	"github.com/fwojciec/ragchat/lru"
	promobs "github.com/fwojciec/ragchat/prometheus"
	"github.com/fwojciec/ragchat/ragapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// errNoBackend is returned by commands that need the document-chat backend
// when another provider is configured.
var errNoBackend = errors.New("this command requires the ragapi provider")

// app holds state shared by all commands of one invocation.
type app struct {
	// Global flags.
	configPath  string
	baseURL     string
	logLevel    string
	provider    string
	metricsAddr string

	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
}

func (a *app) rootCmd() *cobra.Command {
	chat := &chatCmd{app: a}
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your documents from the terminal",
		Long: `ragchat asks questions of a document question-answering backend and shows
streamed answers with their source citations.

Without a subcommand it starts the interactive chat.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              chat.run,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.ragchat/config.yaml)")
	pf.StringVar(&a.baseURL, "base-url", "", "backend base URL")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.provider, "provider", "", "answer provider: ragapi, gemini, anthropic")
	pf.StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (chat only)")
	chat.bindFlags(root)

	root.AddCommand(
		chat.command(),
		a.askCmd(),
		a.historyCmd(),
		a.sessionsCmd(),
		a.rateLimitCmd(),
		a.deleteCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and opens the log.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.API.BaseURL = a.baseURL
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("provider") {
		cfg.Provider = a.provider
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = a.metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	// The chat owns the terminal, so it logs to the file only.
	var console io.Writer = cmd.ErrOrStderr()
	if cmd == cmd.Root() || cmd.Name() == "chat" {
		console = nil
	}
	a.logger, a.closeLog = config.SetupLogger(cfg.Log.File, cfg.LogLevel(), console)
	return nil
}

func (a *app) close() error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// backend returns a client for the document-chat backend.
func (a *app) backend() *ragapi.Client {
	api := a.cfg.API
	// The response-header timeout bounds every request without cutting off
	// long answer streams, which the idle timeout guards instead.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = api.RequestTimeout
	return ragapi.New(
		ragapi.WithBaseURL(api.BaseURL),
		ragapi.WithHTTPClient(&http.Client{Transport: transport}),
		ragapi.WithIdentity(a.cfg.Identity()),
		ragapi.WithIdleTimeout(api.IdleTimeout),
		ragapi.WithHistoryLimit(a.cfg.History.Limit),
		ragapi.WithRateLimit(api.RateRPS, api.RateBurst),
		ragapi.WithLogger(a.logger),
	)
}

// requireBackend returns the backend client, or errNoBackend when another
// provider is configured.
func (a *app) requireBackend() (*ragapi.Client, error) {
	if a.cfg.Provider != config.ProviderRAGAPI {
		return nil, fmt.Errorf("%w (provider is %q)", errNoBackend, a.cfg.Provider)
	}
	return a.backend(), nil
}

// historyCache wraps the backend's history reader with the configured cache.
func (a *app) historyCache(c *ragapi.Client) *lru.HistoryCache {
	return lru.New(c,
		lru.WithSize(a.cfg.History.CacheMax),
		lru.WithTTL(a.cfg.History.CacheTTL),
		lru.WithLogger(a.logger),
	)
}

// answerProvider builds the configured provider. The backend client is
// returned as well when the provider is ragapi, nil otherwise.
func (a *app) answerProvider(ctx context.Context) (ragchat.Provider, *ragapi.Client, error) {
	switch a.cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(a.cfg.Anthropic.APIKey,
			anthropic.WithModel(a.cfg.Anthropic.Model),
			anthropic.WithMaxTokens(a.cfg.Anthropic.MaxTokens),
			anthropic.WithLogger(a.logger),
		), nil, nil
	case config.ProviderGemini:
		c, err := gemini.New(ctx, a.cfg.Gemini.APIKey,
			gemini.WithModel(a.cfg.Gemini.Model),
			gemini.WithMaxTokens(a.cfg.Gemini.MaxTokens),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, nil, nil
	default:
		c := a.backend()
		return c, c, nil
	}
}

// reducerOptions returns the options every Reducer of this invocation shares.
func (a *app) reducerOptions() []ragchat.ReducerOption {
	return []ragchat.ReducerOption{
		ragchat.WithLogger(a.logger),
		ragchat.WithRequestDefaults(a.cfg.RequestDefaults()),
		ragchat.WithGreeting(a.cfg.Chat.Greeting),
	}
}

// serveMetrics serves g on the configured metrics address until the returned
// function is called. Without an address it does nothing.
func (a *app) serveMetrics(g prometheus.Gatherer) func() {
	addr := a.cfg.MetricsAddr
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promobs.Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
