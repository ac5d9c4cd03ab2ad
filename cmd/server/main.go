// Command server runs the LiveReview review pipeline as a long-lived HTTP
// API (spec.md §6): it wires configuration, the Change Fetcher, the four
// built-in analyzers behind the LLM Gateway, the Orchestrator, the
// Aggregator/Formatter, the Review Store, and the async job queue into a
// single echo server and serves it until interrupted.
//
// Grounded on the teacher's cmd/api.go APICommand and internal/api/server.go
// NewServer, which build the same kind of collaborator chain (db, job
// queue, auth/org subsystems) behind a urfave/cli command; this keeps the
// single-command-with-flags shape and the signal-driven graceful shutdown,
// dropping the auth/org/billing/webhook subsystems that have no
// counterpart in spec.md.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/livereview-cr/livereview-cr/internal/analyzer"
	"github.com/livereview-cr/livereview-cr/internal/api"
	"github.com/livereview-cr/livereview-cr/internal/config"
	"github.com/livereview-cr/livereview-cr/internal/fetch"
	"github.com/livereview-cr/livereview-cr/internal/jobqueue"
	"github.com/livereview-cr/livereview-cr/internal/llmgateway"
	"github.com/livereview-cr/livereview-cr/internal/logging"
	"github.com/livereview-cr/livereview-cr/internal/orchestrator"
	"github.com/livereview-cr/livereview-cr/internal/service"
	"github.com/livereview-cr/livereview-cr/internal/store"
)

var (
	version   = "development"
	gitCommit = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "livereview-server",
		Usage:   "Run the LiveReview automated code review API",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a livereview-cr.toml configuration file",
				EnvVars: []string{"LIVEREVIEW_CONFIG"},
			},
		},
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading configuration: %v", err), 1)
	}

	if level, err := zerolog.ParseLevel(cfg.General.LogLevel); err == nil {
		logging.SetLevel(level)
	}
	log := logging.Base
	log.Info().Str("git_commit", gitCommit).Msg("starting livereview server")

	gateway, err := buildGateway(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("building LLM gateway: %v", err), 1)
	}

	orch := orchestrator.New(
		analyzer.NewLogic(gateway, "logic"),
		analyzer.NewReadability(gateway, "readability"),
		analyzer.NewPerformance(gateway, "performance"),
		analyzer.NewSecurity(gateway, "security"),
	)

	fetcher := fetch.NewGitLabFetcher(cfg.GitLab.URL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reviewStore, err := store.Open(ctx, cfg.Database.URL)
	if err != nil {
		return cli.Exit(fmt.Sprintf("opening review store: %v", err), 1)
	}
	defer reviewStore.Close()

	svc := service.New(fetcher, orch, reviewStore)

	jobs, err := jobqueue.New(ctx, cfg.Database.URL, svc, nil)
	if err != nil {
		return cli.Exit(fmt.Sprintf("starting job queue: %v", err), 1)
	}
	defer jobs.Close()

	if err := jobs.Start(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("starting job queue workers: %v", err), 1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = jobs.Stop(shutdownCtx)
	}()

	rateLimit := cfg.API.RateLimitPerMin
	if rateLimit <= 0 {
		rateLimit = 10
	}
	server := api.NewServer(jobs, reviewStore, rateLimit)

	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		if err := server.Start(addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return cli.Exit(fmt.Sprintf("server error: %v", err), 1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return cli.Exit(fmt.Sprintf("graceful shutdown failed: %v", err), 1)
	}
	return nil
}

// buildGateway constructs the LLM Gateway's per-agent backend map from
// configuration. "default" must be present per spec.md §4.A; every other
// agent ID falls back to it when absent from cfg.Agents.
func buildGateway(cfg *config.Config) (*llmgateway.Gateway, error) {
	def, ok := cfg.Agents["default"]
	if !ok {
		return nil, fmt.Errorf("config: agents.default binding is required")
	}

	bindings := make(map[string]llmgateway.BackendConfig, len(cfg.Agents))
	for id, b := range cfg.Agents {
		bindings[id] = llmgateway.BackendConfig{
			Provider: b.Provider,
			APIKey:   b.APIKey,
			Model:    b.Model,
			BaseURL:  b.BaseURL,
		}
	}

	return llmgateway.New(bindings, llmgateway.BackendConfig{
		Provider: def.Provider,
		APIKey:   def.APIKey,
		Model:    def.Model,
		BaseURL:  def.BaseURL,
	})
}
