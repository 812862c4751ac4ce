package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/crucible-learn/crucible/api"
	"github.com/crucible-learn/crucible/internal/coach"
	"github.com/crucible-learn/crucible/internal/config"
	"github.com/crucible-learn/crucible/internal/curriculum"
	"github.com/crucible-learn/crucible/internal/ingest"
	"github.com/crucible-learn/crucible/internal/llm"
	"github.com/crucible-learn/crucible/internal/log"
	"github.com/crucible-learn/crucible/internal/retrieval"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe wires the pipeline together and runs the HTTP server until
// SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{JSON: true})
	logger.Info("starting crucible", "version", Version, "config", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	provider, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.ModelName,
		EmbedderModel: cfg.EmbedderModel,
	}, logger.With("component", "llm"))
	if err != nil {
		return fmt.Errorf("creating generation provider: %w", err)
	}

	// The engine is built lazily on first use; without a credential the
	// gateway stays disabled and ingest/query run degraded.
	build := func(ctx context.Context) (retrieval.Engine, error) {
		return retrieval.NewPGEngine(ctx, pool, provider, provider, logger.With("component", "retrieval"))
	}
	gateway := retrieval.NewGateway(build, !cfg.HasGeminiKey(), logger.With("component", "retrieval"))

	store, err := curriculum.NewStore(pool, logger.With("component", "curriculum"))
	if err != nil {
		return fmt.Errorf("creating curriculum store: %w", err)
	}

	generator := curriculum.NewGenerator(gateway, provider, store, logger.With("component", "generator"))
	ingestSvc := ingest.NewService(gateway, ingest.NewFetcher(cfg.FetchTimeout()),
		ingest.NewStore(pool), logger.With("component", "ingest"))
	coachSvc := coach.New(store, provider, logger.With("component", "coach"))

	server := api.NewServer(
		api.NewHealthHandler(pool, !gateway.Disabled(), logger),
		api.NewAdminHandler(ingestSvc, generator, store, gateway, logger),
		api.NewLearnerHandler(store, logger),
		api.NewCoachHandler(coachSvc, logger),
		cfg.CORSOrigins,
	)

	return server.Run(ctx, cfg.Addr)
}
