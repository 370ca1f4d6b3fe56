// logpulse server - ingests log events, scores and windows them, and
// runs per-window meta-analysis to surface findings and effective scores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/logpulse/logpulse/pkg/aiconfig"
	"github.com/logpulse/logpulse/pkg/cleanup"
	"github.com/logpulse/logpulse/pkg/config"
	"github.com/logpulse/logpulse/pkg/database"
	"github.com/logpulse/logpulse/pkg/ingest"
	"github.com/logpulse/logpulse/pkg/llm"
	"github.com/logpulse/logpulse/pkg/metaanalysis"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalize"
	"github.com/logpulse/logpulse/pkg/orchestrator"
	"github.com/logpulse/logpulse/pkg/recalc"
	"github.com/logpulse/logpulse/pkg/redact"
	"github.com/logpulse/logpulse/pkg/scoring"
	"github.com/logpulse/logpulse/pkg/sourcematch"
	"github.com/logpulse/logpulse/pkg/window"

	"github.com/logpulse/logpulse/pkg/api"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config", getEnv("CONFIG_PATH", "./deploy/config/logpulse.yaml"), "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting logpulse", "http_addr", cfg.HTTP.Addr, "config_path", *configPath)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to postgres, schema migrated")

	store := database.NewStore(dbClient.DB())

	if err := seedAppConfig(ctx, store, cfg.Seed); err != nil {
		slog.Error("failed to seed app config", "error", err)
		os.Exit(1)
	}

	sources, err := store.AllLogSources(ctx)
	if err != nil {
		slog.Error("failed to load log sources", "error", err)
		os.Exit(1)
	}

	normalizer := normalize.New(normalize.DefaultOptions())
	redactor := redact.New(nil)
	matcher := sourcematch.New(sources)
	buffer := normalize.NewFragmentBuffer()
	ingestWriter := ingest.New(normalizer, redactor, matcher, buffer, store)

	aiConfigReader := aiconfig.New(store)
	aiCfg, err := aiConfigReader.Resolve(ctx)
	if err != nil {
		slog.Error("failed to resolve ai config", "error", err)
		os.Exit(1)
	}
	llmClient := llm.NewHTTPClient(llm.Config{
		APIKey:       aiCfg.APIKey,
		Model:        aiCfg.Model,
		BaseURL:      aiCfg.BaseURL,
		ScoringModel: aiCfg.TaskModel.ScoringModel,
		MetaModel:    aiCfg.TaskModel.MetaModel,
	}, 2, 4)

	pipelineCfg, err := store.PipelineConfig(ctx)
	if err != nil {
		slog.Error("failed to load pipeline config", "error", err)
		os.Exit(1)
	}

	scoringJob := scoring.New(store, llmClient, aiConfigReader)
	windowAdvancer := window.New(store, pipelineCfg.WindowMinutes)
	metaAnalyzer := metaanalysis.New(store, llmClient)
	recalcEngine := recalc.New(dbClient.DB())

	orch := orchestrator.New(store, aiConfigReader, scoringJob, windowAdvancer, metaAnalyzer, nil)
	orch.Start(ctx)
	defer orch.Stop()

	cleanupSvc := cleanup.NewService(store, dbClient.DB())
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := api.NewServer(store, dbClient.DB(), ingestWriter, recalcEngine, windowAdvancer, metaAnalyzer)
	if cfg.HTTP.DashboardDir != "" {
		server.SetDashboardDir(cfg.HTTP.DashboardDir)
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", cfg.HTTP.Addr)
		serverErr <- server.Start(cfg.HTTP.Addr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during http server shutdown", "error", err)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// seedAppConfig bootstraps app_config rows named in the YAML seed, never
// overriding a key that already exists (config.AppConfigSeed's contract).
func seedAppConfig(ctx context.Context, store *database.Store, seed config.AppConfigSeed) error {
	existing, err := store.LoadAppConfig(ctx)
	if err != nil {
		return fmt.Errorf("load app config: %w", err)
	}
	set := func(key string, value interface{}) error {
		if _, ok := existing[key]; ok {
			return nil
		}
		return store.SetAppConfig(ctx, key, value)
	}

	for slug, guide := range seed.CriterionGuides {
		if err := set(model.ConfigKeyCriterionGuidePfx+slug, guide); err != nil {
			return fmt.Errorf("seed criterion guide %s: %w", slug, err)
		}
	}
	if seed.PipelineConfig != nil {
		if err := set(model.ConfigKeyPipelineConfig, *seed.PipelineConfig); err != nil {
			return fmt.Errorf("seed pipeline config: %w", err)
		}
	}
	if seed.DashboardConfig != nil {
		if err := set(model.ConfigKeyDashboardConfig, *seed.DashboardConfig); err != nil {
			return fmt.Errorf("seed dashboard config: %w", err)
		}
	}
	if seed.PrivacyConfig != nil {
		if err := set(model.ConfigKeyPrivacyConfig, *seed.PrivacyConfig); err != nil {
			return fmt.Errorf("seed privacy config: %w", err)
		}
	}
	return nil
}
