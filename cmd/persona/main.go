package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/ai"
	"github.com/xxxsen/persona/internal/api"
	"github.com/xxxsen/persona/internal/config"
	"github.com/xxxsen/persona/internal/db"
	"github.com/xxxsen/persona/internal/embedcache"
	"github.com/xxxsen/persona/internal/job"
	"github.com/xxxsen/persona/internal/ranker"
	"github.com/xxxsen/persona/internal/repo"
	"github.com/xxxsen/persona/internal/schedule"
	"github.com/xxxsen/persona/internal/session"
	"github.com/xxxsen/persona/internal/vector"
	"github.com/xxxsen/persona/internal/worker"
)

const (
	embedLruSize = 4096
	embedLruTTL  = 10 * time.Minute
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "persona",
		Short: "persona AI user worker",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the persona worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			dbc, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open cache datastore: %w", err)
			}
			if err := db.ApplyMigrations(dbc); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runWorker(cfg, dbc)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildGenerator(cfgs []config.ProviderConfig) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfgs))
	for _, pc := range cfgs {
		provider, err := ai.NewProvider(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init chat provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      pc.Provider + "/" + pc.Model,
			Generator: ai.NewGenerator(provider, pc.Model),
		})
	}
	return ai.NewFallbackGenerator(entries), nil
}

func buildEmbedder(cfgs []config.ProviderConfig) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(cfgs))
	for _, pc := range cfgs {
		provider, err := ai.NewEmbedProviderByName(pc.Provider, pc.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", pc.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     pc.Model,
			Embedder: ai.NewEmbedder(provider, pc.Model),
		})
	}
	return ai.NewFallbackEmbedder(entries), nil
}

func runWorker(cfg *config.Config, dbc *sql.DB) error {
	defer dbc.Close()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := logutil.GetLogger(ctx)
	logger.Info("starting worker",
		zap.String("api", cfg.API.BaseURL),
		zap.Int("concurrency", cfg.Worker.Concurrency))

	client := api.New(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	sessions := session.NewManager(client, cfg.API.AdminEmail, cfg.API.AdminPassword)
	if err := sessions.Login(ctx); err != nil {
		return fmt.Errorf("initial admin login: %w", err)
	}

	generator, err := buildGenerator(cfg.AI.Chat)
	if err != nil {
		return err
	}
	embedder, err := buildEmbedder(cfg.AI.Embed)
	if err != nil {
		return err
	}
	cacheRepo := repo.NewEmbeddingCacheRepo(dbc)
	embedder = embedcache.WithStore(embedder, cacheRepo)
	embedder = embedcache.WithMemoryCache(embedder, embedLruSize, embedLruTTL)
	aim := ai.NewManager(generator, embedder, ai.ManagerConfig{
		Timeout:       cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
	})

	codec, err := vector.NewCodec(cfg.Worker.Gamma)
	if err != nil {
		return fmt.Errorf("init vector codec: %w", err)
	}
	rk := ranker.New(codec, ranker.NewTimeSeededRand(), ranker.Config{
		CandidateCap: cfg.Worker.CandidateCap,
		ReadLimit:    cfg.Worker.ReadLimit,
	})
	pipeline := worker.NewPipeline(client, sessions, aim, rk, codec, worker.PipelineConfig{
		ReadLimit:            cfg.Worker.ReadLimit,
		LikeTopK:             cfg.Worker.LikeTopK,
		LikeFloor:            cfg.Worker.LikeFloor,
		ReplyTopK:            cfg.Worker.ReplyTopK,
		ReplyFloor:           cfg.Worker.ReplyFloor,
		InterestCooldownDays: cfg.Worker.InterestCooldownDays,
		PostCooldownDays:     cfg.Worker.PostCooldownDays,
		MaxTags:              cfg.Worker.MaxTags,
		Percentile:           cfg.Worker.Percentile,
		ImpressionMaxChars:   cfg.Worker.ImpressionMaxChars,
	})
	orchestrator := worker.NewOrchestrator(client, sessions, pipeline, repo.NewRunLogRepo(dbc), worker.OrchestratorConfig{
		Concurrency:  cfg.Worker.Concurrency,
		PageSize:     cfg.Worker.PageSize,
		IdleInterval: time.Duration(cfg.Worker.IdleIntervalSeconds) * time.Second,
	})

	scheduler := schedule.New()
	purge := job.NewEmbeddingPurgeJob(cacheRepo, cfg.Worker.CacheMaxAgeDays)
	if err := scheduler.Register(purge, cfg.Worker.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule embedding purge: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	err = orchestrator.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("worker stopped")
	return nil
}
