package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"points-miner/internal/config"
	"points-miner/internal/cronrunner"
	"points-miner/internal/engine"
	"points-miner/internal/events"
	"points-miner/internal/gateway"
	"points-miner/internal/logger"
	"points-miner/internal/notify"
	"points-miner/internal/retry"
	"points-miner/internal/server"
	"points-miner/internal/state"
	"points-miner/internal/templates"
	"points-miner/internal/types"
	"points-miner/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zl = zl.With(zap.String("miner", cfg.Username))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sqsClient *sqs.Client
	var stateManager *state.DynamoDBManager
	if cfg.AWS.SQSQueueURL != "" || cfg.AWS.DynamoDBTable != "" {
		awsCfg, err := loadAWSConfig(ctx, cfg.AWS.Region)
		if err != nil {
			zl.Fatal("Failed to load AWS config", zap.Error(err))
		}
		if cfg.AWS.SQSQueueURL != "" {
			sqsClient = sqs.NewFromConfig(awsCfg)
		}
		if cfg.AWS.DynamoDBTable != "" {
			stateManager = state.NewDynamoDBManager(dynamodb.NewFromConfig(awsCfg), cfg.AWS.DynamoDBTable, zl)
		}
	}

	renderer, err := templates.New(cfg.Notifications.TemplatesDir)
	if err != nil {
		zl.Fatal("Failed to load message templates", zap.Error(err))
	}
	dispatcher, err := notify.FromConfig(zl, renderer, cfg.Notifications)
	if err != nil {
		zl.Fatal("Failed to configure notifications", zap.Error(err))
	}

	pool := worker.NewPool(zl, cfg.Miner.Workers, cfg.Miner.QueueSize)
	platform := gateway.New(cfg.Gateway)

	eng := engine.New(zl, clockwork.NewRealClock(), platform, dispatcher, pool, engine.Options{
		TickInterval:      cfg.Miner.TickInterval.Std(),
		WatchLimit:        cfg.Miner.WatchLimit,
		MinDwell:          cfg.Miner.MinDwell.Std(),
		StreakMinutes:     cfg.Miner.StreakMinutes,
		StreakResetAfter:  cfg.Miner.StreakResetAfter.Std(),
		Priority:          cfg.PriorityModes(),
		Followers:         cfg.Miner.Followers,
		FollowersOrder:    types.Direction(cfg.Miner.FollowersOrder),
		FollowersSettings: cfg.DefaultStreamerSettings(),
		ClaimDropsStartup: cfg.Miner.ClaimDropsStartup,
		Retry: retry.Policy{
			MaxAttempts:      cfg.Miner.Retry.Attempts,
			InitialBackoff:   cfg.Miner.Retry.InitialBackoff.Std(),
			MaxBackoff:       time.Minute,
			RateLimitBackoff: 30 * time.Second,
		},
		CallTimeout: cfg.Miner.Retry.CallTimeout.Std(),
	})
	for _, sc := range cfg.Streamers {
		eng.Register(types.Streamer{Username: sc.Username, Settings: cfg.StreamerSettingsFor(sc)})
	}

	if stateManager != nil {
		progress, err := stateManager.ListProgress(ctx)
		if err != nil {
			zl.Error("Failed to restore progress", zap.Error(err))
		} else {
			eng.Restore(progress)
		}
	}

	zl.Info("Starting points miner",
		zap.Int("streamers", len(cfg.Streamers)),
		zap.Strings("backends", dispatcher.Backends()),
		zap.String("queue_url", cfg.AWS.SQSQueueURL))

	pool.Start(ctx)
	dispatcher.Start(ctx)

	cron := cronrunner.New(zl, ctx)
	if stateManager != nil {
		pruned := false
		_, err := cron.Add("persist-progress", cfg.Miner.PersistSchedule, func(ctx context.Context) error {
			progress, err := eng.Snapshot(ctx)
			if err != nil {
				return err
			}
			if err := stateManager.SaveProgress(ctx, progress); err != nil {
				return err
			}
			if pruned {
				return nil
			}
			// Followers are only known once the engine is running, so
			// stale rows are dropped after the first full save.
			keep := make([]string, 0, len(progress))
			for _, p := range progress {
				keep = append(keep, p.Username)
			}
			if _, err := stateManager.PruneProgress(ctx, keep); err != nil {
				return err
			}
			pruned = true
			return nil
		})
		if err != nil {
			zl.Fatal("Failed to schedule progress persistence", zap.Error(err))
		}
	}
	cron.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	if sqsClient != nil {
		consumer := events.NewSQSConsumer(sqsClient, cfg.AWS.SQSQueueURL, eng, zl)
		g.Go(func() error {
			return consumer.Start(gctx)
		})
	}
	if cfg.Metrics.ListenAddr != "" {
		srv := server.New(cfg.Metrics.ListenAddr, zl)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		zl.Error("Points miner stopped with error", zap.Error(err))
	}

	zl.Info("Shutting down gracefully...")
	cron.Stop()
	pool.Stop()
	dispatcher.Stop()
	zl.Info("Shutdown complete")
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		return awsconfig.LoadDefaultConfig(ctx)
	}
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}
