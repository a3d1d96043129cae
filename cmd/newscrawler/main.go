// Package main wires together the news crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/rasadlabs/newscrawler/internal/adapters"
	"github.com/rasadlabs/newscrawler/internal/adapters/rss"
	"github.com/rasadlabs/newscrawler/internal/api"
	clocksystem "github.com/rasadlabs/newscrawler/internal/clock/system"
	"github.com/rasadlabs/newscrawler/internal/config"
	"github.com/rasadlabs/newscrawler/internal/dispatch"
	"github.com/rasadlabs/newscrawler/internal/fetcher"
	collyfetcher "github.com/rasadlabs/newscrawler/internal/fetcher/colly"
	"github.com/rasadlabs/newscrawler/internal/gate"
	sha256hash "github.com/rasadlabs/newscrawler/internal/hash/sha256"
	"github.com/rasadlabs/newscrawler/internal/id/uuid"
	"github.com/rasadlabs/newscrawler/internal/logging"
	"github.com/rasadlabs/newscrawler/internal/metrics"
	"github.com/rasadlabs/newscrawler/internal/news"
	"github.com/rasadlabs/newscrawler/internal/orchestrator"
	"github.com/rasadlabs/newscrawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/rasadlabs/newscrawler/internal/publisher/pubsub"
	"github.com/rasadlabs/newscrawler/internal/runner"
	"github.com/rasadlabs/newscrawler/internal/scheduler"
	"github.com/rasadlabs/newscrawler/internal/storage/gcs"
	"github.com/rasadlabs/newscrawler/internal/storage/local"
	memorystorage "github.com/rasadlabs/newscrawler/internal/storage/memory"
	"github.com/rasadlabs/newscrawler/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clocksystem.New()
	hasher := sha256hash.New()
	idGen := uuid.New()

	var (
		configStore  news.ConfigStore
		runStore     news.RunStore
		articleStore news.ArticleStore
	)
	if cfg.DB.DSN != "" {
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:      cfg.DB.DSN,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MaxIdleConns),
		})
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pool.Close()
		if configStore, err = postgres.NewConfigStore(pool); err != nil {
			logger.Fatal("config store init failed", zap.Error(err))
		}
		if runStore, err = postgres.NewRunStore(pool); err != nil {
			logger.Fatal("run store init failed", zap.Error(err))
		}
		if articleStore, err = postgres.NewArticleStore(pool); err != nil {
			logger.Fatal("article store init failed", zap.Error(err))
		}
		logger.Info("using postgres stores")
	} else {
		configStore = memorystorage.NewConfigStore()
		runStore = memorystorage.NewRunStore()
		articleStore = memorystorage.NewArticleStore()
		logger.Info("using in-memory stores")
	}

	var blobStore news.BlobStore
	switch {
	case cfg.Storage.GCSBucket != "":
		gcsClient, err := gstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		blobStore, err = gcs.New(gcsClient, gcs.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
	case cfg.Storage.LocalDir != "":
		blobStore, err = local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
		if err != nil {
			logger.Fatal("local blob store init failed", zap.Error(err))
		}
	}

	var publisher news.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		psClient, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		pub, err := pubsubpublisher.New(psClient, cfg.PubSub.TopicName)
		if err != nil {
			logger.Fatal("pubsub publisher init failed", zap.Error(err))
		}
		defer pub.Stop()
		publisher = pub
	}

	transport := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: true,
		Timeout:       cfg.FetchTimeout(),
	})
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   float64(cfg.Crawler.PerDomainRPS),
		DefaultBurst: cfg.Crawler.PerDomainRPS,
	})
	client := fetcher.NewClient(transport, limiter, fetcher.ClientConfig{
		MaxAttempts: cfg.Fetch.MaxRetries,
		RetryDelay:  cfg.RetryDelay(),
	}, logger.Named("fetch"))

	registry := adapters.NewRegistry(rss.New(client, logger.Named("rss")))

	orch := orchestrator.New(hasher, orchestrator.Config{
		Concurrency: cfg.Crawler.Concurrency,
		MaxItems:    cfg.Crawler.MaxItems,
	}, logger.Named("orchestrator"))
	g := gate.New(articleStore, configStore, blobStore, publisher, idGen, clock, gate.Config{
		ArchivePrefix:      cfg.Storage.Prefix,
		ArchiveContentType: cfg.Storage.ContentType,
	}, logger.Named("gate"))
	run := runner.New(registry, orch, g, runStore, configStore, idGen, clock, logger.Named("runner"))

	disp := dispatch.New(run, dispatch.Config{
		Workers:    cfg.Crawler.Workers,
		QueueDepth: cfg.Crawler.QueueDepth,
	}, logger.Named("dispatch"))
	disp.Start(ctx)

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(configStore, runStore, disp, clock, scheduler.Config{
			TickInterval:     cfg.TickInterval(),
			DefaultInterval:  cfg.DefaultInterval(),
			StaleRunGrace:    cfg.StaleRunGrace(),
			StaleSweepPeriod: cfg.StaleSweepPeriod(),
		}, logger.Named("scheduler"))
		go sched.Run(ctx)
	}

	apiServer := api.NewServer(configStore, runStore, articleStore, disp, clock, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	disp.Stop()
	logger.Info("shutdown complete")
}
