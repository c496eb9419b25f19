package cmd

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	blobgcs "github.com/searchscout/searchscout/internal/blob/gcs"
	bloblocal "github.com/searchscout/searchscout/internal/blob/local"
	blobmem "github.com/searchscout/searchscout/internal/blob/memory"
	"github.com/searchscout/searchscout/internal/cache"
	"github.com/searchscout/searchscout/internal/clock/system"
	"github.com/searchscout/searchscout/internal/config"
	"github.com/searchscout/searchscout/internal/detect"
	"github.com/searchscout/searchscout/internal/fetch"
	"github.com/searchscout/searchscout/internal/logging"
	"github.com/searchscout/searchscout/internal/orchestrator"
	"github.com/searchscout/searchscout/internal/pattern"
	"github.com/searchscout/searchscout/internal/progress"
	"github.com/searchscout/searchscout/internal/progress/sinks"
	pubsubpub "github.com/searchscout/searchscout/internal/publish/pubsub"
	"github.com/searchscout/searchscout/internal/score"
	storemem "github.com/searchscout/searchscout/internal/store/memory"
	storepg "github.com/searchscout/searchscout/internal/store/postgres"
)

// application bundles the wired service graph used by the subcommands.
type application struct {
	cfg    config.Config
	logger *zap.Logger
	store  pattern.Store
	orch   *orchestrator.Orchestrator
	hub    *progress.Hub

	headless     *fetch.Headless
	pgStore      *storepg.PatternStore
	gcsClient    *storage.Client
	pubsubClient *pubsub.Client
}

// newApplication loads config and wires every collaborator. Components
// without external configuration fall back to in-memory implementations so
// local runs work out of the box.
func newApplication(ctx context.Context, cfgFile string) (*application, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &application{cfg: cfg, logger: logger}

	clock := system.New()
	patternCache := cache.New(cfg.CacheTTL(), clock)
	scorer := score.New(score.Config{
		AcceptanceThreshold: cfg.Scoring.AcceptanceThreshold,
		FingerprintFloor:    cfg.Scoring.FingerprintFloor,
	})

	detectors, err := buildDetectors(cfg)
	if err != nil {
		return nil, err
	}

	fetcher, err := app.buildFetcher()
	if err != nil {
		return nil, err
	}

	if err := app.buildStore(ctx); err != nil {
		return nil, err
	}

	blobs, err := app.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := app.buildPublisher(ctx)
	if err != nil {
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	app.hub = progress.NewHub(progress.Config{Logger: logger}, sinks.NewLogSink(logger), promSink)

	app.orch = orchestrator.New(
		orchestrator.Config{
			Concurrency:         cfg.Discovery.Concurrency,
			MaxAttempts:         cfg.Discovery.MaxRetries,
			BackoffBase:         cfg.BackoffBase(),
			SnapshotPrefix:      cfg.Blob.Prefix,
			SnapshotContentType: cfg.Blob.ContentType,
			PublishTopic:        cfg.PubSub.TopicName,
		},
		fetcher,
		detectors,
		scorer,
		app.store,
		patternCache,
		clock,
		logger,
		orchestrator.Options{
			Blobs:     blobs,
			Publisher: publisher,
			Emitter:   app.hub,
		},
	)
	return app, nil
}

func buildDetectors(cfg config.Config) ([]pattern.Detector, error) {
	registry := detect.DefaultRegistry()
	if cfg.CMS.RegistryPath != "" {
		var err error
		registry, err = detect.LoadRegistry(cfg.CMS.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("load cms registry: %w", err)
		}
	}
	return []pattern.Detector{
		detect.NewDOM(),
		detect.NewNetwork(),
		detect.NewCMS(registry),
	}, nil
}

func (a *application) buildFetcher() (pattern.Fetcher, error) {
	probe := fetch.NewProbe(fetch.ProbeConfig{
		UserAgent: a.cfg.Fetch.UserAgent,
		Timeout:   a.cfg.FetchTimeout(),
	})

	var headless pattern.Fetcher
	if a.cfg.Fetch.HeadlessEnabled {
		h, err := fetch.NewHeadless(fetch.HeadlessConfig{
			MaxParallel:       a.cfg.Fetch.HeadlessParallel,
			UserAgent:         a.cfg.Fetch.UserAgent,
			NavigationTimeout: a.cfg.NavTimeout(),
			SettleWait:        time.Duration(a.cfg.Fetch.SettleWaitMs) * time.Millisecond,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.headless = h
		headless = h
	}
	return fetch.NewComposite(probe, headless, fetch.NewPromoter(0), a.logger), nil
}

func (a *application) buildStore(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, using in-memory pattern store")
		a.store = storemem.NewPatternStore()
		return nil
	}
	pg, err := storepg.New(ctx, storepg.Config{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("init postgres store: %w", err)
	}
	a.pgStore = pg
	a.store = pg
	return nil
}

func (a *application) buildBlobStore(ctx context.Context) (pattern.BlobStore, error) {
	switch {
	case a.cfg.Blob.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.gcsClient = client
		store, err := blobgcs.New(client, blobgcs.Config{Bucket: a.cfg.Blob.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, nil
	case a.cfg.Blob.LocalDir != "":
		store, err := bloblocal.New(bloblocal.Config{BaseDir: a.cfg.Blob.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	default:
		return blobmem.NewBlobStore(), nil
	}
}

func (a *application) buildPublisher(ctx context.Context) (pattern.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	a.pubsubClient = client
	return pubsubpub.New(client.Topic(a.cfg.PubSub.TopicName)), nil
}

// Close shuts the service graph down in reverse dependency order.
func (a *application) Close() {
	if a.hub != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	if a.headless != nil {
		a.headless.Close()
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
