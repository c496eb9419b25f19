// Package orchestrator runs the per-domain discovery and verification
// pipelines with bounded concurrency.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchscout/searchscout/internal/cache"
	"github.com/searchscout/searchscout/internal/metrics"
	"github.com/searchscout/searchscout/internal/pattern"
	"github.com/searchscout/searchscout/internal/progress"
	"github.com/searchscout/searchscout/internal/score"
)

// Config tunes the orchestrator. Zero values take the defaults.
type Config struct {
	// Concurrency bounds how many domain pipelines run at once.
	Concurrency int
	// MaxAttempts bounds fetch/persist attempts per domain.
	MaxAttempts int
	// BackoffBase is the first retry delay; later delays double.
	BackoffBase time.Duration
	// MaxBackoff caps the pre-jitter delay.
	MaxBackoff time.Duration
	// SnapshotPrefix prefixes blob paths for evidence snapshots.
	SnapshotPrefix string
	// SnapshotContentType is stored with each snapshot.
	SnapshotContentType string
	// PublishTopic names the topic run reports are published to.
	PublishTopic string
}

const (
	defaultConcurrency = 20
	defaultPrefix      = "snapshots"
	defaultContentType = "text/html"
)

// Orchestrator coordinates fetch, detect, score, and persist for batches
// of domains.
type Orchestrator struct {
	cfg       Config
	fetcher   pattern.Fetcher
	detectors []pattern.Detector
	scorer    *score.Scorer
	store     pattern.Store
	cache     *cache.PatternCache
	blobs     pattern.BlobStore
	publisher pattern.Publisher
	emitter   progress.Emitter
	clock     pattern.Clock
	policy    *retryPolicy
	logger    *zap.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// Options carries the optional collaborators.
type Options struct {
	Blobs     pattern.BlobStore
	Publisher pattern.Publisher
	Emitter   progress.Emitter
}

// New wires an Orchestrator. fetcher, detectors, scorer, store, patternCache,
// clock, and logger are required; Options members may be nil.
func New(
	cfg Config,
	fetcher pattern.Fetcher,
	detectors []pattern.Detector,
	scorer *score.Scorer,
	store pattern.Store,
	patternCache *cache.PatternCache,
	clock pattern.Clock,
	logger *zap.Logger,
	opts Options,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SnapshotPrefix == "" {
		cfg.SnapshotPrefix = defaultPrefix
	}
	if cfg.SnapshotContentType == "" {
		cfg.SnapshotContentType = defaultContentType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		fetcher:   fetcher,
		detectors: detectors,
		scorer:    scorer,
		store:     store,
		cache:     patternCache,
		blobs:     opts.Blobs,
		publisher: opts.Publisher,
		emitter:   opts.Emitter,
		clock:     clock,
		policy:    newRetryPolicy(cfg.MaxAttempts, cfg.BackoffBase, cfg.MaxBackoff),
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Discover runs the discovery pipeline over the given domains and returns
// a report with one entry per input domain, in input order.
func (o *Orchestrator) Discover(ctx context.Context, domains []string) pattern.Report {
	return o.run(ctx, pattern.ModeDiscover, domains)
}

// Verify re-checks the stored pattern for each domain, marking verified
// rows or flagging drift.
func (o *Orchestrator) Verify(ctx context.Context, domains []string) pattern.Report {
	return o.run(ctx, pattern.ModeVerify, domains)
}

func (o *Orchestrator) run(ctx context.Context, mode pattern.Mode, domains []string) pattern.Report {
	runID := uuid.New()
	started := o.clock.Now()
	o.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    started,
		Stage: progress.StageRunStart,
		Mode:  mode,
	})
	o.logger.Info("run started",
		zap.String("run_id", runID.String()),
		zap.String("mode", string(mode)),
		zap.Int("domains", len(domains)),
		zap.Int("concurrency", o.cfg.Concurrency),
	)

	results := make([]pattern.DomainResult, len(domains))
	limiter := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, domain := range domains {
		wg.Add(1)
		go func(idx int, raw string) {
			defer wg.Done()
			select {
			case limiter <- struct{}{}:
			case <-ctx.Done():
				results[idx] = pattern.DomainResult{
					Domain:  raw,
					Outcome: pattern.OutcomeFailed,
					Error:   "run canceled",
				}
				return
			}
			defer func() { <-limiter }()
			results[idx] = o.processDomain(ctx, runID, mode, raw)
		}(i, domain)
	}
	wg.Wait()

	finished := o.clock.Now()
	report := pattern.Report{
		RunID:      runID.String(),
		Mode:       mode,
		StartedAt:  started,
		FinishedAt: finished,
		Results:    results,
	}

	stage := progress.StageRunDone
	if ctx.Err() != nil {
		stage = progress.StageRunError
	}
	o.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    finished,
		Stage: stage,
		Mode:  mode,
		Dur:   finished.Sub(started),
	})

	success, inconclusive, failed := report.Counts()
	o.logger.Info("run finished",
		zap.String("run_id", runID.String()),
		zap.String("mode", string(mode)),
		zap.Int("success", success),
		zap.Int("inconclusive", inconclusive),
		zap.Int("failed", failed),
		zap.Duration("dur", finished.Sub(started)),
	)

	o.publishReport(ctx, report)
	return report
}

func (o *Orchestrator) processDomain(ctx context.Context, runID uuid.UUID, mode pattern.Mode, raw string) pattern.DomainResult {
	metrics.PipelineStarted()
	defer metrics.PipelineFinished()

	start := o.clock.Now()
	var result pattern.DomainResult
	domain, err := pattern.NormalizeDomain(raw)
	if err != nil {
		result = pattern.DomainResult{
			Domain:  raw,
			Outcome: pattern.OutcomeFailed,
			Error:   err.Error(),
		}
	} else {
		o.emit(progress.Event{
			RunID:  progress.UUIDToBytes(runID),
			TS:     start,
			Stage:  progress.StageDomainStart,
			Mode:   mode,
			Domain: domain,
		})
		unlock := o.cache.LockDomain(domain)
		switch mode {
		case pattern.ModeVerify:
			result = o.verifyDomain(ctx, runID, domain)
		default:
			result = o.discoverDomain(ctx, runID, domain)
		}
		unlock()
	}

	metrics.ObserveDomainProcessed(string(mode), string(result.Outcome))
	o.emit(progress.Event{
		RunID:       progress.UUIDToBytes(runID),
		TS:          o.clock.Now(),
		Stage:       progress.StageDomainDone,
		Mode:        mode,
		Domain:      result.Domain,
		Outcome:     result.Outcome,
		PatternType: result.Type,
		Confidence:  result.Confidence,
		Dur:         o.clock.Now().Sub(start),
		Note:        result.Error,
	})
	return result
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(evt)
}

func (o *Orchestrator) publishReport(ctx context.Context, report pattern.Report) {
	if o.publisher == nil {
		return
	}
	id, err := o.publisher.Publish(ctx, o.cfg.PublishTopic, report)
	if err != nil {
		o.logger.Warn("publish run report failed",
			zap.String("run_id", report.RunID),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("run report published",
		zap.String("run_id", report.RunID),
		zap.String("message_id", id),
	)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
