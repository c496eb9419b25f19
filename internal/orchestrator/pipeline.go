package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/searchscout/searchscout/internal/metrics"
	"github.com/searchscout/searchscout/internal/pattern"
	"github.com/searchscout/searchscout/internal/progress"
)

// discoverDomain runs fetch, detect, score, persist for one normalized
// domain. The caller holds the domain lock.
func (o *Orchestrator) discoverDomain(ctx context.Context, runID uuid.UUID, domain string) pattern.DomainResult {
	if cached, ok := o.cache.Get(domain); ok {
		o.logger.Debug("cache hit", zap.String("domain", domain))
		return pattern.DomainResult{
			Domain:     domain,
			Outcome:    pattern.OutcomeSuccess,
			Type:       cached.Type,
			Confidence: cached.Confidence,
		}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		artifact, err := o.fetcher.Fetch(ctx, domain)
		if err == nil {
			candidates := o.detect(artifact)
			scored, ok := o.scorer.Score(domain, candidates, o.clock.Now())
			if !ok {
				// No type cleared the threshold. Nothing is persisted and
				// nothing is retried; the page itself was reachable.
				return pattern.DomainResult{
					Domain:   domain,
					Outcome:  pattern.OutcomeInconclusive,
					Attempts: attempt,
				}
			}
			err = o.store.Upsert(ctx, scored)
			if err == nil {
				o.cache.Put(scored)
				metrics.ObservePatternPersisted(string(scored.Type))
				o.snapshot(ctx, runID, domain, artifact)
				return pattern.DomainResult{
					Domain:     domain,
					Outcome:    pattern.OutcomeSuccess,
					Type:       scored.Type,
					Confidence: scored.Confidence,
					Attempts:   attempt,
				}
			}
		}

		lastErr = err
		if !o.policy.ShouldRetry(err, attempt) {
			return pattern.DomainResult{
				Domain:   domain,
				Outcome:  pattern.OutcomeFailed,
				Attempts: attempt,
				Error:    err.Error(),
			}
		}
		if retryErr := o.waitRetry(ctx, runID, domain, attempt, err); retryErr != nil {
			return pattern.DomainResult{
				Domain:   domain,
				Outcome:  pattern.OutcomeFailed,
				Attempts: attempt,
				Error:    fmt.Sprintf("%v (last error: %v)", retryErr, lastErr),
			}
		}
	}
}

// verifyDomain re-runs detection and compares against the stored pattern.
// Store failures share the fetch retry budget, so a dropped connection on
// FetchCurrent, MarkVerified or the drift re-persist gets retried like any
// transient fetch error. The caller holds the domain lock.
func (o *Orchestrator) verifyDomain(ctx context.Context, runID uuid.UUID, domain string) pattern.DomainResult {
	for attempt := 1; ; attempt++ {
		driftFrom := 0.0
		driftSeen := false

		stored, err := o.store.FetchCurrent(ctx, domain)
		if err != nil && errors.Is(err, pattern.ErrPatternNotFound) {
			return pattern.DomainResult{
				Domain:  domain,
				Outcome: pattern.OutcomeFailed,
				Error:   "no stored pattern to verify",
			}
		}
		if err == nil {
			var artifact pattern.Artifact
			artifact, err = o.fetcher.Fetch(ctx, domain)
			if err == nil {
				candidates := o.detect(artifact)
				fresh, ok := o.scorer.Score(domain, candidates, o.clock.Now())
				switch {
				case ok && fresh.Type == stored.Type:
					now := o.clock.Now()
					err = o.store.MarkVerified(ctx, domain, now)
					if err == nil {
						stored.LastVerifiedAt = now
						o.cache.Put(stored)
						return pattern.DomainResult{
							Domain:     domain,
							Outcome:    pattern.OutcomeSuccess,
							Type:       stored.Type,
							Confidence: fresh.Confidence,
							Attempts:   attempt,
						}
					}
				case !ok:
					// The live page yields nothing conclusive; the stored row
					// is kept but flagged so operators can re-discover.
					metrics.ObserveDrift()
					o.cache.Invalidate(domain)
					return pattern.DomainResult{
						Domain:             domain,
						Outcome:            pattern.OutcomeInconclusive,
						DriftDetected:      true,
						PreviousConfidence: stored.Confidence,
						Attempts:           attempt,
					}
				default:
					// The stored pattern no longer matches what the site serves.
					metrics.ObserveDrift()
					o.cache.Invalidate(domain)
					err = o.store.Upsert(ctx, fresh)
					if err == nil {
						o.cache.Put(fresh)
						metrics.ObservePatternPersisted(string(fresh.Type))
						o.snapshot(ctx, runID, domain, artifact)
						return pattern.DomainResult{
							Domain:             domain,
							Outcome:            pattern.OutcomeSuccess,
							Type:               fresh.Type,
							Confidence:         fresh.Confidence,
							DriftDetected:      true,
							PreviousConfidence: stored.Confidence,
							Attempts:           attempt,
						}
					}
					driftFrom = stored.Confidence
					driftSeen = true
				}
			}
		}

		if !o.policy.ShouldRetry(err, attempt) {
			return pattern.DomainResult{
				Domain:             domain,
				Outcome:            pattern.OutcomeFailed,
				DriftDetected:      driftSeen,
				PreviousConfidence: driftFrom,
				Attempts:           attempt,
				Error:              err.Error(),
			}
		}
		if retryErr := o.waitRetry(ctx, runID, domain, attempt, err); retryErr != nil {
			return pattern.DomainResult{
				Domain:   domain,
				Outcome:  pattern.OutcomeFailed,
				Attempts: attempt,
				Error:    fmt.Sprintf("%v (last error: %v)", retryErr, err),
			}
		}
	}
}

func (o *Orchestrator) detect(artifact pattern.Artifact) []pattern.SignalCandidate {
	var candidates []pattern.SignalCandidate
	for _, d := range o.detectors {
		candidates = append(candidates, d.Detect(artifact)...)
	}
	return candidates
}

// waitRetry records the retry and sleeps the backoff for the attempt that
// just failed. A non-nil return means the run was canceled mid-wait.
func (o *Orchestrator) waitRetry(ctx context.Context, runID uuid.UUID, domain string, attempt int, cause error) error {
	metrics.ObserveRetry()
	delay := o.policy.Backoff(attempt)
	o.emit(progress.Event{
		RunID:   progress.UUIDToBytes(runID),
		TS:      o.clock.Now(),
		Stage:   progress.StageRetry,
		Domain:  domain,
		Attempt: attempt,
		Dur:     delay,
		Note:    cause.Error(),
	})
	o.logger.Debug("retrying domain",
		zap.String("domain", domain),
		zap.Int("attempt", attempt),
		zap.Duration("backoff", delay),
		zap.Error(cause),
	)
	return o.sleep(ctx, delay)
}

// snapshot stores the fetched page body as evidence. Failures are logged
// and never affect the domain outcome.
func (o *Orchestrator) snapshot(ctx context.Context, runID uuid.UUID, domain string, artifact pattern.Artifact) {
	if o.blobs == nil || len(artifact.Body) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s/%s.html", o.cfg.SnapshotPrefix, domain, runID.String())
	uri, err := o.blobs.PutObject(ctx, path, o.cfg.SnapshotContentType, artifact.Body)
	if err != nil {
		o.logger.Warn("snapshot upload failed", zap.String("domain", domain), zap.Error(err))
		return
	}
	o.logger.Debug("snapshot stored", zap.String("domain", domain), zap.String("uri", uri))
}
