package fetch

import (
	"context"

	"go.uber.org/zap"

	"github.com/searchscout/searchscout/internal/metrics"
	"github.com/searchscout/searchscout/internal/pattern"
)

// Composite probes first and escalates to the headless renderer when the
// promotion heuristic fires. With no headless fetcher configured it
// degrades to probe-only artifacts.
type Composite struct {
	probe    pattern.Fetcher
	headless pattern.Fetcher
	promoter *Promoter
	logger   *zap.Logger
}

// NewComposite wires the probe, promoter and optional headless fetcher.
func NewComposite(probe pattern.Fetcher, headless pattern.Fetcher, promoter *Promoter, logger *zap.Logger) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	if promoter == nil {
		promoter = NewPromoter(0)
	}
	return &Composite{probe: probe, headless: headless, promoter: promoter, logger: logger}
}

// Fetch implements pattern.Fetcher.
func (c *Composite) Fetch(ctx context.Context, domain string) (pattern.Artifact, error) {
	artifact, err := c.probe.Fetch(ctx, domain)
	if err != nil {
		// A failed probe is not terminal when a browser can still try.
		if c.headless == nil {
			return pattern.Artifact{}, err
		}
		c.logger.Debug("probe failed, falling back to headless",
			zap.String("domain", domain), zap.Error(err))
		return c.renderHeadless(ctx, domain)
	}
	metrics.ObserveFetchDuration("probe", artifact.Duration)

	if c.headless == nil || !c.promoter.ShouldPromote(artifact) {
		return artifact, nil
	}
	rendered, err := c.renderHeadless(ctx, domain)
	if err != nil {
		c.logger.Warn("headless promotion failed, keeping probe artifact",
			zap.String("domain", domain), zap.Error(err))
		return artifact, nil
	}
	return rendered, nil
}

func (c *Composite) renderHeadless(ctx context.Context, domain string) (pattern.Artifact, error) {
	artifact, err := c.headless.Fetch(ctx, domain)
	if err != nil {
		return pattern.Artifact{}, err
	}
	metrics.ObserveFetchDuration("headless", artifact.Duration)
	return artifact, nil
}
