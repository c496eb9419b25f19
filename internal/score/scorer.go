// Package score turns raw detector signals into one calibrated pattern.
package score

import (
	"time"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Config tunes the combination rule. Zero values take the defaults.
type Config struct {
	// AcceptanceThreshold is the minimum combined score; below it the
	// result is inconclusive.
	AcceptanceThreshold float64
	// FingerprintFloor is the minimum combined score a CMS fingerprint
	// guarantees for its pattern type.
	FingerprintFloor float64
	// TieEpsilon bounds how close two combined scores must be before the
	// source-precedence tie-break applies.
	TieEpsilon float64
}

const (
	defaultThreshold        = 0.5
	defaultFingerprintFloor = 0.9
	defaultTieEpsilon       = 0.01
)

// Scorer aggregates signal candidates into a ranked choice. It is a pure
// function of its inputs; the same candidates always produce the same
// pattern.
type Scorer struct {
	cfg Config
}

// New builds a Scorer, filling config defaults.
func New(cfg Config) *Scorer {
	if cfg.AcceptanceThreshold <= 0 {
		cfg.AcceptanceThreshold = defaultThreshold
	}
	if cfg.FingerprintFloor <= 0 {
		cfg.FingerprintFloor = defaultFingerprintFloor
	}
	if cfg.TieEpsilon <= 0 {
		cfg.TieEpsilon = defaultTieEpsilon
	}
	return &Scorer{cfg: cfg}
}

type group struct {
	combined    float64
	best        pattern.SignalCandidate
	hasCMS      bool
	hasNetwork  bool
	hasDOM      bool
	cmsEvidence pattern.Evidence
}

// Score picks the best pattern for a domain from one fetch attempt's
// candidates. ok is false when no type clears the acceptance threshold;
// inconclusive results must not be persisted as current patterns.
func (s *Scorer) Score(domain string, candidates []pattern.SignalCandidate, now time.Time) (pattern.SearchPattern, bool) {
	groups := make(map[pattern.Type]*group)
	for _, c := range candidates {
		if c.Type == pattern.TypeUnknown || c.RawScore <= 0 {
			continue
		}
		raw := c.RawScore
		if raw > 1 {
			raw = 1
		}
		g, found := groups[c.Type]
		if !found {
			g = &group{combined: 1} // running product of (1 - score_i)
			groups[c.Type] = g
		}
		// Track the complement product; combined is derived below.
		g.combined *= 1 - raw
		if raw > g.best.RawScore {
			g.best = c
		}
		switch c.Source {
		case pattern.DetectorCMS:
			g.hasCMS = true
			g.cmsEvidence = c.Evidence
		case pattern.DetectorNetwork:
			g.hasNetwork = true
		case pattern.DetectorDOM:
			g.hasDOM = true
		}
	}
	if len(groups) == 0 {
		return pattern.SearchPattern{}, false
	}

	var bestType pattern.Type
	var bestGroup *group
	bestScore := -1.0
	for typ, g := range groups {
		// Probabilistic OR: independent evidence raises confidence but
		// never past 1.0.
		combined := 1 - g.combined
		if g.hasCMS && combined < s.cfg.FingerprintFloor {
			combined = s.cfg.FingerprintFloor
		}
		g.combined = combined
		if bestGroup == nil || combined > bestScore+s.cfg.TieEpsilon {
			bestType, bestGroup, bestScore = typ, g, combined
			continue
		}
		if combined >= bestScore-s.cfg.TieEpsilon && precedence(g) > precedence(bestGroup) {
			bestType, bestGroup, bestScore = typ, g, combined
		}
	}

	if bestScore < s.cfg.AcceptanceThreshold {
		return pattern.SearchPattern{}, false
	}

	evidence := bestGroup.best.Evidence
	if bestGroup.hasCMS {
		evidence = bestGroup.cmsEvidence
	}
	return pattern.SearchPattern{
		Domain:         domain,
		Type:           bestType,
		Confidence:     clamp01(bestScore),
		Evidence:       evidence,
		DiscoveredAt:   now.UTC(),
		LastVerifiedAt: now.UTC(),
	}, true
}

// Fixed tie-break order: CMS > network > DOM > anything else.
func precedence(g *group) int {
	switch {
	case g.hasCMS:
		return 3
	case g.hasNetwork:
		return 2
	case g.hasDOM:
		return 1
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
