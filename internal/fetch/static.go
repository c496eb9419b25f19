package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Static serves canned artifacts by domain. It backs tests and local dry
// runs where no network or browser is available.
type Static struct {
	Artifacts map[string]pattern.Artifact
	Err       error
	Delay     time.Duration
}

// Fetch implements pattern.Fetcher.
func (s *Static) Fetch(ctx context.Context, domain string) (pattern.Artifact, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return pattern.Artifact{}, pattern.ClassifyFetchErr(pattern.BaseURL(domain), ctx.Err())
		}
	}
	if s.Err != nil {
		return pattern.Artifact{}, s.Err
	}
	artifact, ok := s.Artifacts[domain]
	if !ok {
		return pattern.Artifact{}, &pattern.FetchError{
			Kind: pattern.FetchNavigation,
			URL:  pattern.BaseURL(domain),
			Err:  errors.New("no canned artifact"),
		}
	}
	artifact.Domain = domain
	return artifact, nil
}
