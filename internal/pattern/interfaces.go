package pattern

import (
	"context"
	"time"
)

// Fetcher renders a domain's landing page and returns the artifact.
type Fetcher interface {
	Fetch(ctx context.Context, domain string) (Artifact, error)
}

// Detector proposes zero or more candidates from one artifact. A detector
// that cannot parse the artifact returns an empty slice, never an error.
type Detector interface {
	Kind() DetectorKind
	Detect(artifact Artifact) []SignalCandidate
}

// Store is the persistence gateway for search patterns. Upsert replaces
// any prior current row for the pattern's domain.
type Store interface {
	Upsert(ctx context.Context, p SearchPattern) error
	FetchCurrent(ctx context.Context, domain string) (SearchPattern, error)
	MarkVerified(ctx context.Context, domain string, at time.Time) error
}

// BlobStore writes evidence snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes run outcome events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
