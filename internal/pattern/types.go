// Package pattern defines core types shared across subsystems.
package pattern

import (
	"net/http"
	"time"
)

// Type enumerates the ways a site can implement on-site search.
type Type string

// Pattern type values persisted in the pattern store.
const (
	TypeQueryParam     Type = "query_param"
	TypeFormSubmit     Type = "form_submit"
	TypeAPIEndpoint    Type = "api_endpoint"
	TypeClientRendered Type = "client_rendered"
	TypeUnknown        Type = "unknown"
)

// DetectorKind identifies which analyzer produced a signal.
type DetectorKind string

// Known detector kinds.
const (
	DetectorDOM     DetectorKind = "dom"
	DetectorNetwork DetectorKind = "network"
	DetectorCMS     DetectorKind = "cms"
)

// Evidence carries the structured metadata backing a candidate or pattern.
type Evidence struct {
	Selector    string `json:"selector,omitempty"`
	EndpointURL string `json:"endpoint_url,omitempty"`
	Template    string `json:"template,omitempty"`
	CMS         string `json:"cms,omitempty"`
	Note        string `json:"note,omitempty"`
}

// SignalCandidate is one detector's proposed pattern type with a raw score.
// Candidates live only for the scoring pass of a single fetch attempt.
type SignalCandidate struct {
	Source   DetectorKind
	Type     Type
	RawScore float64
	Evidence Evidence
}

// SearchPattern is the authoritative, persisted result for a domain.
// Storage keeps at most one current row per domain.
type SearchPattern struct {
	Domain         string    `json:"domain"`
	Type           Type      `json:"pattern_type"`
	Confidence     float64   `json:"confidence"`
	Evidence       Evidence  `json:"evidence"`
	DiscoveredAt   time.Time `json:"discovered_at"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
}

// NetworkRequest is one request observed while rendering a page.
type NetworkRequest struct {
	URL          string
	Method       string
	ResourceType string
	ContentType  string
	StatusCode   int
	PostData     string
}

// Artifact is the rendered-page snapshot a fetch attempt produces. It is
// consumed by the detector pass and discarded after scoring.
type Artifact struct {
	Domain       string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Requests     []NetworkRequest
	UsedHeadless bool
	Duration     time.Duration
	FetchedAt    time.Time
}

// Outcome is the terminal status of one domain pipeline.
type Outcome string

// Terminal outcome values reported per domain.
const (
	OutcomeSuccess      Outcome = "success"
	OutcomeInconclusive Outcome = "inconclusive"
	OutcomeFailed       Outcome = "failed"
)

// Mode selects the orchestrator behavior for a run.
type Mode string

// Supported run modes.
const (
	ModeDiscover Mode = "discover"
	ModeVerify   Mode = "verify"
)

// DomainResult is the per-domain entry in a run report.
type DomainResult struct {
	Domain             string  `json:"domain"`
	Outcome            Outcome `json:"outcome"`
	Type               Type    `json:"pattern_type,omitempty"`
	Confidence         float64 `json:"confidence,omitempty"`
	DriftDetected      bool    `json:"drift_detected,omitempty"`
	PreviousConfidence float64 `json:"previous_confidence,omitempty"`
	Attempts           int     `json:"attempts"`
	Error              string  `json:"error,omitempty"`
}

// Report summarizes one orchestrator run.
type Report struct {
	RunID      string         `json:"run_id"`
	Mode       Mode           `json:"mode"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []DomainResult `json:"results"`
}

// Counts tallies outcomes across a report.
func (r Report) Counts() (success, inconclusive, failed int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeSuccess:
			success++
		case OutcomeInconclusive:
			inconclusive++
		case OutcomeFailed:
			failed++
		}
	}
	return success, inconclusive, failed
}
