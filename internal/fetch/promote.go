package fetch

import (
	"bytes"
	"strings"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Promoter implements a handful of rule-based escalations from the static
// probe to the headless renderer.
type Promoter struct {
	BodyLengthThreshold int
}

// NewPromoter creates a new promotion heuristic.
func NewPromoter(threshold int) *Promoter {
	if threshold == 0 {
		threshold = 2048
	}
	return &Promoter{BodyLengthThreshold: threshold}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// ShouldPromote decides whether a headless render is required to observe
// the page's real search surface.
func (p *Promoter) ShouldPromote(artifact pattern.Artifact) bool {
	if artifact.StatusCode != 200 {
		return false
	}
	body := artifact.Body
	if len(body) == 0 {
		return true
	}
	if len(body) < p.BodyLengthThreshold && scriptDensityHigh(body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	scriptCoverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(lower[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			scriptCoverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(lower[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		scriptCoverage += nextSearch - start
		searchPos = nextSearch
	}

	if scriptCoverage == 0 {
		return false
	}
	return scriptCoverage*100/total >= 25
}
