package detect

import (
	"net/url"
	"strings"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Search-API URL shapes observed across common platforms.
var searchURLMarkers = []string{
	"/search?",
	"/api/search",
	"/api/v1/search",
	"/search.json",
	"/catalogsearch/",
	"/find?",
	"query=",
	"?q=",
	"&q=",
	"?s=",
}

const (
	scoreEndpointBase = 0.5
	scoreJSONBonus    = 0.2
	scoreGraphQL      = 0.65
	maxEndpoints      = 3
)

// Network inspects requests observed during render for search-API shapes.
type Network struct{}

// NewNetwork creates the network-heuristic detector.
func NewNetwork() *Network { return &Network{} }

// Kind implements pattern.Detector.
func (n *Network) Kind() pattern.DetectorKind { return pattern.DetectorNetwork }

// Detect proposes ApiEndpoint candidates, one per distinct endpoint path.
// JSON responses score higher than unclassified responses.
func (n *Network) Detect(artifact pattern.Artifact) []pattern.SignalCandidate {
	if len(artifact.Requests) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	var out []pattern.SignalCandidate
	for _, req := range artifact.Requests {
		if len(out) >= maxEndpoints {
			break
		}
		c, ok := classifyRequest(req)
		if !ok {
			continue
		}
		key := endpointKey(req.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

func classifyRequest(req pattern.NetworkRequest) (pattern.SignalCandidate, bool) {
	lower := strings.ToLower(req.URL)

	if isGraphQLSearch(req, lower) {
		return pattern.SignalCandidate{
			Source:   pattern.DetectorNetwork,
			Type:     pattern.TypeAPIEndpoint,
			RawScore: scoreGraphQL,
			Evidence: pattern.Evidence{EndpointURL: req.URL, Note: "graphql search operation"},
		}, true
	}

	matched := ""
	for _, marker := range searchURLMarkers {
		if strings.Contains(lower, marker) {
			matched = marker
			break
		}
	}
	if matched == "" {
		return pattern.SignalCandidate{}, false
	}
	// Document navigations are the page itself, not an embedded API call.
	if strings.EqualFold(req.ResourceType, "document") {
		return pattern.SignalCandidate{}, false
	}

	score := scoreEndpointBase
	note := "matched " + matched
	if strings.Contains(strings.ToLower(req.ContentType), "json") {
		score += scoreJSONBonus
		note += ", json response"
	}
	return pattern.SignalCandidate{
		Source:   pattern.DetectorNetwork,
		Type:     pattern.TypeAPIEndpoint,
		RawScore: score,
		Evidence: pattern.Evidence{EndpointURL: req.URL, Note: note},
	}, true
}

func isGraphQLSearch(req pattern.NetworkRequest, lowerURL string) bool {
	if !strings.Contains(lowerURL, "graphql") {
		return false
	}
	if !strings.EqualFold(req.Method, "POST") {
		return false
	}
	return strings.Contains(strings.ToLower(req.PostData), "search")
}

// endpointKey strips query values so repeated calls to one endpoint
// collapse into a single candidate.
func endpointKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host + u.Path
}
