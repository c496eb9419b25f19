package detect

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Fingerprint maps one CMS/platform to its canonical search pattern.
type Fingerprint struct {
	Name      string       `yaml:"name"`
	Generator string       `yaml:"generator,omitempty"`
	Markers   []string     `yaml:"markers,omitempty"`
	Type      pattern.Type `yaml:"pattern_type"`
	Template  string       `yaml:"template"`
	Score     float64      `yaml:"score,omitempty"`
}

// Registry is the immutable fingerprint table, loaded once at startup.
type Registry struct {
	entries []Fingerprint
}

const defaultFingerprintScore = 0.95

// DefaultRegistry returns the built-in platform table.
func DefaultRegistry() *Registry {
	return &Registry{entries: []Fingerprint{
		{Name: "wordpress", Generator: "wordpress", Markers: []string{"/wp-content/", "/wp-includes/"}, Type: pattern.TypeQueryParam, Template: "/?s={query}"},
		{Name: "drupal", Generator: "drupal", Markers: []string{"/sites/default/files/"}, Type: pattern.TypeQueryParam, Template: "/search/node?keys={query}"},
		{Name: "joomla", Generator: "joomla", Markers: []string{"/media/jui/"}, Type: pattern.TypeFormSubmit, Template: "/index.php?option=com_search&searchword={query}"},
		{Name: "shopify", Markers: []string{"cdn.shopify.com", "shopify.shop"}, Type: pattern.TypeQueryParam, Template: "/search?q={query}"},
		{Name: "magento", Markers: []string{"/static/frontend/", "/catalogsearch/"}, Type: pattern.TypeQueryParam, Template: "/catalogsearch/result/?q={query}"},
		{Name: "squarespace", Generator: "squarespace", Markers: []string{"static1.squarespace.com"}, Type: pattern.TypeQueryParam, Template: "/search?q={query}"},
		{Name: "wix", Generator: "wix.com", Markers: []string{"static.wixstatic.com"}, Type: pattern.TypeClientRendered, Template: "/search?q={query}"},
		{Name: "ghost", Generator: "ghost", Markers: []string{"/ghost/assets/"}, Type: pattern.TypeClientRendered, Template: "/search/?q={query}"},
	}}
}

// LoadRegistry reads fingerprints from a YAML file. An empty path falls
// back to the built-in table.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cms registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates YAML fingerprint entries.
func ParseRegistry(data []byte) (*Registry, error) {
	var doc struct {
		Fingerprints []Fingerprint `yaml:"fingerprints"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cms registry: %w", err)
	}
	for i, fp := range doc.Fingerprints {
		if fp.Name == "" {
			return nil, fmt.Errorf("cms registry entry %d: name is required", i)
		}
		if fp.Generator == "" && len(fp.Markers) == 0 {
			return nil, fmt.Errorf("cms registry entry %q: generator or markers required", fp.Name)
		}
		switch fp.Type {
		case pattern.TypeQueryParam, pattern.TypeFormSubmit, pattern.TypeAPIEndpoint, pattern.TypeClientRendered:
		default:
			return nil, fmt.Errorf("cms registry entry %q: unknown pattern type %q", fp.Name, fp.Type)
		}
	}
	return &Registry{entries: doc.Fingerprints}, nil
}

// Lookup matches the generator meta value and page markers against the
// table, first hit wins.
func (r *Registry) Lookup(generator string, haystack string) (Fingerprint, bool) {
	genLower := strings.ToLower(generator)
	for _, fp := range r.entries {
		if fp.Generator != "" && genLower != "" && strings.Contains(genLower, fp.Generator) {
			return fp, true
		}
		for _, marker := range fp.Markers {
			if strings.Contains(haystack, marker) {
				return fp, true
			}
		}
	}
	return Fingerprint{}, false
}

// Len reports the number of registered fingerprints.
func (r *Registry) Len() int { return len(r.entries) }

// CMS matches known platform markers against the fingerprint registry.
// A hit proposes a near-certain candidate from the canonical template,
// bypassing the weaker heuristics.
type CMS struct {
	registry *Registry
}

// NewCMS creates the CMS-fingerprint detector.
func NewCMS(registry *Registry) *CMS {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &CMS{registry: registry}
}

// Kind implements pattern.Detector.
func (c *CMS) Kind() pattern.DetectorKind { return pattern.DetectorCMS }

// Detect proposes at most one registry-backed candidate.
func (c *CMS) Detect(artifact pattern.Artifact) []pattern.SignalCandidate {
	if len(artifact.Body) == 0 {
		return nil
	}
	generator := ""
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(artifact.Body)); err == nil {
		generator, _ = doc.Find("meta[name='generator']").Attr("content")
	}

	haystack := strings.ToLower(string(artifact.Body))
	for _, req := range artifact.Requests {
		haystack += "\n" + strings.ToLower(req.URL)
	}

	fp, ok := c.registry.Lookup(generator, haystack)
	if !ok {
		return nil
	}
	score := fp.Score
	if score == 0 {
		score = defaultFingerprintScore
	}
	return []pattern.SignalCandidate{{
		Source:   pattern.DetectorCMS,
		Type:     fp.Type,
		RawScore: score,
		Evidence: pattern.Evidence{
			CMS:      fp.Name,
			Template: fp.Template,
			Note:     generatorNote(generator),
		},
	}}
}

func generatorNote(generator string) string {
	if generator == "" {
		return "matched asset markers"
	}
	return "meta generator " + generator
}
