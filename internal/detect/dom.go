package detect

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/searchscout/searchscout/internal/pattern"
)

// Selector corpora distilled from common CMS, ecommerce and SPA markup.
// Exact attribute matches are strong signals; substring matches are weak.
var (
	strongInputSelectors = []string{
		"input[type='search']",
		"input[name='q']",
		"input[name='query']",
		"input[name='s']",
		"input[name='search']",
		"input[name='keyword']",
		"input[name='keys']",
		"input[name='searchword']",
		"input[name='search_query']",
		"input[name='k']",
	}
	weakInputSelectors = []string{
		"input[placeholder*='earch']",
		"input[class*='search']",
		"input[id*='search']",
		"input[aria-label*='earch']",
		"input[data-testid*='search']",
		"[role='search'] input",
	}
	iconSelectors = []string{
		"button[aria-label*='earch']",
		"button[class*='search']",
		"a[class*='search-toggle']",
		"i[class*='fa-search']",
		"svg[class*='search']",
		"[data-icon*='search']",
	}
)

const (
	scoreStrongInput = 0.7
	scoreWeakInput   = 0.45
	scoreSearchForm  = 0.6
	scoreSearchLink  = 0.4
	scoreSearchIcon  = 0.5
)

var resultIndicators = []string{
	"search result",
	"results for",
	"no results",
}

// DOM inspects form elements, input attributes and link hrefs for
// on-page search affordances.
type DOM struct{}

// NewDOM creates the DOM-heuristic detector.
func NewDOM() *DOM { return &DOM{} }

// Kind implements pattern.Detector.
func (d *DOM) Kind() pattern.DetectorKind { return pattern.DetectorDOM }

// Detect proposes FormSubmit, QueryParam or ClientRendered candidates.
// At most one candidate per signal class is emitted so independent
// evidence combination stays calibrated.
func (d *DOM) Detect(artifact pattern.Artifact) []pattern.SignalCandidate {
	if len(artifact.Body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(artifact.Body))
	if err != nil {
		return nil
	}

	var out []pattern.SignalCandidate
	if c, ok := d.bestInputCandidate(doc); ok {
		out = append(out, c)
	}
	if c, ok := d.searchLinkCandidate(doc); ok {
		out = append(out, c)
	}
	if c, ok := d.iconCandidate(doc, out); ok {
		out = append(out, c)
	}
	return out
}

// bestInputCandidate returns the single strongest input/form match.
func (d *DOM) bestInputCandidate(doc *goquery.Document) (pattern.SignalCandidate, bool) {
	for _, sel := range strongInputSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if isNonSearchInput(node) {
			continue
		}
		score := scoreStrongInput
		patternType := pattern.TypeFormSubmit
		evidence := pattern.Evidence{Selector: sel}
		if form := node.Closest("form"); form.Length() > 0 {
			if action, ok := form.Attr("action"); ok && strings.Contains(strings.ToLower(action), "search") {
				evidence.Note = "form action " + action
			}
		} else {
			// A search input with no owning form is driven by script.
			patternType = pattern.TypeClientRendered
		}
		if hasResultIndicators(doc) {
			evidence.Note = strings.TrimSpace(evidence.Note + " result markers present")
		}
		return pattern.SignalCandidate{
			Source:   pattern.DetectorDOM,
			Type:     patternType,
			RawScore: score,
			Evidence: evidence,
		}, true
	}

	for _, sel := range weakInputSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 || isNonSearchInput(node) {
			continue
		}
		patternType := pattern.TypeFormSubmit
		if node.Closest("form").Length() == 0 {
			patternType = pattern.TypeClientRendered
		}
		return pattern.SignalCandidate{
			Source:   pattern.DetectorDOM,
			Type:     patternType,
			RawScore: scoreWeakInput,
			Evidence: pattern.Evidence{Selector: sel},
		}, true
	}

	if form := doc.Find("form[action*='search']").First(); form.Length() > 0 {
		action, _ := form.Attr("action")
		return pattern.SignalCandidate{
			Source:   pattern.DetectorDOM,
			Type:     pattern.TypeFormSubmit,
			RawScore: scoreSearchForm,
			Evidence: pattern.Evidence{Selector: "form[action*='search']", Note: "form action " + action},
		}, true
	}
	return pattern.SignalCandidate{}, false
}

// searchLinkCandidate scans anchors for query-style search URLs.
func (d *DOM) searchLinkCandidate(doc *goquery.Document) (pattern.SignalCandidate, bool) {
	var found pattern.SignalCandidate
	var ok bool
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if strings.Contains(lower, "?q=") || strings.Contains(lower, "?s=") ||
			strings.Contains(lower, "/search") {
			found = pattern.SignalCandidate{
				Source:   pattern.DetectorDOM,
				Type:     pattern.TypeQueryParam,
				RawScore: scoreSearchLink,
				Evidence: pattern.Evidence{EndpointURL: href, Selector: "a[href]"},
			}
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

// iconCandidate fires only when an icon/toggle exists without a usable
// input, pointing at an overlay opened by script.
func (d *DOM) iconCandidate(doc *goquery.Document, existing []pattern.SignalCandidate) (pattern.SignalCandidate, bool) {
	for _, c := range existing {
		if c.Type == pattern.TypeFormSubmit || c.Type == pattern.TypeClientRendered {
			return pattern.SignalCandidate{}, false
		}
	}
	for _, sel := range iconSelectors {
		if doc.Find(sel).Length() > 0 {
			return pattern.SignalCandidate{
				Source:   pattern.DetectorDOM,
				Type:     pattern.TypeClientRendered,
				RawScore: scoreSearchIcon,
				Evidence: pattern.Evidence{Selector: sel, Note: "search toggle without visible input"},
			}, true
		}
	}
	return pattern.SignalCandidate{}, false
}

func isNonSearchInput(node *goquery.Selection) bool {
	t, _ := node.Attr("type")
	switch strings.ToLower(t) {
	case "email", "password", "tel", "number", "hidden":
		return true
	}
	return false
}

func hasResultIndicators(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Text())
	for _, ind := range resultIndicators {
		if strings.Contains(text, ind) {
			return true
		}
	}
	return false
}
