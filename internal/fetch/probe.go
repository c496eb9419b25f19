// Package fetch assembles rendered-page artifacts for the detector pass.
// A cheap colly probe grabs the static HTML first; a promotion heuristic
// escalates script-heavy pages to the headless renderer so client-side
// search UIs are observed too.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/searchscout/searchscout/internal/pattern"
)

// ProbeConfig controls the static HTTP probe.
type ProbeConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// Probe fetches a domain's landing page over plain HTTP using colly.
// It observes no network traffic; artifacts it produces carry only the
// static DOM.
type Probe struct {
	cfg           ProbeConfig
	baseCollector *colly.Collector
}

// NewProbe builds a Probe.
func NewProbe(cfg ProbeConfig) *Probe {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Probe{cfg: cfg, baseCollector: c}
}

// Fetch implements pattern.Fetcher.
func (p *Probe) Fetch(ctx context.Context, domain string) (pattern.Artifact, error) {
	url := pattern.BaseURL(domain)
	collector := p.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if p.cfg.UserAgent != "" {
		collector.UserAgent = p.cfg.UserAgent
	}
	collector.SetRequestTimeout(p.cfg.Timeout)

	var (
		artifact pattern.Artifact
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		artifact = pattern.Artifact{
			Domain:     domain,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
			FetchedAt:  start.UTC(),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return pattern.Artifact{}, pattern.ClassifyFetchErr(url, ctx.Err())
	case err := <-done:
		if err != nil {
			return pattern.Artifact{}, pattern.ClassifyFetchErr(url, fmt.Errorf("probe visit: %w", err))
		}
		if fetchErr != nil {
			return pattern.Artifact{}, pattern.ClassifyFetchErr(url, fmt.Errorf("probe response: %w", fetchErr))
		}
		return artifact, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
