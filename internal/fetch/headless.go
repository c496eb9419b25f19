package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/searchscout/searchscout/internal/pattern"
)

// HeadlessConfig controls the behavior of the headless fetcher.
type HeadlessConfig struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	SettleWait        time.Duration
}

// Headless renders a domain with chromedp and records the network
// requests observed during the render into the artifact.
type Headless struct {
	cfg         HeadlessConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadless creates a headless fetcher backed by chromedp.
func NewHeadless(cfg HeadlessConfig) (*Headless, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 25 * time.Second
	}
	if cfg.SettleWait <= 0 {
		cfg.SettleWait = 500 * time.Millisecond
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Headless{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Headless) Close() {
	f.allocCancel()
}

// Fetch implements pattern.Fetcher with a full browser render.
func (f *Headless) Fetch(ctx context.Context, domain string) (pattern.Artifact, error) {
	url := pattern.BaseURL(domain)
	if err := f.acquire(ctx); err != nil {
		return pattern.Artifact{}, pattern.ClassifyFetchErr(url, err)
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	log := newRequestLog()
	chromedp.ListenTarget(taskCtx, log.captureEvent)

	start := time.Now()
	html, finalURL, err := f.runHeadless(taskCtx, url)
	if err != nil {
		return pattern.Artifact{}, pattern.ClassifyFetchErr(url, err)
	}

	status, headers, responseURL := log.documentSnapshot(url, finalURL)
	return pattern.Artifact{
		Domain:       domain,
		FinalURL:     responseURL,
		StatusCode:   status,
		Headers:      headers,
		Body:         []byte(html),
		Requests:     log.requests(),
		UsedHeadless: true,
		Duration:     time.Since(start),
		FetchedAt:    start.UTC(),
	}, nil
}

func (f *Headless) runHeadless(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.cfg.SettleWait),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Headless) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Headless) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Headless) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// requestLog accumulates CDP network events into an ordered request list
// plus the top-level document response metadata.
type requestLog struct {
	mu        sync.Mutex
	ordered   []pattern.NetworkRequest
	byID      map[network.RequestID]int
	docStatus int
	docURL    string
	docHdrs   http.Header
}

func newRequestLog() *requestLog {
	return &requestLog{byID: make(map[network.RequestID]int)}
}

func (l *requestLog) captureEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		l.captureRequest(e)
	case *network.EventResponseReceived:
		l.captureResponse(e)
	}
}

func (l *requestLog) captureRequest(ev *network.EventRequestWillBeSent) {
	if ev.Request == nil {
		return
	}
	postData := ""
	if ev.Request.HasPostData && len(ev.Request.PostDataEntries) > 0 {
		postData = ev.Request.PostDataEntries[0].Bytes
	}
	l.mu.Lock()
	l.byID[ev.RequestID] = len(l.ordered)
	l.ordered = append(l.ordered, pattern.NetworkRequest{
		URL:          ev.Request.URL,
		Method:       ev.Request.Method,
		ResourceType: strings.ToLower(string(ev.Type)),
		PostData:     postData,
	})
	l.mu.Unlock()
}

func (l *requestLog) captureResponse(ev *network.EventResponseReceived) {
	if ev.Response == nil {
		return
	}
	l.mu.Lock()
	if idx, ok := l.byID[ev.RequestID]; ok {
		l.ordered[idx].StatusCode = int(ev.Response.Status)
		l.ordered[idx].ContentType = ev.Response.MimeType
	}
	if ev.Type == network.ResourceTypeDocument {
		l.docStatus = int(ev.Response.Status)
		l.docURL = ev.Response.URL
		l.docHdrs = toHTTPHeader(ev.Response.Headers)
	}
	l.mu.Unlock()
}

func (l *requestLog) requests() []pattern.NetworkRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pattern.NetworkRequest(nil), l.ordered...)
}

func (l *requestLog) documentSnapshot(requestURL, finalURL string) (int, http.Header, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	url := l.docURL
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	status := l.docStatus
	if status == 0 {
		status = http.StatusOK
	}
	headers := l.docHdrs
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

func toHTTPHeader(h network.Headers) http.Header {
	headers := http.Header{}
	for key, value := range h {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	return headers
}
