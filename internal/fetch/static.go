package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StaticFetcher fetches pages with plain HTTP and extracts text with
// goquery. Per-host politeness is enforced with a token-bucket limiter
// so a batch run never hammers one site.
type StaticFetcher struct {
	client    *http.Client
	userAgent string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perHost  rate.Limit
}

// NewStaticFetcher creates a StaticFetcher with the given timeout and
// per-host requests-per-second cap.
func NewStaticFetcher(timeout time.Duration, perHostRPS float64, userAgent string) *StaticFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if perHostRPS <= 0 {
		perHostRPS = 2
	}
	if userAgent == "" {
		userAgent = "cradcrawl-enrich/1.0"
	}
	return &StaticFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		limiters:  make(map[string]*rate.Limiter),
		perHost:   rate.Limit(perHostRPS),
	}
}

func (f *StaticFetcher) Name() string { return "static" }

func (f *StaticFetcher) limiterFor(rawURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(f.perHost, 1)
		f.limiters[host] = lim
	}
	return lim
}

// FetchText GETs the page and returns its visible text.
func (f *StaticFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiterFor(pageURL).Wait(ctx); err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: pageURL, Err: &statusError{code: resp.StatusCode}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	text, err := htmlToText(string(body))
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	return text, nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
