// Package naver provides a client for the Naver Open API web search.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client defines the Naver search operations used for homepage discovery.
type Client interface {
	// SearchWeb performs a Korean web search and returns ranked results.
	SearchWeb(ctx context.Context, query string) (*SearchResponse, error)
}

// SearchResponse is the parsed Naver search API response.
type SearchResponse struct {
	Total int          `json:"total"`
	Start int          `json:"start"`
	Items []SearchItem `json:"items"`
}

// SearchItem is a single search result. Title and Description carry
// <b> highlight markup that callers must strip.
type SearchItem struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

// Option configures the Naver client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithDisplay sets how many results to request per query (max 100).
func WithDisplay(n int) Option {
	return func(c *httpClient) {
		c.display = n
	}
}

type httpClient struct {
	clientID     string
	clientSecret string
	baseURL      string
	display      int
	http         *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a Naver Open API client. The free tier allows 10
// queries per second; the built-in limiter stays below that.
func NewClient(clientID, clientSecret string, opts ...Option) Client {
	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      "https://openapi.naver.com",
		display:      10,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(8, 8),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) SearchWeb(ctx context.Context, query string) (*SearchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "naver: rate limiter wait")
	}

	endpoint := fmt.Sprintf("%s/v1/search/webkr.json?query=%s&display=%d",
		c.baseURL, url.QueryEscape(query), c.display)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "naver: create request")
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	body, status, err := c.retryDo(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "naver: search request")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("naver: unexpected status %d", status)
	}

	var parsed SearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "naver: parse response")
	}
	return &parsed, nil
}

// retryDo executes a request with exponential backoff on transient
// failures (429, 5xx). Returns the body and status on success.
func (c *httpClient) retryDo(ctx context.Context, req *http.Request) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		retryReq := req.Clone(ctx)

		resp, err := c.http.Do(retryReq)
		if err != nil {
			lastErr = err
			if attempt < maxAttempts {
				select {
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
				continue
			}
			return nil, 0, lastErr
		}

		body, readErr := readBody(resp)
		if readErr != nil {
			return nil, resp.StatusCode, readErr
		}

		if retryableStatusCode(resp.StatusCode) && attempt < maxAttempts {
			lastErr = eris.Errorf("naver: status %d", resp.StatusCode)
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}

		return body, resp.StatusCode, nil
	}
	return nil, 0, lastErr
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "naver: read body")
	}
	return body, nil
}
