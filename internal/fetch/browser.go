package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in headless Chrome before extracting
// text. Many Korean church and institution sites render contact blocks
// with script, so a plain GET returns an empty shell.
type BrowserFetcher struct {
	timeout    time.Duration
	renderWait time.Duration
}

// NewBrowserFetcher creates a BrowserFetcher with the given per-page
// timeout. Requires Chrome/Chromium on the host.
func NewBrowserFetcher(timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{
		timeout:    timeout,
		renderWait: 2 * time.Second,
	}
}

func (f *BrowserFetcher) Name() string { return "browser" }

// FetchText renders the page and returns its visible text.
func (f *BrowserFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, f.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(f.renderWait),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	text, err := htmlToText(html)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}

	zap.L().Debug("browser fetch complete",
		zap.String("url", pageURL),
		zap.Int("text_len", len(text)),
	)
	return text, nil
}
