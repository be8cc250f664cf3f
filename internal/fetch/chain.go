package fetch

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// minUsableText is the shortest page text worth handing to extraction.
// Shorter results usually mean a bot wall or an empty script shell, so
// the chain moves on to the next fetcher.
const minUsableText = 80

// Chain tries each fetcher in order and returns the first usable text.
type Chain struct {
	fetchers []PageFetcher
}

// NewChain creates a fetcher chain. Order matters: the first usable
// result wins.
func NewChain(fetchers ...PageFetcher) *Chain {
	return &Chain{fetchers: fetchers}
}

func (c *Chain) Name() string { return "chain" }

// FetchText runs the chain. It fails only when every fetcher fails or
// returns unusable text.
func (c *Chain) FetchText(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	for _, f := range c.fetchers {
		if ctx.Err() != nil {
			return "", &FetchError{URL: pageURL, Err: ctx.Err()}
		}

		text, err := f.FetchText(ctx, pageURL)
		if err != nil {
			lastErr = err
			zap.L().Warn("fetcher failed, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			continue
		}
		if len(strings.TrimSpace(text)) < minUsableText {
			lastErr = &FetchError{URL: pageURL, Err: errTooShort}
			zap.L().Debug("fetcher returned unusable text, trying next",
				zap.String("fetcher", f.Name()),
				zap.String("url", pageURL),
				zap.Int("text_len", len(text)),
			)
			continue
		}
		return text, nil
	}
	if lastErr == nil {
		lastErr = &FetchError{URL: pageURL, Err: errNoFetchers}
	}
	return "", lastErr
}

var (
	errTooShort   = errString("page text too short")
	errNoFetchers = errString("no fetchers configured")
)

type errString string

func (e errString) Error() string { return string(e) }
