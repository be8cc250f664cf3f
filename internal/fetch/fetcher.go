// Package fetch retrieves readable page text for enrichment. A plain
// HTTP fetcher runs first; a headless-browser fetcher chained behind
// it handles the script-rendered Korean sites that return empty shells.
package fetch

import (
	"context"
	"fmt"
)

// PageFetcher fetches the readable text of a page.
type PageFetcher interface {
	Name() string
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// FetchError wraps any failure to obtain page text. The enricher
// treats it as recoverable: the item degrades to "no new page data".
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
