// Package search discovers organization homepages through web search.
package search

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/EnzoMH/cradcrawl-enrich/pkg/naver"
)

// ErrNoResult means the search ran but produced no plausible homepage.
// Callers continue enrichment without one.
var ErrNoResult = eris.New("search: no homepage found")

// HomepageSearcher discovers an organization's homepage URL from its
// name and address.
type HomepageSearcher interface {
	Discover(ctx context.Context, name, address string) (string, error)
}

// portalDomains are aggregator and SNS hosts that are never an
// organization's own homepage.
var portalDomains = []string{
	"blog.naver.com",
	"cafe.naver.com",
	"post.naver.com",
	"map.naver.com",
	"place.map.kakao.com",
	"blog.daum.net",
	"cafe.daum.net",
	"facebook.com",
	"instagram.com",
	"youtube.com",
	"tistory.com",
	"wikipedia.org",
	"namu.wiki",
}

var highlightTags = regexp.MustCompile(`</?b>`)

// NaverSearcher discovers homepages through Naver web search.
type NaverSearcher struct {
	client naver.Client
}

// NewNaverSearcher creates a NaverSearcher.
func NewNaverSearcher(client naver.Client) *NaverSearcher {
	return &NaverSearcher{client: client}
}

// Discover searches for "<name> 홈페이지", scoped to the address's
// region when one is known, and returns the best-matching result link.
func (s *NaverSearcher) Discover(ctx context.Context, name, address string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", eris.Wrap(ErrNoResult, "search: empty organization name")
	}

	query := name + " 홈페이지"
	if region := regionToken(address); region != "" {
		query = region + " " + query
	}

	resp, err := s.client.SearchWeb(ctx, query)
	if err != nil {
		return "", eris.Wrap(err, "search: naver query")
	}

	// First pass: a result whose title mentions the organization.
	for _, item := range resp.Items {
		link, ok := usableLink(item.Link)
		if !ok {
			continue
		}
		title := highlightTags.ReplaceAllString(item.Title, "")
		if strings.Contains(title, name) || strings.Contains(name, strings.TrimSpace(title)) {
			zap.L().Debug("homepage matched by title",
				zap.String("org", name),
				zap.String("url", link),
			)
			return link, nil
		}
	}

	// Fallback: first non-portal link.
	for _, item := range resp.Items {
		if link, ok := usableLink(item.Link); ok {
			return link, nil
		}
	}

	return "", eris.Wrapf(ErrNoResult, "search: %s", name)
}

// usableLink reports whether a result link is an absolute http(s) URL
// outside the portal blocklist, returning it normalized.
func usableLink(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Host, "www."))
	for _, portal := range portalDomains {
		if host == portal || strings.HasSuffix(host, "."+portal) {
			return "", false
		}
	}
	return u.String(), true
}

// regionToken extracts the leading administrative region from a Korean
// address (e.g. "서울시" from "서울시 강남구 ...") to tighten the query.
func regionToken(address string) string {
	fields := strings.Fields(strings.TrimSpace(address))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
