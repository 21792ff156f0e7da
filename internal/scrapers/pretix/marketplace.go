package pretix

import (
	"context"
	"net/url"
	"strings"

	"secondhand-race/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// FindMarketplaceLink returns the first link on the event page pointing into
// the resale marketplace. Relative links are resolved against `baseURL`
// when it is non-empty.
func FindMarketplaceLink(ctx context.Context, page, baseURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}

	var base *url.URL
	if baseURL != "" {
		base, err = url.Parse(baseURL)
		if err != nil {
			base = nil
		}
	}

	for _, anchor := range htmlutil.GetAnchors(ctx, base, doc.Find("a[href]")) {
		path := anchor.Href.Path
		if strings.Contains(path, marketplaceFragment) && !strings.Contains(path, buyPathFragment) {
			return anchor.Href.String(), true
		}
	}
	return "", false
}
