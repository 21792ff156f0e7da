package pretix

import (
	"regexp"
	"strings"
)

var csrfPattern = regexp.MustCompile(`name="csrfmiddlewaretoken" value="([^"]*)"`)

// Parse classifies a marketplace page, cheapest check first:
//  1. the no-tickets marker
//  2. the regex extractor, when a buy form path is present
//  3. the structural (DOM) extractor
func Parse(html string) ParseResult {
	if strings.Contains(html, noTicketsMarker) {
		result := ParseResult{Path: PathNoTickets}
		if match := csrfPattern.FindStringSubmatch(html); match != nil {
			result.CSRFToken = match[1]
		}
		return result
	}

	if strings.Contains(html, buyPathFragment) {
		fast := ExtractFast(html)
		if fast.Status == FastFound {
			return ParseResult{
				TicketsAvailable: true,
				Listings:         fast.Listings,
				CSRFToken:        fast.Listings[0].FormData[CSRFField],
				Path:             PathFast,
			}
		}
	}

	return ParseDocument(html)
}
