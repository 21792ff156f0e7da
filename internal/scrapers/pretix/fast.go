package pretix

import (
	"html"
	"regexp"
	"strings"
)

// ticketPanelPattern anchors on "panel panel-default" which skips the
// informational "panel-info" box above the listings.
var ticketPanelPattern = regexp.MustCompile(`(?is)` +
	`<div class="panel panel-default">` +
	`.*?<h3 class="panel-title">([^<]+)</h3>` +
	`.*?<h2 class="text-primary">([^<]+)</h2>` +
	`.*?<form[^>]*action="([^"]*secondhand/buy/[^"]*)"[^>]*>` +
	`.*?name="csrfmiddlewaretoken"[^>]*value="([^"]*)"`,
)

var buyFormPattern = regexp.MustCompile(`(?is)` +
	`<form[^>]*method="post"[^>]*action="([^"]*secondhand/buy/[^"]*)"[^>]*>` +
	`[^<]*<input[^>]*name="csrfmiddlewaretoken"[^>]*value="([^"]*)"`,
)

type FastStatus int

const (
	FastNotFound FastStatus = iota
	FastFound
)

// FastResult distinguishes "the pattern did not match" from "no listings",
// Parse falls through to the structural extractor on FastNotFound.
type FastResult struct {
	Status   FastStatus
	Listings []TicketListing
}

// ExtractFast pulls listings out of the expected pretix markup with regular
// expressions only. When no full listing panel matches, bare buy forms are
// accepted with a placeholder type and price.
func ExtractFast(page string) FastResult {
	var listings []TicketListing

	for _, match := range ticketPanelPattern.FindAllStringSubmatch(page, -1) {
		listings = append(listings, TicketListing{
			TicketType: strings.TrimSpace(html.UnescapeString(match[1])),
			Price:      strings.TrimSpace(html.UnescapeString(match[2])),
			FormAction: html.UnescapeString(match[3]),
			FormData:   map[string]string{CSRFField: match[4]},
		})
	}

	if len(listings) == 0 {
		for _, match := range buyFormPattern.FindAllStringSubmatch(page, -1) {
			listings = append(listings, TicketListing{
				TicketType: defaultTicketType,
				Price:      unknownPrice,
				FormAction: html.UnescapeString(match[1]),
				FormData:   map[string]string{CSRFField: match[2]},
			})
		}
	}

	if len(listings) == 0 {
		return FastResult{Status: FastNotFound}
	}
	return FastResult{Status: FastFound, Listings: listings}
}
