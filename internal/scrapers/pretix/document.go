package pretix

import (
	"fmt"
	"strings"

	"secondhand-race/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ParseDocument is the structural extractor, used when the markup does not
// match what ExtractFast expects. Listings are collected with three strategies
// in order: POST forms with a buy control, ticket/listing containers holding a
// form, and cart links.
func ParseDocument(page string) ParseResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ParseResult{
			Path:         PathStructural,
			ErrorMessage: fmt.Sprintf("parse document: %s", err.Error()),
		}
	}

	result := ParseResult{
		Path:      PathStructural,
		CSRFToken: documentToken(doc),
	}

	noTickets := false
	doc.Find("div.alert-warning").EachWithBreak(func(_ int, alert *goquery.Selection) bool {
		noTickets = strings.Contains(alert.Text(), noTicketsMarker)
		return !noTickets
	})
	if noTickets {
		return result
	}

	result.Listings = documentListings(doc)
	result.TicketsAvailable = len(result.Listings) > 0
	return result
}

func documentToken(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[name="csrf-token"]`).First().Attr("content"); ok {
		return content
	}
	if value, ok := doc.Find(`input[name="csrfmiddlewaretoken"]`).First().Attr("value"); ok {
		return value
	}
	return ""
}

func documentListings(doc *goquery.Document) []TicketListing {
	var listings []TicketListing
	seen := map[*html.Node]bool{}

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		method, _ := form.Attr("method")
		if !strings.EqualFold(method, "post") {
			return
		}
		// filter and sort controls
		if form.HasClass("form-inline") {
			return
		}
		if !hasBuyControl(form) {
			return
		}
		seen[form.Get(0)] = true
		listings = append(listings, formListing(form))
	})

	doc.Find("div, article, tr").Each(func(_ int, container *goquery.Selection) {
		if !classContains(container, "ticket", "listing", "product-row") {
			return
		}
		form := container.Find("form").First()
		if form.Length() == 0 || seen[form.Get(0)] {
			return
		}
		seen[form.Get(0)] = true
		listings = append(listings, formListing(form))
	})

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if !strings.Contains(strings.ToLower(href), "cart") {
			return
		}
		listings = append(listings, TicketListing{
			TicketType: "Unknown",
			Price:      unknownPrice,
			FormAction: href,
			FormData:   map[string]string{},
		})
	})

	return listings
}

func hasBuyControl(form *goquery.Selection) bool {
	buy := form.Find("button, input").FilterFunction(func(_ int, control *goquery.Selection) bool {
		label := control.Text()
		if goquery.NodeName(control) == "input" {
			label, _ = control.Attr("value")
		}
		return strings.Contains(strings.ToLower(label), "buy")
	})
	if buy.Length() > 0 {
		return true
	}
	return form.Find(`button[type="submit"], input[type="submit"]`).Length() > 0
}

func classContains(sel *goquery.Selection, fragments ...string) bool {
	class, ok := sel.Attr("class")
	if !ok {
		return false
	}
	class = strings.ToLower(class)
	for _, f := range fragments {
		if strings.Contains(class, f) {
			return true
		}
	}
	return false
}

func firstWithClass(sel *goquery.Selection, selector, fragment string) *goquery.Selection {
	return sel.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContains(s, fragment)
	}).First()
}

func formListing(form *goquery.Selection) TicketListing {
	action, _ := form.Attr("action")

	data := map[string]string{}
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, hasName := input.Attr("name")
		value, hasValue := input.Attr("value")
		if hasName && hasValue {
			data[name] = value
		}
	})

	listing := TicketListing{
		TicketType: defaultTicketType,
		Price:      unknownPrice,
		FormAction: action,
		FormData:   data,
	}

	panel := form.Closest(".panel")

	price := htmlutil.SelectionText(firstWithClass(form, "*", "price"))
	if price == "" && panel.Length() > 0 {
		price = htmlutil.SelectionText(panel.Find("h2.text-primary").First())
	}
	if price != "" {
		listing.Price = price
	}

	const titleTags = "h3, h4, h5, strong, span"
	title := htmlutil.SelectionText(firstWithClass(form.Parent(), titleTags, "title"))
	if title == "" && panel.Length() > 0 {
		title = htmlutil.SelectionText(firstWithClass(panel, titleTags, "title"))
	}
	if title != "" {
		listing.TicketType = title
	}

	return listing
}
