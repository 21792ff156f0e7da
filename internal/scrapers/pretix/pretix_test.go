package pretix

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func readFixture(t testing.TB, name string) string {
	t.Helper()
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(contents)
}

func TestParseNoTickets(t *testing.T) {
	result := Parse(readFixture(t, "no_tickets.html"))

	require.False(t, result.TicketsAvailable)
	require.Empty(t, result.Listings)
	require.Equal(t, "Tm9UaWNrZXRzVG9rZW4", result.CSRFToken)
	require.Equal(t, PathNoTickets, result.Path)
}

func TestParseFastPath(t *testing.T) {
	result := Parse(readFixture(t, "tickets_available.html"))

	require.True(t, result.TicketsAvailable)
	require.Equal(t, PathFast, result.Path)
	require.Equal(t, "Qm9vbXRva2VuMTIz", result.CSRFToken)

	expected := []TicketListing{
		{
			TicketType: "Ticket – Type A",
			Price:      "190.00 EUR",
			FormAction: "/event/secondhand/buy/4821/",
			FormData:   map[string]string{CSRFField: "Qm9vbXRva2VuMTIz"},
		},
		{
			TicketType: "Ticket – Type B",
			Price:      "210.00 EUR",
			FormAction: "/event/secondhand/buy/4822/",
			FormData:   map[string]string{CSRFField: "Qm9vbXRva2VuMTIz"},
		},
	}
	if diff := cmp.Diff(expected, result.Listings); diff != "" {
		t.Fatalf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestFastAndStructuralAgree(t *testing.T) {
	page := readFixture(t, "tickets_available.html")

	fast := ExtractFast(page)
	structural := ParseDocument(page)

	require.Equal(t, FastFound, fast.Status)
	require.True(t, structural.TicketsAvailable)
	require.Len(t, structural.Listings, len(fast.Listings))
	require.Equal(t, fast.Listings[0].FormAction, structural.Listings[0].FormAction)

	if diff := cmp.Diff(fast.Listings, structural.Listings); diff != "" {
		t.Fatalf("extractors disagree (-fast +structural):\n%s", diff)
	}
}

func TestExtractFastFormOnly(t *testing.T) {
	page := `<form class="buy" method="post" action="/event/secondhand/buy/77/">
		<input type="hidden" name="csrfmiddlewaretoken" value="abc">
		<button>Buy</button>
	</form>`

	result := ExtractFast(page)
	require.Equal(t, FastFound, result.Status)
	require.Equal(t, []TicketListing{{
		TicketType: "Ticket",
		Price:      "Unknown",
		FormAction: "/event/secondhand/buy/77/",
		FormData:   map[string]string{CSRFField: "abc"},
	}}, result.Listings)
}

func TestExtractFastNotFound(t *testing.T) {
	result := ExtractFast(`<p>a link to /secondhand/buy/ in prose</p>`)
	require.Equal(t, FastNotFound, result.Status)
	require.Empty(t, result.Listings)
}

func TestParseStructuralFallback(t *testing.T) {
	result := Parse(readFixture(t, "generic_listing.html"))

	require.True(t, result.TicketsAvailable)
	require.Equal(t, PathStructural, result.Path)
	require.Equal(t, "bWV0YXRva2Vu", result.CSRFToken)
	require.Equal(t, []TicketListing{{
		TicketType: "Weekend Pass",
		Price:      "150.00 EUR",
		FormAction: "/event/cart/add",
		FormData: map[string]string{
			CSRFField: "Zm9ybXRva2Vu",
			"item_12": "1",
		},
	}}, result.Listings)
}

func TestParseDocumentNoTicketsAlert(t *testing.T) {
	// entity encoded, so the plain text marker check does not see it
	page := `<div class="alert alert-warning">No&#32;tickets available right now</div>
		<input name="csrfmiddlewaretoken" value="tok">`

	result := Parse(page)
	require.Equal(t, PathStructural, result.Path)
	require.False(t, result.TicketsAvailable)
	require.Empty(t, result.Listings)
	require.Equal(t, "tok", result.CSRFToken)
}

func TestParseDocumentCartLinks(t *testing.T) {
	result := ParseDocument(`<a href="/event/cart/add?item=3">Reserve</a><a href="/event/faq/">FAQ</a>`)

	require.True(t, result.TicketsAvailable)
	require.Equal(t, []TicketListing{{
		TicketType: "Unknown",
		Price:      "Unknown",
		FormAction: "/event/cart/add?item=3",
		FormData:   map[string]string{},
	}}, result.Listings)
}

func TestParseDocumentSkipsFilterForms(t *testing.T) {
	result := ParseDocument(`<form class="form-inline" method="post"><button type="submit">Buy filter</button></form>`)
	require.False(t, result.TicketsAvailable)
	require.Empty(t, result.Listings)
}

func TestFindMarketplaceLink(t *testing.T) {
	ctx := context.Background()

	link, ok := FindMarketplaceLink(ctx, readFixture(t, "event_page.html"), "https://tickets.example.com")
	require.True(t, ok)
	require.Equal(t, "https://tickets.example.com/event/secondhand/", link)

	link, ok = FindMarketplaceLink(ctx, `<a href="https://tickets.example.com/event/secondhand/">Resale</a>`, "")
	require.True(t, ok)
	require.Equal(t, "https://tickets.example.com/event/secondhand/", link)

	_, ok = FindMarketplaceLink(ctx, `<a href="/event/faq/">FAQ</a><p>secondhand</p>`, "https://tickets.example.com")
	require.False(t, ok)
}

func TestFingerprintIgnoresDynamicContent(t *testing.T) {
	page := readFixture(t, "no_tickets.html")
	baseline := Fingerprint(page)

	rapid.Check(t, func(t *rapid.T) {
		token := rapid.StringMatching(`[A-Za-z0-9]{0,64}`).Draw(t, "token")
		now := rapid.StringMatching(`[0-9]{10}\.[0-9]{3}`).Draw(t, "now")
		version := rapid.StringMatching(`[a-f0-9]{1,8}-[a-f0-9]{1,8}`).Draw(t, "version")

		rendered := strings.ReplaceAll(page, "Tm9UaWNrZXRzVG9rZW4", token)
		rendered = strings.ReplaceAll(rendered, "1760532000.123", now)
		rendered = strings.ReplaceAll(rendered, "4f2a9c1e-77b0", version)

		if got := Fingerprint(rendered); got != baseline {
			t.Fatalf("fingerprint changed for token=%q now=%q version=%q", token, now, version)
		}
	})
}

func TestFingerprintDetectsDrift(t *testing.T) {
	page := readFixture(t, "no_tickets.html")
	drifted := strings.Replace(page, "Please check back later.", "Maintenance tonight.", 1)

	require.NotEqual(t, Fingerprint(page), Fingerprint(drifted))
	require.True(t, IsNoTicketsPage(page))
	require.True(t, IsNoTicketsPage(drifted))
	require.False(t, IsNoTicketsPage(readFixture(t, "tickets_available.html")))
}

func TestParsePathString(t *testing.T) {
	require.Equal(t, "fast", PathFast.String())
	require.Equal(t, "structural", PathStructural.String())
	require.Equal(t, "no-tickets", PathNoTickets.String())
}
