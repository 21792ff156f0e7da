package pretix

// CSRFField is the form field name of the anti-forgery token.
const CSRFField = "csrfmiddlewaretoken"

const (
	// noTicketsMarker short-circuits parsing.
	noTicketsMarker = "No tickets available"

	// NoTicketsPageMarker is the full sentence shown on the empty marketplace,
	// only pages carrying it take part in baseline comparison.
	NoTicketsPageMarker = "No tickets available at the moment"

	buyPathFragment     = "/secondhand/buy/"
	marketplaceFragment = "/secondhand/"

	defaultTicketType = "Ticket"
	unknownPrice      = "Unknown"
)

// TicketListing is one purchasable resale ticket.
type TicketListing struct {
	TicketType string
	Price      string
	// FormAction may be absolute, root relative or empty.
	FormAction string
	FormData   map[string]string
}

// ParsePath records which stage of Parse produced the result.
type ParsePath int

const (
	PathNoTickets ParsePath = iota
	PathFast
	PathStructural
)

func (p ParsePath) String() string {
	switch p {
	case PathNoTickets:
		return "no-tickets"
	case PathFast:
		return "fast"
	case PathStructural:
		return "structural"
	default:
		return "unknown"
	}
}

type ParseResult struct {
	// TicketsAvailable is true exactly when Listings is non-empty.
	TicketsAvailable bool
	Listings         []TicketListing
	CSRFToken        string
	ErrorMessage     string
	Path             ParsePath
}
