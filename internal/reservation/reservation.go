package reservation

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"secondhand-race/internal/assert"
	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/internal/scrapers/pretix"
	"secondhand-race/internal/session"
	"secondhand-race/internal/snapshots"
	"secondhand-race/lib/restyutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_reservation_taken      = "taken"
	report_reservation_unexpected = "unexpected"
	report_reservation_failed     = "failed"
	report_reservation_dump       = "dump"
)

const (
	checkoutSegment    = "/checkout/"
	marketplaceSegment = "/secondhand/"
)

type Kind int

const (
	// Failed means the request never produced a response.
	Failed Kind = iota
	// Reserved means the server redirected to checkout, the item is held
	// by this session.
	Reserved
	// Taken means the server redirected back to the marketplace, another
	// client was faster.
	Taken
	// Unexpected is any other landing page or status.
	Unexpected
)

func (k Kind) String() string {
	switch k {
	case Reserved:
		return "reserved"
	case Taken:
		return "taken"
	case Unexpected:
		return "unexpected"
	default:
		return "failed"
	}
}

type Outcome struct {
	Kind       Kind
	FinalURL   string
	StatusCode int
}

// Succeeded reports whether the item is in the cart.
func (o Outcome) Succeeded() bool {
	return o.Kind == Reserved
}

// Classify decides the outcome from where the redirect chain ended. An
// error status is never a reservation, whatever page it came from.
func Classify(statusCode int, finalURL string) Kind {
	switch {
	case statusCode < 200 || statusCode >= 400:
		return Unexpected
	case strings.Contains(finalURL, checkoutSegment):
		return Reserved
	case strings.Contains(finalURL, marketplaceSegment):
		return Taken
	default:
		return Unexpected
	}
}

// ResolveAction turns a form action into the absolute url to post to.
func ResolveAction(cfg config.Config, action string) string {
	switch {
	case strings.HasPrefix(action, "http://"), strings.HasPrefix(action, "https://"):
		return action
	case strings.HasPrefix(action, "/"):
		return cfg.BaseURL() + action
	default:
		return cfg.CartAddURL()
	}
}

// Poster is the part of the session a reservation needs.
type Poster interface {
	Post(ctx context.Context, target string, form map[string]string) (session.Response, error)
	Cookies() map[string]string
	RequestCount() int64
}

var attemptCounter, _ = otel.Meter("secondhand-race/reservation").Int64Counter(
	"reservation.attempts",
	metric.WithDescription("reservation attempts by outcome"),
)

type Reserver struct {
	cfg    config.Config
	client Poster
	sink   snapshots.Sink
	runID  string
	tel    telemetry.API
}

func New(cfg config.Config, client Poster, sink snapshots.Sink, runID string, tel telemetry.API) Reserver {
	assert.NotNil(client, "client")
	assert.NotNil(sink, "snapshot sink")
	assert.NotNil(tel, "telemetry")

	return Reserver{
		cfg:    cfg,
		client: client,
		sink:   sink,
		runID:  runID,
		tel:    telemetry.NewScopedAPI("reservation", tel),
	}
}

// Attempt submits the listing's form once. Losing the race is an Outcome,
// only a transport failure is an error.
func (r Reserver) Attempt(ctx context.Context, listing pretix.TicketListing) (Outcome, error) {
	target := ResolveAction(r.cfg, listing.FormAction)
	r.tel.ReportInfo(
		"Adding to cart",
		"ticket", listing.TicketType,
		"price", listing.Price,
		"url", target,
	)

	cookiesSent := r.client.Cookies()
	res, err := r.client.Post(ctx, target, listing.FormData)
	if err != nil {
		r.tel.ReportWarning(report_reservation_failed, err, target)
		r.count(ctx, Failed)
		return Outcome{Kind: Failed}, fmt.Errorf("reserve %s: %w", target, err)
	}

	r.dump(ctx, target, listing.FormData, cookiesSent, res)

	finalURL := res.FinalURL.String()
	outcome := Outcome{
		Kind:       Classify(res.StatusCode, finalURL),
		FinalURL:   finalURL,
		StatusCode: res.StatusCode,
	}
	r.count(ctx, outcome.Kind)

	switch outcome.Kind {
	case Reserved:
		r.tel.ReportInfo("Added to cart", "checkout", finalURL)
		return outcome, nil
	case Taken:
		r.tel.ReportInfo("Ticket already taken", "final_url", finalURL)
		r.tel.ReportDebug(report_reservation_taken, res.StatusCode, finalURL)
	default:
		r.tel.ReportWarning(report_reservation_unexpected, res.StatusCode, finalURL)
	}
	// only a reservation carries somewhere to go next
	outcome.FinalURL = ""
	return outcome, nil
}

func (r Reserver) count(ctx context.Context, kind Kind) {
	attemptCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", kind.String())))
}

func (r Reserver) dump(ctx context.Context, target string, form map[string]string, cookies map[string]string, res session.Response) {
	header := r.cfg.Headers().Map()
	requestHeader := http.Header{}
	for k, v := range header {
		requestHeader.Set(k, v)
	}
	var cookieHeader []string
	for name, value := range cookies {
		cookieHeader = append(cookieHeader, name+"="+value)
	}
	sort.Strings(cookieHeader)
	if len(cookieHeader) > 0 {
		requestHeader.Set("Cookie", strings.Join(cookieHeader, "; "))
	}

	body := restyutil.Format(restyutil.Exchange{
		Method:         http.MethodPost,
		URL:            target,
		RequestHeader:  requestHeader,
		RequestBody:    restyutil.FormBody(form),
		StatusCode:     res.StatusCode,
		FinalURL:       res.FinalURL.String(),
		ResponseHeader: res.Header,
		ResponseBody:   res.Text(),
	})
	err := r.sink.Save(ctx, snapshots.Snapshot{
		RunID:      r.runID,
		Sequence:   r.client.RequestCount(),
		Kind:       snapshots.KindReservation,
		StatusCode: res.StatusCode,
		URL:        target,
		Body:       []byte(body),
		Time:       time.Now(),
	})
	if err != nil {
		r.tel.ReportWarning(report_reservation_dump, err)
	}
}
