package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"secondhand-race/internal/assert"
	"secondhand-race/internal/components/chrono"
	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/internal/notify"
	"secondhand-race/internal/reservation"
	"secondhand-race/internal/scrapers/pretix"
	"secondhand-race/internal/session"
	"secondhand-race/internal/snapshots"
	"secondhand-race/lib/cookieutil"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_monitor_discover = "discover"
	report_monitor_request  = "request"
	report_monitor_snapshot = "snapshot"
	report_monitor_notify   = "notify"
	report_monitor_reserve  = "reserve"
	report_monitor_handoff  = "handoff"
	report_monitor_requests = "requests"
)

// sessionCookie is the cookie identifying the server side session.
const sessionCookie = "__QXSESSION"

// ErrMarketplaceNotFound ends a run whose event page has no marketplace
// link when waiting for one was not requested.
var ErrMarketplaceNotFound = errors.New("marketplace link not found on event page")

// Client is the session the monitor drives.
type Client interface {
	Get(ctx context.Context, target string, params url.Values) (session.Response, error)
	SetToken(token string)
	Cookies() map[string]string
	CookieList() []cookieutil.Cookie
	Backoff() time.Duration
	RecordError()
	ResetErrors()
	RequestCount() int64
	Reconnects() int64
	Close() error
}

type Reserver interface {
	Attempt(ctx context.Context, listing pretix.TicketListing) (reservation.Outcome, error)
}

type Handoff interface {
	Run(ctx context.Context, cookies []cookieutil.Cookie, checkoutURL string) error
}

type Deps struct {
	Config   config.Config
	Client   Client
	Reserver Reserver
	Notifier notify.Notifier
	Handoff  Handoff
	Sink     snapshots.Sink
	Clock    chrono.API
	// Rand draws jitter in [0, 1), defaults to math/rand.
	Rand  func() float64
	RunID string
	Tel   telemetry.API
}

type Result struct {
	State          State
	MarketplaceURL string
	CheckoutURL    string
	Listing        *pretix.TicketListing
	Stats          Stats
}

// Monitor is a single run: discover the marketplace, poll it and race for
// the first listing that shows up. It is not reusable.
type Monitor struct {
	cfg      config.Config
	client   Client
	reserver Reserver
	notifier notify.Notifier
	handoff  Handoff
	sink     snapshots.Sink
	clock    chrono.API
	rand     func() float64
	runID    string
	tel      telemetry.API

	marketplaceURL string
	baseline       string
	detected       pretix.ParseResult
	checkoutURL    string
	listing        *pretix.TicketListing
	stats          Stats
	pending        sync.WaitGroup
}

func New(deps Deps) *Monitor {
	assert.NotNil(deps.Client, "client")
	assert.NotNil(deps.Reserver, "reserver")
	assert.NotNil(deps.Notifier, "notifier")
	assert.NotNil(deps.Handoff, "handoff")
	assert.NotNil(deps.Clock, "clock")
	assert.NotNil(deps.Tel, "telemetry")

	sink := deps.Sink
	if sink == nil {
		sink = snapshots.Discard
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Monitor{
		cfg:      deps.Config,
		client:   deps.Client,
		reserver: deps.Reserver,
		notifier: deps.Notifier,
		handoff:  deps.Handoff,
		sink:     sink,
		clock:    deps.Clock,
		rand:     rnd,
		runID:    deps.RunID,
		tel:      telemetry.NewScopedAPI("monitor", deps.Tel),
	}
}

// Run drives the state machine until a terminal state. The only error
// returned is ErrMarketplaceNotFound, cancellation is a Result.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	defer m.client.Close()

	m.tel.ReportInfo(
		"Starting secondhand monitor",
		"interval", m.cfg.PollInterval().String(),
		"jitter_pct", int(m.cfg.Jitter()*100),
		"event_page", m.cfg.EventPageURL(),
		"dry_run", m.cfg.DryRun(),
	)

	state := StateDiscovering
	var err error
	for !state.Terminal() {
		if ctx.Err() != nil {
			state = StateCancelled
			break
		}
		switch state {
		case StateDiscovering:
			state, err = m.discovering(ctx)
		case StateWaitingForMarketplace:
			state = m.waitingForMarketplace(ctx)
		case StatePolling:
			state = m.polling(ctx)
		case StateTicketDetected:
			state = m.ticketDetected(ctx)
		}
	}

	result := m.finish(state)
	if state == StateSucceeded {
		return result, nil
	}
	return result, err
}

func (m *Monitor) finish(state State) Result {
	m.pending.Wait()

	m.stats.Requests = m.client.RequestCount()
	m.stats.Reconnects = m.client.Reconnects()
	m.tel.ReportCount(report_monitor_requests, m.stats.Requests)
	m.tel.ReportInfo("Monitor stopped", "state", state.String(), "polls", m.stats.Polls)

	return Result{
		State:          state,
		MarketplaceURL: m.marketplaceURL,
		CheckoutURL:    m.checkoutURL,
		Listing:        m.listing,
		Stats:          m.stats,
	}
}

func (m *Monitor) sleep(ctx context.Context, base time.Duration) error {
	return m.clock.Sleep(ctx, chrono.Jitter(base, m.cfg.Jitter(), m.rand()))
}

// findMarketplace fetches the event page once and looks for the link.
func (m *Monitor) findMarketplace(ctx context.Context) (found bool, status int, err error) {
	res, err := m.client.Get(ctx, m.cfg.EventPageURL(), nil)
	if err != nil {
		return false, 0, err
	}
	if res.StatusCode != http.StatusOK {
		return false, res.StatusCode, nil
	}
	link, ok := pretix.FindMarketplaceLink(ctx, res.Text(), m.cfg.BaseURL())
	if !ok {
		return false, res.StatusCode, nil
	}
	m.marketplaceURL = link
	return true, res.StatusCode, nil
}

func (m *Monitor) discovering(ctx context.Context) (State, error) {
	m.tel.ReportInfo("Checking event page", "url", m.cfg.EventPageURL())

	found, status, err := m.findMarketplace(ctx)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return StateCancelled, nil
		}
		m.tel.ReportWarning(report_monitor_discover, err)
	case status != http.StatusOK:
		m.tel.ReportWarning(report_monitor_discover, fmt.Sprintf("event page returned HTTP %d", status))
	case found:
		m.tel.ReportInfo("Found marketplace", "url", m.marketplaceURL)
		m.startPolling()
		return StatePolling, nil
	}

	if m.cfg.WaitForMarketplace() <= 0 {
		m.tel.ReportInfo(
			"Marketplace link not found on event page",
			"tip", "use --wait-for-marketplace to wait for it to appear",
		)
		return StateFailed, ErrMarketplaceNotFound
	}

	m.tel.ReportInfo("MARKETPLACE NOT YET AVAILABLE", "message", goneMessage(m.rand()))
	m.tel.ReportInfo(
		"Waiting for marketplace link to appear",
		"every", m.waitInterval().String(),
		"jitter_pct", int(m.cfg.Jitter()*100),
	)
	return StateWaitingForMarketplace, nil
}

func (m *Monitor) waitInterval() time.Duration {
	if wait := m.cfg.WaitForMarketplace(); wait > 0 {
		return wait
	}
	return defaultMarketCheck
}

func (m *Monitor) waitingForMarketplace(ctx context.Context) State {
	checks := 0
	for {
		if err := m.sleep(ctx, m.waitInterval()); err != nil {
			return StateCancelled
		}
		checks++

		found, status, err := m.findMarketplace(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return StateCancelled
			}
			m.client.RecordError()
			m.stats.Errors++
			m.tel.ReportWarning(report_monitor_discover, checks, err)
		case status != http.StatusOK:
			m.tel.ReportInfo("Still checking", "check", checks, "status", status)
		case !found:
			m.tel.ReportInfo("Not yet available", "check", checks, "session", m.sessionID())
		default:
			m.tel.ReportInfo("MARKETPLACE IS NOW AVAILABLE", "url", m.marketplaceURL)
			m.startPolling()
			return StatePolling
		}
	}
}

func (m *Monitor) sessionID() string {
	if id, ok := m.client.Cookies()[sessionCookie]; ok {
		return id
	}
	return "N/A"
}

func (m *Monitor) startPolling() {
	m.tel.ReportInfo("Monitoring marketplace", "url", m.marketplaceURL)
	m.tel.ReportInfo("Session established", sessionCookie, m.sessionID())
}

// polling runs one poll and, unless listings were found, the sleep after it.
func (m *Monitor) polling(ctx context.Context) State {
	detected := m.pollOnce(ctx)
	if ctx.Err() != nil {
		return StateCancelled
	}
	if detected {
		return StateTicketDetected
	}

	base := m.client.Backoff()
	if base != m.cfg.PollInterval() {
		m.tel.ReportInfo("Backing off", "base", base.String())
	}
	if err := m.sleep(ctx, base); err != nil {
		return StateCancelled
	}
	return StatePolling
}

func (m *Monitor) pollOnce(ctx context.Context) bool {
	m.stats.Polls++

	res, err := m.client.Get(ctx, m.marketplaceURL, m.cfg.PollParams())
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.client.RecordError()
		m.stats.Errors++
		m.countPoll(ctx, "error")
		m.tel.ReportWarning(report_monitor_request, err)
		return false
	}

	requestNumber := m.client.RequestCount()
	page := res.Text()

	if res.StatusCode != http.StatusOK {
		m.logRequest(requestNumber, res, fmt.Sprintf("HTTP %d", res.StatusCode))
		m.countPoll(ctx, "status")
		m.saveUnusual(ctx, requestNumber, res)

		policy := policyFor(res.StatusCode, res.Header)
		if policy.recordError {
			m.client.RecordError()
			m.stats.Errors++
		}
		if policy.wait > 0 {
			m.tel.ReportInfo(policy.reason, "wait", policy.wait.String())
			m.clock.Sleep(ctx, policy.wait)
		}
		return false
	}

	result := pretix.Parse(page)
	if result.CSRFToken != "" {
		m.client.SetToken(result.CSRFToken)
	}
	m.client.ResetErrors()

	switch {
	case result.TicketsAvailable:
		m.logRequest(requestNumber, res, fmt.Sprintf("TICKETS FOUND (%d)", len(result.Listings)))
		m.countPoll(ctx, "detected")
		detectionCounter.Add(ctx, 1)
		m.saveUnusual(ctx, requestNumber, res)
		m.stats.Detections++
		m.detected = result
		return true
	case m.isBaseline(page):
		m.logRequest(requestNumber, res, "No tickets")
		m.countPoll(ctx, "steady")
	default:
		m.logRequest(requestNumber, res, "No tickets (UNUSUAL)")
		m.countPoll(ctx, "unusual")
		m.saveUnusual(ctx, requestNumber, res)
		if result.ErrorMessage != "" {
			m.tel.ReportWarning(report_monitor_request, result.ErrorMessage)
		}
	}
	return false
}

// isBaseline reports whether the page is the steady "no tickets" page. The
// first such page of the run becomes the baseline.
func (m *Monitor) isBaseline(page string) bool {
	if !pretix.IsNoTicketsPage(page) {
		return false
	}
	fingerprint := pretix.Fingerprint(page)
	if m.baseline == "" {
		m.baseline = fingerprint
		m.tel.ReportInfo("Baseline hash set", "hash", fingerprint[:8])
		return true
	}
	return fingerprint == m.baseline
}

func (m *Monitor) countPoll(ctx context.Context, result string) {
	pollCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Monitor) logRequest(n int64, res session.Response, result string) {
	m.tel.ReportInfo(
		result,
		"req", n,
		"status", res.Metrics.StatusCode,
		"ttfb_ms", res.Metrics.TTFB.Milliseconds(),
		"ttlb_ms", res.Metrics.TTLB.Milliseconds(),
		"size", res.Metrics.ContentLength,
		"encoding", res.Metrics.ContentEncoding,
		"session", m.sessionID(),
	)
}

func (m *Monitor) saveUnusual(ctx context.Context, n int64, res session.Response) {
	if !m.cfg.SaveUnusual() {
		return
	}
	m.stats.Unusual++
	target := m.marketplaceURL
	if res.FinalURL != nil {
		target = res.FinalURL.String()
	}
	err := m.sink.Save(ctx, snapshots.Snapshot{
		RunID:      m.runID,
		Sequence:   n,
		Kind:       snapshots.KindResponse,
		StatusCode: res.StatusCode,
		URL:        target,
		Body:       res.Body,
		Time:       m.clock.Now(),
	})
	if err != nil {
		m.tel.ReportWarning(report_monitor_snapshot, err)
		return
	}
	m.stats.Snapshots++
}

func (m *Monitor) event(kind notify.Kind, listing pretix.TicketListing, checkoutURL string) notify.Event {
	return notify.Event{
		Kind:         kind,
		Timestamp:    m.clock.Now(),
		Target:       m.marketplaceURL,
		CheckoutURL:  checkoutURL,
		TicketType:   listing.TicketType,
		Price:        listing.Price,
		Cookies:      m.client.Cookies(),
		CookieScript: cookieutil.Script(m.client.CookieList()),
	}
}

func (m *Monitor) ticketDetected(ctx context.Context) State {
	listings := m.detected.Listings
	listing := listings[0]
	m.tel.ReportInfo("TICKETS FOUND", "available", len(listings))
	m.tel.ReportInfo("Grabbing", "ticket", listing.TicketType, "price", listing.Price)

	if m.cfg.DryRun() {
		m.tel.ReportInfo("Dry run, not adding to cart")
		err := m.notifier.Notify(ctx, m.event(notify.KindTicketsFoundDry, listing, ""))
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err)
		}
		return m.succeed(listing, "")
	}

	m.stats.Attempts++
	outcome, err := m.reserver.Attempt(ctx, listing)
	if err != nil && ctx.Err() != nil {
		return StateCancelled
	}
	if err == nil && outcome.Succeeded() {
		err := m.notifier.Notify(ctx, m.event(notify.KindTicketInCart, listing, outcome.FinalURL))
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err)
		}
		err = m.handoff.Run(ctx, m.client.CookieList(), outcome.FinalURL)
		if err != nil {
			m.tel.ReportWarning(report_monitor_handoff, err)
		}
		return m.succeed(listing, outcome.FinalURL)
	}
	if err != nil {
		m.tel.ReportWarning(report_monitor_reserve, err)
	}

	failed := m.event(notify.KindReservationFailed, listing, "")
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		err := m.notifier.Notify(context.WithoutCancel(ctx), failed)
		if err != nil {
			m.tel.ReportWarning(report_monitor_notify, err)
		}
	}()

	m.tel.ReportInfo("Failed to add to cart, will retry", "outcome", outcome.Kind.String())
	for _, other := range listings[1:] {
		m.tel.ReportInfo("Also available", "ticket", other.TicketType, "price", other.Price)
	}
	return StatePolling
}

func (m *Monitor) succeed(listing pretix.TicketListing, checkoutURL string) State {
	m.checkoutURL = checkoutURL
	m.listing = &listing
	return StateSucceeded
}
