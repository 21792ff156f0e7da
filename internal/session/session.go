package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"secondhand-race/internal/assert"
	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/lib/cookieutil"
	libtelemetry "secondhand-race/lib/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

const (
	report_session_get       = "session.get"
	report_session_post      = "session.post"
	report_session_reconnect = "session.reconnect"
	report_session_close     = "session.close"
)

// TokenField is the form field carrying the anti-forgery token.
const TokenField = "csrfmiddlewaretoken"

// maxRedirects bounds the redirect chain of a single request.
const maxRedirects = 10

const errorBackoffBase = 30 * time.Second

var (
	// ErrRequestFailed wraps transport failures (dns, connect, timeout, ...),
	// an HTTP error status is a Response, not an error.
	ErrRequestFailed = errors.New("request failed")
	// ErrConnectionTerminated is returned when the server closed the
	// connection twice in a row for the same request.
	ErrConnectionTerminated = errors.New("connection terminated by server")
)

type Option func(s *Session)

// WithTransportFactory replaces the connection pool constructor.
func WithTransportFactory(factory TransportFactory) Option {
	return func(s *Session) {
		s.newTransport = factory
	}
}

// WithRateLimit replaces the request pacing floor, nil disables pacing.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(s *Session) {
		s.limiter = limiter
	}
}

// Session is a single browser-like client identity: one cookie store, one
// anti-forgery token and one connection pool. It is used from a single
// goroutine.
type Session struct {
	cfg  config.Config
	tel  telemetry.API
	http *resty.Client

	newTransport TransportFactory
	transport    Transport
	limiter      *rate.Limiter
	cookies      *cookieStore

	token             string
	requestCount      int64
	lastProactive     int64
	reconnects        int64
	consecutiveErrors int
	closed            bool

	// sentAt is when the last request was handed to the transport.
	sentAt time.Time
}

func New(cfg config.Config, tel telemetry.API, opts ...Option) (*Session, error) {
	assert.NotNil(tel, "telemetry")

	s := &Session{
		cfg:          cfg,
		tel:          telemetry.NewScopedAPI("session", tel),
		newTransport: NewTransport,
		// 2 requests max per second, the monitor polls far below this,
		// it only guards against a tight loop
		limiter: rate.NewLimiter(2, 2),
		cookies: newCookieStore(),
	}
	for _, opt := range opts {
		opt(s)
	}

	transport, err := s.newTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	s.transport = transport

	client := resty.New()
	client.SetTransport(transport)
	client.SetCookieJar(s.cookies)
	client.SetTimeout(cfg.RequestTimeout())
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(maxRedirects),
		resty.DomainCheckRedirectPolicy(cfg.Hostname()),
	)
	client.SetHeaders(cfg.Headers().Map())
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if s.limiter == nil {
			return nil
		}
		return s.limiter.Wait(req.Context())
	})
	client.SetPreRequestHook(func(_ *resty.Client, _ *http.Request) error {
		s.sentAt = time.Now()
		return nil
	})
	telemetry.InstrumentResty(client, s.tel)
	libtelemetry.InstrumentResty(client, "secondhand-race/session")

	s.http = client
	return s, nil
}

// Get fetches `target` with `params` merged into its query string.
func (s *Session) Get(ctx context.Context, target string, params url.Values) (Response, error) {
	return s.do(ctx, report_session_get, func() *resty.Request {
		req := s.http.R().SetContext(ctx)
		if len(params) > 0 {
			req.SetQueryParamsFromValues(params)
		}
		req.Method = http.MethodGet
		return req
	}, target)
}

// Post submits `form` url-encoded. The current anti-forgery token is added
// when `form` does not carry one, `form` itself is never modified.
func (s *Session) Post(ctx context.Context, target string, form map[string]string) (Response, error) {
	body := withToken(form, s.token)
	return s.do(ctx, report_session_post, func() *resty.Request {
		req := s.http.R().
			SetContext(ctx).
			SetFormData(body).
			SetHeader("Origin", s.cfg.BaseURL())
		req.Method = http.MethodPost
		return req
	}, target)
}

func withToken(form map[string]string, token string) map[string]string {
	out := make(map[string]string, len(form)+1)
	for k, v := range form {
		out[k] = v
	}
	if _, ok := out[TokenField]; !ok && token != "" {
		out[TokenField] = token
	}
	return out
}

func (s *Session) do(ctx context.Context, reportID string, build func() *resty.Request, target string) (Response, error) {
	if s.requestCount > 0 &&
		s.requestCount%s.cfg.ReconnectEvery() == 0 &&
		s.lastProactive != s.requestCount {
		s.lastProactive = s.requestCount
		err := s.reconnect("proactive refresh")
		if err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
	}

	res, err := s.send(ctx, build, target)
	if isGracefulTermination(err) {
		reconnectErr := s.reconnect("GOAWAY received")
		if reconnectErr != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrRequestFailed, reconnectErr)
		}
		res, err = s.send(ctx, build, target)
		if isGracefulTermination(err) {
			s.tel.ReportWarning(reportID, err, target)
			return Response{}, fmt.Errorf("%w: %s: %w", ErrConnectionTerminated, target, err)
		}
	}
	if err != nil {
		s.tel.ReportWarning(reportID, err, target)
		return Response{}, fmt.Errorf("%w: %s: %w", ErrRequestFailed, target, err)
	}
	return res, nil
}

func (s *Session) send(ctx context.Context, build func() *resty.Request, target string) (Response, error) {
	req := build()
	req.SetHeader("Referer", s.cfg.MarketplaceURL())
	req.SetDoNotParseResponse(true)

	s.sentAt = time.Time{}
	start := time.Now()
	res, err := req.Execute(req.Method, target)
	if err != nil {
		if res != nil && res.RawBody() != nil {
			res.RawBody().Close()
		}
		return Response{}, err
	}
	headersAt := time.Now()
	if !s.sentAt.IsZero() {
		start = s.sentAt
	}

	raw := res.RawResponse
	defer raw.Body.Close()

	encoding := raw.Header.Get("Content-Encoding")
	body, err := readBody(encoding, raw.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read body: %w", err)
	}
	done := time.Now()

	s.requestCount++

	if encoding == "" {
		encoding = "none"
	}
	metrics := RequestMetrics{
		StatusCode:      raw.StatusCode,
		TTFB:            headersAt.Sub(start),
		TTLB:            done.Sub(start),
		ContentLength:   len(body),
		ContentEncoding: encoding,
	}
	attrs := metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.Int("status", raw.StatusCode),
	)
	ttfbHistogram.Record(ctx, float64(metrics.TTFB.Milliseconds()), attrs)
	ttlbHistogram.Record(ctx, float64(metrics.TTLB.Milliseconds()), attrs)

	finalURL := raw.Request.URL
	return Response{
		StatusCode: raw.StatusCode,
		Header:     raw.Header.Clone(),
		Body:       body,
		FinalURL:   finalURL,
		SetCookies: raw.Cookies(),
		Metrics:    metrics,
	}, nil
}

// reconnect discards the connection pool, cookies and token survive.
func (s *Session) reconnect(reason string) error {
	s.reconnects++
	s.tel.ReportWarning(report_session_reconnect, reason, s.requestCount)
	reconnectCounter.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))

	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	transport, err := s.newTransport(s.cfg)
	if err != nil {
		s.tel.ReportBroken(report_session_reconnect, err)
		return err
	}
	s.transport = transport
	s.http.SetTransport(transport)
	s.closed = false
	return nil
}

// SetToken replaces the anti-forgery token, empty tokens are ignored.
func (s *Session) SetToken(token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	s.token = token
}

func (s *Session) Token() string {
	return s.token
}

// Cookies returns a copy of the cookie store.
func (s *Session) Cookies() map[string]string {
	return cookieutil.Map(s.cookies.list())
}

// CookieList returns the cookies in the order the server first set them.
func (s *Session) CookieList() []cookieutil.Cookie {
	return s.cookies.list()
}

func (s *Session) RecordError() {
	s.consecutiveErrors++
}

func (s *Session) ResetErrors() {
	s.consecutiveErrors = 0
}

func (s *Session) ConsecutiveErrors() int {
	return s.consecutiveErrors
}

func (s *Session) RequestCount() int64 {
	return s.requestCount
}

// Reconnects counts connection pools discarded so far.
func (s *Session) Reconnects() int64 {
	return s.reconnects
}

// Backoff is the base wait before the next poll: the poll interval while
// healthy, otherwise 30s doubling per consecutive error up to the maximum.
func (s *Session) Backoff() time.Duration {
	return backoff(s.consecutiveErrors, s.cfg.PollInterval(), s.cfg.BackoffMax())
}

func backoff(errorCount int, interval, max time.Duration) time.Duration {
	if errorCount <= 0 {
		return interval
	}
	// 30s << 20 is far above any sane maximum
	if errorCount > 20 {
		return max
	}
	wait := errorBackoffBase << (errorCount - 1)
	if wait > max {
		return max
	}
	return wait
}

// ExportNetscape writes the cookie store in the Netscape cookie file format.
func (s *Session) ExportNetscape(w io.Writer) error {
	return cookieutil.WriteNetscape(w, s.cfg.Hostname(), s.cookies.list())
}

// Close releases pooled connections, calling it more than once is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	s.tel.ReportDebug(report_session_close, s.requestCount)
	return nil
}
