package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalid is wrapped by every validation failure returned from New.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultPollInterval   = 15 * time.Second
	DefaultJitter         = 0.20
	DefaultBackoffMax     = 300 * time.Second
	DefaultSort           = "price_asc"
	DefaultReconnectEvery = 950
	DefaultConnectTimeout = 5 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultSnapshotDir    = "live-responses"
	DefaultSMTPPort       = 587

	// MinPollInterval is the fastest interval accepted, anything quicker
	// is indistinguishable from abuse of the marketplace.
	MinPollInterval = time.Second
)

var sortOrders = []string{"price_asc", "price_desc", "newest", "oldest"}

// SortOrders lists the accepted values for the sort option.
func SortOrders() []string {
	out := make([]string, len(sortOrders))
	copy(out, sortOrders)
	return out
}

type Email struct {
	Server   string
	Port     int
	From     string
	Password string
	To       []string
}

func (e Email) Enabled() bool {
	return len(e.To) > 0
}

// Config is immutable after New, every field is read through a getter.
type Config struct {
	baseURL            *url.URL
	event              string
	pollInterval       time.Duration
	jitter             float64
	backoffMax         time.Duration
	item               string
	sort               string
	dryRun             bool
	headless           bool
	waitForMarketplace time.Duration
	reconnectEvery     int64
	connectTimeout     time.Duration
	requestTimeout     time.Duration
	headers            BrowserHeaders

	desktopNotifications bool
	imessage             string
	webhook              string
	email                Email

	snapshotDir      string
	snapshotDatabase string
	saveUnusual      bool
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// New applies defaults to `opts` and validates the result. Every problem
// found is returned, joined, each wrapping ErrInvalid.
func New(opts Options) (Config, error) {
	var errs []error

	cfg := Config{
		event:              strings.Trim(strings.TrimSpace(opts.Event), "/"),
		pollInterval:       seconds(opts.PollInterval),
		jitter:             DefaultJitter,
		backoffMax:         seconds(opts.BackoffMax),
		item:               strings.TrimSpace(opts.Item),
		sort:               opts.Sort,
		dryRun:             opts.DryRun,
		headless:           opts.Headless,
		waitForMarketplace: seconds(opts.WaitForMarketplace),
		reconnectEvery:     opts.ReconnectEvery,
		connectTimeout:     seconds(opts.ConnectTimeout),
		requestTimeout:     seconds(opts.RequestTimeout),
		headers:            defaultHeaders(),

		desktopNotifications: true,
		imessage:             strings.TrimSpace(opts.Notify.IMessage),
		webhook:              strings.TrimSpace(opts.Notify.Webhook),
		email: Email{
			Server:   opts.Notify.Email.Server,
			Port:     opts.Notify.Email.Port,
			From:     opts.Notify.Email.From,
			Password: opts.Notify.Email.Password,
			To:       append([]string(nil), opts.Notify.Email.To...),
		},

		snapshotDir:      opts.Snapshots.Dir,
		snapshotDatabase: opts.Snapshots.Database,
		saveUnusual:      true,
	}

	if opts.PollInterval == 0 {
		cfg.pollInterval = DefaultPollInterval
	}
	if opts.Jitter != nil {
		cfg.jitter = *opts.Jitter
	}
	if opts.BackoffMax == 0 {
		cfg.backoffMax = DefaultBackoffMax
	}
	if cfg.sort == "" {
		cfg.sort = DefaultSort
	}
	if cfg.reconnectEvery == 0 {
		cfg.reconnectEvery = DefaultReconnectEvery
	}
	if opts.ConnectTimeout == 0 {
		cfg.connectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout == 0 {
		cfg.requestTimeout = DefaultRequestTimeout
	}
	if opts.Notify.Desktop != nil {
		cfg.desktopNotifications = *opts.Notify.Desktop
	}
	if cfg.email.Enabled() && cfg.email.Port == 0 {
		cfg.email.Port = DefaultSMTPPort
	}
	if cfg.snapshotDir == "" {
		cfg.snapshotDir = DefaultSnapshotDir
	}
	if opts.Snapshots.SaveUnusual != nil {
		cfg.saveUnusual = *opts.Snapshots.SaveUnusual
	}

	base, err := parseHTTPURL(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil {
		errs = append(errs, invalid("base url: %s", err))
	}
	cfg.baseURL = base

	if cfg.event == "" {
		errs = append(errs, invalid("event slug is required"))
	}
	if cfg.pollInterval < MinPollInterval {
		errs = append(errs, invalid("poll interval %s is below %s", cfg.pollInterval, MinPollInterval))
	}
	if cfg.jitter < 0 || cfg.jitter >= 1 {
		errs = append(errs, invalid("jitter fraction %v must be in [0, 1)", cfg.jitter))
	}
	if cfg.backoffMax < cfg.pollInterval {
		errs = append(errs, invalid("backoff max %s is below the poll interval %s", cfg.backoffMax, cfg.pollInterval))
	}
	if !validSort(cfg.sort) {
		errs = append(errs, invalid("sort order %q must be one of %s", cfg.sort, strings.Join(sortOrders, ", ")))
	}
	if cfg.waitForMarketplace < 0 {
		errs = append(errs, invalid("wait for marketplace interval must not be negative"))
	}
	if cfg.reconnectEvery < 0 {
		errs = append(errs, invalid("reconnect high-water mark must be positive"))
	}
	if cfg.connectTimeout < 0 || cfg.requestTimeout < 0 {
		errs = append(errs, invalid("timeouts must not be negative"))
	}
	if cfg.webhook != "" {
		if _, err := parseHTTPURL(cfg.webhook); err != nil {
			errs = append(errs, invalid("webhook url: %s", err))
		}
	}
	if cfg.email.Enabled() && (cfg.email.Server == "" || cfg.email.From == "") {
		errs = append(errs, invalid("email alerts need a server and a sender"))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%q has no host", raw)
	}
	return u, nil
}

func validSort(sort string) bool {
	for _, s := range sortOrders {
		if s == sort {
			return true
		}
	}
	return false
}

// WithHeaders returns a copy of the config using `headers`.
func (c Config) WithHeaders(headers BrowserHeaders) Config {
	c.headers = headers
	return c
}

func (c Config) BaseURL() string {
	return c.baseURL.String()
}

// Domain is the host of the base url including any port.
func (c Config) Domain() string {
	return c.baseURL.Host
}

// Hostname is the host of the base url without a port.
func (c Config) Hostname() string {
	return c.baseURL.Hostname()
}

func (c Config) Event() string                     { return c.event }
func (c Config) PollInterval() time.Duration       { return c.pollInterval }
func (c Config) Jitter() float64                   { return c.jitter }
func (c Config) BackoffMax() time.Duration         { return c.backoffMax }
func (c Config) Item() string                      { return c.item }
func (c Config) Sort() string                      { return c.sort }
func (c Config) DryRun() bool                      { return c.dryRun }
func (c Config) Headless() bool                    { return c.headless }
func (c Config) WaitForMarketplace() time.Duration { return c.waitForMarketplace }
func (c Config) ReconnectEvery() int64             { return c.reconnectEvery }
func (c Config) ConnectTimeout() time.Duration     { return c.connectTimeout }
func (c Config) RequestTimeout() time.Duration     { return c.requestTimeout }
func (c Config) Headers() BrowserHeaders           { return c.headers }
func (c Config) DesktopNotifications() bool        { return c.desktopNotifications }
func (c Config) IMessageRecipient() string         { return c.imessage }
func (c Config) WebhookURL() string                { return c.webhook }
func (c Config) SnapshotDir() string               { return c.snapshotDir }
func (c Config) SnapshotDatabase() string          { return c.snapshotDatabase }
func (c Config) SaveUnusual() bool                 { return c.saveUnusual }

func (c Config) Email() Email {
	e := c.email
	e.To = append([]string(nil), c.email.To...)
	return e
}

func (c Config) MarketplacePath() string {
	return fmt.Sprintf("/%s/secondhand/", c.event)
}

func (c Config) MarketplaceURL() string {
	return c.BaseURL() + c.MarketplacePath()
}

func (c Config) EventPageURL() string {
	return fmt.Sprintf("%s/%s/", c.BaseURL(), c.event)
}

// CartAddURL is the reservation endpoint used when a listing's form action is unusable.
func (c Config) CartAddURL() string {
	return fmt.Sprintf("%s/%s/cart/add", c.BaseURL(), c.event)
}

func (c Config) CheckoutURL() string {
	return fmt.Sprintf("%s/%s/checkout/start", c.BaseURL(), c.event)
}

// PollParams are the marketplace query parameters, `item` only when filtered.
func (c Config) PollParams() url.Values {
	params := url.Values{}
	if c.item != "" {
		params.Set("item", c.item)
	}
	params.Set("sort", c.sort)
	return params
}
