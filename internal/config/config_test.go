package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func validOptions() Options {
	return Options{
		BaseURL: "https://tickets.example.com/",
		Event:   "/event/",
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := New(validOptions())
	require.NoError(t, err)

	require.Equal(t, "https://tickets.example.com", cfg.BaseURL())
	require.Equal(t, "event", cfg.Event())
	require.Equal(t, 15*time.Second, cfg.PollInterval())
	require.Equal(t, 0.20, cfg.Jitter())
	require.Equal(t, 300*time.Second, cfg.BackoffMax())
	require.Equal(t, "price_asc", cfg.Sort())
	require.Equal(t, int64(950), cfg.ReconnectEvery())
	require.Equal(t, 5*time.Second, cfg.ConnectTimeout())
	require.Equal(t, 10*time.Second, cfg.RequestTimeout())
	require.Equal(t, time.Duration(0), cfg.WaitForMarketplace())
	require.True(t, cfg.DesktopNotifications())
	require.True(t, cfg.SaveUnusual())
	require.Equal(t, "live-responses", cfg.SnapshotDir())
	require.False(t, cfg.Email().Enabled())
}

func TestDerivedURLs(t *testing.T) {
	cfg, err := New(validOptions())
	require.NoError(t, err)

	require.Equal(t, "/event/secondhand/", cfg.MarketplacePath())
	require.Equal(t, "https://tickets.example.com/event/secondhand/", cfg.MarketplaceURL())
	require.Equal(t, "https://tickets.example.com/event/", cfg.EventPageURL())
	require.Equal(t, "https://tickets.example.com/event/cart/add", cfg.CartAddURL())
	require.Equal(t, "https://tickets.example.com/event/checkout/start", cfg.CheckoutURL())
	require.Equal(t, "tickets.example.com", cfg.Domain())
}

func TestPollParams(t *testing.T) {
	cfg, err := New(validOptions())
	require.NoError(t, err)
	require.Equal(t, "sort=price_asc", cfg.PollParams().Encode())

	opts := validOptions()
	opts.Item = "965"
	opts.Sort = "newest"
	cfg, err = New(opts)
	require.NoError(t, err)
	require.Equal(t, "item=965&sort=newest", cfg.PollParams().Encode())
}

func TestExplicitZeroJitter(t *testing.T) {
	zero := 0.0
	opts := validOptions()
	opts.Jitter = &zero

	cfg, err := New(opts)
	require.NoError(t, err)
	require.Equal(t, 0.0, cfg.Jitter())
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(o *Options)
		message string
	}{
		{"missing base url", func(o *Options) { o.BaseURL = "" }, "base url"},
		{"non http base url", func(o *Options) { o.BaseURL = "ftp://tickets.example.com" }, "http or https"},
		{"missing event", func(o *Options) { o.Event = "/" }, "event slug"},
		{"fast polling", func(o *Options) { o.PollInterval = 0.5 }, "poll interval"},
		{"jitter out of range", func(o *Options) { j := 1.5; o.Jitter = &j }, "jitter"},
		{"bad sort", func(o *Options) { o.Sort = "random" }, "sort order"},
		{"backoff below interval", func(o *Options) { o.PollInterval = 60; o.BackoffMax = 30 }, "backoff max"},
		{"bad webhook", func(o *Options) { o.Notify.Webhook = "not a url" }, "webhook"},
		{"email without server", func(o *Options) { o.Notify.Email.To = []string{"a@example.com"} }, "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := validOptions()
			tc.mutate(&opts)
			_, err := New(opts)
			require.ErrorIs(t, err, ErrInvalid)
			require.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestMultipleProblemsReported(t *testing.T) {
	_, err := New(Options{Sort: "random"})
	require.ErrorIs(t, err, ErrInvalid)
	require.Len(t, strings.Split(err.Error(), "\n"), 3)
}

func TestMerge(t *testing.T) {
	desktop := false
	base := Options{BaseURL: "https://a.example.com", Event: "a", PollInterval: 20}
	override := Options{Event: "b", Notify: NotifyOptions{Desktop: &desktop}}

	merged, err := Merge(base, override)
	require.NoError(t, err)

	expected := Options{
		BaseURL:      "https://a.example.com",
		Event:        "b",
		PollInterval: 20,
		Notify:       NotifyOptions{Desktop: &desktop},
	}
	if diff := cmp.Diff(expected, merged); diff != "" {
		t.Fatalf("merged options mismatch (-want +got):\n%s", diff)
	}
}

func TestPlatformHeaders(t *testing.T) {
	mac := PlatformHeaders("darwin")
	require.Contains(t, mac.UserAgent, "Macintosh")
	require.Equal(t, `"macOS"`, mac.SecChUaPlatform)

	windows := PlatformHeaders("windows")
	require.Contains(t, windows.UserAgent, "Windows NT 10.0")
	require.Equal(t, `"Windows"`, windows.SecChUaPlatform)

	linux := PlatformHeaders("plan9")
	require.Contains(t, linux.UserAgent, "Linux x86_64")
	require.Equal(t, `"Linux"`, linux.SecChUaPlatform)

	headers := mac.Map()
	require.Equal(t, "gzip, deflate, br, zstd", headers["Accept-Encoding"])
	require.Equal(t, mac.UserAgent, headers["User-Agent"])
}
