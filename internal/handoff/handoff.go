package handoff

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"secondhand-race/internal/assert"
	"secondhand-race/internal/components/telemetry"
	"secondhand-race/internal/config"
	"secondhand-race/lib/cookieutil"
)

const (
	report_handoff_cookie_file = "cookie_file"
	report_handoff_browser     = "browser"
)

const rule = "=================================================="

// Browser opens an interactive browser that already carries the cookies
// and blocks until the operator is done with it.
type Browser interface {
	Open(ctx context.Context, cookies []cookieutil.Cookie, target string) error
}

// Handoff gives the operator everything needed to finish checkout: the
// cookie set, the checkout url and a browser with the session when one
// can be opened.
type Handoff struct {
	cfg     config.Config
	browser Browser
	out     io.Writer
	now     func() time.Time
	tel     telemetry.API
}

func New(cfg config.Config, browser Browser, out io.Writer, tel telemetry.API) Handoff {
	assert.NotNil(out, "output")
	assert.NotNil(tel, "telemetry")
	return Handoff{
		cfg:     cfg,
		browser: browser,
		out:     out,
		now:     time.Now,
		tel:     telemetry.NewScopedAPI("handoff", tel),
	}
}

func (h Handoff) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format+"\n", args...)
}

// Run never fails the run it is part of, problems are reported and the
// manual instructions printed instead.
func (h Handoff) Run(ctx context.Context, cookies []cookieutil.Cookie, checkoutURL string) error {
	if checkoutURL == "" {
		checkoutURL = h.cfg.CheckoutURL()
	}
	script := cookieutil.Script(cookies)

	h.printf(rule)
	h.printf("SESSION COOKIES:")
	for _, c := range cookies {
		h.printf("  %s=%s", c.Name, c.Value)
	}
	h.printf("")
	h.printf("CHECKOUT URL:")
	h.printf("  %s", checkoutURL)
	h.printf("")
	h.printf("COOKIE INJECTION (paste in the browser console):")
	h.printf("%s", script)
	h.printf(rule)

	path, err := h.writeCookieFile(cookies)
	if err != nil {
		h.tel.ReportWarning(report_handoff_cookie_file, err)
	} else {
		h.printf("Cookies saved to: %s", path)
	}

	if h.cfg.Headless() || h.browser == nil {
		h.printf("")
		h.printf(rule)
		h.printf("HEADLESS MODE - CHECKOUT IN CART")
		h.printf(rule)
		h.printf("Use the cookies above to complete checkout from another machine.")
		return nil
	}

	h.printf("Opening browser...")
	err = h.browser.Open(ctx, cookies, checkoutURL)
	if err != nil && ctx.Err() == nil {
		h.tel.ReportWarning(report_handoff_browser, err)
		h.printManual(checkoutURL, script)
	}
	return nil
}

func (h Handoff) writeCookieFile(cookies []cookieutil.Cookie) (string, error) {
	dir := h.cfg.SnapshotDir()
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("cookies_%s.txt", h.now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	err = cookieutil.WriteNetscape(f, h.cfg.Hostname(), cookies)
	if err != nil {
		return "", err
	}
	return path, nil
}

func (h Handoff) printManual(checkoutURL, script string) {
	h.printf("")
	h.printf(rule)
	h.printf("MANUAL COOKIE INJECTION REQUIRED")
	h.printf(rule)
	h.printf("1. Open %s in Chrome", checkoutURL)
	h.printf("2. Open DevTools (Cmd+Option+I or F12) and go to the Console tab")
	h.printf("3. Paste and run this single command:")
	h.printf("")
	h.printf("%s", script)
	h.printf("")
	h.printf("(cookieStore can set __Host- cookies, document.cookie cannot)")
}

// WaitForEnter returns once a line is read from `in` or ctx ends.
func WaitForEnter(in io.Reader) func(ctx context.Context) {
	return func(ctx context.Context) {
		done := make(chan struct{})
		go func() {
			bufio.NewReader(in).ReadString('\n')
			close(done)
		}()
		select {
		case <-ctx.Done():
		case <-done:
		}
	}
}

func isHostCookie(name string) bool {
	return strings.HasPrefix(name, "__Host-")
}
