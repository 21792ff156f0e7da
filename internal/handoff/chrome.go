package handoff

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"secondhand-race/internal/config"
	"secondhand-race/lib/cookieutil"

	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Chrome drives a visible Chrome through the devtools protocol.
type Chrome struct {
	cfg config.Config
	// wait blocks until the operator is finished with the browser.
	wait func(ctx context.Context)
}

func NewChrome(cfg config.Config, wait func(ctx context.Context)) Chrome {
	return Chrome{cfg: cfg, wait: wait}
}

func (c Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(c.cfg.Headers().UserAgent),
		chromedp.WindowSize(1280, 900),
	)
}

// cookieParams builds the devtools cookie for the site. __Host- cookies
// must not carry a domain, they are bound to the url instead.
func cookieParams(cfg config.Config, cookie cookieutil.Cookie) *network.SetCookieParams {
	secure := true
	if u, err := url.Parse(cfg.BaseURL()); err == nil && u.Scheme == "http" {
		secure = false
	}
	params := network.SetCookie(cookie.Name, cookie.Value).
		WithSecure(secure).
		WithHTTPOnly(true)
	if isHostCookie(cookie.Name) {
		return params.WithURL(cfg.BaseURL() + "/")
	}
	return params.WithDomain(cfg.Hostname()).WithPath("/")
}

func (c Chrome) Open(ctx context.Context, cookies []cookieutil.Cookie, target string) error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	closed := make(chan struct{})
	var once sync.Once
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if _, ok := ev.(*inspector.EventDetached); ok {
			once.Do(func() { close(closed) })
		}
	})

	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, cookie := range cookies {
				err := cookieParams(c.cfg, cookie).Do(ctx)
				if err != nil {
					return fmt.Errorf("set cookie %s: %w", cookie.Name, err)
				}
			}
			return nil
		}),
		chromedp.Navigate(target),
	)
	if err != nil {
		return fmt.Errorf("open browser: %w", err)
	}

	waitCtx, cancelWait := context.WithCancel(ctx)
	defer cancelWait()
	go func() {
		select {
		case <-closed:
			cancelWait()
		case <-waitCtx.Done():
		}
	}()
	c.wait(waitCtx)
	return nil
}
