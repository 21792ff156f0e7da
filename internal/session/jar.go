package session

import (
	"net/http"
	"net/url"
	"sync"

	"secondhand-race/lib/cookieutil"
)

// cookieStore is a name keyed http.CookieJar. Every Set-Cookie seen on any
// response, redirect hops included, overwrites the previous value of that
// name. Every request carries the full set regardless of path or expiry.
type cookieStore struct {
	mu     sync.Mutex
	order  []string
	values map[string]string
}

func newCookieStore() *cookieStore {
	return &cookieStore{values: map[string]string{}}
}

func (c *cookieStore) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cookie := range cookies {
		if _, exists := c.values[cookie.Name]; !exists {
			c.order = append(c.order, cookie.Name)
		}
		c.values[cookie.Name] = cookie.Value
	}
}

func (c *cookieStore) Cookies(_ *url.URL) []*http.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*http.Cookie, len(c.order))
	for i, name := range c.order {
		out[i] = &http.Cookie{Name: name, Value: c.values[name]}
	}
	return out
}

// list returns the cookies in the order they were first set.
func (c *cookieStore) list() []cookieutil.Cookie {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]cookieutil.Cookie, len(c.order))
	for i, name := range c.order {
		out[i] = cookieutil.Cookie{Name: name, Value: c.values[name]}
	}
	return out
}
