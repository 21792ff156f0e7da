package session

import (
	"net/http"
	"net/url"
	"time"
)

type RequestMetrics struct {
	StatusCode int
	// TTFB is measured from the moment the request is handed to the
	// transport until response headers arrive.
	TTFB time.Duration
	// TTLB additionally includes draining and decoding the body.
	TTLB            time.Duration
	ContentLength   int
	ContentEncoding string
}

// Response is the outcome of one request after every redirect was followed.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the url of the last hop.
	FinalURL *url.URL
	// SetCookies are the cookies set by the last hop, the session store
	// holds those of every hop.
	SetCookies []*http.Cookie
	Metrics    RequestMetrics
}

func (r Response) Text() string {
	return string(r.Body)
}
