package session

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"secondhand-race/internal/config"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"golang.org/x/net/http2"
)

// Transport is a connection pool that can be torn down, a reconnect
// discards the current Transport and builds a new one.
type Transport interface {
	http.RoundTripper
	CloseIdleConnections()
}

// TransportFactory builds the transport for a fresh connection pool.
//
// note: fault injection point
type TransportFactory func(cfg config.Config) (Transport, error)

type browserTransport struct {
	base *http.Transport
	rt   http.RoundTripper
}

func (t browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

func (t browserTransport) CloseIdleConnections() {
	t.base.CloseIdleConnections()
}

// NewTransport builds an HTTP/2 capable pool with a small number of
// long lived keep-alive connections and a browser like TLS fingerprint.
func NewTransport(cfg config.Config) (Transport, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout(),
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout(),
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		MaxConnsPerHost:     10,
		IdleConnTimeout:     60 * time.Second,
	}

	// the bypass replaces the TLS config, so it goes before http2 registers its ALPN
	rt := cloudflarebp.AddCloudFlareByPass(base)
	if _, err := http2.ConfigureTransports(base); err != nil {
		return nil, err
	}

	return browserTransport{base: base, rt: rt}, nil
}

// isGracefulTermination reports whether err is the server closing the
// connection on purpose (HTTP/2 GOAWAY with NO_ERROR), as opposed to a
// network failure.
func isGracefulTermination(err error) bool {
	if err == nil {
		return false
	}
	var goAway http2.GoAwayError
	if errors.As(err, &goAway) {
		return goAway.ErrCode == http2.ErrCodeNo
	}
	msg := err.Error()
	return strings.Contains(msg, "server sent GOAWAY") ||
		strings.Contains(msg, "received Server's graceful shutdown GOAWAY")
}
