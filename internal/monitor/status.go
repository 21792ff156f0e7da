package monitor

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultRetryAfter  = 60 * time.Second
	rateLimitedWait    = 60 * time.Second
	conflictWait       = 5 * time.Second
	unavailableWait    = 30 * time.Second
	defaultMarketCheck = 120 * time.Second
)

// statusPolicy is how a non-200 poll response is handled on top of the
// normal backoff sleep.
type statusPolicy struct {
	wait        time.Duration
	recordError bool
	reason      string
}

func policyFor(statusCode int, header http.Header) statusPolicy {
	if retryAfter := strings.TrimSpace(header.Get("Retry-After")); retryAfter != "" {
		wait := defaultRetryAfter
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
			wait = time.Duration(seconds) * time.Second
		}
		return statusPolicy{wait: wait, recordError: true, reason: "Retry-After header"}
	}
	switch statusCode {
	case http.StatusTooManyRequests:
		return statusPolicy{wait: rateLimitedWait, recordError: true, reason: "Rate limited"}
	case http.StatusConflict:
		// contention on the server, says nothing about our health
		return statusPolicy{wait: conflictWait, reason: "Server busy"}
	case http.StatusServiceUnavailable:
		return statusPolicy{wait: unavailableWait, recordError: true, reason: "Service unavailable"}
	default:
		return statusPolicy{recordError: true, reason: "HTTP " + strconv.Itoa(statusCode)}
	}
}
