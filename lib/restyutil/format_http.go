package restyutil

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Exchange is a request and the response it produced, as plain values so
// it can be rendered after the body streams are gone.
type Exchange struct {
	Method         string
	URL            string
	RequestHeader  http.Header
	RequestBody    string
	StatusCode     int
	FinalURL       string
	ResponseHeader http.Header
	ResponseBody   string
}

// FormBody renders form values the way they go on the wire, keys sorted.
func FormBody(form map[string]string) string {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	return values.Encode()
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		for _, v := range headers[k] {
			lines = append(lines, fmt.Sprintf("%s: %s", k, v))
		}
	}
	return strings.Join(lines, "\n")
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response url
// 7: response headers in ("Key: Value" format)
// 8: response body
const messageInfoTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%s %s

%s

%s`

// Format renders the exchange as a human readable dump.
func Format(e Exchange) string {
	finalURL := e.FinalURL
	if finalURL == "" {
		finalURL = e.URL
	}
	return fmt.Sprintf(
		messageInfoTemplate,

		e.Method, e.URL,
		formatHeaders(e.RequestHeader),
		e.RequestBody,

		strconv.Itoa(e.StatusCode), finalURL,
		formatHeaders(e.ResponseHeader),
		e.ResponseBody,
	)
}
