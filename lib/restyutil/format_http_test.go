package restyutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	out := Format(Exchange{
		Method: "POST",
		URL:    "https://tickets.example.com/event/cart/add",
		RequestHeader: http.Header{
			"Referer": {"https://tickets.example.com/event/secondhand/"},
			"Accept":  {"text/html"},
		},
		RequestBody: FormBody(map[string]string{"item_12": "1", "csrfmiddlewaretoken": "tok"}),
		StatusCode:  200,
		FinalURL:    "https://tickets.example.com/event/checkout/questions/",
		ResponseHeader: http.Header{
			"Content-Type": {"text/html"},
		},
		ResponseBody: "<html></html>",
	})

	require.True(t, strings.HasPrefix(out, "---- REQUEST ----\n\nPOST https://tickets.example.com/event/cart/add\n\nAccept: text/html\nReferer: "))
	require.Contains(t, out, "\n\ncsrfmiddlewaretoken=tok&item_12=1\n\n---- RESPONSE ----")
	require.Contains(t, out, "200 https://tickets.example.com/event/checkout/questions/\n\nContent-Type: text/html\n\n<html></html>")
}

func TestFormatFallsBackToRequestURL(t *testing.T) {
	out := Format(Exchange{Method: "GET", URL: "https://a.example/x", StatusCode: 404})
	require.Contains(t, out, "404 https://a.example/x")
}
