package cookieutil

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Cookie is a name/value pair as the remote server set it, attributes
// (expiry, path, domain) are not tracked.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Map converts an ordered cookie list into a map, later entries win.
func Map(cookies []Cookie) map[string]string {
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		out[c.Name] = c.Value
	}
	return out
}

// Find returns the value of the cookie called `name`.
func Find(cookies []Cookie, name string) (string, bool) {
	for i := len(cookies) - 1; i >= 0; i-- {
		if cookies[i].Name == name {
			return cookies[i].Value, true
		}
	}
	return "", false
}

// Script renders a snippet for the browser devtools console that sets every
// cookie through the cookieStore API (document.cookie cannot set __Host- cookies)
// and reloads the page.
func Script(cookies []Cookie) string {
	sets := make([]string, len(cookies))
	for i, c := range cookies {
		sets[i] = fmt.Sprintf(
			`  await cookieStore.set({name: %s, value: %s, path: "/", secure: true, sameSite: "lax"})`,
			strconv.Quote(c.Name),
			strconv.Quote(c.Value),
		)
	}
	return "(async () => {\n" + strings.Join(sets, ";\n") + ";\n  location.reload();\n})()"
}

const netscapeHeader = "# Netscape HTTP Cookie File"

// WriteNetscape writes the cookies in the Netscape cookie file format
// (domain, subdomains, path, secure, expiry, name, value) so they can be
// imported into a browser. Every cookie is marked secure and session scoped.
func WriteNetscape(w io.Writer, domain string, cookies []Cookie) error {
	lines := make([]string, 0, len(cookies)+1)
	lines = append(lines, netscapeHeader)
	for _, c := range cookies {
		lines = append(lines, fmt.Sprintf("%s\tTRUE\t/\tTRUE\t0\t%s\t%s", domain, c.Name, c.Value))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}
