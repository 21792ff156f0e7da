package pretix

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// dynamicPatterns match content that changes on every render of an
// otherwise identical page.
var dynamicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-now="[^"]*"`),
	regexp.MustCompile(`name="csrfmiddlewaretoken" value="[^"]*"`),
	regexp.MustCompile(`\?version=[a-f0-9-]+`),
}

// Fingerprint hashes the page with its dynamic content removed, two
// renders of the same empty marketplace produce the same fingerprint.
func Fingerprint(page string) string {
	normalized := page
	for _, pattern := range dynamicPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func IsNoTicketsPage(page string) bool {
	return strings.Contains(page, NoTicketsPageMarker)
}
