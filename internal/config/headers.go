package config

import "runtime"

const chromeVersion = "143"

// BrowserHeaders is the per-platform part of the Chrome header set.
type BrowserHeaders struct {
	UserAgent       string
	SecChUa         string
	SecChUaMobile   string
	SecChUaPlatform string
}

// PlatformHeaders picks headers matching a desktop Chrome on `goos`,
// unknown platforms get the linux set.
func PlatformHeaders(goos string) BrowserHeaders {
	var agentPlatform, chPlatform string
	switch goos {
	case "darwin":
		agentPlatform = "Macintosh; Intel Mac OS X 10_15_7"
		chPlatform = `"macOS"`
	case "windows":
		agentPlatform = "Windows NT 10.0; Win64; x64"
		chPlatform = `"Windows"`
	default:
		agentPlatform = "X11; Linux x86_64"
		chPlatform = `"Linux"`
	}
	return BrowserHeaders{
		UserAgent: "Mozilla/5.0 (" + agentPlatform + ") AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/" + chromeVersion + ".0.0.0 Safari/537.36",
		SecChUa: `"Google Chrome";v="` + chromeVersion + `", "Chromium";v="` +
			chromeVersion + `", "Not A(Brand";v="24"`,
		SecChUaMobile:   "?0",
		SecChUaPlatform: chPlatform,
	}
}

func defaultHeaders() BrowserHeaders {
	return PlatformHeaders(runtime.GOOS)
}

// Map is the full header set of a top level navigation in Chrome.
func (h BrowserHeaders) Map() map[string]string {
	return map[string]string{
		"User-Agent":         h.UserAgent,
		"sec-ch-ua":          h.SecChUa,
		"sec-ch-ua-mobile":   h.SecChUaMobile,
		"sec-ch-ua-platform": h.SecChUaPlatform,
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9," +
			"image/avif,image/webp,image/apng,*/*;q=0.8," +
			"application/signed-exchange;v=b3;q=0.7",
		"Accept-Encoding":           "gzip, deflate, br, zstd",
		"Accept-Language":           "en-GB,en-US;q=0.9,en;q=0.8",
		"Upgrade-Insecure-Requests": "1",
		"sec-fetch-dest":            "document",
		"sec-fetch-mode":            "navigate",
		"sec-fetch-site":            "none",
		"sec-fetch-user":            "?1",
		"priority":                  "u=0, i",
	}
}
