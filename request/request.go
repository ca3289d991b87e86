package request

import (
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// PageFetcher is one way of downloading a page; the static and rendered
// strategies both satisfy it, and adapter tests swap in fixtures
type PageFetcher interface {
	GetPage(url string) WebResponse
}

// WebResponse is what both fetch strategies hand back to the adapters
type WebResponse struct {
	URL       string  `json:"url"`
	Status    int     `json:"status"`
	Content   string  `json:"content"`
	Blocked   bool    `json:"blocked"`
	Rendered  bool    `json:"rendered"`
	TimeTaken float64 `json:"time_taken"`
}

// Browser profiles rotated across outbound requests
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
}

// SetBrowserHeaders spoofs a regular browser session on an outbound request
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Body markers that mean the platform served a bot wall instead of results
var blockMarkers = []string{
	"captcha",
	"unusual traffic",
	"access denied",
	"robot check",
	"punish?x5secdata",
	"slide to verify",
	"login.alibaba.com",
	"are you a human",
}

var loginWallRe = regexp.MustCompile(`(?i)<title>[^<]*(sign in|login)[^<]*</title>`)

// IsBlocked decides whether a response is a block/rate-limit signal rather
// than a generic failure. Blocks trigger cooldowns upstream, not retries.
func IsBlocked(status int, body string) bool {
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable || status == http.StatusForbidden {
		return true
	}
	lower := strings.ToLower(body)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return loginWallRe.MatchString(body)
}

// IsSuccess reports whether an http status is in the 2xx class
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// IsTempError reports a retriable-at-a-higher-level status (5xx, timeouts)
func IsTempError(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout
}

// Polite jitter between result pages of the same platform
func PageSleep() {
	time.Sleep(time.Duration(500+rand.Intn(1200)) * time.Millisecond)
}
