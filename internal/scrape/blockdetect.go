package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of anti-bot response detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockRateLimit  BlockType = "rate_limit"
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockLoginWall  BlockType = "login_wall"
	BlockJSShell    BlockType = "js_shell"
)

// Challenge and captcha interstitials are small pages.
const challengeMaxSize = 16 * 1024

// DetectBlock checks an HTTP response for signs that the target refused to
// serve us. Captcha and login-wall markers are only trusted on small pages:
// a full business site that embeds a reCAPTCHA contact form is not a block.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return true, BlockRateLimit
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	if len(body) < challengeMaxSize {
		if strings.Contains(lower, "captcha") {
			return true, BlockCaptcha
		}
		if strings.Contains(lower, "please log in") || strings.Contains(lower, "login_required") {
			return true, BlockLoginWall
		}
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}
