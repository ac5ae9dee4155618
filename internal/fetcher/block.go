package fetcher

import (
	"net/http"
	"strings"
)

// BlockKind describes the anti-bot mechanism that stopped a fetch.
type BlockKind string

const (
	blockNone       BlockKind = ""
	blockCloudflare BlockKind = "cloudflare"
	blockCaptcha    BlockKind = "captcha"
	blockJSShell    BlockKind = "js_shell"
)

// detectBlock checks a response for signs of anti-bot protection. Crypto
// project sites lean heavily on Cloudflare, so that check comes first.
func detectBlock(statusCode int, header http.Header, body []byte) (bool, BlockKind) {
	if statusCode == http.StatusForbidden || statusCode == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-cache-status") != "" {
			return true, blockCloudflare
		}
		if header.Get("server") == "cloudflare" {
			return true, blockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") ||
		(strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge")) {
		return true, blockCloudflare
	}

	if strings.Contains(lower, "captcha") ||
		strings.Contains(lower, "recaptcha") ||
		strings.Contains(lower, "hcaptcha") {
		return true, blockCaptcha
	}

	// JS-only shell: tiny body that demands JavaScript or meta-refreshes away.
	if len(body) < 2000 {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, blockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, blockJSShell
		}
	}

	return false, blockNone
}
