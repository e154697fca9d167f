package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	t.Parallel()

	bigPage := "<html><body>" + strings.Repeat("<p>Great cuts and color.</p>", 1000) +
		`<script src="https://www.google.com/recaptcha/api.js"></script></body></html>`

	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"too many requests", 429, http.Header{}, "", BlockRateLimit},
		{"cloudflare 403", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare 503 server", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge body", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"captcha page", 200, http.Header{}, "<html><body>Please complete the reCAPTCHA to continue</body></html>", BlockCaptcha},
		{"login wall", 200, http.Header{}, "<html><body>Please log in to continue</body></html>", BlockLoginWall},
		{"js shell", 200, http.Header{}, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"recaptcha form on a real site", 200, http.Header{}, bigPage, BlockNone},
		{"clean page", 200, http.Header{}, "<html><body>" + strings.Repeat("x", 3000) + "</body></html>", BlockNone},
		{"plain 403", 403, http.Header{}, strings.Repeat("x", 3000), BlockNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, bt := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_NilResponse(t *testing.T) {
	t.Parallel()
	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
