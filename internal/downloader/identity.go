package downloader

import (
	"crypto/tls"
	"net/http"
)

// Fixed browser-like request identity. Upstream throttles unknown
// clients, and some CDN endpoints present certificates that fail strict
// verification, so TLS checks are relaxed on this client only.
const (
	identityUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"
	identityAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	identityLanguage  = "en-US,en;q=0.9"
	identityReferer   = "https://www.youtube.com/"
)

type identityTransport struct {
	base http.RoundTripper
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", identityUserAgent)
	req.Header.Set("Accept", identityAccept)
	req.Header.Set("Accept-Language", identityLanguage)
	req.Header.Set("Referer", identityReferer)
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	// Accept-Encoding stays unset so the transport keeps transparent
	// decompression.
	return t.base.RoundTrip(req)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &identityTransport{
			base: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
	}
}
