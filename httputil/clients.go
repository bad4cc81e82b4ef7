package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"
)

// Clients separates traffic against the listing portal, which may go
// through a proxy, from traffic against APIs that must go direct.
type Clients struct {
	Scraping *http.Client // proxied, for the portal and its CDN
	API      *http.Client // direct, for OpenAI and object storage
}

// NewClients builds both clients. An empty proxyURL leaves the scraping
// client on the default transport.
func NewClients(proxyURL string) *Clients {
	scraping := &http.Client{
		Timeout: 60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			scraping.Transport = &http.Transport{
				Proxy:             http.ProxyURL(parsed),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			}
		}
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
