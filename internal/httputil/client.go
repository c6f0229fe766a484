package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout bounds every provider call end to end, including body reads.
const DefaultTimeout = 30 * time.Second

const userAgent = "provincecast/1.0"

// NewClient returns an HTTP client with the standard timeout that identifies
// this service on every outbound request.
func NewClient() *http.Client {
	return &http.Client{
		Timeout:   DefaultTimeout,
		Transport: identifyingTransport{base: http.DefaultTransport},
	}
}

type identifyingTransport struct {
	base http.RoundTripper
}

func (t identifyingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", userAgent)
	return t.base.RoundTrip(clone)
}
