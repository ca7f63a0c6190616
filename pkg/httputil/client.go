// Package httputil provides shared HTTP plumbing with connection pooling
// and safe response handling for the honeypot gateway's outbound calls:
// reply-producer requests and result callbacks.
package httputil

import (
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// MaxResponseSize is the default maximum size for reading HTTP response
// bodies. Upstream providers and callback endpoints are external services;
// an oversized body must not take the gateway down.
const MaxResponseSize = 10 * 1024 * 1024 // 10MB

// Shared transport with pooled connections, reused by every outbound client
// so repeated provider and callback calls don't pay per-request TCP setup.
var sharedTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// TimeoutTier defines standard timeout categories for this gateway's
// outbound operations.
type TimeoutTier int

const (
	// TierProbe for quick liveness checks (5s)
	TierProbe TimeoutTier = iota
	// TierDispatch for the result callback POST (10s)
	TierDispatch
	// TierGenerate for LLM reply generation, the slowest external call (30s)
	TierGenerate
)

var timeoutDurations = map[TimeoutTier]time.Duration{
	TierProbe:    5 * time.Second,
	TierDispatch: 10 * time.Second,
	TierGenerate: 30 * time.Second,
}

// Singleton clients per tier - initialized once, reused everywhere.
var (
	clientProbe    *http.Client
	clientDispatch *http.Client
	clientGenerate *http.Client
	clientOnce     sync.Once
)

func initClients() {
	clientProbe = &http.Client{
		Timeout:   timeoutDurations[TierProbe],
		Transport: sharedTransport,
	}
	clientDispatch = &http.Client{
		Timeout:   timeoutDurations[TierDispatch],
		Transport: sharedTransport,
	}
	clientGenerate = &http.Client{
		Timeout:   timeoutDurations[TierGenerate],
		Transport: sharedTransport,
	}
}

// Client returns a shared HTTP client for the given timeout tier. These
// clients share a connection pool and should be used instead of creating
// new http.Client instances per request.
func Client(tier TimeoutTier) *http.Client {
	clientOnce.Do(initClients)
	switch tier {
	case TierProbe:
		return clientProbe
	case TierDispatch:
		return clientDispatch
	case TierGenerate:
		return clientGenerate
	default:
		return clientDispatch
	}
}

// NewClient returns a client with a caller-chosen timeout on the shared
// pooled transport. Use this when the timeout comes from configuration
// rather than a fixed tier.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport,
	}
}

// ReadResponseBody safely reads an HTTP response body with a size limit.
func ReadResponseBody(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = MaxResponseSize
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// ReadErrorBody reads a response body for error reporting with a tight
// limit; error messages shouldn't be large.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	const maxErrorSize = 1 * 1024 * 1024 // 1MB
	return io.ReadAll(io.LimitReader(r, maxErrorSize))
}

// DrainAndClose properly drains and closes an HTTP response body.
// This ensures connection reuse in the pool.
func DrainAndClose(body io.ReadCloser) {
	if body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(body, MaxResponseSize))
		_ = body.Close()
	}
}
