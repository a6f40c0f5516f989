// Package httpclient builds the HTTP client the injector uses to deliver
// payloads: redirects disabled by default and a bounded timeout, so one
// unresponsive target cannot stall the whole run.
package httpclient

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"ricochet.dev/ricochet/internal/rerrors"
)

// Options configures the client New returns.
type Options struct {
	Timeout         time.Duration
	FollowRedirects bool
	InsecureTLS     bool
	// Proxy, if non-empty, routes every request through this HTTP(S)
	// proxy (a CONNECT tunnel for HTTPS targets). Setting it also
	// disables environment proxy discovery, so a configured proxy is
	// never silently overridden by $HTTP_PROXY.
	Proxy string
}

// DefaultOptions returns a 10-second timeout with redirects disabled,
// since following a redirect could silently deliver the payload to a
// different host than the one requested.
func DefaultOptions() Options {
	return Options{Timeout: 10 * time.Second, FollowRedirects: false}
}

// New builds an *http.Client per opts.
func New(opts Options) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client := &http.Client{Timeout: opts.Timeout, Transport: transport}
	if !opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return client
}

// Outcome is the result of a single payload send, returned instead of a
// bare error so callers can log "sent but target returned 500" distinctly
// from "never reached the target" without parsing error strings.
type Outcome struct {
	StatusCode int
	Err        error
}

// Send issues req and converts transport-level failures into
// rerrors-wrapped errors, leaving any received status code (even 4xx/5xx)
// as a successful Outcome: a non-2xx response does not mean the payload
// wasn't delivered, which is all the injector cares about.
func Send(client *http.Client, req *http.Request) Outcome {
	resp, err := client.Do(req)
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return Outcome{Err: rerrors.TimeoutError(err, "sending payload")}
		}
		return Outcome{Err: rerrors.NetworkError(err, "sending payload")}
	}
	defer resp.Body.Close()
	return Outcome{StatusCode: resp.StatusCode}
}
