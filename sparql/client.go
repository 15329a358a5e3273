// Package sparql implements a resilient SPARQL 1.1 HTTP client: a
// one-shot transport (Client), a stateful session with GET/POST
// stickiness and retry-with-backoff (Session), and an adaptive
// paginated iterator over SELECT DISTINCT result sets (Paginator).
package sparql

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knakk/digest"
)

// userAgent is sent on every request. Fixed and non-empty per the
// transport contract.
const userAgent = "rdfsolve-sparql-client/1"

// QueryForm selects the Accept header family for a request.
type QueryForm int

const (
	// FormSelect covers SELECT and ASK queries.
	FormSelect QueryForm = iota
	// FormConstruct covers CONSTRUCT and DESCRIBE queries.
	FormConstruct
)

const (
	acceptSelect    = "application/sparql-results+json, application/sparql-results+xml;q=0.9"
	acceptConstruct = "text/turtle, text/n3;q=0.9, application/n-triples;q=0.8, application/rdf+xml;q=0.7"
)

func acceptHeader(form QueryForm) string {
	if form == FormConstruct {
		return acceptConstruct
	}
	return acceptSelect
}

// Method is the HTTP verb used to issue a SPARQL request.
type Method string

const (
	MethodGET  Method = http.MethodGet
	MethodPOST Method = http.MethodPost
)

// Client performs a single SPARQL request over HTTP: header and form
// construction, status handling, and HTML-body sniffing. It holds no
// session state; method stickiness and retries are Session's job.
type Client struct {
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the client's default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithDigestAuth wires HTTP Digest authentication into the client's
// transport, for endpoints that gate SPARQL access behind it.
func WithDigestAuth(username, password string) Option {
	return func(c *Client) {
		c.http.Transport = digest.NewTransport(username, password)
	}
}

// NewClient builds a Client with sane defaults, applying options in order.
func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues a single SPARQL request and returns the raw response body.
// It never retries and never switches HTTP method; that is Session's
// responsibility. The returned error, when non-nil, is always *Error.
func (c *Client) Do(ctx context.Context, method Method, endpoint, query string, form QueryForm) ([]byte, error) {
	req, err := c.buildRequest(ctx, method, endpoint, query, form)
	if err != nil {
		return nil, newTransportError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, newTimeoutError(err)
		}
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, newTimeoutError(err)
		}
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(resp.StatusCode, string(body))
	}

	if looksLikeHTML(body) {
		return nil, newHTMLError(string(method))
	}

	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, method Method, endpoint, query string, form QueryForm) (*http.Request, error) {
	var req *http.Request
	var err error

	switch method {
	case MethodGET:
		u, perr := url.Parse(endpoint)
		if perr != nil {
			return nil, perr
		}
		q := u.Query()
		q.Set("query", query)
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	case MethodPOST:
		values := url.Values{}
		values.Set("query", query)
		body := strings.NewReader(values.Encode())
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader(form))
	return req, nil
}

// htmlPrefixes are the byte sequences that, when found at the start of an
// otherwise-2xx response body (after stripping leading whitespace), mark
// it as an HTML error page rather than a genuine SPARQL result.
var htmlPrefixes = [][]byte{
	[]byte("<!DOCTYPE"),
	[]byte("<!doctype"),
	[]byte("<html"),
	[]byte("<HTML"),
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	for _, prefix := range htmlPrefixes {
		if bytes.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
