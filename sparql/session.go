package sparql

import (
	"context"
	"math/rand"
	"time"

	"github.com/senforsce/rdfsolve/internal/cache"
	"github.com/senforsce/rdfsolve/internal/metrics"
)

// Session is a stateful wrapper over Client for one endpoint: it owns
// GET/POST method stickiness and retry-with-backoff. One Session is
// created per mining job and discarded at the end of it; it is not
// safe to share across concurrent jobs.
type Session struct {
	Endpoint string

	client *Client
	cache  cache.Store
	rec    *metrics.Recorder

	requiresPost bool

	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	timeout        time.Duration

	sleep func(time.Duration)
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithCache wires an optional page cache into the session.
func WithCache(store cache.Store) SessionOption {
	return func(s *Session) { s.cache = store }
}

// WithMetrics wires an optional metrics recorder into the session.
func WithMetrics(rec *metrics.Recorder) SessionOption {
	return func(s *Session) { s.rec = rec }
}

// WithMaxRetries overrides the default retry budget (10).
func WithMaxRetries(n int) SessionOption {
	return func(s *Session) { s.maxRetries = n }
}

// WithBackoff overrides the default initial/max backoff durations.
func WithBackoff(initial, max time.Duration) SessionOption {
	return func(s *Session) {
		s.initialBackoff = initial
		s.maxBackoff = max
	}
}

// WithRequestTimeout overrides the per-request timeout (default 30s).
func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *Session) { s.timeout = d }
}

// ForcePOST seeds requires_post as already true, for endpoints known in
// advance to reject GET.
func ForcePOST() SessionOption {
	return func(s *Session) { s.requiresPost = true }
}

// NewSession constructs a Session for endpoint using client for transport.
func NewSession(endpoint string, client *Client, opts ...SessionOption) *Session {
	s := &Session{
		Endpoint:       endpoint,
		client:         client,
		maxRetries:     10,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     10 * time.Second,
		timeout:        30 * time.Second,
		sleep:          time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequiresPOST reports the session's current sticky method preference.
func (s *Session) RequiresPOST() bool { return s.requiresPost }

// Execute runs query against the session's endpoint and returns the
// raw response body, applying method stickiness and retry-with-backoff.
// EndpointTimeout is never retried here; it is returned unwrapped so
// the paginator can apply adaptive shrinking.
func (s *Session) Execute(ctx context.Context, query string, form QueryForm) ([]byte, error) {
	body, _, err := s.run(ctx, query, form, false)
	return body, err
}

// Query runs a SELECT/ASK query and returns the decoded result page.
// Decoding happens inside the retry loop: a body that fails to parse
// as SPARQL JSON results is a DecodeError and consumes the same retry
// budget as a retryable HTTP status.
func (s *Session) Query(ctx context.Context, query string, form QueryForm) (Page, error) {
	_, page, err := s.run(ctx, query, form, true)
	return page, err
}

func (s *Session) run(ctx context.Context, query string, form QueryForm, decode bool) ([]byte, Page, error) {
	var cacheKey uint64
	useCache := s.cache != nil
	if useCache {
		cacheKey = cache.Key(s.Endpoint, query)
		if body, ok := s.cache.Get(cacheKey); ok {
			if !decode {
				s.rec.IncCacheHit()
				return body, Page{}, nil
			}
			if page, err := decodePage(body); err == nil {
				s.rec.IncCacheHit()
				return body, page, nil
			}
			// A cached body that no longer decodes is refetched.
		}
		s.rec.IncCacheMiss()
	}

	body, page, err := s.fetch(ctx, query, form, decode)
	if err != nil {
		return nil, Page{}, err
	}

	if useCache {
		_ = s.cache.Set(cacheKey, body, time.Hour)
	}
	return body, page, nil
}

func (s *Session) fetch(ctx context.Context, query string, form QueryForm, decode bool) ([]byte, Page, error) {
	attempt := 0
	for {
		method := MethodGET
		if s.requiresPost {
			method = MethodPOST
		}

		reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
		body, err := s.client.Do(reqCtx, method, s.Endpoint, query, form)
		cancel()

		var page Page
		if err == nil && decode {
			page, err = decodePage(body)
		}
		if err == nil {
			return body, page, nil
		}

		sparqlErr, ok := err.(*Error)
		if !ok {
			return nil, Page{}, err
		}

		if sparqlErr.Kind == EndpointTimeout {
			s.rec.IncTimeout()
			return nil, Page{}, sparqlErr
		}

		if method == MethodGET && sparqlErr.MethodSwitch() {
			s.requiresPost = true
			s.rec.IncMethodSwitch()
			continue // does not consume a retry slot
		}

		if method == MethodPOST && sparqlErr.Kind == HTMLErrorResponse {
			return nil, Page{}, &Error{Kind: JobError, Message: "HTML after POST", Err: sparqlErr}
		}

		if sparqlErr.Retryable() && attempt < s.maxRetries {
			attempt++
			s.rec.IncRetry()
			s.sleep(s.backoff(attempt))
			continue
		}

		return nil, Page{}, sparqlErr
	}
}

// backoff computes min(initial*2^(n-1), max) plus 0-10% jitter.
func (s *Session) backoff(attempt int) time.Duration {
	d := s.initialBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.maxBackoff {
			d = s.maxBackoff
			break
		}
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}
