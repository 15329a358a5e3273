package sparql

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Renderer produces a concrete SPARQL query text for a given
// OFFSET/LIMIT pair. query.Template satisfies this.
type Renderer interface {
	Render(offset, limit int) string
}

const (
	shrinkFactor        = 0.85
	shrinkFloorRatio    = 0.60
	maxShrinksPerOffset = 3
	shrinkCooldown      = 5 * time.Second
	safetyPageCap       = 10_000
)

// Paginator lazily yields pages of a SELECT DISTINCT query, shrinking its
// page size adaptively when the endpoint times out. One Paginator is
// created per discovery/count query within a mining job.
type Paginator struct {
	session *Session
	query   Renderer
	form    QueryForm

	initialLimit int
	currentLimit int
	floorLimit   int

	offset          int
	maxTotal        int
	shrinksAtOffset int
	pagesEmitted    int

	delay   time.Duration
	limiter *rate.Limiter

	done  bool
	sleep func(time.Duration)
}

// PaginatorOption configures a Paginator.
type PaginatorOption func(*Paginator)

// WithDelay sets the polite inter-page delay, rate-limited per Paginator.
func WithDelay(d time.Duration) PaginatorOption {
	return func(p *Paginator) { p.delay = d }
}

// WithMaxTotalResults caps the total number of rows yielded across all
// pages. Pagination stops once the cap is reached; a page straddling
// the cap is truncated to it.
func WithMaxTotalResults(n int) PaginatorOption {
	return func(p *Paginator) { p.maxTotal = n }
}

// NewPaginator builds a Paginator driving query through session in pages
// of initialLimit rows.
func NewPaginator(session *Session, query Renderer, form QueryForm, initialLimit int, opts ...PaginatorOption) *Paginator {
	floor := int(float64(initialLimit) * shrinkFloorRatio)
	if floor < 1 {
		floor = 1
	}

	p := &Paginator{
		session:      session,
		query:        query,
		form:         form,
		initialLimit: initialLimit,
		currentLimit: initialLimit,
		floorLimit:   floor,
		sleep:        time.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.delay > 0 {
		p.limiter = rate.NewLimiter(rate.Every(p.delay), 1)
		// A new limiter starts with a full token; spend it so the wait
		// before the second page is paced like every later one.
		p.limiter.Allow()
	}
	return p
}

// Next fetches the next page. It returns (page, true, nil) for every
// fetched page, including the last one, (Page{}, false, nil) on the
// call after pagination is complete, or (Page{}, false, err) when an
// error ended the stream.
func (p *Paginator) Next(ctx context.Context) (Page, bool, error) {
	if p.done {
		return Page{}, false, nil
	}

	if p.pagesEmitted >= safetyPageCap {
		p.done = true
		return Page{}, false, nil
	}

	if p.limiter != nil && p.pagesEmitted > 0 {
		if err := p.limiter.Wait(ctx); err != nil {
			p.done = true
			return Page{}, false, err
		}
	}

	for {
		text := p.query.Render(p.offset, p.currentLimit)
		page, err := p.session.Query(ctx, text, p.form)
		if err != nil {
			sparqlErr, ok := err.(*Error)
			if ok && sparqlErr.Kind == EndpointTimeout {
				if shrunk := p.shrink(); shrunk {
					p.sleep(shrinkCooldown)
					continue
				}
				// Shrink budget exhausted at this offset: abandon
				// pagination and surface the timeout, so the miner
				// never emits a truncated result set as a success.
				p.done = true
				return Page{}, false, sparqlErr
			}
			p.done = true
			return Page{}, false, err
		}

		p.shrinksAtOffset = 0
		p.pagesEmitted++

		if p.maxTotal > 0 && p.offset+len(page.Bindings) >= p.maxTotal {
			page.Bindings = page.Bindings[:p.maxTotal-p.offset]
			p.offset = p.maxTotal
			p.done = true
			return page, true, nil
		}

		p.offset += len(page.Bindings)
		if len(page.Bindings) < p.currentLimit {
			p.done = true
		}
		return page, true, nil
	}
}

// shrink reduces currentLimit per the adaptive-shrink policy. It reports
// whether a shrink was applied (false once the per-offset shrink budget
// is exhausted, in which case the caller abandons pagination).
func (p *Paginator) shrink() bool {
	if p.shrinksAtOffset >= maxShrinksPerOffset {
		return false
	}
	p.shrinksAtOffset++

	next := int(float64(p.currentLimit) * shrinkFactor)
	if next < p.floorLimit {
		next = p.floorLimit
	}
	if next < 1 {
		next = 1
	}
	p.currentLimit = next
	return true
}

// CurrentLimit reports the paginator's current (possibly shrunk) LIMIT,
// for tests asserting the adaptive-shrink floor invariant.
func (p *Paginator) CurrentLimit() int { return p.currentLimit }
