// Package metrics exposes Prometheus instrumentation for the SPARQL
// session and batch orchestrator. A nil *Recorder is valid and a no-op,
// so instrumentation is always optional.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder owns the process-wide counters for session and job behavior.
// One Recorder should be constructed per process and shared across
// concurrently running sessions; the underlying counters are safe for
// concurrent use.
type Recorder struct {
	retries       prometheus.Counter
	methodSwitch  prometheus.Counter
	timeouts      prometheus.Counter
	jobOutcomes   *prometheus.CounterVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
}

// NewRecorder registers the rdfsolve metrics on reg and returns a Recorder.
// Pass prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer in production.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "session_retries_total",
			Help:      "Number of retry-with-backoff attempts issued by sessions.",
		}),
		methodSwitch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "session_method_switch_total",
			Help:      "Number of times a session flipped from GET to POST.",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "session_timeouts_total",
			Help:      "Number of EndpointTimeout errors observed.",
		}),
		jobOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "batch_job_outcomes_total",
			Help:      "Batch orchestrator row outcomes by status.",
		}, []string{"status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "query_cache_hits_total",
			Help:      "Paginated query cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rdfsolve",
			Name:      "query_cache_misses_total",
			Help:      "Paginated query cache misses.",
		}),
	}

	if reg != nil {
		reg.MustRegister(r.retries, r.methodSwitch, r.timeouts, r.jobOutcomes, r.cacheHits, r.cacheMisses)
	}

	return r
}

func (r *Recorder) IncRetry() {
	if r == nil {
		return
	}
	r.retries.Inc()
}

func (r *Recorder) IncMethodSwitch() {
	if r == nil {
		return
	}
	r.methodSwitch.Inc()
}

func (r *Recorder) IncTimeout() {
	if r == nil {
		return
	}
	r.timeouts.Inc()
}

func (r *Recorder) ObserveJobOutcome(status string) {
	if r == nil {
		return
	}
	r.jobOutcomes.WithLabelValues(status).Inc()
}

func (r *Recorder) IncCacheHit() {
	if r == nil {
		return
	}
	r.cacheHits.Inc()
}

func (r *Recorder) IncCacheMiss() {
	if r == nil {
		return
	}
	r.cacheMisses.Inc()
}
