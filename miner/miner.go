// Package miner orchestrates the SPARQL session, paginated iteration, and
// query builder components into a single schema-mining job: it drives
// the three discovery queries in order, optionally enriches them with
// best-effort COUNT aggregation, and assembles a schema.MinedSchema.
package miner

import (
	"context"
	"fmt"
	"time"

	"github.com/senforsce/rdfsolve/query"
	"github.com/senforsce/rdfsolve/schema"
	"github.com/senforsce/rdfsolve/sparql"
)

// discoveryOrder is normative: typed-object, then literal, then
// untyped-URI. COUNT merging afterward is order-independent.
var discoveryOrder = []query.DiscoveryKind{query.TypedObject, query.Literal, query.UntypedURI}

// Config tunes one mining job.
type Config struct {
	Endpoint     string
	GraphURIs    []string
	ChunkSize    int
	MaxResults   int // per-query row cap; 0 means unlimited
	Delay        time.Duration
	EnableCounts bool
	Dataset      string
	Generator    string
}

// Options bundles the sparql.Session construction knobs a caller may
// want to override (retries, backoff, cache, metrics).
type Options struct {
	Client         *sparql.Client
	SessionOptions []sparql.SessionOption
	QueryLog       *QueryLog

	// Warnf receives non-fatal per-query warnings, such as a COUNT
	// query failing. Nil disables warning output.
	Warnf func(format string, args ...interface{})
}

func (o Options) warnf(format string, args ...interface{}) {
	if o.Warnf != nil {
		o.Warnf(format, args...)
	}
}

// Mine runs one mining job end to end and returns the assembled schema.
// A discovery-query failure is fatal and returned as *sparql.Error with
// Kind == sparql.JobError; a COUNT-query failure is reported through
// Options.Warnf and the resulting patterns are simply count-less.
func Mine(ctx context.Context, cfg Config, opts Options) (*schema.MinedSchema, error) {
	if opts.Client == nil {
		opts.Client = sparql.NewClient()
	}

	session := sparql.NewSession(cfg.Endpoint, opts.Client, opts.SessionOptions...)
	builder := query.NewBuilder(cfg.GraphURIs)

	var patterns []schema.Pattern
	for _, kind := range discoveryOrder {
		tmpl := builder.Discovery(kind)
		opts.QueryLog.record(kind.String(), tmpl)

		rows, err := drain(ctx, session, tmpl, cfg)
		if err != nil {
			return nil, sparql.NewJobError(fmt.Sprintf("discovery query %s failed", kind), err)
		}
		patterns = append(patterns, convert(kind, rows)...)
	}

	if cfg.EnableCounts {
		counts := map[schema.Key]uint64{}
		for _, kind := range discoveryOrder {
			tmpl := builder.Count(kind)
			opts.QueryLog.record(kind.String()+"-count", tmpl)

			rows, err := drain(ctx, session, tmpl, cfg)
			if err != nil {
				// Best-effort: a COUNT failure never fails the job.
				opts.warnf("%s count query failed: %v", kind, err)
				continue
			}
			mergeCounts(counts, kind, rows)
		}
		patterns = applyCounts(patterns, counts)
	}

	patterns = schema.Dedup(patterns)

	return &schema.MinedSchema{
		Patterns: patterns,
		Provenance: schema.Provenance{
			Generator:    cfg.Generator,
			Timestamp:    time.Now().UTC(),
			Endpoint:     cfg.Endpoint,
			Dataset:      cfg.Dataset,
			GraphURIs:    cfg.GraphURIs,
			PatternCount: len(patterns),
			Strategy:     "miner",
		},
	}, nil
}

// drain runs a template to pagination completion and returns all bindings.
func drain(ctx context.Context, session *sparql.Session, tmpl query.Template, cfg Config) ([]sparql.Binding, error) {
	var opts []sparql.PaginatorOption
	if cfg.Delay > 0 {
		opts = append(opts, sparql.WithDelay(cfg.Delay))
	}
	if cfg.MaxResults > 0 {
		opts = append(opts, sparql.WithMaxTotalResults(cfg.MaxResults))
	}
	paginator := sparql.NewPaginator(session, tmpl, sparql.FormSelect, cfg.ChunkSize, opts...)

	var all []sparql.Binding
	for {
		page, more, err := paginator.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Bindings...)
		if !more {
			return all, nil
		}
	}
}

func convert(kind query.DiscoveryKind, rows []sparql.Binding) []schema.Pattern {
	patterns := make([]schema.Pattern, 0, len(rows))
	for _, b := range rows {
		sc := valueOf(b, "sc")
		p := valueOf(b, "p")
		if sc == "" || p == "" {
			continue
		}

		switch kind {
		case query.TypedObject:
			oc := valueOf(b, "oc")
			if oc == "" {
				continue
			}
			patterns = append(patterns, schema.Pattern{
				SubjectClass:   sc,
				PropertyURI:    p,
				ObjectKind:     schema.ObjectClass,
				ObjectClassURI: oc,
			})
		case query.Literal:
			dt := valueOf(b, "dt")
			patterns = append(patterns, schema.Pattern{
				SubjectClass: sc,
				PropertyURI:  p,
				ObjectKind:   schema.ObjectLiteral,
				Datatype:     dt,
			})
		case query.UntypedURI:
			patterns = append(patterns, schema.Pattern{
				SubjectClass: sc,
				PropertyURI:  p,
				ObjectKind:   schema.ObjectResource,
			})
		}
	}
	return patterns
}

func mergeCounts(counts map[schema.Key]uint64, kind query.DiscoveryKind, rows []sparql.Binding) {
	for _, b := range rows {
		sc := valueOf(b, "sc")
		p := valueOf(b, "p")
		cntStr := valueOf(b, "cnt")
		if sc == "" || p == "" || cntStr == "" {
			continue
		}
		cnt, err := parseCount(cntStr)
		if err != nil {
			continue
		}

		key := schema.Key{SubjectClass: sc, PropertyURI: p}
		switch kind {
		case query.TypedObject:
			key.ObjectKind = schema.ObjectClass
			key.Datatype = valueOf(b, "oc")
		case query.Literal:
			key.ObjectKind = schema.ObjectLiteral
			key.Datatype = valueOf(b, "dt")
		case query.UntypedURI:
			key.ObjectKind = schema.ObjectResource
		}
		counts[key] = cnt
	}
}

func applyCounts(patterns []schema.Pattern, counts map[schema.Key]uint64) []schema.Pattern {
	for i := range patterns {
		if cnt, ok := counts[patterns[i].Key()]; ok {
			c := cnt
			patterns[i].Count = &c
		}
	}
	return patterns
}

func valueOf(b sparql.Binding, name string) string {
	cell, ok := b[name]
	if !ok {
		return ""
	}
	return cell.Value
}

func parseCount(s string) (uint64, error) {
	var n uint64
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
