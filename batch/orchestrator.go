package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/senforsce/rdfsolve/batch/sink"
	"github.com/senforsce/rdfsolve/internal/cache"
	"github.com/senforsce/rdfsolve/internal/metrics"
	"github.com/senforsce/rdfsolve/miner"
	"github.com/senforsce/rdfsolve/schema"
	"github.com/senforsce/rdfsolve/sparql"
)

// Format selects which artifact(s) the orchestrator writes per succeeded
// dataset.
type Format int

const (
	FormatJSONLD Format = iota
	FormatVoID
	FormatAll
)

// ParseFormat parses the "jsonld"/"void"/"all" format selector.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "jsonld":
		return FormatJSONLD, nil
	case "void":
		return FormatVoID, nil
	case "all":
		return FormatAll, nil
	default:
		return 0, fmt.Errorf("unknown output format %q (want jsonld, void, or all)", s)
	}
}

// ProgressFunc is invoked exactly once per source row, in row order.
// status is nil on success, the sentinel "skipped" for a skipped row, or
// an error message otherwise.
type ProgressFunc func(datasetName string, index, total int, status *string)

var skippedStatus = "skipped"

// Config tunes one batch run. Sink defaults to a LocalSink rooted at
// OutputDir when nil.
type Config struct {
	Sink         sink.Sink
	OutputDir    string
	Format       Format
	ChunkSize    int
	MaxResults   int
	Timeout      time.Duration
	Delay        time.Duration
	EnableCounts bool
	WriteReports bool
	Generator    string
	Progress     ProgressFunc

	// Warnf receives non-fatal per-query warnings from the miner
	// (e.g. a failed COUNT query). Nil disables warning output.
	Warnf func(format string, args ...interface{})

	Client  *sparql.Client
	Metrics *metrics.Recorder
	Cache   cache.Store
}

// FailedRow records one row that failed mining, with the error message
// captured at the time of failure.
type FailedRow struct {
	Dataset string
	Error   string
}

// Result is the aggregated outcome of one batch run. Row order is
// preserved within and across all three lists: concatenating Skipped,
// Succeeded and Failed by first appearance reproduces the input order
// of processed rows.
type Result struct {
	RunID     string
	Succeeded []string
	Failed    []FailedRow
	Skipped   []string
}

// ExitCode reports the process exit code this run should produce: 0 if
// Failed is empty, 1 otherwise. Skipped rows never affect the exit code.
func (r *Result) ExitCode() int {
	if len(r.Failed) > 0 {
		return 1
	}
	return 0
}

type reportDoc struct {
	Dataset      string    `json:"dataset"`
	Endpoint     string    `json:"endpoint"`
	PatternCount int       `json:"pattern_count"`
	CountsOn     bool      `json:"counts_enabled"`
	Duration     string    `json:"duration"`
	StartedAt    time.Time `json:"started_at"`
	Queries      []string  `json:"queries,omitempty"`
}

// Run drives the schema miner over sources in order, writing per-dataset
// output files through cfg.Sink (or a LocalSink rooted at cfg.OutputDir
// when Sink is nil) and returning the succeeded/failed/skipped summary.
func Run(ctx context.Context, sources []Source, cfg Config) (*Result, error) {
	out := cfg.Sink
	if out == nil {
		local, err := sink.NewLocalSink(cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("preparing output directory: %w", err)
		}
		out = local
	}

	if cfg.Client == nil {
		opts := []sparql.Option{}
		if cfg.Timeout > 0 {
			opts = append(opts, sparql.WithTimeout(cfg.Timeout))
		}
		cfg.Client = sparql.NewClient(opts...)
	}

	runID := uuid.New().String()
	result := &Result{RunID: runID}

	total := len(sources)
	for i, src := range sources {
		name := src.DatasetName

		if src.EndpointURL == "" {
			result.Skipped = append(result.Skipped, name)
			cfg.notify(name, i, total, &skippedStatus)
			cfg.Metrics.ObserveJobOutcome("skipped")
			continue
		}

		started := time.Now()
		schemaDoc, queryLog, err := mineOne(ctx, src, cfg)
		if err != nil {
			msg := err.Error()
			result.Failed = append(result.Failed, FailedRow{Dataset: name, Error: msg})
			cfg.notify(name, i, total, &msg)
			cfg.Metrics.ObserveJobOutcome("failed")
			continue
		}

		if err := writeOutputs(ctx, out, name, schemaDoc, cfg.Format); err != nil {
			msg := err.Error()
			result.Failed = append(result.Failed, FailedRow{Dataset: name, Error: msg})
			cfg.notify(name, i, total, &msg)
			cfg.Metrics.ObserveJobOutcome("failed")
			continue
		}

		if cfg.WriteReports {
			if err := writeReport(ctx, out, name, src, schemaDoc, queryLog, started, cfg.EnableCounts); err != nil {
				msg := err.Error()
				result.Failed = append(result.Failed, FailedRow{Dataset: name, Error: msg})
				cfg.notify(name, i, total, &msg)
				cfg.Metrics.ObserveJobOutcome("failed")
				continue
			}
		}

		result.Succeeded = append(result.Succeeded, name)
		cfg.notify(name, i, total, nil)
		cfg.Metrics.ObserveJobOutcome("succeeded")
	}

	return result, nil
}

func (c Config) notify(dataset string, index, total int, status *string) {
	if c.Progress != nil {
		c.Progress(dataset, index, total, status)
	}
}

func mineOne(ctx context.Context, src Source, cfg Config) (*schema.MinedSchema, *miner.QueryLog, error) {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 5000
	}

	var log *miner.QueryLog
	if cfg.WriteReports {
		log = miner.NewQueryLog()
	}

	var sessionOpts []sparql.SessionOption
	if cfg.Metrics != nil {
		sessionOpts = append(sessionOpts, sparql.WithMetrics(cfg.Metrics))
	}
	if cfg.Timeout > 0 {
		sessionOpts = append(sessionOpts, sparql.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.Cache != nil {
		sessionOpts = append(sessionOpts, sparql.WithCache(cfg.Cache))
	}

	mined, err := miner.Mine(ctx, miner.Config{
		Endpoint:     src.EndpointURL,
		GraphURIs:    src.GraphURIs(),
		ChunkSize:    chunkSize,
		MaxResults:   cfg.MaxResults,
		Delay:        cfg.Delay,
		EnableCounts: cfg.EnableCounts,
		Dataset:      src.DatasetName,
		Generator:    generatorOr(cfg.Generator),
	}, miner.Options{
		Client:         cfg.Client,
		SessionOptions: sessionOpts,
		QueryLog:       log,
		Warnf:          cfg.Warnf,
	})
	if err != nil {
		return nil, nil, err
	}
	return mined, log, nil
}

func generatorOr(g string) string {
	if g == "" {
		return "rdfsolve"
	}
	return g
}

func writeOutputs(ctx context.Context, out sink.Sink, name string, doc *schema.MinedSchema, format Format) error {
	if format == FormatJSONLD || format == FormatAll {
		body, err := schema.MarshalJSONLD(doc)
		if err != nil {
			return fmt.Errorf("marshaling JSON-LD for %s: %w", name, err)
		}
		if err := out.Write(ctx, name+"_schema.jsonld", body); err != nil {
			return fmt.Errorf("writing JSON-LD for %s: %w", name, err)
		}
	}

	if format == FormatVoID || format == FormatAll {
		var buf bytes.Buffer
		if err := schema.MarshalVoID(doc, &buf); err != nil {
			return fmt.Errorf("marshaling VoID for %s: %w", name, err)
		}
		if err := out.Write(ctx, name+"_void.ttl", buf.Bytes()); err != nil {
			return fmt.Errorf("writing VoID for %s: %w", name, err)
		}
	}

	return nil
}

func writeReport(ctx context.Context, out sink.Sink, name string, src Source, doc *schema.MinedSchema, log *miner.QueryLog, started time.Time, countsOn bool) error {
	report := reportDoc{
		Dataset:      name,
		Endpoint:     src.EndpointURL,
		PatternCount: len(doc.Patterns),
		CountsOn:     countsOn,
		Duration:     time.Since(started).String(),
		StartedAt:    started.UTC(),
	}
	for _, rec := range log.Records() {
		report.Queries = append(report.Queries, rec.Category)
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report for %s: %w", name, err)
	}
	if err := out.Write(ctx, name+"_report.json", body); err != nil {
		return fmt.Errorf("writing report for %s: %w", name, err)
	}
	return nil
}
