package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/senforsce/rdfsolve/batch"
	"github.com/senforsce/rdfsolve/batch/sink"
	"github.com/senforsce/rdfsolve/internal/cache"
	"github.com/senforsce/rdfsolve/internal/metrics"
	"github.com/senforsce/rdfsolve/sparql"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine the schema of every endpoint listed in a sources CSV",
	RunE:  runMine,
}

func init() {
	flags := mineCmd.Flags()
	flags.String("sources", "", "path to the sources CSV (required)")
	flags.String("output-dir", "out", "directory mined schema files are written under")
	flags.String("format", "all", "output format: jsonld, void, or all")
	flags.Int("chunk-size", 5000, "initial paginated query LIMIT")
	flags.Int("max-results", 0, "cap on rows fetched per discovery query (0 = unlimited)")
	flags.Duration("timeout", 30*time.Second, "per-request timeout")
	flags.Duration("delay", 0, "polite inter-page delay")
	flags.Bool("counts", true, "enable best-effort COUNT aggregation")
	flags.Bool("write-reports", false, "write a per-dataset JSON report alongside the schema")
	flags.String("metrics-addr", "", "address to serve Prometheus metrics on while mining runs (disabled if empty)")
	flags.String("cache-dir", "", "badger cache directory for paginated pages (disabled if empty)")
	flags.String("s3-bucket", "", "write outputs to this S3 bucket instead of local disk")
	flags.String("s3-prefix", "", "key prefix within --s3-bucket")
	flags.String("digest-user", "", "HTTP Digest auth username, for endpoints that require it")
	flags.String("digest-pass", "", "HTTP Digest auth password")

	_ = mineCmd.MarkFlagRequired("sources")
}

func runMine(cmd *cobra.Command, _ []string) error {
	v, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	format, err := batch.ParseFormat(v.GetString("format"))
	if err != nil {
		return err
	}

	sourcesPath := v.GetString("sources")
	if sourcesPath == "" {
		return fmt.Errorf("--sources is required")
	}
	f, err := os.Open(sourcesPath)
	if err != nil {
		return fmt.Errorf("opening sources CSV: %w", err)
	}
	defer f.Close()

	sources, err := batch.ParseSources(f)
	if err != nil {
		return fmt.Errorf("parsing sources CSV: %w", err)
	}

	registry := prometheus.NewRegistry()
	rec := metrics.NewRecorder(registry)

	if addr := v.GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnw("metrics listener stopped", "error", err)
			}
		}()
		defer srv.Close()
		log.Infow("serving metrics", "addr", addr)
	}

	var clientOpts []sparql.Option
	if user := v.GetString("digest-user"); user != "" {
		clientOpts = append(clientOpts, sparql.WithDigestAuth(user, v.GetString("digest-pass")))
	}

	outSink, err := resolveSink(cmd.Context(), v)
	if err != nil {
		return err
	}

	var cacheStore cache.Store
	if dir := v.GetString("cache-dir"); dir != "" {
		store, err := cache.OpenBadgerStore(dir)
		if err != nil {
			return fmt.Errorf("opening cache at %s: %w", dir, err)
		}
		defer store.Close()
		cacheStore = store
	}

	started := time.Now()
	result, err := batch.Run(context.Background(), sources, batch.Config{
		Sink:         outSink,
		OutputDir:    v.GetString("output-dir"),
		Format:       format,
		ChunkSize:    v.GetInt("chunk-size"),
		MaxResults:   v.GetInt("max-results"),
		Timeout:      v.GetDuration("timeout"),
		Delay:        v.GetDuration("delay"),
		EnableCounts: v.GetBool("counts"),
		WriteReports: v.GetBool("write-reports"),
		Generator:    "rdfsolve/" + version,
		Client:       sparql.NewClient(append(clientOpts, sparql.WithTimeout(v.GetDuration("timeout")))...),
		Metrics:      rec,
		Cache:        cacheStore,
		Warnf:        log.Warnf,
		Progress: func(dataset string, index, total int, status *string) {
			switch {
			case status == nil:
				log.Infow("mined dataset", "dataset", dataset, "row", index+1, "of", total)
			case *status == "skipped":
				log.Infow("skipped row (no endpoint_url)", "dataset", dataset, "row", index+1, "of", total)
			default:
				log.Warnw("mining failed", "dataset", dataset, "row", index+1, "of", total, "error", *status)
			}
		},
	})
	if err != nil {
		return err
	}

	fmt.Printf(
		"rdfsolve run %s: %s succeeded, %s failed, %s skipped, started %s\n",
		result.RunID,
		humanize.Comma(int64(len(result.Succeeded))),
		humanize.Comma(int64(len(result.Failed))),
		humanize.Comma(int64(len(result.Skipped))),
		humanize.Time(started),
	)
	for _, failure := range result.Failed {
		fmt.Printf("  FAILED %s: %s\n", failure.Dataset, failure.Error)
	}

	if code := result.ExitCode(); code != 0 {
		return fmt.Errorf("%d dataset(s) failed to mine", len(result.Failed))
	}
	return nil
}

func resolveSink(ctx context.Context, v *viper.Viper) (sink.Sink, error) {
	bucket := v.GetString("s3-bucket")
	if bucket == "" {
		return nil, nil // batch.Run falls back to a LocalSink rooted at --output-dir.
	}
	return sink.NewS3Sink(ctx, bucket, v.GetString("s3-prefix"))
}
