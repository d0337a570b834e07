package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/enumerate"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/index"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/restapi"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/sink"
	prometheusmetrics "github.com/deathowl/go-metrics-prometheus"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK         = 0
	exitSetupError = 1
	exitIncomplete = 2
)

var (
	overrides     st.DSSettings
	maxBatchBytes string
	indexSize     string
	excludes      []string
	metricsListen string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <dir>...",
	Short: "Report duplicate files under one or more directories",
	Long: `Walks every directory given, hashes all regular files in parallel batches and
prints each file whose content was already seen, one per line.

Exit status is 0 when every batch was merged, 2 when the report is incomplete
(a batch failed, the scan was interrupted or duplicates could not be written out)
and 1 when the scan could not start.`,
	Example: `azul-dupescan scan /srv/share
azul-dupescan scan --confirm bytes --json-out /tmp/dupes.jsonl /mnt/a /mnt/b
DS_HASHING__ALGORITHM=sha256 DS_INDEX__BACKEND=redis DS_INDEX__REDIS__ENDPOINT=localhost:6379 azul-dupescan scan /data`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		code := runScan(ctx, args, cmd.OutOrStdout())
		if code != exitOK {
			stop()
			os.Exit(code)
		}
	},
}

// collectOverrides turns the flags that need parsing into settings fields.
func collectOverrides() (*st.DSSettings, error) {
	o := overrides
	if len(maxBatchBytes) > 0 {
		b, err := st.HumanToBytes(maxBatchBytes)
		if err != nil {
			return nil, err
		}
		o.Hashing.MaxBatchBytes = b
	}
	if len(indexSize) > 0 {
		b, err := st.HumanToBytes(indexSize)
		if err != nil {
			return nil, err
		}
		o.Index.MemorySizeBytes = b
	}
	if len(excludes) > 0 {
		o.Excludes = strings.Join(excludes, ",")
	}
	return &o, nil
}

func startKafkaMetrics() {
	// Disable or enable extendedKafkaMetrics
	if len(st.Sink.Kafka.Endpoint) > 0 && st.Sink.Kafka.EnableExtendedMetrics {
		prometheusClient := prometheusmetrics.NewPrometheusProvider(
			metrics.DefaultRegistry, "dupescan", "sarama", prometheus.DefaultRegisterer, 1*time.Second)
		go prometheusClient.UpdatePrometheusMetrics()
	} else {
		metrics.UseNilMetrics = true
	}
}

type scanner struct {
	detector *detect.Detector
	gen      *batch.Generator
	index    index.DigestIndex
	sinks    sink.Multi
}

// setup builds every component from the active settings. Nothing is left open on error.
func setup(ctx context.Context, fs afero.Fs, out io.Writer) (*scanner, error) {
	cfg, err := detect.ConfigFromSettings(fs)
	if err != nil {
		return nil, err
	}
	filter, err := dedupe.New(st.Bloom.Capacity, st.Bloom.FalsePositiveRate)
	if err != nil {
		return nil, err
	}
	gen, err := batch.NewGenerator(float64(st.Hashing.MaxBatchBytes))
	if err != nil {
		return nil, err
	}
	if cfg.Confirm == detect.ConfirmNone && st.Index.Backend != index.BackendNone {
		st.Logger.Info().Msg("confirm mode is none, the digest index is still filled for originals")
	}
	idx, err := index.New(ctx, st.Index, index.NewRunID())
	if err != nil {
		return nil, err
	}
	sinks, err := sink.FromSettings(out, st.Sink)
	if err != nil {
		if idx != nil {
			err = errors.Join(err, idx.Close())
		}
		return nil, err
	}
	d, err := detect.New(cfg, filter, idx, sinks)
	if err != nil {
		errs := []error{err, sinks.Abort()}
		if idx != nil {
			errs = append(errs, idx.Close())
		}
		return nil, errors.Join(errs...)
	}
	st.Logger.Info().
		Uint64("bloom_bits", filter.Bits()).
		Uint64("bloom_hashes", filter.HashCount()).
		Str("bloom_memory", humanize.IBytes(filter.Bits()/8)).
		Str("algorithm", string(cfg.Algorithm)).
		Str("confirm", string(cfg.Confirm)).
		Str("on_file_error", string(cfg.OnFileError)).
		Str("max_batch_bytes", st.Hashing.MaxBatchBytes.String()).
		Msg("scan configured")
	return &scanner{detector: d, gen: gen, index: idx, sinks: sinks}, nil
}

func (s *scanner) close() error {
	var errs []error
	errs = append(errs, s.sinks.Close())
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	return errors.Join(errs...)
}

// runScan returns the process exit code.
func runScan(ctx context.Context, roots []string, out io.Writer) int {
	o, err := collectOverrides()
	if err != nil {
		st.Logger.Error().Err(err).Msg("bad flag value")
		return exitSetupError
	}
	if err := st.ApplyOverrides(o); err != nil {
		st.Logger.Error().Err(err).Msg("could not apply flags")
		return exitSetupError
	}
	startKafkaMetrics()

	fs := afero.NewOsFs()
	s, err := setup(ctx, fs, out)
	if err != nil {
		st.Logger.Error().Err(err).Msg("could not start scan")
		return exitSetupError
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()
	var server *restapi.StatusServer
	if len(st.Settings.ListenAddr) > 0 {
		server = restapi.NewStatusServer()
		g.Go(func() error {
			return server.Serve(serverCtx, st.Settings.ListenAddr)
		})
	} else if len(metricsListen) > 0 {
		go prom.StartStandalonePromServer(metricsListen)
	}

	var report *detect.Report
	var runErr error
	g.Go(func() error {
		defer stopServer()
		records, walked, err := enumerate.WalkAll(fs, roots, st.Settings.ExcludePatterns())
		if err != nil {
			return err
		}
		if server != nil {
			server.Attach(s.detector.Progress(), &walked)
		}
		report, runErr = s.detector.Run(gctx, s.gen.Batches(enumerate.Seq(records)))
		return nil
	})
	groupErr := g.Wait()
	if err := s.close(); err != nil {
		st.Logger.Error().Err(err).Msg("could not close outputs")
		if report != nil {
			report.SinkErrors++
		}
	}
	if report == nil {
		st.Logger.Error().Err(groupErr).Msg("scan did not run")
		return exitSetupError
	}
	printSummary(out, report)
	if runErr != nil || groupErr != nil || !report.Complete() {
		st.Logger.Error().Err(errors.Join(runErr, groupErr, report.Err())).Msg("report is incomplete")
		return exitIncomplete
	}
	return exitOK
}

// printSummary lists everything that kept a file out of the duplicate list.
func printSummary(w io.Writer, r *detect.Report) {
	for _, path := range r.Unconfirmed {
		fmt.Fprintf(w, "%s\tunconfirmed bloom filter hit\n", path)
	}
	for _, c := range r.Collisions {
		fmt.Fprintf(w, "%s\tdigest collision with %s\n", c.Path, c.Original)
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "%s\tskipped: %s\n", s.Path, s.Reason)
	}
	for _, fb := range r.FailedBatches {
		fmt.Fprintf(w, "%s\tbatch failed: %s\n", fb.BatchID, fb.Reason)
	}
	st.Logger.Info().
		Int("duplicates", len(r.Duplicates)).
		Int("unconfirmed", len(r.Unconfirmed)).
		Int("collisions", len(r.Collisions)).
		Int("skipped", len(r.Skipped)).
		Int("failed_batches", len(r.FailedBatches)).
		Uint64("unfinished_batches", r.Unfinished).
		Bool("aborted", r.Aborted).
		Uint64("files", r.Stats.Files).
		Str("bytes", humanize.IBytes(r.Stats.Bytes)).
		Bool("complete", r.Complete()).
		Msg("scan finished")
}

func init() {
	rootCmd.AddCommand(scanCmd)

	flags := scanCmd.Flags()
	flags.StringVar(&maxBatchBytes, "max-batch-bytes", "", "Close a batch once its files add up to this size, e.g. 256Mi")
	flags.Uint64Var(&overrides.Bloom.Capacity, "capacity", 0, "Expected number of distinct files, sizes the bloom filter")
	flags.Float64Var(&overrides.Bloom.FalsePositiveRate, "fp-rate", 0, "Bloom filter false positive rate at capacity, defaults to 1/capacity")
	flags.StringVar(&overrides.Hashing.Algorithm, "algorithm", "", "Digest algorithm: md5, sha1, sha256, sha512, blake2b-256")
	flags.IntVar(&overrides.Hashing.Workers, "workers", 0, "Concurrent hash workers")
	flags.StringVar(&overrides.Hashing.OnFileError, "on-error", "", "Unreadable file handling: skip, abort_batch, abort_run")
	flags.StringVar(&overrides.Confirm, "confirm", "", "Filter hit confirmation: none, digest, bytes")
	flags.StringVar(&overrides.Index.Backend, "index", "", "Digest index backend: memory, redis, none")
	flags.StringVar(&indexSize, "index-size", "", "Memory index size cap, e.g. 512Mi")
	flags.StringVar(&overrides.Sink.JSONPath, "json-out", "", "Also write duplicates as json lines to this file, replaced atomically")
	flags.StringVar(&overrides.ListenAddr, "listen", "", "Serve status, metrics and pprof on this address while scanning")
	flags.StringVar(&metricsListen, "metrics-listen", "", "Serve only prometheus metrics on this address")
	flags.StringSliceVar(&excludes, "exclude", nil, "Gitignore style pattern to skip, may be repeated")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
}
