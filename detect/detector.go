/*
Package detect hashes batches concurrently and merges their digests into one bloom filter from a single goroutine.
*/
package detect

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/dedupe"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/hashing"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/index"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/goccy/go-json"
	"github.com/spf13/afero"
	"github.com/stevegt/readercomp"
)

// ErrRunAborted is the cancellation cause when a batch fails under the abort_run policy.
// Batches after the failing one are neither hashed nor merged.
var ErrRunAborted = errors.New("run aborted after batch failure")

type Detector struct {
	cfg      Config
	filter   *dedupe.Filter
	index    index.DigestIndex
	sink     Sink
	progress *Progress
}

// New validates cfg. The index may only be nil when nothing needs confirming, the sink may be nil.
func New(cfg Config, filter *dedupe.Filter, idx index.DigestIndex, sink Sink) (*Detector, error) {
	if filter == nil {
		return nil, fmt.Errorf("%w: detector needs a bloom filter", st.ErrConfiguration)
	}
	var err error
	// names are matched loosely, keep the canonical form
	if cfg.Algorithm, err = hashing.ParseAlgorithm(string(cfg.Algorithm)); err != nil {
		return nil, err
	}
	if cfg.OnFileError, err = hashing.ParseErrorPolicy(string(cfg.OnFileError)); err != nil {
		return nil, err
	}
	if cfg.Confirm, err = ParseConfirmMode(string(cfg.Confirm)); err != nil {
		return nil, err
	}
	if cfg.Confirm != ConfirmNone && idx == nil {
		return nil, fmt.Errorf("%w: confirm mode '%s' needs a digest index", st.ErrConfiguration, cfg.Confirm)
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Detector{cfg: cfg, filter: filter, index: idx, sink: sink, progress: &Progress{}}, nil
}

// Progress is safe to read from any goroutine while Run is active.
func (d *Detector) Progress() *Progress {
	return d.progress
}

// Run hashes every batch and merges results in completion order.
// On cancellation the partial report is returned together with the context error.
// Failed batches do not produce an error here, check Report.Complete.
func (d *Detector) Run(ctx context.Context, batches iter.Seq[batch.Batch]) (*Report, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	d.progress.start(d.filter)
	defer d.progress.Done.Store(true)

	pool := hashing.NewPool(runCtx, d.cfg.Fs, d.cfg.Algorithm, d.cfg.OnFileError, d.cfg.Workers, d.cfg.QueueDepth)
	submitted := make(chan uint64, 1)
	go func() {
		var n uint64
		defer func() {
			pool.Close()
			submitted <- n
		}()
		for b := range batches {
			if err := pool.Submit(runCtx, b); err != nil {
				return
			}
			n++
			d.progress.BatchesSubmitted.Add(1)
		}
	}()

	report := &Report{Duplicates: []Duplicate{}}
	var merged uint64
	var fatal error
	for res := range pool.Results() {
		if runCtx.Err() != nil {
			// left to drain, counted as unfinished
			continue
		}
		merged++
		d.progress.BatchesMerged.Add(1)
		if res.Err != nil {
			d.fail(report, res.BatchID, res.Err)
			if d.cfg.OnFileError == hashing.PolicyAbortRun && !report.Aborted {
				report.Aborted = true
				st.Logger.Warn().Str("batch", res.BatchID).Msg("stopping run after batch failure")
				cancel(ErrRunAborted)
			}
			continue
		}
		if err := d.merge(runCtx, report, &res); err != nil {
			// the index is unusable, nothing later can be confirmed
			d.fail(report, res.BatchID, err)
			fatal = err
			cancel(err)
			continue
		}
		prom.BatchesMerged.WithLabelValues("ok").Inc()
	}
	report.Unfinished = <-submitted - merged

	if ctx.Err() != nil {
		report.Cancelled = true
		st.Logger.Warn().Uint64("merged", merged).Uint64("unfinished", report.Unfinished).Msg("run cancelled, report is partial")
		return report, ctx.Err()
	}
	if fatal != nil {
		return report, fatal
	}
	if !report.Complete() {
		st.Logger.Warn().Err(report.Err()).Msg("run finished with an incomplete report")
	}
	return report, nil
}

func (d *Detector) fail(report *Report, batchID string, err error) {
	st.Logger.Error().Str("batch", batchID).Err(err).Msg("batch failed, its files were not merged")
	report.FailedBatches = append(report.FailedBatches, FailedBatch{BatchID: batchID, Reason: err.Error(), Err: err})
	d.progress.BatchesFailed.Add(1)
	prom.BatchesMerged.WithLabelValues("failed").Inc()
	logSkipped(batchID, "", err.Error())
}

// merge applies one batch to the filter. It must only be called from the Run loop.
func (d *Detector) merge(ctx context.Context, report *Report, res *hashing.BatchResult) error {
	report.Stats.Batches++
	report.Stats.Bytes += res.Bytes
	d.progress.BytesHashed.Add(res.Bytes)
	for _, skipped := range res.Skipped {
		report.Skipped = append(report.Skipped, skipped)
		d.progress.FilesSkipped.Add(1)
		logSkipped(res.BatchID, skipped.Path, skipped.Reason)
	}

	for _, entry := range res.Entries {
		report.Stats.Files++
		d.progress.FilesHashed.Add(1)
		if !d.filter.Contains(entry.Digest) {
			d.filter.Add(entry.Digest)
			if d.index != nil {
				if err := d.index.Put(ctx, entry.Digest, entry.Path); err != nil {
					return fmt.Errorf("index put for %s: %w", entry.Path, err)
				}
			}
			continue
		}

		dup := Duplicate{Path: entry.Path, Digest: entry.Digest.String(), BatchID: res.BatchID}
		if d.cfg.Confirm != ConfirmNone {
			original, ok, err := d.index.Get(ctx, entry.Digest)
			if err != nil {
				return fmt.Errorf("index get for %s: %w", entry.Path, err)
			}
			if !ok {
				// bloom false positive or an evicted original
				prom.IndexMisses.Inc()
				d.progress.Unconfirmed.Add(1)
				report.Unconfirmed = append(report.Unconfirmed, entry.Path)
				if err := d.index.Put(ctx, entry.Digest, entry.Path); err != nil {
					return fmt.Errorf("index put for %s: %w", entry.Path, err)
				}
				continue
			}
			if d.cfg.Confirm == ConfirmBytes {
				same, err := d.sameBytes(original, entry.Path)
				if err != nil {
					st.Logger.Warn().Str("path", entry.Path).Str("original", original).Err(err).Msg("byte comparison failed")
					report.Skipped = append(report.Skipped, hashing.SkippedFile{Path: entry.Path, Reason: err.Error()})
					d.progress.FilesSkipped.Add(1)
					logSkipped(res.BatchID, entry.Path, err.Error())
					continue
				}
				if !same {
					st.Logger.Warn().Str("path", entry.Path).Str("original", original).Str("digest", dup.Digest).Msg("digest collision")
					prom.DigestCollisions.Inc()
					d.progress.Collisions.Add(1)
					report.Collisions = append(report.Collisions, Collision{Path: entry.Path, Original: original, Digest: dup.Digest})
					continue
				}
			}
			dup.Original = original
			dup.Confirmed = true
		}

		report.Duplicates = append(report.Duplicates, dup)
		d.progress.Duplicates.Add(1)
		prom.Duplicates.WithLabelValues(strconv.FormatBool(dup.Confirmed)).Inc()
		if d.sink != nil {
			if err := d.sink.Emit(ctx, dup); err != nil {
				report.SinkErrors++
				st.Logger.Error().Str("path", dup.Path).Err(err).Msg("could not emit duplicate")
			}
		}
	}
	return nil
}

// sameBytes streams both files side by side without loading either.
func (d *Detector) sameBytes(a, b string) (bool, error) {
	fa, err := d.cfg.Fs.Open(a)
	if err != nil {
		return false, &hashing.FileAccessError{Path: a, Op: "open", Err: err}
	}
	defer fa.Close()
	fb, err := d.cfg.Fs.Open(b)
	if err != nil {
		return false, &hashing.FileAccessError{Path: b, Op: "open", Err: err}
	}
	defer fb.Close()
	return readercomp.Equal(fa, fb, hashing.BYTE_BUFFER_SIZE)
}

type skippedLogLine struct {
	Batch  string `json:"batch"`
	Path   string `json:"path,omitempty"`
	Reason string `json:"reason"`
}

func logSkipped(batchID, path, reason string) {
	if st.ChLogSkipped == nil {
		return
	}
	line, err := json.Marshal(skippedLogLine{Batch: batchID, Path: path, Reason: reason})
	if err != nil {
		return
	}
	st.ChLogSkipped <- line
}
