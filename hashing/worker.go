package hashing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/spf13/afero"
)

// ErrorPolicy decides what a file access error does to the batch it occurs in.
type ErrorPolicy string

const (
	// record the file as skipped and keep hashing the rest of the batch
	PolicySkip ErrorPolicy = "skip"
	// drop the whole batch, the run carries on
	PolicyAbortBatch ErrorPolicy = "abort_batch"
	// drop the batch and stop the run
	PolicyAbortRun ErrorPolicy = "abort_run"
)

func ParseErrorPolicy(name string) (ErrorPolicy, error) {
	p := ErrorPolicy(strings.ToLower(strings.TrimSpace(name)))
	switch p {
	case PolicySkip, PolicyAbortBatch, PolicyAbortRun:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown file error policy '%s'", st.ErrConfiguration, name)
}

// DigestEntry is the digest of one successfully hashed file.
type DigestEntry struct {
	Path   string
	Digest Digest
}

// SkippedFile is a file left out of the results under PolicySkip.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// BatchResult is produced once per batch and never modified after it is handed over.
type BatchResult struct {
	BatchID string
	Entries []DigestEntry
	Skipped []SkippedFile
	// bytes actually read, may differ from the enumerated size on a live filesystem
	Bytes uint64
	// set when the batch failed or was cancelled, Entries is then empty
	Err error
}

// Cancelled is true when the batch was interrupted rather than failed.
func (r *BatchResult) Cancelled() bool {
	return errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded)
}

// HashBatch digests every file in b. File errors are handled according to policy.
func HashBatch(ctx context.Context, fs afero.Fs, b batch.Batch, algo Algorithm, policy ErrorPolicy) BatchResult {
	start := time.Now()
	res := BatchResult{BatchID: b.ID, Entries: make([]DigestEntry, 0, len(b.Paths))}
	buf := make([]byte, BYTE_BUFFER_SIZE)

	for _, path := range b.Paths {
		digest, size, err := hashFilePath(ctx, fs, path, algo, buf)
		if err != nil {
			if ctx.Err() != nil {
				res.Entries = nil
				res.Err = ctx.Err()
				return res
			}
			prom.FileErrors.WithLabelValues(string(policy)).Inc()
			if policy == PolicySkip {
				st.Logger.Warn().Str("batch", b.ID).Str("path", path).Err(err).Msg("skipping file that could not be hashed")
				res.Skipped = append(res.Skipped, SkippedFile{Path: path, Reason: err.Error()})
				continue
			}
			st.Logger.Error().Str("batch", b.ID).Str("path", path).Str("policy", string(policy)).Err(err).Msg("aborting batch on file error")
			res.Entries = nil
			res.Err = err
			return res
		}
		res.Entries = append(res.Entries, DigestEntry{Path: path, Digest: digest})
		res.Bytes += size
		prom.FilesHashed.Inc()
		prom.BytesHashed.Add(float64(size))
	}
	prom.BatchDuration.Observe(time.Since(start).Seconds())
	return res
}
