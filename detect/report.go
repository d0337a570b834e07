package detect

import (
	"context"
	"errors"
	"fmt"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/hashing"
)

// Duplicate is a file whose digest was already present when its batch was merged.
type Duplicate struct {
	Path string `json:"path"`
	// first path seen with the same digest, empty when unconfirmed
	Original  string `json:"original,omitempty"`
	Digest    string `json:"digest"`
	Confirmed bool   `json:"confirmed"`
	BatchID   string `json:"batch_id"`
}

// Collision is a pair of files with equal digests but different bytes.
type Collision struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	Digest   string `json:"digest"`
}

// BatchError is a batch that produced no digests.
type BatchError struct {
	BatchID string
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %s failed: %v", e.BatchID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type FailedBatch struct {
	BatchID string `json:"batch_id"`
	Reason  string `json:"reason"`
	Err     error  `json:"-"`
}

type Stats struct {
	Batches uint64 `json:"batches"`
	Files   uint64 `json:"files"`
	Bytes   uint64 `json:"bytes"`
}

// Report is everything a run found. It is only written by the merge loop.
type Report struct {
	// in the order they were merged
	Duplicates []Duplicate `json:"duplicates"`
	// filter hits the index could not confirm
	Unconfirmed   []string              `json:"unconfirmed,omitempty"`
	Collisions    []Collision           `json:"collisions,omitempty"`
	Skipped       []hashing.SkippedFile `json:"skipped,omitempty"`
	FailedBatches []FailedBatch         `json:"failed_batches,omitempty"`
	// batches submitted but never merged
	Unfinished uint64 `json:"unfinished"`
	// set when a failed batch stopped the run, batches never submitted are not counted anywhere
	Aborted    bool   `json:"aborted"`
	Cancelled  bool   `json:"cancelled"`
	SinkErrors uint64 `json:"sink_errors"`
	Stats      Stats  `json:"stats"`
}

// Paths is the duplicate list in discovery order.
func (r *Report) Paths() []string {
	out := make([]string, len(r.Duplicates))
	for i, d := range r.Duplicates {
		out[i] = d.Path
	}
	return out
}

// Complete is true only when every submitted batch was merged and every duplicate reached the sink.
// Skipped files do not make a report incomplete, they are listed.
func (r *Report) Complete() bool {
	return len(r.FailedBatches) == 0 && r.Unfinished == 0 && !r.Aborted && !r.Cancelled && r.SinkErrors == 0
}

// Err summarises why the report is incomplete, nil when it is complete.
func (r *Report) Err() error {
	var errs []error
	for _, fb := range r.FailedBatches {
		errs = append(errs, &BatchError{BatchID: fb.BatchID, Err: fb.Err})
	}
	if r.Unfinished > 0 {
		errs = append(errs, fmt.Errorf("%d batches were never merged", r.Unfinished))
	}
	if r.Aborted {
		errs = append(errs, ErrRunAborted)
	}
	if r.SinkErrors > 0 {
		errs = append(errs, fmt.Errorf("%d duplicates could not be written to the sink", r.SinkErrors))
	}
	if r.Cancelled {
		errs = append(errs, context.Canceled)
	}
	return errors.Join(errs...)
}
