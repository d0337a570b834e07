package detect

import (
	"sync/atomic"
	"time"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/dedupe"
)

// Progress holds live counters for a run.
// Only the feeder and merge loop write, the status api reads without locks.
type Progress struct {
	started          atomic.Int64
	BatchesSubmitted atomic.Uint64
	BatchesMerged    atomic.Uint64
	BatchesFailed    atomic.Uint64
	FilesHashed      atomic.Uint64
	BytesHashed      atomic.Uint64
	FilesSkipped     atomic.Uint64
	Duplicates       atomic.Uint64
	Unconfirmed      atomic.Uint64
	Collisions       atomic.Uint64
	Done             atomic.Bool
	filter           atomic.Pointer[dedupe.Filter]
}

type ProgressSnapshot struct {
	StartedAt        string  `json:"started_at,omitempty"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	BatchesSubmitted uint64  `json:"batches_submitted"`
	BatchesMerged    uint64  `json:"batches_merged"`
	BatchesFailed    uint64  `json:"batches_failed"`
	FilesHashed      uint64  `json:"files_hashed"`
	BytesHashed      uint64  `json:"bytes_hashed"`
	FilesSkipped     uint64  `json:"files_skipped"`
	Duplicates       uint64  `json:"duplicates"`
	Unconfirmed      uint64  `json:"unconfirmed"`
	Collisions       uint64  `json:"collisions"`
	Done             bool    `json:"done"`
	FilterBits       uint64  `json:"filter_bits"`
	FilterHashes     uint64  `json:"filter_hashes"`
	FilterItems      uint64  `json:"filter_items"`
	FilterSaturation float64 `json:"filter_saturation"`
	FilterFPRate     float64 `json:"filter_estimated_fp_rate"`
}

func (p *Progress) start(f *dedupe.Filter) {
	p.started.Store(time.Now().UnixNano())
	p.filter.Store(f)
}

// Snapshot reads every counter once. Counters are read independently so totals may be
// a batch apart while a run is active.
func (p *Progress) Snapshot() ProgressSnapshot {
	s := ProgressSnapshot{
		BatchesSubmitted: p.BatchesSubmitted.Load(),
		BatchesMerged:    p.BatchesMerged.Load(),
		BatchesFailed:    p.BatchesFailed.Load(),
		FilesHashed:      p.FilesHashed.Load(),
		BytesHashed:      p.BytesHashed.Load(),
		FilesSkipped:     p.FilesSkipped.Load(),
		Duplicates:       p.Duplicates.Load(),
		Unconfirmed:      p.Unconfirmed.Load(),
		Collisions:       p.Collisions.Load(),
		Done:             p.Done.Load(),
	}
	if started := p.started.Load(); started > 0 {
		t := time.Unix(0, started)
		s.StartedAt = t.UTC().Format(time.RFC3339)
		s.ElapsedSeconds = time.Since(t).Seconds()
	}
	if f := p.filter.Load(); f != nil {
		s.FilterBits = f.Bits()
		s.FilterHashes = f.HashCount()
		s.FilterItems = f.Count()
		s.FilterSaturation = f.Truthiness()
		s.FilterFPRate = f.EstimatedFalsePositiveRate()
	}
	return s
}
