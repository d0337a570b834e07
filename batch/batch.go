/*
Package batch groups discovered files into batches of roughly equal byte size.
*/
package batch

import (
	"cmp"
	"fmt"
	"iter"
	"math"
	"slices"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
)

// FileRecord is one regular file found by the enumerator.
type FileRecord struct {
	Path string
	Size uint64
}

// Batch is a group of files hashed together by a single worker.
// Batches are plain values and are never modified after creation.
type Batch struct {
	ID    string
	Paths []string
	// sum of the source sizes of Paths
	Bytes uint64
}

// Generator lazily slices a stream of records into batches.
type Generator struct {
	maxBatchBytes float64
}

// NewGenerator returns a Generator closing a batch once its files add up to maxBatchBytes.
func NewGenerator(maxBatchBytes float64) (*Generator, error) {
	if math.IsNaN(maxBatchBytes) || math.IsInf(maxBatchBytes, 0) || maxBatchBytes <= 0 {
		return nil, fmt.Errorf("%w: max batch bytes must be a positive number, got %v", st.ErrConfiguration, maxBatchBytes)
	}
	return &Generator{maxBatchBytes: maxBatchBytes}, nil
}

// Batches yields batches as records are pulled from the source.
// Every batch but the last holds at least maxBatchBytes. Ranging again replays the source.
func (g *Generator) Batches(records iter.Seq[FileRecord]) iter.Seq[Batch] {
	return func(yield func(Batch) bool) {
		seq := 0
		var paths []string
		var total uint64
		emit := func() bool {
			seq++
			b := Batch{ID: fmt.Sprintf("batch-%06d", seq), Paths: paths, Bytes: total}
			st.Logger.Debug().Str("batch", b.ID).Int("files", len(b.Paths)).Uint64("bytes", b.Bytes).Msg("batch ready")
			paths, total = nil, 0
			return yield(b)
		}
		for rec := range records {
			paths = append(paths, rec.Path)
			total += rec.Size
			if float64(total) >= g.maxBatchBytes {
				if !emit() {
					return
				}
			}
		}
		if len(paths) > 0 {
			emit()
		}
	}
}

// SortBySize orders records smallest first so small files share batches and large ones sit apart.
func SortBySize(records []FileRecord) {
	slices.SortFunc(records, func(a, b FileRecord) int {
		if c := cmp.Compare(a.Size, b.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
}
