package dedupe

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/cespare/xxhash/v2"
)

// seed for the second of the two base hashes
const secondarySeed uint64 = 0x9e3779b97f4a7c15

// Filter is a fixed size bloom filter over byte strings.
type Filter struct {
	words    []uint64
	m        uint64
	k        uint64
	capacity uint64
	rate     float64
	// read by the status api while the merge loop writes
	setBits atomic.Uint64
	count   atomic.Uint64
}

// New returns a Filter sized for capacity items at the given false positive rate.
// A rate of 0 selects 1/capacity.
func New(capacity uint64, rate float64) (*Filter, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("%w: bloom capacity must be greater than 0", st.ErrConfiguration)
	}
	if rate == 0 {
		rate = 1 / float64(capacity)
		if rate >= 1 {
			rate = 0.5
		}
	}
	if math.IsNaN(rate) || rate <= 0 || rate >= 1 {
		return nil, fmt.Errorf("%w: bloom false positive rate must be in (0,1), got %v", st.ErrConfiguration, rate)
	}
	m := optimalBits(capacity, rate)
	k := optimalHashes(capacity, m)
	// prealloc to trigger any mem issues upfront
	words := make([]uint64, (m+63)/64)
	st.Logger.Debug().Uint64("capacity", capacity).Float64("rate", rate).Uint64("bits", m).Uint64("hashes", k).Msg("bloom filter allocated")
	return &Filter{words: words, m: m, k: k, capacity: capacity, rate: rate}, nil
}

// optimalBits is ceil(n*ln(p) / ln(1/2^ln2)), i.e. -n*ln(p)/ln(2)^2.
func optimalBits(n uint64, p float64) uint64 {
	m := math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 1 {
		return 1
	}
	return uint64(m)
}

func optimalHashes(n, m uint64) uint64 {
	k := math.Round(math.Ln2 * float64(m) / float64(n))
	if k < 1 {
		return 1
	}
	return uint64(k)
}

// baseHashes returns the two independent hashes combined to pick bit positions.
func baseHashes(item []byte) (uint64, uint64) {
	primary := xxhash.Sum64(item)
	d := xxhash.NewWithSeed(secondarySeed)
	_, _ = d.Write(item)
	return primary, d.Sum64()
}

// location of the i'th probe, unsigned arithmetic wraps so it is never negative
func (f *Filter) location(primary, secondary, i uint64) (uint64, uint64) {
	index := (primary + i*secondary) % f.m
	return index / 64, uint64(1) << (index % 64)
}

// Add sets the k bits for item. Adding the same item again has no effect.
func (f *Filter) Add(item []byte) {
	prom.BloomAdds.Inc()
	primary, secondary := baseHashes(item)
	var flipped uint64
	for i := uint64(0); i < f.k; i++ {
		word, mask := f.location(primary, secondary, i)
		if f.words[word]&mask == 0 {
			f.words[word] |= mask
			flipped++
		}
	}
	if flipped > 0 {
		f.setBits.Add(flipped)
		f.count.Add(1)
	}
	prom.BloomSaturation.Set(f.Truthiness())
}

// Contains reports whether all k bits for item are set.
// False means item was never added, true means it probably was.
func (f *Filter) Contains(item []byte) bool {
	prom.BloomLookups.Inc()
	primary, secondary := baseHashes(item)
	for i := uint64(0); i < f.k; i++ {
		word, mask := f.location(primary, secondary, i)
		if f.words[word]&mask == 0 {
			return false
		}
	}
	prom.BloomHits.Inc()
	return true
}

// Truthiness is the fraction of bits set, a measure of saturation.
func (f *Filter) Truthiness() float64 {
	return float64(f.setBits.Load()) / float64(f.m)
}

// EstimatedFalsePositiveRate is (1 - e^(-k*n/m))^k for the items added so far.
func (f *Filter) EstimatedFalsePositiveRate() float64 {
	n := float64(f.count.Load())
	k := float64(f.k)
	return math.Pow(1-math.Exp(-k*n/float64(f.m)), k)
}

// Bits is m, the length of the bit vector.
func (f *Filter) Bits() uint64 { return f.m }

// HashCount is k, the number of probes per item.
func (f *Filter) HashCount() uint64 { return f.k }

func (f *Filter) Capacity() uint64 { return f.capacity }

func (f *Filter) Rate() float64 { return f.rate }

// Count is the number of Add calls that changed at least one bit.
// Re-adding an item (or adding a false positive) is not counted.
func (f *Filter) Count() uint64 { return f.count.Load() }
