package dedupe

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/stretchr/testify/require"
)

var result bool

func TestNewRejectsBadConfig(t *testing.T) {
	tables := []struct {
		test     string
		capacity uint64
		rate     float64
	}{
		{"zero capacity", 0, 0.01},
		{"negative rate", 100, -0.1},
		{"rate of one", 100, 1},
		{"rate above one", 100, 1.5},
	}
	for _, table := range tables {
		f, err := New(table.capacity, table.rate)
		require.Nil(t, f, table.test)
		require.True(t, errors.Is(err, st.ErrConfiguration), table.test)
	}
}

func TestSizing(t *testing.T) {
	f, err := New(1000, 0.01)
	require.Nil(t, err)
	require.Equal(t, uint64(9586), f.Bits())
	require.Equal(t, uint64(7), f.HashCount())
	require.Len(t, f.words, 150)

	// default rate is 1/n
	f, err = New(1000, 0)
	require.Nil(t, err)
	require.Equal(t, 0.001, f.Rate())
	require.Equal(t, uint64(14378), f.Bits())
	require.Equal(t, uint64(10), f.HashCount())

	// smallest possible filter still works
	f, err = New(1, 0)
	require.Nil(t, err)
	require.GreaterOrEqual(t, f.Bits(), uint64(1))
	require.GreaterOrEqual(t, f.HashCount(), uint64(1))
	f.Add([]byte("only"))
	require.True(t, f.Contains([]byte("only")))
}

func TestNoFalseNegatives(t *testing.T) {
	f, err := New(500, 0.05)
	require.Nil(t, err)
	rng := rand.New(rand.NewSource(1))
	added := [][]byte{}
	// go well past capacity, bits only ever turn on
	for i := 0; i < 2000; i++ {
		item := make([]byte, 16)
		rng.Read(item)
		f.Add(item)
		added = append(added, item)
		require.True(t, f.Contains(item), "just added %x", item)
	}
	for _, item := range added {
		require.True(t, f.Contains(item), "lost %x", item)
	}
}

func TestAddIsIdempotent(t *testing.T) {
	f, err := New(100, 0.01)
	require.Nil(t, err)
	require.False(t, f.Contains([]byte("aaaaaa")))
	f.Add([]byte("aaaaaa"))
	bits := f.setBits.Load()
	truth := f.Truthiness()
	f.Add([]byte("aaaaaa"))
	require.Equal(t, bits, f.setBits.Load())
	require.Equal(t, truth, f.Truthiness())
	require.Equal(t, uint64(1), f.Count())
	require.True(t, f.Contains([]byte("aaaaaa")))
	require.False(t, f.Contains([]byte("bbbbbb")))
}

func TestTruthiness(t *testing.T) {
	f, err := New(1000, 0.01)
	require.Nil(t, err)
	require.Equal(t, 0.0, f.Truthiness())
	f.Add([]byte("one"))
	require.InDelta(t, float64(f.HashCount())/float64(f.Bits()), f.Truthiness(), 0.0005)
	// a filter filled to capacity sits close to half its bits set
	for i := 0; i < 1000; i++ {
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(i))
		f.Add(buf)
	}
	require.InDelta(t, 0.5, f.Truthiness(), 0.05)
	require.InDelta(t, 0.01, f.EstimatedFalsePositiveRate(), 0.005)
}

func TestFalsePositiveRate(t *testing.T) {
	const n = 10000
	const p = 0.01
	const trials = 5
	rng := rand.New(rand.NewSource(42))
	total := 0.0
	for trial := 0; trial < trials; trial++ {
		f, err := New(n, p)
		require.Nil(t, err)
		// first byte separates inserted from queried so the two sets never overlap
		for i := 0; i < n; i++ {
			item := make([]byte, 17)
			rng.Read(item)
			item[0] = 'a'
			f.Add(item)
		}
		falsePositives := 0
		for i := 0; i < n; i++ {
			item := make([]byte, 17)
			rng.Read(item)
			item[0] = 'q'
			if f.Contains(item) {
				falsePositives++
			}
		}
		rate := float64(falsePositives) / n
		require.Less(t, rate, 2*p, "trial %d", trial)
		total += rate
	}
	require.InDelta(t, p, total/trials, p/2)
}

func BenchmarkContains(b *testing.B) {
	f, _ := New(100000, 0.001)
	var seed [1000][]byte
	for i := 0; i < len(seed); i++ {
		seed[i] = make([]byte, 16)
		rand.Read(seed[i])
		f.Add(seed[i])
	}
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		val := seed[rand.Intn(len(seed))]
		result = f.Contains(val)
	}
}
