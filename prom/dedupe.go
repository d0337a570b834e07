package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BloomLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_bloom_lookups_total",
		Help: "The total number of bloom filter membership checks",
	})
	BloomHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_bloom_hits_total",
		Help: "The total number of bloom filter checks where every probed bit was set",
	})
	BloomAdds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_bloom_adds_total",
		Help: "The total number of digests added to the bloom filter",
	})
	BloomSaturation = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dupescan_bloom_saturation_ratio",
		Help: "Fraction of bloom filter bits currently set",
	})
	IndexMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_index_misses_total",
		Help: "Bloom filter hits with no matching digest in the confirmation index",
	})
	DigestCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_digest_collisions_total",
		Help: "Files with a matching digest but different bytes",
	})
	Duplicates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_duplicates_total",
		Help: "The total number of files reported as duplicates",
	}, []string{"confirmed"})
)
