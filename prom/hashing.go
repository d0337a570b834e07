package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesHashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_files_hashed_total",
		Help: "The total number of files fully hashed",
	})
	BytesHashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dupescan_hashed_bytes_total",
		Help: "The total number of bytes read while hashing",
	})
	FileErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_file_errors_total",
		Help: "Files that could not be opened or read during hashing",
	}, []string{"policy"})
	BatchesMerged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_batches_total",
		Help: "Batches consumed by the merge loop by outcome",
	}, []string{"result"})
	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dupescan_batch_hash_seconds",
		Help:    "Wall time taken to hash one batch",
		Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	})
)
