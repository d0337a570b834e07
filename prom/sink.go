package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SinkEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_sink_emitted_total",
		Help: "Duplicates written to each output sink",
	}, []string{"sink"})
	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_sink_errors_total",
		Help: "Duplicates an output sink failed to write",
	}, []string{"sink"})
	KafkaTransmitMessageBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dupescan_kafka_transmit_bytes_total",
		Help: "Bytes of duplicate records published to kafka",
	}, []string{"topic"})
)
