package sink

import (
	"context"
	"fmt"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
	"github.com/rcrowley/go-metrics"
)

// KafkaSink publishes every duplicate as a json record keyed by digest,
// so all copies of the same content land on one partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func newProducerConfig(cfg *st.DSKafka) (*sarama.Config, error) {
	kafkaVersion, err := sarama.ParseKafkaVersion(sarama.V3_0_0_0.String())
	if err != nil {
		return nil, err
	}
	config := sarama.NewConfig()
	config.Version = kafkaVersion
	// ensure we can publish larger messages than 1MB default
	config.Producer.MaxMessageBytes = int(cfg.MessageMaxBytes)
	config.MetricRegistry = metrics.DefaultRegistry
	config.Metadata.Full = false
	config.Producer.Compression = sarama.CompressionLZ4
	/*
		NewHashPartitioner uses the FNV-1a hash of the message key modulus the number of partitions.
		Messages with the same key always end up on the same partition.
	*/
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.RequiredAcks = sarama.WaitForAll
	// Provides a name for this kafka connection for logging debugging and auditing.
	config.ClientID = "dupescanSyncProducer"
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	return config, nil
}

func NewKafkaSink(cfg *st.DSKafka) (*KafkaSink, error) {
	if len(cfg.Endpoint) == 0 {
		return nil, fmt.Errorf("%w: no endpoint for kafka", st.ErrConfiguration)
	}
	if len(cfg.Topic) == 0 {
		return nil, fmt.Errorf("%w: no topic for kafka", st.ErrConfiguration)
	}
	config, err := newProducerConfig(cfg)
	if err != nil {
		return nil, err
	}
	producer, err := sarama.NewSyncProducer([]string{cfg.Endpoint}, config)
	if err != nil {
		return nil, err
	}
	st.Logger.Info().Str("bootstrap", cfg.Endpoint).Str("topic", cfg.Topic).Msg("publishing duplicates to kafka")
	return &KafkaSink{producer: producer, topic: cfg.Topic}, nil
}

func (s *KafkaSink) Emit(ctx context.Context, dup detect.Duplicate) error {
	raw, err := json.Marshal(dup)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(dup.Digest),
		Value: sarama.ByteEncoder(raw),
	}
	prom.KafkaTransmitMessageBytes.WithLabelValues(s.topic).Add(float64(len(raw)))
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		prom.SinkErrors.WithLabelValues("kafka").Inc()
		return err
	}
	prom.SinkEmitted.WithLabelValues("kafka").Inc()
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
