package sink

import (
	"context"
	"errors"
	"io"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
)

// Multi hands every duplicate to each sink. One failing sink does not stop the others.
type Multi []detect.Sink

func (m Multi) Emit(ctx context.Context, dup detect.Duplicate) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, dup); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Abort discards pending output of any sink that supports it and closes the rest.
func (m Multi) Abort() error {
	var errs []error
	for _, s := range m {
		if a, ok := s.(interface{ Abort() error }); ok {
			errs = append(errs, a.Abort())
			continue
		}
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// FromSettings builds the text sink on w plus any json or kafka sink enabled in cfg.
func FromSettings(w io.Writer, cfg *st.DSSink) (Multi, error) {
	sinks := Multi{}
	if w != nil {
		sinks = append(sinks, NewTextSink(w))
	}
	if len(cfg.JSONPath) > 0 {
		js, err := NewJSONSink(cfg.JSONPath)
		if err != nil {
			return nil, errors.Join(err, sinks.Close())
		}
		sinks = append(sinks, js)
	}
	if len(cfg.Kafka.Endpoint) > 0 {
		ks, err := NewKafkaSink(&cfg.Kafka)
		if err != nil {
			return nil, errors.Join(err, sinks.Abort())
		}
		sinks = append(sinks, ks)
	}
	return sinks, nil
}
