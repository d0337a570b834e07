package sink

import (
	"context"
	"fmt"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/goccy/go-json"
	"github.com/google/renameio"
)

// JSONSink streams json lines into a hidden temporary file that replaces path on Close.
// Readers of path see either the previous report or the whole new one.
type JSONSink struct {
	path    string
	pending *renameio.PendingFile
	enc     *json.Encoder
	written int
}

func NewJSONSink(path string) (*JSONSink, error) {
	pending, err := renameio.TempFile("", path)
	if err != nil {
		return nil, fmt.Errorf("could not create report file for %s: %w", path, err)
	}
	return &JSONSink{path: path, pending: pending, enc: json.NewEncoder(pending)}, nil
}

func (s *JSONSink) Emit(ctx context.Context, dup detect.Duplicate) error {
	if err := s.enc.Encode(dup); err != nil {
		prom.SinkErrors.WithLabelValues("json").Inc()
		return err
	}
	s.written++
	prom.SinkEmitted.WithLabelValues("json").Inc()
	return nil
}

// Abort discards everything written so the previous report, if any, is left alone.
func (s *JSONSink) Abort() error {
	return s.pending.Cleanup()
}

func (s *JSONSink) Close() error {
	if err := s.pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("could not replace %s: %w", s.path, err)
	}
	st.Logger.Info().Str("path", s.path).Int("duplicates", s.written).Msg("wrote json report")
	return nil
}
