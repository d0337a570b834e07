/*
Package sink writes duplicates out as the detector finds them.
*/
package sink

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/detect"
	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/prom"
)

// TextSink prints one duplicate per line for a human reader.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Emit(ctx context.Context, dup detect.Duplicate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if dup.Confirmed {
		_, err = fmt.Fprintf(s.w, "%s\tduplicate of %s\n", dup.Path, dup.Original)
	} else {
		_, err = fmt.Fprintf(s.w, "%s\tprobable duplicate\n", dup.Path)
	}
	if err != nil {
		prom.SinkErrors.WithLabelValues("text").Inc()
		return err
	}
	prom.SinkEmitted.WithLabelValues("text").Inc()
	return nil
}

func (s *TextSink) Close() error {
	return nil
}
