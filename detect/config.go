package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/hashing"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/spf13/afero"
)

// ConfirmMode decides how a bloom filter hit becomes a reported duplicate.
type ConfirmMode string

const (
	// report every filter hit, accepting the false positive rate
	ConfirmNone ConfirmMode = "none"
	// require the digest to be in the index
	ConfirmDigest ConfirmMode = "digest"
	// require a digest match and identical bytes
	ConfirmBytes ConfirmMode = "bytes"
)

func ParseConfirmMode(name string) (ConfirmMode, error) {
	m := ConfirmMode(strings.ToLower(strings.TrimSpace(name)))
	switch m {
	case ConfirmNone, ConfirmDigest, ConfirmBytes:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown confirm mode '%s'", st.ErrConfiguration, name)
}

// Sink receives each duplicate as soon as it is merged.
type Sink interface {
	Emit(ctx context.Context, dup Duplicate) error
	Close() error
}

type Config struct {
	Fs          afero.Fs
	Algorithm   hashing.Algorithm
	Workers     int
	QueueDepth  int
	OnFileError hashing.ErrorPolicy
	Confirm     ConfirmMode
}

// ConfigFromSettings reads the hashing and confirm settings, validating every name.
func ConfigFromSettings(fs afero.Fs) (Config, error) {
	algo, err := hashing.ParseAlgorithm(st.Hashing.Algorithm)
	if err != nil {
		return Config{}, err
	}
	policy, err := hashing.ParseErrorPolicy(st.Hashing.OnFileError)
	if err != nil {
		return Config{}, err
	}
	confirm, err := ParseConfirmMode(st.Settings.Confirm)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Fs:          fs,
		Algorithm:   algo,
		Workers:     st.Hashing.Workers,
		QueueDepth:  st.Hashing.QueueDepth,
		OnFileError: policy,
		Confirm:     confirm,
	}, nil
}
