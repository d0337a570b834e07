package hashing

import (
	"context"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/spf13/afero"
)

const BYTE_BUFFER_SIZE = 1024 * 10

// Digest is the fixed width output of an Algorithm.
type Digest []byte

func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// FileAccessError is raised when a file vanishes, is unreadable, or a read fails mid stream.
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Hasher allows for processing a stream of data rather than a file from disk
type Hasher struct {
	algo Algorithm
	size uint64
	h    hash.Hash
}

func NewHasher(algo Algorithm) *Hasher {
	return &Hasher{algo: algo, h: algo.New()}
}

func (h *Hasher) Write(buf []byte) error {
	written, err := h.h.Write(buf)
	h.size += uint64(written)
	if err != nil {
		return fmt.Errorf("failed to calculate the %s hash with error %s", h.algo, err.Error())
	}
	return nil
}

// Size is the number of bytes written so far.
func (h *Hasher) Size() uint64 {
	return h.size
}

func (h *Hasher) Cook() Digest {
	return Digest(h.h.Sum(nil))
}

// HashFile streams one file through algo. The file is always closed before returning.
func HashFile(ctx context.Context, fs afero.Fs, filepath string, algo Algorithm) (Digest, uint64, error) {
	return hashFilePath(ctx, fs, filepath, algo, make([]byte, BYTE_BUFFER_SIZE))
}

// hashFilePath reuses buf so a worker allocates one read buffer for its whole batch.
func hashFilePath(ctx context.Context, fs afero.Fs, filepath string, algo Algorithm, buf []byte) (Digest, uint64, error) {
	h := NewHasher(algo)
	fileHandler, err := fs.Open(filepath)
	if err != nil {
		return nil, 0, &FileAccessError{Path: filepath, Op: "open", Err: err}
	}
	defer fileHandler.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		readBytes, err := fileHandler.Read(buf)
		if readBytes > 0 {
			if werr := h.Write(buf[:readBytes]); werr != nil {
				return nil, 0, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, &FileAccessError{Path: filepath, Op: "read", Err: err}
		}
	}
	return h.Cook(), h.Size(), nil
}
