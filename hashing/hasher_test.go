package hashing

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/AustralianCyberSecurityCentre/azul-dupescan.git/batch"
	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	tables := []struct {
		in       string
		expected Algorithm
	}{
		{"md5", MD5},
		{"MD5", MD5},
		{" sha256 ", SHA256},
		{"sha1", SHA1},
		{"sha512", SHA512},
		{"blake2b-256", Blake2b256},
	}
	for _, table := range tables {
		a, err := ParseAlgorithm(table.in)
		require.Nil(t, err, table.in)
		require.Equal(t, table.expected, a)
		require.Equal(t, a.Size(), a.New().Size(), table.in)
	}
	_, err := ParseAlgorithm("crc32")
	require.True(t, errors.Is(err, st.ErrConfiguration))
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/hello", []byte("hello"), 0o644))

	tables := []struct {
		algo     Algorithm
		expected string
	}{
		{MD5, "5d41402abc4b2a76b9719d911017c592"},
		{SHA1, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
		{SHA256, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"},
	}
	for _, table := range tables {
		digest, size, err := HashFile(context.Background(), fs, "/hello", table.algo)
		require.Nil(t, err)
		require.Equal(t, uint64(5), size)
		require.Equal(t, table.expected, digest.String(), string(table.algo))
	}
}

func TestHashFileLargerThanBuffer(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := strings.Repeat("abcdefghij", BYTE_BUFFER_SIZE/4)
	require.Nil(t, afero.WriteFile(fs, "/big", []byte(data), 0o644))

	h := NewHasher(SHA256)
	require.Nil(t, h.Write([]byte(data)))
	expected := h.Cook()

	digest, size, err := HashFile(context.Background(), fs, "/big", SHA256)
	require.Nil(t, err)
	require.Equal(t, uint64(len(data)), size)
	require.Equal(t, expected, digest)
}

func TestHashFileMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, _, err := HashFile(context.Background(), fs, "/nope", MD5)
	var accessErr *FileAccessError
	require.True(t, errors.As(err, &accessErr))
	require.Equal(t, "/nope", accessErr.Path)
	require.Equal(t, "open", accessErr.Op)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestHashFileCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/hello", []byte("hello"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := HashFile(ctx, fs, "/hello", MD5)
	require.ErrorIs(t, err, context.Canceled)
}

var errMedium = errors.New("input/output error")

// flakyFs serves files whose reads fail once the first buffer has been returned.
type flakyFs struct {
	afero.Fs
}

type flakyFile struct {
	afero.File
	reads int
}

func (f *flakyFs) Open(name string) (afero.File, error) {
	file, err := f.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	return &flakyFile{File: file}, nil
}

func (f *flakyFile) Read(p []byte) (int, error) {
	f.reads++
	if f.reads > 1 {
		return 0, errMedium
	}
	return f.File.Read(p)
}

func TestHashFileReadFails(t *testing.T) {
	mem := afero.NewMemMapFs()
	data := strings.Repeat("x", BYTE_BUFFER_SIZE*3)
	require.Nil(t, afero.WriteFile(mem, "/big", []byte(data), 0o644))
	fs := &flakyFs{Fs: mem}

	digest, size, err := HashFile(context.Background(), fs, "/big", SHA256)
	require.Nil(t, digest)
	require.Equal(t, uint64(0), size)
	var accessErr *FileAccessError
	require.True(t, errors.As(err, &accessErr))
	require.Equal(t, "/big", accessErr.Path)
	require.Equal(t, "read", accessErr.Op)
	require.ErrorIs(t, err, errMedium)

	res := HashBatch(context.Background(), fs, batch.Batch{ID: "b", Paths: []string{"/big"}}, SHA256, PolicySkip)
	require.Nil(t, res.Err)
	require.Empty(t, res.Entries)
	require.Len(t, res.Skipped, 1)
	require.Contains(t, res.Skipped[0].Reason, "input/output error")
}

func TestHashFileIgnoresPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := strings.Repeat("same bytes ", 3000)
	require.Nil(t, afero.WriteFile(fs, "/a/one.bin", []byte(data), 0o644))
	require.Nil(t, afero.WriteFile(fs, "/elsewhere/deeper/two.txt", []byte(data), 0o600))
	require.Nil(t, afero.WriteFile(fs, "/a/three", []byte(data+"!"), 0o644))

	for _, algo := range []Algorithm{MD5, SHA1, SHA256, SHA512, Blake2b256} {
		one, _, err := HashFile(context.Background(), fs, "/a/one.bin", algo)
		require.Nil(t, err)
		two, _, err := HashFile(context.Background(), fs, "/elsewhere/deeper/two.txt", algo)
		require.Nil(t, err)
		three, _, err := HashFile(context.Background(), fs, "/a/three", algo)
		require.Nil(t, err)
		require.Equal(t, one, two, string(algo))
		require.NotEqual(t, one, three, string(algo))
		require.Len(t, one, algo.Size())
	}
}
