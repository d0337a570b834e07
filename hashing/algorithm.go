package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names a content digest with a fixed output width.
type Algorithm string

const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA256     Algorithm = "sha256"
	SHA512     Algorithm = "sha512"
	Blake2b256 Algorithm = "blake2b-256"
)

func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	switch a {
	case MD5, SHA1, SHA256, SHA512, Blake2b256:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown digest algorithm '%s'", st.ErrConfiguration, name)
}

func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case SHA256:
		return sha256.New()
	case SHA512:
		return sha512.New()
	case Blake2b256:
		// only fails for oversized keys
		h, err := blake2b.New256(nil)
		if err != nil {
			panic(err)
		}
		return h
	default:
		return md5.New()
	}
}

// Size is the digest width in bytes.
func (a Algorithm) Size() int {
	switch a {
	case SHA1:
		return sha1.Size
	case SHA256:
		return sha256.Size
	case SHA512:
		return sha512.Size
	case Blake2b256:
		return blake2b.Size256
	default:
		return md5.Size
	}
}
