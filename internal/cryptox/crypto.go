// Package cryptox produces and checks the per-device authorship signatures
// attached to sightings.
//
// A signature is a random hex token kept only on the device that created the
// sighting. The server never stores the token itself, only its BLAKE2b-256
// digest, so listing sightings does not leak edit rights.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/dmitrijs2005/birdwatch/internal/common"
	"golang.org/x/crypto/blake2b"
)

// MakeRandHexString returns size random bytes, hex encoded (2*size chars).
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewSignature returns a fresh device signature.
func NewSignature() (string, error) {
	return MakeRandHexString(common.SignatureSize)
}

// Digest returns the hex BLAKE2b-256 digest of a signature.
func Digest(signature string) string {
	sum := blake2b.Sum256([]byte(signature))
	return hex.EncodeToString(sum[:])
}

// MatchAny reports whether any of signatures hashes to digest.
// Empty signatures never match.
func MatchAny(digest string, signatures []string) bool {
	want := []byte(digest)
	for _, s := range signatures {
		if s == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(Digest(s)), want) == 1 {
			return true
		}
	}
	return false
}
