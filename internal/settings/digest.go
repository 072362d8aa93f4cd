package settings

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Digest returns a content hash of s, used to compare a SETTINGS_COMMIT
// payload against the last value a worker approved in SETTINGS_CHECK
// without requiring the comparison to walk the (unbounded) Values map on
// every commit. Map iteration order is unspecified in Go, so keys are
// sorted before hashing to make the digest deterministic.
func Digest(s Settings) [32]byte {
	keys := make([]string, 0, len(s.Values))
	for k := range s.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	buf = append(buf, fmt.Sprintf("v%d|", s.Version)...)
	for _, k := range keys {
		buf = append(buf, fmt.Sprintf("%s=%s|", k, s.Values[k])...)
	}
	return blake2b.Sum256(buf)
}

// SameDigest reports whether a and b hash identically.
func SameDigest(a, b Settings) bool {
	return Digest(a) == Digest(b)
}
