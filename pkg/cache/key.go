package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint derives a deterministic cache key from the semantic content of
// a request: the normalized query text plus a stable serialization of the
// request parameters. Two semantically identical requests (differing only in
// surrounding whitespace or letter case) yield the same fingerprint, which is
// what gives the cache a useful hit rate.
func Fingerprint(query string, params map[string]string) string {
	parts := []string{NormalizeQuery(query)}

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			parts = append(parts, k+"="+params[k])
		}
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return "rv:" + hex.EncodeToString(sum[:])
}

// NormalizeQuery trims, case-folds, and collapses inner whitespace so that
// trivial formatting differences do not fragment the cache.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
