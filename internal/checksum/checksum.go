package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Sum returns the hex-encoded SHA-256 of data.
func Sum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// SumString returns the hex-encoded SHA-256 of s.
func SumString(s string) string {
	return Sum([]byte(s))
}

// SumReader hashes everything read from r.
func SumReader(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Matcher compares content against a previously recorded checksum. Uploads use
// it to recognise a byte-identical resubmission of an earlier file.
type Matcher struct {
	expected string
}

// NewMatcher creates a Matcher for the expected checksum.
func NewMatcher(expected string) *Matcher {
	return &Matcher{expected: expected}
}

// Match reports whether data hashes to the expected checksum. An empty
// expectation never matches.
func (m *Matcher) Match(data []byte) bool {
	if m.expected == "" {
		return false
	}
	return Sum(data) == m.expected
}
