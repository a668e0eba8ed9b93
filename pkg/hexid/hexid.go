// Package hexid provides the hex encoding conventions used on the wire
// protocol: robohash identifiers, offer IDs, and bare-hex byte fields with
// no "0x" prefix.
package hexid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Encode returns the lowercase hex encoding of b, with no prefix.
func Encode(b []byte) string {
	return hex.EncodeToString(b)
}

// Decode parses a bare hex string (no "0x" prefix) into bytes.
func Decode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hexid: invalid hex string: %w", err)
	}
	return b, nil
}

// DecodeFixed decodes s and requires the result to be exactly n bytes long.
func DecodeFixed(s string, n int) ([]byte, error) {
	b, err := Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, fmt.Errorf("hexid: expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

// NewOfferID generates a random 16-byte offer identifier, hex-encoded.
// Collisions are handled by the caller (see internal/orchestrator), which
// retries generation a bounded number of times rather than relying on this
// function to guarantee uniqueness.
func NewOfferID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("hexid: generating offer id: %w", err)
	}
	return Encode(b), nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data, the same
// form as the bond stable ID internal/bond computes over the raw, fully
// signed bond transaction bytes.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return Encode(sum[:])
}

// ValidateRobohashHex checks that s looks like a robohash identifier: a
// bare-hex string identifying a trader's client keypair, used as an opaque
// pseudonymous handle throughout the protocol. The coordinator never
// derives or validates the robohash image itself, only the hex shape.
func ValidateRobohashHex(s string) error {
	if len(s) == 0 {
		return fmt.Errorf("hexid: empty robohash")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("hexid: robohash is not valid hex: %w", err)
	}
	return nil
}
