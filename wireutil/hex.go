// Package wireutil holds the small conventions shared across the wire
// boundary: hex string framing for extrinsics and metadata blobs.
package wireutil

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeHex strips a leading "0x" (case-insensitively) and decodes the
// remainder. An odd-length remainder is rejected, matching the
// even-length-only convention used across the wire boundary.
func DecodeHex(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(trimmed)%2 != 0 {
		return nil, fmt.Errorf("wireutil: odd-length hex string %q", s)
	}
	b, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("wireutil: decode hex: %w", err)
	}
	return b, nil
}

// EncodeHex renders b as a lowercase 0x-prefixed hex string.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
