package metadata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pierreaubert/qapi-go/scale"
)

var metaMagic = []byte{0x6d, 0x65, 0x74, 0x61} // ASCII "meta"

// ErrUnsupportedVersion is returned when no normalization candidate
// produces a version byte in {14, 15, 16}.
var ErrUnsupportedVersion = errors.New("metadata: unsupported version")

// ErrUnparseable is returned when every normalization candidate fails to
// even get past the version gate and registry pass.
var ErrUnparseable = errors.New("metadata: unparseable")

// UnparseableError wraps ErrUnparseable with a preview of the offending
// bytes, for diagnostics.
type UnparseableError struct {
	Preview []byte
}

func (e *UnparseableError) Error() string {
	n := len(e.Preview)
	if n > 16 {
		n = 16
	}
	return fmt.Sprintf("%v: first bytes %x", ErrUnparseable, e.Preview[:n])
}

func (e *UnparseableError) Unwrap() error { return ErrUnparseable }

// stripMagic returns s[4:] if s begins with the "meta" magic, else s
// unchanged.
func stripMagic(s []byte) []byte {
	if bytes.HasPrefix(s, metaMagic) {
		return s[4:]
	}
	return s
}

// compactUnwrap decodes a leading SCALE compact length L; if and only if
// the bytes after the length field total exactly L, it returns the
// unwrapped slice. Any other outcome (including a decode error) returns
// ok=false, since a partial match is not a confirmed Vec<u8> wrapper.
func compactUnwrap(s []byte) (unwrapped []byte, ok bool) {
	r := scale.NewReader(s)
	length, err := r.CompactU32()
	if err != nil {
		return nil, false
	}
	rest := s[r.Offset():]
	if uint32(len(rest)) != length {
		return nil, false
	}
	return rest, true
}

// Decode tries the normalization candidates from the spec in order --
// strip-magic(raw), then strip-magic(compact-unwrap(raw)) gated on exact
// consumption -- accepting the first that parses a supported version byte
// and a registry. On total failure it returns ErrUnsupportedVersion when
// the last candidate failed the version gate, and otherwise an
// UnparseableError wrapping ErrUnparseable with a preview of the raw bytes.
func Decode(raw []byte) (*PalletTable, []Diagnostic, error) {
	var diag []Diagnostic

	candidates := [][]byte{stripMagic(raw)}
	if unwrapped, ok := compactUnwrap(raw); ok {
		candidates = append(candidates, stripMagic(unwrapped))
	}

	var lastErr error
	for i, candidate := range candidates {
		table, cdiag, err := decodeCandidate(candidate)
		if err == nil {
			diag = append(diag, cdiag...)
			return table, diag, nil
		}
		diag = append(diag, Diagnostic{
			Stage:  "candidate",
			Detail: fmt.Sprintf("candidate %d failed: %v", i, err),
		})
		lastErr = err
	}

	if errors.Is(lastErr, ErrUnsupportedVersion) {
		return nil, diag, ErrUnsupportedVersion
	}
	return nil, diag, &UnparseableError{Preview: raw}
}

func decodeCandidate(b []byte) (*PalletTable, []Diagnostic, error) {
	r := scale.NewReader(b)

	version, err := r.U8()
	if err != nil {
		return nil, nil, err
	}
	if version != 14 && version != 15 && version != 16 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrUnsupportedVersion, version)
	}

	var diag []Diagnostic

	graph, err := decodeRegistry(r, &diag)
	if err != nil {
		return nil, diag, err
	}

	pallets, err := decodePalletList(r, graph, &diag)
	if err != nil {
		return nil, diag, err
	}

	return &PalletTable{Version: version, Pallets: pallets}, diag, nil
}
