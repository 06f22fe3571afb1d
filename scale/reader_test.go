package scale

import (
	"errors"
	"testing"
)

func TestCompactU32Modes(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want uint32
	}{
		{"mode0 zero", []byte{0x00}, 0},
		{"mode0 boundary 63", []byte{63 << 2}, 63},
		{"mode1 boundary 64", encodeCompact(64), 64},
		{"mode1 boundary 16383", encodeCompact(16383), 16383},
		{"mode2 boundary 16384", encodeCompact(16384), 16384},
		{"mode2 boundary 1073741823", encodeCompact(1073741823), 1073741823},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewReader(c.in)
			got, err := r.CompactU32()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %d want %d", got, c.want)
			}
		})
	}
}

// encodeCompact is the reference encoder used only to build test fixtures;
// it mirrors the decoder's four modes so the round trip below actually
// exercises both directions.
func encodeCompact(v uint32) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		return []byte{byte(v<<2) | 0b01, byte(v >> 6)}
	case v < 1<<30:
		return []byte{
			byte(v<<2) | 0b10,
			byte(v >> 6),
			byte(v >> 14),
			byte(v >> 22),
		}
	default:
		b := []byte{0b11, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
		return b
	}
}

func TestCompactRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 62, 63, 64, 16383, 16384, 1073741823, 1<<30 - 1}
	for _, v := range values {
		enc := encodeCompact(v)
		r := NewReader(enc)
		got, err := r.CompactU32()
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: encoded %d, decoded %d", v, got)
		}
	}
}

func TestCompactTruncatedMode2(t *testing.T) {
	// Every two-bit mode value is valid, so ErrInvalidCompactMode cannot
	// arise from input; this checks bounds failure on a truncated mode-2 value.
	r := NewReader([]byte{0b10}) // mode 2, needs 3 more bytes, buffer is empty
	if _, err := r.CompactU32(); err == nil {
		t.Fatal("expected out-of-bounds error")
	}
}

func TestU8OutOfBounds(t *testing.T) {
	r := NewReader(nil)
	_, err := r.U8()
	if err == nil {
		t.Fatal("expected error reading from empty buffer")
	}
	var scaleErr *Error
	if !errors.As(err, &scaleErr) {
		t.Fatalf("expected *scale.Error, got %T", err)
	}
	if scaleErr.Kind != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", scaleErr.Kind)
	}
}

func TestTextStrictUTF8(t *testing.T) {
	valid := append(encodeCompact(5), []byte("hello")...)
	r := NewReader(valid)
	s, err := r.Text()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "hello" {
		t.Fatalf("got %q", s)
	}

	invalid := append(encodeCompact(1), 0xff)
	r2 := NewReader(invalid)
	if _, err := r2.Text(); err == nil {
		t.Fatal("expected invalid utf8 error")
	}
}

func TestVecAndOption(t *testing.T) {
	// vec<u8> of length 3: [1,2,3]
	buf := append(encodeCompact(3), 1, 2, 3)
	r := NewReader(buf)
	got, err := Vec(r, func(r *Reader) (byte, error) { return r.U8() })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("unexpected vec: %v", got)
	}

	// empty vec
	r2 := NewReader(encodeCompact(0))
	got2, err := Vec(r2, func(r *Reader) (byte, error) { return r.U8() })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got2) != 0 {
		t.Fatalf("expected empty vec, got %v", got2)
	}

	// option: none
	r3 := NewReader([]byte{0})
	_, ok, err := Option(r3, func(r *Reader) (byte, error) { return r.U8() })
	if err != nil || ok {
		t.Fatalf("expected none, got ok=%v err=%v", ok, err)
	}

	// option: some(42)
	r4 := NewReader([]byte{1, 42})
	v, ok, err := Option(r4, func(r *Reader) (byte, error) { return r.U8() })
	if err != nil || !ok || v != 42 {
		t.Fatalf("expected some(42), got v=%v ok=%v err=%v", v, ok, err)
	}

	// option: invalid tag
	r5 := NewReader([]byte{2})
	if _, _, err := Option(r5, func(r *Reader) (byte, error) { return r.U8() }); err == nil {
		t.Fatal("expected invalid option tag error")
	}
}

func TestSkipBytesAndPeek(t *testing.T) {
	buf := append(encodeCompact(4), []byte{0xde, 0xad, 0xbe, 0xef}...)
	buf = append(buf, 0x99)
	r := NewReader(buf)
	if err := r.SkipBytes(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := r.Peek()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != 0x99 {
		t.Fatalf("got %x", b)
	}
}
