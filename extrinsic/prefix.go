// Package extrinsic turns the two index bytes at the front of a
// SCALE-encoded extrinsic into a human-readable pallet.method label, using
// a decoded metadata.PalletTable. It never fails outright: every path
// yields an Identity, falling back to unknown(<index>) forms and a Reason
// that records why a name could not be resolved.
package extrinsic

import "github.com/pierreaubert/qapi-go/scale"

// Prefix is the result of reading an extrinsic's length/version header.
// BodyOffset is the byte offset, from the start of the extrinsic, of the
// pallet index -- the call index immediately follows it.
type Prefix struct {
	Version    byte
	Signed     bool
	BodyOffset int
}

// ReadPrefix decodes the compact length (consumed only to locate the
// version byte) and the version/flag byte. body_offset is fixed at
// bytes_consumed_for_length + 1 regardless of the signed flag: the core
// does not skip over signature material, which is exactly why a signed
// extrinsic's resolved name still carries ReasonSignedNotParsed.
func ReadPrefix(raw []byte) (Prefix, error) {
	r := scale.NewReader(raw)
	if _, err := r.CompactU32(); err != nil {
		return Prefix{}, err
	}
	version, err := r.U8()
	if err != nil {
		return Prefix{}, err
	}
	return Prefix{
		Version:    version & 0x7f,
		Signed:     version&0x80 != 0,
		BodyOffset: r.Offset(),
	}, nil
}

func byteAt(b []byte, i int) (byte, bool) {
	if i < 0 || i >= len(b) {
		return 0, false
	}
	return b[i], true
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

func unknownName(i byte) string {
	return "unknown(" + itoa(int(i)) + ")"
}
