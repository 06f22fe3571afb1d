// Package metadata decodes a Substrate-family chain's self-describing
// runtime metadata (versions 14, 15, 16) into a PalletTable: for every
// pallet, its name, its on-chain index, and the ordered call/event names
// needed to turn an extrinsic's two index bytes into a human label.
//
// The blob is a portable type registry (a flat id -> type-definition
// table) followed by per-pallet records whose calls/events fields point
// back into that registry at a Variant type. Decoding is deliberately
// tolerant: a malformed type or pallet record degrades to a placeholder
// instead of aborting the whole table, per the tolerant-parsing design
// this package is modeled on.
package metadata

// PalletTable is the result of decoding one metadata blob. It is built
// once and never mutated afterward, so it is safe to share across
// goroutines without synchronization.
type PalletTable struct {
	Version uint8
	Pallets []PalletEntry
}

// FindByIndex scans for the first pallet entry whose Index matches p.
// Indices are not required to be unique or contiguous on real chains, so
// this is a linear scan rather than a map lookup.
func (t *PalletTable) FindByIndex(p uint8) *PalletEntry {
	if t == nil {
		return nil
	}
	for i := range t.Pallets {
		if t.Pallets[i].Index == p {
			return &t.Pallets[i]
		}
	}
	return nil
}

// PalletEntry describes one pallet's identity surface. Calls and Events
// are nil when the pallet's metadata declared no such enum at all, and
// non-nil-but-empty when the enum was declared with zero variants --
// those two states are distinct and callers must not conflate them.
type PalletEntry struct {
	Name   string
	Index  uint8
	Calls  []string
	Events []string
}

// placeholderName is used when a pallet record could not be parsed at
// all; Index is set to the 255 sentinel so callers can recognize a
// recovered entry distinct from a chain that legitimately assigns index
// 255 to a real pallet (vanishingly unlikely, but not forbidden).
func placeholderName(ordinal int) string {
	return "pallet_" + itoa(ordinal)
}

const unresolvedIndexSentinel = 255

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// Diagnostic records one tolerated failure during a decode: a
// normalization candidate that didn't parse, a type that fell back to a
// placeholder and triggered a resync, or a pallet record that could not
// be read. The façade surfaces these under QAPI_DEBUG rather than as
// hard errors.
type Diagnostic struct {
	Stage   string // "candidate", "registry", "pallet"
	Detail  string
	Offset  int
	Fatal   bool
}
