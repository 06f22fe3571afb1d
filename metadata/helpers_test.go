package metadata

// compact is a minimal reference SCALE compact-u32 encoder for building
// test fixtures; it only needs to cover mode 0 and mode 1 since no
// metadata fixture here needs a count above 16383.
func compact(v uint32) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		return []byte{byte(v<<2) | 0b01, byte(v >> 6)}
	default:
		return []byte{
			byte(v<<2) | 0b10,
			byte(v >> 6),
			byte(v >> 14),
			byte(v >> 22),
		}
	}
}

func text(s string) []byte {
	return append(compact(uint32(len(s))), []byte(s)...)
}

func vec(items ...[]byte) []byte {
	out := compact(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// noneByte / someByte build an option<T> encoding.
func noneByte() []byte { return []byte{0x00} }
func some(payload []byte) []byte {
	return append([]byte{0x01}, payload...)
}

// compositeTypeDef builds a {path: [], params: [], TypeDef::Composite{fields:[]}, docs: []} record.
func compositeTypeDef(id uint32) []byte {
	return concat(
		compact(id),
		vec(),       // path
		vec(),       // params
		[]byte{0x00}, // tag: Composite
		vec(),       // fields
		vec(),       // docs
	)
}

// variantTypeDef builds a {path: [], params: [], TypeDef::Variant{variants}, docs: []}
// record, where each variant has an empty fields list and empty docs.
func variantTypeDef(id uint32, variants ...variantFixture) []byte {
	items := make([][]byte, len(variants))
	for i, v := range variants {
		items[i] = concat(
			text(v.name),
			vec(), // fields
			[]byte{v.index},
			vec(), // docs
		)
	}
	return concat(
		compact(id),
		vec(),             // path
		vec(),             // params
		[]byte{0x01},      // tag: Variant
		vec(items...),     // variants
		vec(),             // docs
	)
}

type variantFixture struct {
	name  string
	index byte
}

// palletRecord builds one PalletRecord with no storage, optional calls/events
// type ids, no constants, no errors (None), the given on-chain index, and an
// explicit empty trailing docs vec.
func palletRecord(name string, callsID, eventsID *uint32, index byte) []byte {
	var calls, events []byte
	if callsID != nil {
		calls = some(compact(*callsID))
	} else {
		calls = noneByte()
	}
	if eventsID != nil {
		events = some(compact(*eventsID))
	} else {
		events = noneByte()
	}
	return concat(
		text(name),
		noneByte(), // storage: None
		calls,
		events,
		vec(),      // constants
		noneByte(), // errors: None (tag 0)
		[]byte{index},
		vec(), // trailing docs
	)
}

func u32ptr(v uint32) *uint32 { return &v }
