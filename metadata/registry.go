package metadata

import "github.com/pierreaubert/qapi-go/scale"

// typeDefKind tags the shape of a portable type definition. Only Variant
// carries data the decoder needs; every other shape is retained purely so
// the registry pass can skip over it correctly.
type typeDefKind int

const (
	kindOther typeDefKind = iota
	kindVariant
)

type variant struct {
	name  string
	index uint8
}

type typeDef struct {
	kind     typeDefKind
	variants []variant
}

// portableTypeGraph is a flat id -> typeDef map, scoped to a single
// metadata decode and discarded once the PalletTable is assembled. It is
// acyclic as stored even though the underlying type system is not: a
// Variant holds its variant list inline, and every other case is opaque.
type portableTypeGraph struct {
	types map[uint64]typeDef
}

func newPortableTypeGraph() *portableTypeGraph {
	return &portableTypeGraph{types: make(map[uint64]typeDef)}
}

func (g *portableTypeGraph) lookup(id uint64) (typeDef, bool) {
	td, ok := g.types[id]
	return td, ok
}

const resyncWindow = 1024
const maxConsecutiveFailures = 5

// decodeRegistry reads the portable type registry: a vec<PortableType>.
// A single type's failure is recovered with a placeholder Other entry and
// the cursor is resynced forward by scanning for the next plausible type
// header. After five consecutive failures, or when the resync window is
// exhausted, the pass stops and any remaining types are simply absent
// from the graph -- downstream lookups treat a missing id as "unknown".
func decodeRegistry(r *scale.Reader, diag *[]Diagnostic) (*portableTypeGraph, error) {
	count, err := r.CompactU32()
	if err != nil {
		return nil, err
	}

	g := newPortableTypeGraph()
	consecutiveFailures := 0

	for i := uint32(0); i < count; i++ {
		startOffset := r.Offset()
		id, td, err := decodePortableType(r)
		if err != nil {
			*diag = append(*diag, Diagnostic{
				Stage:  "registry",
				Detail: "type decode failed: " + err.Error(),
				Offset: startOffset,
			})
			g.types[uint64(i)] = typeDef{kind: kindOther}
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveFailures {
				*diag = append(*diag, Diagnostic{
					Stage:  "registry",
					Detail: "giving up after consecutive failures, remaining types absent",
					Offset: r.Offset(),
				})
				return g, nil
			}
			if !resync(r, startOffset) {
				*diag = append(*diag, Diagnostic{
					Stage:  "registry",
					Detail: "resync window exhausted, remaining types absent",
					Offset: r.Offset(),
				})
				return g, nil
			}
			continue
		}
		consecutiveFailures = 0
		g.types[id] = td
	}

	return g, nil
}

// decodePortableType reads one {id, path, params, TypeDef, docs} record.
func decodePortableType(r *scale.Reader) (uint64, typeDef, error) {
	id, err := r.CompactU32()
	if err != nil {
		return 0, typeDef{}, err
	}

	// path: Vec<text>, skipped.
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return 0, typeDef{}, err
	}

	// params: Vec<TypeParameter{name, type: option<compact>, typeName: option<text>}>.
	// typeName is absent on some chains; detect by peeking the tag byte.
	if _, err := scale.Vec(r, decodeTypeParameter); err != nil {
		return 0, typeDef{}, err
	}

	td, err := decodeTypeDef(r)
	if err != nil {
		return 0, typeDef{}, err
	}

	// trailing docs: Vec<text>.
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return 0, typeDef{}, err
	}

	return uint64(id), td, nil
}

func decodeTypeParameter(r *scale.Reader) (struct{}, error) {
	if _, err := r.Text(); err != nil { // name
		return struct{}{}, err
	}
	if _, _, err := scale.Option(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() }); err != nil {
		return struct{}{}, err
	}
	// typeName is option<text> on most chains, but some encodings omit it
	// entirely. Peek the next byte: a 0/1 tag means it's present; anything
	// else means this field doesn't exist and belongs to whatever follows.
	tag, err := r.Peek()
	if err == nil && (tag == 0 || tag == 1) {
		if _, _, err := scale.Option(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
			return struct{}{}, err
		}
	}
	return struct{}{}, nil
}

type field struct{}

func decodeField(r *scale.Reader) (field, error) {
	// name: option<text>
	if _, _, err := scale.Option(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return field{}, err
	}
	if _, err := r.CompactU32(); err != nil { // type id
		return field{}, err
	}
	// typeName: option<text>
	if _, _, err := scale.Option(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return field{}, err
	}
	// docs: Vec<text>
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return field{}, err
	}
	return field{}, nil
}

func decodeVariantRecord(r *scale.Reader) (variant, error) {
	name, err := r.Text()
	if err != nil {
		return variant{}, err
	}
	if _, err := scale.Vec(r, decodeField); err != nil {
		return variant{}, err
	}
	index, err := r.U8()
	if err != nil {
		return variant{}, err
	}
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		return variant{}, err
	}
	return variant{name: name, index: index}, nil
}

// decodeTypeDef reads the TypeDef discriminant and its payload, per the
// tag table: only Variant (tag 1) is semantically interesting; every
// other known tag is skipped over and collapses to kindOther. An unknown
// tag fails the whole type (caught by decodeRegistry's per-type recovery).
func decodeTypeDef(r *scale.Reader) (typeDef, error) {
	tag, err := r.U8()
	if err != nil {
		return typeDef{}, err
	}

	switch tag {
	case 0: // Composite { fields }
		if _, err := scale.Vec(r, decodeField); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 1: // Variant { variants }
		variants, err := scale.Vec(r, decodeVariantRecord)
		if err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindVariant, variants: variants}, nil
	case 2: // Sequence { type }
		if _, err := r.CompactU32(); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 3: // Array { len: u32-LE, type: compact }
		if _, err := r.U32LE(); err != nil {
			return typeDef{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 4: // Tuple(Vec<type>)
		if _, err := scale.Vec(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() }); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 5: // Primitive { kind: u8 }
		if _, err := r.U8(); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 6: // Compact { type }
		if _, err := r.CompactU32(); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 7: // BitSequence { store, order }
		if _, err := r.CompactU32(); err != nil {
			return typeDef{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return typeDef{}, err
		}
		return typeDef{kind: kindOther}, nil
	case 8: // HistoricMetaCompat
		return typeDef{kind: kindOther}, nil
	default:
		return typeDef{}, &unknownTypeDefError{tag: tag, offset: r.Offset() - 1}
	}
}

type unknownTypeDefError struct {
	tag    byte
	offset int
}

func (e *unknownTypeDefError) Error() string {
	return "unknown TypeDef tag " + itoa(int(e.tag)) + " at offset " + itoa(e.offset)
}

// resync scans forward from a failed type's start offset, within a bounded
// window, for a plausible next type header: a small-valued compact id
// followed by a small-valued compact path length. On success it leaves
// the reader positioned at that candidate offset and returns true.
func resync(r *scale.Reader, failedAt int) bool {
	limit := failedAt + resyncWindow
	if limit > r.Len() {
		limit = r.Len()
	}
	for probe := failedAt + 1; probe < limit; probe++ {
		if err := r.Seek(probe); err != nil {
			return false
		}
		if looksLikeTypeHeader(r) {
			_ = r.Seek(probe)
			return true
		}
	}
	return false
}

// looksLikeTypeHeader applies a cheap heuristic at the current offset: can
// we read a compact id and a compact path length without error, and are
// both small (mode 0, single byte)? This does not guarantee correctness,
// only plausibility -- the per-type decode that follows will catch the
// rest.
func looksLikeTypeHeader(r *scale.Reader) bool {
	saved := r.Offset()
	defer func() { _ = r.Seek(saved) }()

	idByte, err := r.Peek()
	if err != nil || idByte&0b11 != 0 {
		return false
	}
	if _, err := r.U8(); err != nil {
		return false
	}
	pathLenByte, err := r.Peek()
	if err != nil || pathLenByte&0b11 != 0 {
		return false
	}
	if pathLenByte>>2 > 16 {
		return false
	}
	return true
}
