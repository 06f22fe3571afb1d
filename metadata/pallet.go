package metadata

import "github.com/pierreaubert/qapi-go/scale"

// decodePalletList reads the vec<PalletRecord>. Each record is decoded in
// isolation: if any step fails, the whole record is abandoned and replaced
// with a {pallet_<i>, index: 255} placeholder, and decoding continues with
// the next record. A single bad pallet never aborts the table.
func decodePalletList(r *scale.Reader, g *portableTypeGraph, diag *[]Diagnostic) ([]PalletEntry, error) {
	count, err := r.CompactU32()
	if err != nil {
		return nil, err
	}

	pallets := make([]PalletEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		entry, err := decodePalletRecord(r, g)
		if err != nil {
			*diag = append(*diag, Diagnostic{
				Stage:  "pallet",
				Detail: "pallet record unreadable: " + err.Error(),
				Offset: r.Offset(),
			})
			entry = PalletEntry{Name: placeholderName(int(i)), Index: unresolvedIndexSentinel}
		}
		pallets = append(pallets, entry)
	}
	return pallets, nil
}

func decodePalletRecord(r *scale.Reader, g *portableTypeGraph) (PalletEntry, error) {
	name, err := r.Text()
	if err != nil {
		return PalletEntry{}, err
	}

	if err := skipStorageMetadata(r); err != nil {
		return PalletEntry{}, err
	}

	callsTy, hasCalls, err := scale.Option(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() })
	if err != nil {
		return PalletEntry{}, err
	}

	eventsTy, hasEvents, err := scale.Option(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() })
	if err != nil {
		return PalletEntry{}, err
	}

	if err := skipConstants(r); err != nil {
		return PalletEntry{}, err
	}

	if err := skipErrors(r); err != nil {
		return PalletEntry{}, err
	}

	index, err := r.U8()
	if err != nil {
		return PalletEntry{}, err
	}

	// Optional trailing docs: some deployments emit it, some don't. Best
	// effort only -- a failure here must not invalidate an otherwise
	// successfully parsed record, so it is not allowed to propagate.
	trySkipTrailingDocs(r)

	entry := PalletEntry{Name: name, Index: index}
	if hasCalls {
		entry.Calls = resolveVariantNames(g, uint64(callsTy))
	}
	if hasEvents {
		entry.Events = resolveVariantNames(g, uint64(eventsTy))
	}
	return entry, nil
}

// skipStorageMetadata reads option<StorageMetadata>. The storage block
// ends right after items -- there is no trailing flag byte on the wire
// for V14/V15/V16, despite one lineage of this decoder having read one.
func skipStorageMetadata(r *scale.Reader) error {
	_, has, err := scale.Option(r, func(r *scale.Reader) (struct{}, error) {
		if _, err := r.Text(); err != nil { // prefix
			return struct{}{}, err
		}
		_, err := scale.Vec(r, decodeStorageEntry)
		return struct{}{}, err
	})
	if err != nil {
		return err
	}
	_ = has
	return nil
}

func decodeStorageEntry(r *scale.Reader) (struct{}, error) {
	if _, err := r.Text(); err != nil { // name
		return struct{}{}, err
	}
	if _, err := r.U8(); err != nil { // modifier
		return struct{}{}, err
	}
	kind, err := r.U8()
	if err != nil {
		return struct{}{}, err
	}
	switch kind {
	case 0: // Plain: one compact type id
		if _, err := r.CompactU32(); err != nil {
			return struct{}{}, err
		}
	case 1, 2: // Map, NMap: hashers vec<u8>, then key/value compacts
		if _, err := scale.Vec(r, func(r *scale.Reader) (byte, error) { return r.U8() }); err != nil {
			return struct{}{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return struct{}{}, err
		}
		if _, err := r.CompactU32(); err != nil {
			return struct{}{}, err
		}
	default:
		return struct{}{}, &unknownTypeDefError{tag: kind, offset: r.Offset() - 1}
	}
	if err := r.SkipBytes(); err != nil { // fallback: Bytes
		return struct{}{}, err
	}
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil { // docs
		return struct{}{}, err
	}
	return struct{}{}, nil
}

func skipConstants(r *scale.Reader) error {
	_, err := scale.Vec(r, func(r *scale.Reader) (struct{}, error) {
		if _, err := r.Text(); err != nil { // name
			return struct{}{}, err
		}
		if _, err := r.CompactU32(); err != nil { // type
			return struct{}{}, err
		}
		if err := r.SkipBytes(); err != nil { // value
			return struct{}{}, err
		}
		_, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }) // docs
		return struct{}{}, err
	})
	return err
}

// skipErrors is version-sensitive: peek the next byte. 0/1 means it's an
// option<compact> (the newer shape); anything else means this chain emits
// a bare vec<ErrorMetadata> here instead, so the byte belongs to that
// vec's compact length and must not be consumed as a tag.
func skipErrors(r *scale.Reader) error {
	tag, err := r.Peek()
	if err != nil {
		return err
	}
	if tag == 0 || tag == 1 {
		_, _, err := scale.Option(r, func(r *scale.Reader) (uint32, error) { return r.CompactU32() })
		return err
	}
	_, err = scale.Vec(r, func(r *scale.Reader) (struct{}, error) {
		if _, err := r.Text(); err != nil { // name
			return struct{}{}, err
		}
		_, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }) // docs
		return struct{}{}, err
	})
	return err
}

func trySkipTrailingDocs(r *scale.Reader) {
	saved := r.Offset()
	if _, err := scale.Vec(r, func(r *scale.Reader) (string, error) { return r.Text() }); err != nil {
		_ = r.Seek(saved)
	}
}

// syntheticUnknownName marks a gap left by dense-projecting variants by
// their declared index.
func syntheticUnknownName(i int) string {
	return "unknown(" + itoa(i) + ")"
}

// resolveVariantNames looks up id in the graph; if it is a Variant type,
// its variants are dense-projected by placing each at its declared index, with
// gaps filled by a synthetic unknown marker. A missing or non-Variant id
// yields nil, matching the "declared no such enum" case upstream expects
// to distinguish from "declared empty enum".
func resolveVariantNames(g *portableTypeGraph, id uint64) []string {
	td, ok := g.lookup(id)
	if !ok || td.kind != kindVariant {
		return nil
	}
	if len(td.variants) == 0 {
		return []string{}
	}
	maxIndex := 0
	for _, v := range td.variants {
		if int(v.index) > maxIndex {
			maxIndex = int(v.index)
		}
	}
	names := make([]string, maxIndex+1)
	filled := make([]bool, maxIndex+1)
	for _, v := range td.variants {
		names[v.index] = v.name
		filled[v.index] = true
	}
	for i := range names {
		if !filled[i] {
			names[i] = syntheticUnknownName(i)
		}
	}
	return names
}
