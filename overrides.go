package qapi

import "github.com/pierreaubert/qapi-go/metadata"

// SignatureOverride advertises a signature scheme/variant to layers
// outside the core; the core itself never signs or verifies anything.
type SignatureOverride struct {
	Scheme  string
	Variant string
}

// OverrideCall is one {name, index} pair in a caller-supplied override
// table's calls or events list.
type OverrideCall struct {
	Name  string
	Index uint8
}

// OverridePallet is one pallet entry in a caller-supplied override table.
type OverridePallet struct {
	Name   string
	Index  uint8
	Calls  []OverrideCall
	Events []OverrideCall
}

// MetadataOverrideTable lets a caller hand the façade a pallet table
// directly, bypassing the decoder entirely.
type MetadataOverrideTable struct {
	Pallets []OverridePallet
}

// MetadataParser matches metadata.Decode's signature, letting callers
// substitute their own decoder.
type MetadataParser func(raw []byte) (*metadata.PalletTable, []metadata.Diagnostic, error)

// MetadataOverrides groups the three metadata-related connect options.
type MetadataOverrides struct {
	CustomParser      MetadataParser
	Tables            *MetadataOverrideTable
	IgnoreParseErrors bool
}

// Overrides groups every non-transport connect option.
type Overrides struct {
	Signature  SignatureOverride
	SS58Prefix *uint32
	Metadata   MetadataOverrides
}

// projectOverrideTable converts the richer {name, index} call/event shape
// into the dense name-by-index sequences metadata.PalletEntry expects, by
// sparse-projecting at each declared index rather than at array position --
// a caller who lists calls out of order, or with gaps, still gets correct
// names back.
func projectOverrideTable(o *MetadataOverrideTable) *metadata.PalletTable {
	pallets := make([]metadata.PalletEntry, len(o.Pallets))
	for i, p := range o.Pallets {
		pallets[i] = metadata.PalletEntry{
			Name:   p.Name,
			Index:  p.Index,
			Calls:  projectByDeclaredIndex(p.Calls),
			Events: projectByDeclaredIndex(p.Events),
		}
	}
	return &metadata.PalletTable{Pallets: pallets}
}

func projectByDeclaredIndex(items []OverrideCall) []string {
	if items == nil {
		return nil
	}
	maxIndex := 0
	for _, it := range items {
		if int(it.Index) > maxIndex {
			maxIndex = int(it.Index)
		}
	}
	names := make([]string, maxIndex+1)
	filled := make([]bool, maxIndex+1)
	for _, it := range items {
		names[it.Index] = it.Name
		filled[it.Index] = true
	}
	for i := range names {
		if !filled[i] {
			names[i] = "unknown(" + itoa(i) + ")"
		}
	}
	return names
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
