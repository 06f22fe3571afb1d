package extrinsic

import (
	"encoding/json"
	"fmt"

	"github.com/pierreaubert/qapi-go/metadata"
)

// Reason records why an Identity's pallet/method could not be resolved to
// a definitive, verified name. The zero value, ReasonUnset, means
// resolution succeeded outright.
type Reason int

const (
	ReasonUnset Reason = iota
	ReasonNoMetadata
	ReasonSignedNotParsed
	ReasonPalletIndexNotFound
	ReasonCallIndexOutOfRange
)

func (r Reason) String() string {
	switch r {
	case ReasonUnset:
		return ""
	case ReasonNoMetadata:
		return "no-metadata"
	case ReasonSignedNotParsed:
		return "signed-not-parsed"
	case ReasonPalletIndexNotFound:
		return "pallet-index-not-found"
	case ReasonCallIndexOutOfRange:
		return "call-index-out-of-range"
	default:
		return "unknown-reason"
	}
}

// MarshalJSON renders a Reason as its string form so JSON consumers (the
// filterx package among them) see "signed-not-parsed" rather than a bare
// integer code.
func (r Reason) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the string form MarshalJSON produces.
func (r *Reason) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for c := ReasonUnset; c <= ReasonCallIndexOutOfRange; c++ {
		if c.String() == s {
			*r = c
			return nil
		}
	}
	return fmt.Errorf("extrinsic: unknown reason %q", s)
}

// Identity is the result of identifying one extrinsic call or event.
// Pallet and Method are always non-empty, falling back to unknown(<index>)
// forms when resolution fails.
type Identity struct {
	Pallet string
	Method string
	Signed bool
	Reason Reason
}

// IdentifyCall reads raw's prefix and resolves its pallet/call indices
// against table. A nil table, or a prefix that cannot even be read,
// degrades to the unknown(p)/unknown(c) forms with ReasonNoMetadata --
// identification never returns an error.
func IdentifyCall(raw []byte, table *metadata.PalletTable) Identity {
	prefix, err := ReadPrefix(raw)
	if err != nil {
		return Identity{Pallet: unknownName(0xff), Method: unknownName(0xff), Reason: ReasonNoMetadata}
	}

	palletIdx, ok := byteAt(raw, prefix.BodyOffset)
	if !ok {
		palletIdx = 0xff
	}
	callIdx, ok := byteAt(raw, prefix.BodyOffset+1)
	if !ok {
		callIdx = 0xff
	}

	if table == nil {
		return Identity{
			Pallet: unknownName(palletIdx),
			Method: unknownName(callIdx),
			Signed: prefix.Signed,
			Reason: ReasonNoMetadata,
		}
	}

	p := table.FindByIndex(palletIdx)
	palletName := unknownName(palletIdx)
	if p != nil {
		palletName = p.Name
	}

	method, resolved := resolveName(p, callIdx, func(p *metadata.PalletEntry) []string { return p.Calls })

	if prefix.Signed {
		return Identity{Pallet: palletName, Method: method, Signed: true, Reason: ReasonSignedNotParsed}
	}
	if resolved {
		return Identity{Pallet: palletName, Method: method, Signed: false, Reason: ReasonUnset}
	}
	reason := ReasonCallIndexOutOfRange
	if p == nil {
		reason = ReasonPalletIndexNotFound
	}
	return Identity{Pallet: palletName, Method: method, Signed: false, Reason: reason}
}

// IdentifyEvent is symmetric to IdentifyCall but resolves against a
// pallet's declared event names directly from the two raw indices --
// events carry no signed/unsigned distinction of their own.
func IdentifyEvent(palletIdx, eventIdx byte, table *metadata.PalletTable) Identity {
	if table == nil {
		return Identity{Pallet: unknownName(palletIdx), Method: unknownName(eventIdx), Reason: ReasonNoMetadata}
	}

	p := table.FindByIndex(palletIdx)
	palletName := unknownName(palletIdx)
	if p != nil {
		palletName = p.Name
	}

	method, resolved := resolveName(p, eventIdx, func(p *metadata.PalletEntry) []string { return p.Events })
	if resolved {
		return Identity{Pallet: palletName, Method: method, Reason: ReasonUnset}
	}
	reason := ReasonCallIndexOutOfRange
	if p == nil {
		reason = ReasonPalletIndexNotFound
	}
	return Identity{Pallet: palletName, Method: method, Reason: reason}
}

func resolveName(p *metadata.PalletEntry, idx byte, names func(*metadata.PalletEntry) []string) (string, bool) {
	if p == nil {
		return unknownName(idx), false
	}
	list := names(p)
	if int(idx) >= len(list) {
		return unknownName(idx), false
	}
	return list[idx], true
}
