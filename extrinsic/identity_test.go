package extrinsic

import (
	"testing"

	"github.com/pierreaubert/qapi-go/metadata"
)

func compact(v uint32) []byte {
	switch {
	case v < 1<<6:
		return []byte{byte(v << 2)}
	case v < 1<<14:
		return []byte{byte(v<<2) | 0b01, byte(v >> 6)}
	default:
		return []byte{byte(v<<2) | 0b10, byte(v >> 6), byte(v >> 14), byte(v >> 22)}
	}
}

func TestReadPrefixSignedBit(t *testing.T) {
	unsigned := append(compact(4), 0x04, 0x00, 0x00)
	p, err := ReadPrefix(unsigned)
	if err != nil || p.Signed {
		t.Fatalf("expected unsigned, got signed=%v err=%v", p.Signed, err)
	}

	signed := append(compact(4), 0x84, 0x00, 0x00)
	p2, err := ReadPrefix(signed)
	if err != nil || !p2.Signed {
		t.Fatalf("expected signed, got signed=%v err=%v", p2.Signed, err)
	}
}

// Scenario 1: unsigned System.remark on a well-formed chain.
func TestIdentifyCallUnsignedResolved(t *testing.T) {
	table := &metadata.PalletTable{
		Version: 14,
		Pallets: []metadata.PalletEntry{
			{Name: "System", Index: 0, Calls: []string{"remark", "set_code"}},
		},
	}
	raw := append(compact(4), 0x04, 0x00, 0x00)
	id := IdentifyCall(raw, table)
	if id.Pallet != "System" || id.Method != "remark" || id.Signed || id.Reason != ReasonUnset {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

// Scenario 2: signed Balances.transfer_keep_alive.
func TestIdentifyCallSignedNotParsed(t *testing.T) {
	table := &metadata.PalletTable{
		Pallets: []metadata.PalletEntry{
			{Name: "Balances", Index: 2, Calls: []string{"transfer", "transfer_all", "force_transfer", "transfer_keep_alive"}},
		},
	}
	raw := append(compact(4), 0x84, 0x02, 0x03)
	id := IdentifyCall(raw, table)
	if id.Pallet != "Balances" || id.Method != "transfer_keep_alive" || !id.Signed || id.Reason != ReasonSignedNotParsed {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentifyCallPalletIndexNotFound(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{{Name: "System", Index: 0, Calls: []string{"remark"}}}}
	raw := append(compact(4), 0x04, 0x09, 0x00)
	id := IdentifyCall(raw, table)
	if id.Reason != ReasonPalletIndexNotFound || id.Pallet != "unknown(9)" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentifyCallOutOfRange(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{{Name: "System", Index: 0, Calls: []string{"remark"}}}}
	raw := append(compact(4), 0x04, 0x00, 0x09)
	id := IdentifyCall(raw, table)
	if id.Reason != ReasonCallIndexOutOfRange || id.Pallet != "System" || id.Method != "unknown(9)" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentifyCallNoMetadata(t *testing.T) {
	raw := append(compact(4), 0x04, 0x00, 0x00)
	id := IdentifyCall(raw, nil)
	if id.Reason != ReasonNoMetadata || id.Pallet != "unknown(0)" || id.Method != "unknown(0)" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentifyEventResolved(t *testing.T) {
	table := &metadata.PalletTable{Pallets: []metadata.PalletEntry{{Name: "Balances", Index: 2, Events: []string{"transferred", "endowed"}}}}
	id := IdentifyEvent(2, 0, table)
	if id.Pallet != "Balances" || id.Method != "transferred" || id.Reason != ReasonUnset {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestIdentifySignedInvariantRegardlessOfTable(t *testing.T) {
	raw := append(compact(4), 0x84, 0xff, 0xff)
	for _, table := range []*metadata.PalletTable{nil, {}} {
		id := IdentifyCall(raw, table)
		if !id.Signed {
			t.Fatalf("signed bit must always be reported, table=%v", table)
		}
	}
}
