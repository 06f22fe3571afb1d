// Package filterx applies a gjson pattern match over a batch of decoded
// extrinsic identities, the way the indexer this module is modeled on
// filtered decoded events for a single address -- generalized here to
// the two fields the core spec actually produces: pallet/method and
// signedness.
package filterx

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/pierreaubert/qapi-go/extrinsic"
)

// Filter matches a subset of a batch and returns it as JSON.
type Filter interface {
	Process(batch []extrinsic.Identity) (json.RawMessage, error)
}

type wrapped struct {
	Identities []extrinsic.Identity `json:"identities"`
}

func marshalBatch(batch []extrinsic.Identity) ([]byte, error) {
	out, err := json.Marshal(wrapped{Identities: batch})
	if err != nil {
		return nil, fmt.Errorf("filterx: marshal batch: %w", err)
	}
	return out, nil
}

type byPalletFilter struct {
	pallets []string
}

// ByPallet returns a Filter whose Process result is a JSON object keyed
// by each requested pallet name, each value the array of identities
// matching that pallet.
func ByPallet(names ...string) Filter {
	return &byPalletFilter{pallets: names}
}

func (f *byPalletFilter) Process(batch []extrinsic.Identity) (json.RawMessage, error) {
	doc, err := marshalBatch(batch)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(f.pallets))
	for _, name := range f.pallets {
		pattern := fmt.Sprintf(`identities.#(Pallet=="%s")#`, name)
		result := gjson.GetBytes(doc, pattern).String()
		if result == "" {
			result = "[]"
		}
		out[name] = json.RawMessage(result)
	}

	rendered, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("filterx: marshal result: %w", err)
	}
	return rendered, nil
}

type bySignednessFilter struct {
	signed bool
}

// BySignedness returns a Filter whose Process result is the JSON array
// of identities matching the requested signed/unsigned state.
func BySignedness(signed bool) Filter {
	return &bySignednessFilter{signed: signed}
}

func (f *bySignednessFilter) Process(batch []extrinsic.Identity) (json.RawMessage, error) {
	doc, err := marshalBatch(batch)
	if err != nil {
		return nil, err
	}

	pattern := fmt.Sprintf(`identities.#(Signed==%v)#`, f.signed)
	result := gjson.GetBytes(doc, pattern).String()
	if result == "" {
		result = "[]"
	}
	return json.RawMessage(result), nil
}
