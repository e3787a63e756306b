package diff

import (
	"encoding/json"
	"reflect"
)

// SpecsEqual compares two specification lists by deep structural equality:
// order-sensitive for lists, order-insensitive for object keys. Both sides
// are decoded to generic JSON values first, so formatting and key order in
// the raw documents never matter.
func SpecsEqual(a, b []json.RawMessage) bool {
	av, aok := decodeSpecs(a)
	bv, bok := decodeSpecs(b)
	if !aok || !bok {
		// Undecodable specs only compare equal byte-for-byte.
		return rawEqual(a, b)
	}
	return reflect.DeepEqual(av, bv)
}

func decodeSpecs(specs []json.RawMessage) ([]any, bool) {
	out := make([]any, 0, len(specs))
	for _, s := range specs {
		var v any
		if err := json.Unmarshal(s, &v); err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func rawEqual(a, b []json.RawMessage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			return false
		}
	}
	return true
}
