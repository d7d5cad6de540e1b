package memoryinfra

import (
	"encoding/json"
)

// marshalJSON serializes a nested bag for column storage. Empty bags are
// stored as NULL so the round-trip yields nil, not an empty container —
// that keeps records byte-comparable across backends.
func marshalJSON(v any) (*string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	if s == "null" || s == "[]" || s == "{}" {
		return nil, nil
	}
	return &s, nil
}

func unmarshalJSON(s *string, dst any) error {
	if s == nil || *s == "" {
		return nil
	}
	return json.Unmarshal([]byte(*s), dst)
}
