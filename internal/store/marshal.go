package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/lockdown/internal/descriptor"
	"github.com/roach88/lockdown/internal/types"
)

// marshalType converts t to canonical JSON TEXT for storage, returning it
// with the type's content-addressed ID.
func marshalType(t types.Type) (id, canonical string, err error) {
	data, err := types.MarshalCanonical(types.Describe(t))
	if err != nil {
		return "", "", fmt.Errorf("marshal type: %w", err)
	}
	id, err = types.TypeID(t)
	if err != nil {
		return "", "", fmt.Errorf("marshal type: %w", err)
	}
	return id, string(data), nil
}

// unmarshalType rebuilds a type from its canonical JSON TEXT.
// Numbers are decoded via json.Number so integer unit values keep their
// precision.
func unmarshalType(data string) (types.Type, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal type: %w", err)
	}
	plain, err := integers(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal type: %w", err)
	}
	t, err := descriptor.EnrichType(plain)
	if err != nil {
		return nil, fmt.Errorf("unmarshal type: %w", err)
	}
	return t, nil
}

// integers replaces every json.Number in v with an int64. Canonical JSON
// never carries floats.
func integers(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", x)
		}
		return n, nil
	case map[string]any:
		for k, item := range x {
			converted, err := integers(item)
			if err != nil {
				return nil, err
			}
			x[k] = converted
		}
		return x, nil
	case []any:
		for i, item := range x {
			converted, err := integers(item)
			if err != nil {
				return nil, err
			}
			x[i] = converted
		}
		return x, nil
	}
	return v, nil
}
