package composite

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/roach88/lockdown/internal/types"
)

// Decode builds a runtime value from JSON. Objects become object values
// with their keys in document order, arrays become lists, and numbers must
// be integers.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: trailing data after value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	switch x := tok.(type) {
	case json.Delim:
		switch x {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("decode: %w", err)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.store(keyTok.(string), v)
			}
			_, err = dec.Token()
			return obj, err
		case '[':
			list := NewList()
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list.items = append(list.items, v)
			}
			_, err = dec.Token()
			return list, err
		}
		return nil, fmt.Errorf("decode: unexpected %v", x)
	case json.Number:
		n, err := strconv.ParseInt(x.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode: %s is not an integer", x)
		}
		return n, nil
	case string, bool, nil:
		return x, nil
	}
	return nil, fmt.Errorf("decode: unexpected token %v", tok)
}

// FromPlain converts nested Go maps and slices into runtime values. Map
// keys are laid out in sorted order.
func FromPlain(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(x))
		for name := range x {
			names = append(names, name)
		}
		sort.Strings(names)
		obj := NewObject()
		for _, name := range names {
			child, err := FromPlain(x[name])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			obj.store(name, child)
		}
		return obj, nil
	case []any:
		list := NewList()
		for i, item := range x {
			child, err := FromPlain(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list.items = append(list.items, child)
		}
		return list, nil
	}
	return Normalize(v)
}

// Plain converts a runtime value back into nested Go maps and slices.
// Objects become map[string]any, dicts with non-string keys map[any]any,
// and lists []any. Cyclic values are rejected.
func Plain(v any) (any, error) {
	return plain(v, make(map[*Composite]bool))
}

func plain(v any, seen map[*Composite]bool) (any, error) {
	c, ok := v.(*Composite)
	if !ok {
		return v, nil
	}
	if seen[c] {
		return nil, fmt.Errorf("plain: value is cyclic")
	}
	seen[c] = true
	defer delete(seen, c)

	if c.kind == types.KindList {
		out := make([]any, len(c.items))
		for i, item := range c.items {
			p, err := plain(item, seen)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}

	stringKeys := true
	for _, k := range c.keys {
		if _, ok := k.(string); !ok {
			stringKeys = false
			break
		}
	}
	if stringKeys {
		out := make(map[string]any, len(c.keys))
		for _, k := range c.keys {
			p, err := plain(c.entries[k], seen)
			if err != nil {
				return nil, err
			}
			out[k.(string)] = p
		}
		return out, nil
	}
	out := make(map[any]any, len(c.keys))
	for _, k := range c.keys {
		p, err := plain(c.entries[k], seen)
		if err != nil {
			return nil, err
		}
		out[k] = p
	}
	return out, nil
}
