package config

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// toNative converts a cty.Value into plain Go values: strings, float64 numbers, bools, []any
// and map[string]any. Null and unknown values become nil.
func toNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("number %s: %w", v.AsBigFloat().String(), err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := toNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := toNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported value of type %s", ty.FriendlyName())
	}
}

// toRecords converts a list of objects into records. A null value is an empty list.
//
// Parameters:
//   - what: names the attribute in errors
//   - v: the list
//
// Returns:
//   - []data.Record: one record per object
//   - error: an error if v is not a list of objects
func toRecords(what string, v cty.Value) ([]data.Record, error) {
	native, err := toNative(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", what, err)
	}
	if native == nil {
		return nil, nil
	}
	list, ok := native.([]any)
	if !ok {
		return nil, fmt.Errorf("config: %s: expected a list of objects, got %s", what, v.Type().FriendlyName())
	}
	records := make([]data.Record, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config: %s[%d]: expected an object", what, i)
		}
		records[i] = data.Record(m)
	}
	return records, nil
}

// toList converts a list value into a slice. A null value is an empty slice.
func toList(what string, v cty.Value) ([]any, error) {
	native, err := toNative(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", what, err)
	}
	if native == nil {
		return nil, nil
	}
	list, ok := native.([]any)
	if !ok {
		return nil, fmt.Errorf("config: %s: expected a list, got %s", what, v.Type().FriendlyName())
	}
	return list, nil
}

// toMap converts an object value into a map. A null value is an empty map.
func toMap(what string, v cty.Value) (map[string]any, error) {
	native, err := toNative(v)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", what, err)
	}
	if native == nil {
		return nil, nil
	}
	m, ok := native.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config: %s: expected an object, got %s", what, v.Type().FriendlyName())
	}
	return m, nil
}
