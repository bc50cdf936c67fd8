package data

import (
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
)

// maxComponents is the widest vector a single field can hold.
const maxComponents = 4

// ResolveLayout derives a packed layout for records.
//
// When specs are given, the layout holds exactly those fields in that order and only the
// unset parts of each spec are inferred. Without specs, every key seen in any record becomes a
// field, in sorted order.
//
// Inference scans for the first non-nil value of a field: numbers resolve to float32 unless
// every numeric value of the field is an integer kind (int32) or unsigned kind (uint32);
// numeric 3-tuples and color strings resolve to color; other numeric tuples to float32 vectors;
// other strings and string tuples to point references. Values in later records that do not fit
// the resolved type are reported by the packer, never here.
//
// Parameters:
//   - records: the record sequence
//   - specs: optional per-field declarations overriding inference
//
// Returns:
//   - Layout: the resolved layout
//   - error: ErrNoRecords if inference is needed and records is empty
func ResolveLayout(records []Record, specs ...FieldSpec) (Layout, error) {
	if len(specs) == 0 {
		if len(records) == 0 {
			return Layout{}, ErrNoRecords
		}
		specs = specsFromKeys(records)
	}

	fields := make([]FieldDescriptor, 0, len(specs))
	for _, spec := range specs {
		if spec.Name == "" {
			return Layout{}, fmt.Errorf("data: field spec without a name")
		}
		source := spec.Source
		if source == "" {
			source = spec.Name
		}
		typ, comps := spec.Type, spec.Components
		switch {
		case len(records) == 0 && typ == FieldAuto:
			return Layout{}, fmt.Errorf("field %q: %w", spec.Name, ErrNoRecords)
		case len(records) == 0 && comps == 0:
			comps = 1
		case typ == FieldAuto || comps == 0:
			inferredType, inferredComps := inferField(records, source)
			if typ == FieldAuto {
				typ = inferredType
			}
			if comps == 0 {
				comps = componentsFor(typ, records, source, inferredComps)
			}
		}
		if typ == FieldColor {
			comps = 1
		}
		comps = min(max(comps, 1), maxComponents)
		fields = append(fields, FieldDescriptor{
			Name:       spec.Name,
			Source:     source,
			Type:       typ,
			Components: comps,
			Lookup:     spec.Lookup,
			Default:    spec.Default,
		})
	}
	return newLayout(fields), nil
}

func specsFromKeys(records []Record) []FieldSpec {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for k := range seen {
		names = append(names, k)
	}
	sort.Strings(names)
	specs := make([]FieldSpec, len(names))
	for i, n := range names {
		specs[i] = FieldSpec{Name: n}
	}
	return specs
}

// inferField determines the type and component count of a field from its first non-nil value.
func inferField(records []Record, key string) (FieldType, uint32) {
	var first any
	for _, r := range records {
		if v, ok := r[key]; ok && v != nil {
			first = v
			break
		}
	}
	if first == nil {
		return FieldFloat32, 1
	}

	if s, ok := first.(string); ok {
		if colors.IsToken(s) {
			return FieldColor, 1
		}
		return FieldPointRef, 1
	}

	if tuple, ok := tupleOf(first); ok {
		if len(tuple) > 0 {
			if _, isString := tuple[0].(string); isString {
				return FieldPointRef, longestTuple(records, key)
			}
		}
		if len(tuple) == 3 {
			return FieldColor, 1
		}
		return FieldFloat32, uint32(min(max(len(tuple), 1), maxComponents))
	}

	switch classify(first) {
	case classBool:
		return FieldUint32, 1
	case classSigned, classUnsigned, classFloat:
		return numericType(records, key), 1
	}
	return FieldFloat32, 1
}

// numericType applies the integer-ness heuristic across every numeric value of a field.
func numericType(records []Record, key string) FieldType {
	signed, unsigned := false, false
	for _, r := range records {
		switch classify(r[key]) {
		case classFloat:
			return FieldFloat32
		case classSigned:
			signed = true
		case classUnsigned:
			unsigned = true
		}
	}
	if unsigned && !signed {
		return FieldUint32
	}
	return FieldInt32
}

func componentsFor(typ FieldType, records []Record, key string, inferred uint32) uint32 {
	switch typ {
	case FieldColor:
		return 1
	case FieldPointRef:
		return longestTuple(records, key)
	default:
		return inferred
	}
}

// longestTuple returns the longest tuple length of a field, at least 1.
func longestTuple(records []Record, key string) uint32 {
	longest := 1
	for _, r := range records {
		if t, ok := tupleOf(r[key]); ok && len(t) > longest {
			longest = len(t)
		}
	}
	return uint32(min(longest, maxComponents))
}
