package data

import (
	"math"
	"reflect"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// numericClass buckets a Go value by how it can be packed.
type numericClass int

const (
	classNone numericClass = iota
	classSigned
	classUnsigned
	classFloat
	classBool
)

func classify(v any) numericClass {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classSigned
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return classUnsigned
	case reflect.Float32, reflect.Float64:
		return classFloat
	case reflect.Bool:
		return classBool
	default:
		return classNone
	}
}

// toFloat64 converts any Go numeric value; bools pack as 0 and 1.
func toFloat64(v any) (float64, bool) {
	if b, ok := v.(bool); ok {
		if b {
			return 1, true
		}
		return 0, true
	}
	return common.ToFloat64(v)
}

// tupleOf returns the elements of a slice or array value.
func tupleOf(v any) ([]any, bool) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func clampInt32(f float64) int32 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(f)
	}
}

func clampUint32(f float64) uint32 {
	switch {
	case math.IsNaN(f) || f <= 0:
		return 0
	case f >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(f)
	}
}

func unorm8(f float64) uint8 {
	if math.IsNaN(f) {
		return 0
	}
	return uint8(math.Round(math.Max(0, math.Min(1, f)) * 255))
}

// NormalizeID maps an id to a comparable map key. Numeric ids of any Go kind compare equal by
// value, so 7, int64(7) and 7.0 name the same element. Integral values are keyed as int64 (or
// uint64 above the int64 range) so large ids stay distinct. Strings compare by content.
//
// Parameters:
//   - id: the raw id value of a record
//
// Returns:
//   - any: the normalized key, an int64, uint64, float64 or string
//   - bool: false if id is nil, NaN or not a scalar
func NormalizeID(id any) (any, bool) {
	switch v := id.(type) {
	case nil, bool:
		return nil, false
	case string:
		return v, true
	}
	rv := reflect.ValueOf(id)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u <= math.MaxInt64 {
			return int64(u), true
		}
		return u, true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		switch {
		case math.IsNaN(f):
			return nil, false
		case f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64:
			return int64(f), true
		case f == math.Trunc(f) && f >= math.MaxInt64 && f < math.MaxUint64:
			return uint64(f), true
		}
		return f, true
	}
	return nil, false
}
