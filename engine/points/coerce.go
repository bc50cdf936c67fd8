package points

import (
	"reflect"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// scalar writes a numeric v into dst and reports whether v was numeric.
func scalar(v any, dst *float32) bool {
	f, ok := common.ToFloat64(v)
	if ok {
		*dst = float32(f)
	}
	return ok
}

// floats converts a numeric slice or array.
func floats(v any) ([]float32, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]float32, rv.Len())
	for i := range out {
		if !scalar(rv.Index(i).Interface(), &out[i]) {
			return nil, false
		}
	}
	return out, true
}
