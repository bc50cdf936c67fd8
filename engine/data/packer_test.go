package data

import (
	"fmt"
	"image/color"
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack_RoundTrip(t *testing.T) {
	records := []Record{
		{"pos": []float64{1, 2}, "count": 3, "color": "#ff0000"},
		{"pos": []float64{-4, 5.5}, "count": -7, "color": []int{0, 255, 0}},
		{"pos": []float64{0, 0}, "count": 0, "color": "blue"},
	}
	layout, err := ResolveLayout(records)
	require.NoError(t, err)

	buf, warnings := NewPacker(layout).Pack(records, nil)
	require.Empty(t, warnings)
	require.Equal(t, len(records)*int(layout.Stride), len(buf.Bytes))
	require.Equal(t, 3, buf.Count())

	assert.Equal(t, float32(-4), buf.Float32At(1, "pos", 0))
	assert.Equal(t, float32(5.5), buf.Float32At(1, "pos", 1))
	assert.Equal(t, int32(-7), int32(buf.Uint32At(1, "count", 0)))
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, colors.Unpack(buf.Uint32At(0, "color", 0)))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, colors.Unpack(buf.Uint32At(1, "color", 0)))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, colors.Unpack(buf.Uint32At(2, "color", 0)))
}

func TestPack_CoercionWarning(t *testing.T) {
	records := []Record{{"v": 1}, {"v": 2.5}, {"v": "x"}}
	layout, err := ResolveLayout(records)
	require.NoError(t, err)

	buf, warnings := NewPacker(layout).Pack(records, nil)
	assert.Equal(t, float32(1), buf.Float32At(0, "v", 0))
	assert.Equal(t, float32(2.5), buf.Float32At(1, "v", 0))
	assert.Equal(t, float32(0), buf.Float32At(2, "v", 0))
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Record)
	assert.Equal(t, WarnCoercion, warnings[0].Kind)
}

func TestPack_PointRefs(t *testing.T) {
	ids := map[string]uint32{"a": 0, "b": 1}
	lookup := func(id any) (uint32, bool) {
		s, ok := id.(string)
		if !ok {
			return 0, false
		}
		i, ok := ids[s]
		return i, ok
	}
	records := []Record{{"point": "b"}, {"point": "missing"}, {}}
	layout, err := ResolveLayout(records, FieldSpec{Name: "point", Type: FieldPointRef})
	require.NoError(t, err)

	buf, warnings := NewPacker(layout, WithPointLookup(lookup)).Pack(records, nil)
	assert.Equal(t, uint32(1), buf.Uint32At(0, "point", 0))
	assert.Equal(t, NoIndex, buf.Uint32At(1, "point", 0))
	assert.Equal(t, NoIndex, buf.Uint32At(2, "point", 0))

	require.Len(t, warnings, 2)
	assert.Equal(t, WarnUnresolvedRef, warnings[0].Kind)
	assert.Equal(t, WarnMissingField, warnings[1].Kind)
}

func TestPack_NamedLookupAndDefault(t *testing.T) {
	nodes := func(id any) (uint32, bool) { return 7, id == "n" }
	records := []Record{{"target": "n"}, {}}
	layout, err := ResolveLayout(records,
		FieldSpec{Name: "targetNode", Source: "target", Type: FieldPointRef, Lookup: "nodes"},
		FieldSpec{Name: "width", Type: FieldFloat32, Default: 2.0},
	)
	require.NoError(t, err)

	buf, warnings := NewPacker(layout, WithLookup("nodes", nodes)).Pack(records, nil)
	assert.Equal(t, uint32(7), buf.Uint32At(0, "targetNode", 0))
	assert.Equal(t, float32(2), buf.Float32At(0, "width", 0))
	assert.Equal(t, float32(2), buf.Float32At(1, "width", 0))
	require.Len(t, warnings, 1, "only the reference without a default warns")
	assert.Equal(t, "targetNode", warnings[0].Field)
}

func TestPack_TruncatedTupleAndUnorm(t *testing.T) {
	records := []Record{{"v": []float64{0, 0.5, 1, 2, 3}}}
	layout, err := ResolveLayout(records, FieldSpec{Name: "v", Type: FieldUint8Norm, Components: 4})
	require.NoError(t, err)

	buf, warnings := NewPacker(layout).Pack(records, nil)
	assert.Equal(t, []byte{0, 128, 255, 255}, buf.Bytes)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnTruncated, warnings[0].Kind)
}

func TestPack_VisitorOrder(t *testing.T) {
	records := []Record{{"v": 1.0}, {"v": 2.0}, {"v": 3.0}}
	layout, err := ResolveLayout(records)
	require.NoError(t, err)

	var seen []int
	NewPacker(layout).Pack(records, func(i int, r Record) {
		assert.Equal(t, records[i]["v"], r["v"])
		seen = append(seen, i)
	})
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestPack_ParallelMatchesSerial(t *testing.T) {
	records := make([]Record, 1000)
	for i := range records {
		r := Record{"v": float64(i), "id": fmt.Sprintf("n%d", i)}
		if i%97 == 0 {
			r["v"] = "bad"
		}
		records[i] = r
	}
	layout, err := ResolveLayout(records,
		FieldSpec{Name: "v", Type: FieldFloat32},
		FieldSpec{Name: "id", Type: FieldPointRef},
	)
	require.NoError(t, err)

	serial, serialWarnings := NewPacker(layout).Pack(records, nil)

	pool := worker.NewDynamicWorkerPool(max(runtime.NumCPU()-1, 1), 256, time.Second)
	defer pool.Stop()
	var visited int
	parallel, parallelWarnings := NewPacker(layout, WithWorkerPool(pool), WithChunkSize(64)).
		Pack(records, func(i int, _ Record) {
			assert.Equal(t, visited, i)
			visited++
		})

	assert.Equal(t, serial.Bytes, parallel.Bytes)
	assert.Equal(t, serialWarnings, parallelWarnings)
	assert.Equal(t, len(records), visited)
}

func TestPack_RegistryColors(t *testing.T) {
	reg, err := colors.NewRegistry("red", "lime")
	require.NoError(t, err)
	records := []Record{{"c": 1}, {"c": "blue"}, {"c": 9}}
	layout, err := ResolveLayout(records, FieldSpec{Name: "c", Type: FieldColor})
	require.NoError(t, err)

	buf, warnings := NewPacker(layout, WithColorParser(reg)).Pack(records, nil)
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, colors.Unpack(buf.Uint32At(0, "c", 0)))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, colors.Unpack(buf.Uint32At(1, "c", 0)))
	assert.Equal(t, uint32(0), buf.Uint32At(2, "c", 0))
	require.Len(t, warnings, 1)
	assert.Equal(t, 2, warnings[0].Record)
}
