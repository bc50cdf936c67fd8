// Package points holds the shared coordinate table that node and edge pipelines reference by id.
package points

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// pointStride is the size of one mirrored point: vec4<f32>(x, y, z, radius).
const pointStride = 16

// Point is one shared coordinate.
type Point struct {
	// ID is the identity of the point, a string or any numeric value.
	ID     any
	X, Y   float32
	Z      float32
	Radius float32
}

// Bounds summarizes the extent of the stored points.
type Bounds struct {
	Min       [3]float32
	Max       [3]float32
	MaxRadius float32
	Count     int
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() [3]float32 {
	return [3]float32{(b.Min[0] + b.Max[0]) / 2, (b.Min[1] + b.Max[1]) / 2, (b.Min[2] + b.Max[2]) / 2}
}

// Size returns the extent of the bounds along each axis.
func (b Bounds) Size() [3]float32 {
	return [3]float32{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// store is the implementation of the Store interface.
type store struct {
	mu *sync.Mutex

	index  map[any]uint32
	ids    []any
	coords []float32

	defaultRadius float32
	idKey         string

	provider   bind_group_provider.BindGroupProvider
	mirrorLen  int
	dirty      bool
	generation uint64
}

// Store is the append-only id to index table of shared points and its GPU mirror.
//
// Indices are assigned in insertion order and never change. Inserting an id that already exists
// keeps its index and overwrites its coordinates. The store is filled by a single owner during
// load and is read-only afterwards.
type Store interface {
	// Insert adds or overwrites a point.
	//
	// Parameters:
	//   - p: the point to insert
	//
	// Returns:
	//   - uint32: the index of the point
	//   - error: an error if the id is not a string or number
	Insert(p Point) (uint32, error)

	// InsertRecords inserts one point per record. Coordinates are read from "x", "y", "z" or from
	// a "position" tuple, the radius from "radius". Records without a usable id are skipped and
	// reported.
	//
	// Parameters:
	//   - records: the point records
	//
	// Returns:
	//   - []data.Warning: the records that were skipped or partially read
	InsertRecords(records []data.Record) []data.Warning

	// Lookup resolves an id to its index. It has the signature of data.Lookup.
	//
	// Parameters:
	//   - id: the point id
	//
	// Returns:
	//   - uint32: the index
	//   - bool: false if the id is unknown
	Lookup(id any) (uint32, bool)

	// Point returns the point at index.
	Point(index uint32) (Point, bool)

	// Len returns the number of points.
	Len() int

	// Coordinates returns a copy of the flat (x, y, z, radius) array.
	Coordinates() []float32

	// Bounds returns the extent of all points.
	Bounds() Bounds

	// Mirror returns the GPU storage buffer holding the coordinates, rebuilding it first if the
	// store grew (new buffer) or a value was overwritten (re-upload) since the last call.
	//
	// Parameters:
	//   - r: the renderer that owns the buffer
	//
	// Returns:
	//   - *wgpu.Buffer: the mirror buffer
	//   - error: an error if the buffer could not be created
	Mirror(r renderer.Renderer) (*wgpu.Buffer, error)

	// MirrorSize returns the size in bytes of the current mirror buffer.
	MirrorSize() uint64

	// Generation increases every time Mirror replaces the buffer. Consumers that bound the old
	// buffer must rebind when it changes.
	Generation() uint64

	// Release frees the mirror buffer.
	Release(r renderer.Renderer)
}

var _ Store = &store{}

// NewStore creates an empty point store.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Store: the store
func NewStore(options ...StoreBuilderOption) Store {
	s := &store{
		mu:            &sync.Mutex{},
		index:         make(map[any]uint32),
		defaultRadius: 1,
		idKey:         "id",
		provider:      bind_group_provider.NewBindGroupProvider("points"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *store) Insert(p Point) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(p)
}

func (s *store) insert(p Point) (uint32, error) {
	key, ok := data.NormalizeID(p.ID)
	if !ok {
		return data.NoIndex, fmt.Errorf("points: invalid id %v (%T)", p.ID, p.ID)
	}
	if idx, exists := s.index[key]; exists {
		copy(s.coords[idx*4:idx*4+4], []float32{p.X, p.Y, p.Z, p.Radius})
		if int(idx) < s.mirrorLen {
			s.dirty = true
		}
		return idx, nil
	}
	idx := uint32(len(s.ids))
	s.index[key] = idx
	s.ids = append(s.ids, p.ID)
	s.coords = append(s.coords, p.X, p.Y, p.Z, p.Radius)
	return idx, nil
}

func (s *store) InsertRecords(records []data.Record) []data.Warning {
	s.mu.Lock()
	defer s.mu.Unlock()

	var warnings []data.Warning
	for i, r := range records {
		p := Point{ID: r[s.idKey], Radius: s.defaultRadius}
		if pos, ok := r["position"]; ok {
			comps, ok := floats(pos)
			if !ok || len(comps) < 2 {
				warnings = append(warnings, data.Warning{Record: i, Field: "position", Kind: data.WarnCoercion,
					Message: fmt.Sprintf("cannot use %v as a position", pos)})
			}
			for c, dst := range []*float32{&p.X, &p.Y, &p.Z} {
				if c < len(comps) {
					*dst = comps[c]
				}
			}
		} else {
			for _, f := range []struct {
				key      string
				dst      *float32
				required bool
			}{{"x", &p.X, true}, {"y", &p.Y, true}, {"z", &p.Z, false}} {
				v, ok := r[f.key]
				if !ok {
					if f.required {
						warnings = append(warnings, data.Warning{Record: i, Field: f.key, Kind: data.WarnMissingField,
							Message: fmt.Sprintf("field %q is missing", f.key)})
					}
					continue
				}
				if !scalar(v, f.dst) {
					warnings = append(warnings, data.Warning{Record: i, Field: f.key, Kind: data.WarnCoercion,
						Message: fmt.Sprintf("cannot use %T as a coordinate", v)})
				}
			}
		}
		if v, ok := r["radius"]; ok && !scalar(v, &p.Radius) {
			warnings = append(warnings, data.Warning{Record: i, Field: "radius", Kind: data.WarnCoercion,
				Message: fmt.Sprintf("cannot use %T as a radius", v)})
		}
		if _, err := s.insert(p); err != nil {
			kind := data.WarnCoercion
			if p.ID == nil {
				kind = data.WarnMissingField
			}
			warnings = append(warnings, data.Warning{Record: i, Field: s.idKey, Kind: kind, Message: err.Error()})
		}
	}
	return warnings
}

func (s *store) Lookup(id any) (uint32, bool) {
	key, ok := data.NormalizeID(id)
	if !ok {
		return data.NoIndex, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[key]
	return idx, ok
}

func (s *store) Point(index uint32) (Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(index) >= len(s.ids) {
		return Point{}, false
	}
	c := s.coords[index*4 : index*4+4]
	return Point{ID: s.ids[index], X: c[0], Y: c[1], Z: c[2], Radius: c[3]}, true
}

func (s *store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *store) Coordinates() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float32(nil), s.coords...)
}

func (s *store) Bounds() Bounds {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := Bounds{Count: len(s.ids)}
	if b.Count == 0 {
		return b
	}
	for axis := range 3 {
		b.Min[axis] = math.MaxFloat32
		b.Max[axis] = -math.MaxFloat32
	}
	for i := 0; i < len(s.coords); i += 4 {
		for axis := range 3 {
			b.Min[axis] = min(b.Min[axis], s.coords[i+axis])
			b.Max[axis] = max(b.Max[axis], s.coords[i+axis])
		}
		b.MaxRadius = max(b.MaxRadius, s.coords[i+3])
	}
	return b
}

func (s *store) Mirror(r renderer.Renderer) (*wgpu.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.provider.Buffer(0)
	switch {
	case buf == nil || len(s.ids) > s.mirrorLen:
		created, err := r.InitBuffer(s.provider, 0, wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc, pointStride, s.bytes())
		if err != nil {
			return nil, fmt.Errorf("points: failed to create mirror for %d points: %w", len(s.ids), err)
		}
		s.mirrorLen = len(s.ids)
		s.dirty = false
		s.generation++
		common.Logger().Debug("point mirror rebuilt", "points", s.mirrorLen, "generation", s.generation)
		return created, nil
	case s.dirty:
		r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: s.provider, Binding: 0, Data: s.bytes()}})
		s.dirty = false
	}
	return buf, nil
}

func (s *store) MirrorSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(max(s.mirrorLen*pointStride, pointStride))
}

func (s *store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *store) Release(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ReleaseBindGroup(s.provider)
	s.mirrorLen = 0
	s.dirty = false
}

// bytes encodes the coordinates little endian.
func (s *store) bytes() []byte {
	out := make([]byte, len(s.coords)*4)
	for i, f := range s.coords {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
