package data

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
)

// Visitor is called once per record, in order, after the record has been packed.
type Visitor func(index int, record Record)

// Lookup resolves a reference id to a packed index. Returning NoIndex with true marks an id as
// known but unbound, which packs NoIndex without a warning.
type Lookup func(id any) (uint32, bool)

// ColorResolver turns a color value (token, tuple or registry index) into RGBA.
type ColorResolver interface {
	Resolve(v any) (color.RGBA, error)
}

type parseResolver struct{}

func (parseResolver) Resolve(v any) (color.RGBA, error) {
	return colors.Parse(v)
}

// PackedBuffer is a contiguous interleaved byte buffer with a fixed record stride.
type PackedBuffer struct {
	Bytes   []byte
	Stride  uint32
	Offsets map[string]uint32
}

// Count returns the number of records in the buffer.
func (b PackedBuffer) Count() int {
	if b.Stride == 0 {
		return 0
	}
	return len(b.Bytes) / int(b.Stride)
}

// Uint32At reads the little-endian word at component of field for record i.
//
// Parameters:
//   - i: the record index
//   - field: the field name
//   - component: the component index within the field
//
// Returns:
//   - uint32: the packed word, zero if the field does not exist
func (b PackedBuffer) Uint32At(i int, field string, component int) uint32 {
	off, ok := b.Offsets[field]
	if !ok {
		return 0
	}
	at := i*int(b.Stride) + int(off) + component*4
	return binary.LittleEndian.Uint32(b.Bytes[at : at+4])
}

// Float32At reads the float at component of field for record i.
func (b PackedBuffer) Float32At(i int, field string, component int) float32 {
	return math.Float32frombits(b.Uint32At(i, field, component))
}

// Packer writes records into a PackedBuffer according to a fixed Layout.
type Packer interface {
	// Layout returns the layout the packer writes.
	Layout() Layout

	// Pack writes every record at index*stride. Records are never reordered or dropped.
	// Values that cannot be coerced are replaced by a default and reported as warnings.
	// The visitor, if not nil, runs serially in record order once packing has finished.
	//
	// Parameters:
	//   - records: the records to pack
	//   - visit: optional per-record callback
	//
	// Returns:
	//   - PackedBuffer: the packed bytes, len == len(records)*stride
	//   - []Warning: the recoverable problems found, in record order
	Pack(records []Record, visit Visitor) (PackedBuffer, []Warning)
}

type packer struct {
	layout    Layout
	pool      worker.DynamicWorkerPool
	chunkSize int
	lookups   map[string]Lookup
	colors    ColorResolver
}

var _ Packer = &packer{}

// NewPacker creates a packer for the given layout.
//
// Parameters:
//   - layout: the layout returned by ResolveLayout
//   - options: builder options
//
// Returns:
//   - Packer: the packer
func NewPacker(layout Layout, options ...PackerBuilderOption) Packer {
	p := &packer{
		layout:    layout,
		chunkSize: 4096,
		lookups:   make(map[string]Lookup),
		colors:    parseResolver{},
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *packer) Layout() Layout {
	return p.layout
}

func (p *packer) Pack(records []Record, visit Visitor) (PackedBuffer, []Warning) {
	stride := int(p.layout.Stride)
	out := PackedBuffer{
		Bytes:   make([]byte, len(records)*stride),
		Stride:  p.layout.Stride,
		Offsets: p.layout.Offsets(),
	}

	var warnings []Warning
	if p.pool == nil || len(records) <= p.chunkSize {
		warnings = p.packRange(records, 0, len(records), out.Bytes)
	} else {
		warnings = p.packParallel(records, out.Bytes)
	}

	if visit != nil {
		for i, r := range records {
			visit(i, r)
		}
	}
	return out, warnings
}

// packParallel splits records into disjoint chunks and packs them on the worker pool.
// Each chunk owns its byte range and warning slice, so no locking is needed.
func (p *packer) packParallel(records []Record, dst []byte) []Warning {
	chunks := (len(records) + p.chunkSize - 1) / p.chunkSize
	chunkWarnings := make([][]Warning, chunks)

	var wg sync.WaitGroup
	for c := range chunks {
		start := c * p.chunkSize
		end := min(start+p.chunkSize, len(records))
		wg.Add(1)
		p.pool.SubmitTask(worker.Task{
			ID: c,
			Do: func() (any, error) {
				defer wg.Done()
				chunkWarnings[c] = p.packRange(records, start, end, dst)
				return nil, nil
			},
		})
	}
	wg.Wait()

	var warnings []Warning
	for _, w := range chunkWarnings {
		warnings = append(warnings, w...)
	}
	return warnings
}

func (p *packer) packRange(records []Record, start, end int, dst []byte) []Warning {
	var warnings []Warning
	stride := int(p.layout.Stride)
	for i := start; i < end; i++ {
		base := i * stride
		for _, f := range p.layout.Fields {
			at := base + int(f.Offset)
			warnings = p.packField(i, records[i], f, dst[at:at+int(f.Size())], warnings)
		}
	}
	return warnings
}

func (p *packer) packField(index int, r Record, f FieldDescriptor, dst []byte, warnings []Warning) []Warning {
	v, ok := r[f.Source]
	if !ok || v == nil {
		if f.Default == nil {
			warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnMissingField,
				Message: fmt.Sprintf("field %q is missing", f.Source)})
			p.writeZero(f, dst)
			return warnings
		}
		v = f.Default
	}

	switch f.Type {
	case FieldColor:
		c, err := p.colors.Resolve(v)
		if err != nil {
			warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnCoercion, Message: err.Error()})
			return warnings
		}
		binary.LittleEndian.PutUint32(dst, colors.Pack(c))
		return warnings
	case FieldPointRef:
		return p.packRefs(index, f, v, dst, warnings)
	}

	values, isTuple := tupleOf(v)
	if !isTuple {
		values = []any{v}
	} else if len(values) > int(f.Components) {
		warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnTruncated,
			Message: fmt.Sprintf("tuple of %d truncated to %d components", len(values), f.Components)})
	}

	for c := range int(f.Components) {
		if c >= len(values) {
			break
		}
		n, ok := toFloat64(values[c])
		if !ok {
			warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnCoercion,
				Message: fmt.Sprintf("cannot use %T as %s", values[c], f.Type)})
			continue
		}
		switch f.Type {
		case FieldInt32:
			binary.LittleEndian.PutUint32(dst[c*4:], uint32(clampInt32(n)))
		case FieldUint32:
			binary.LittleEndian.PutUint32(dst[c*4:], clampUint32(n))
		case FieldUint8Norm:
			dst[c] = unorm8(n)
		default:
			binary.LittleEndian.PutUint32(dst[c*4:], math.Float32bits(float32(n)))
		}
	}
	return warnings
}

func (p *packer) packRefs(index int, f FieldDescriptor, v any, dst []byte, warnings []Warning) []Warning {
	lookup := p.lookups[f.Lookup]
	ids, isTuple := tupleOf(v)
	if !isTuple {
		ids = []any{v}
	} else if len(ids) > int(f.Components) {
		warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnTruncated,
			Message: fmt.Sprintf("tuple of %d truncated to %d components", len(ids), f.Components)})
	}

	for c := range int(f.Components) {
		idx := NoIndex
		if c < len(ids) && ids[c] != nil {
			known := false
			if lookup != nil {
				idx, known = lookup(ids[c])
				if !known {
					idx = NoIndex
				}
			}
			// a lookup may know an id and still map it to NoIndex; only unknown ids warn
			if !known {
				warnings = append(warnings, Warning{Record: index, Field: f.Name, Kind: WarnUnresolvedRef,
					Message: fmt.Sprintf("unknown id %v", ids[c])})
			}
		}
		binary.LittleEndian.PutUint32(dst[c*4:], idx)
	}
	return warnings
}

// writeZero writes the zero value of a missing field. References get NoIndex in every component.
func (p *packer) writeZero(f FieldDescriptor, dst []byte) {
	if f.Type != FieldPointRef {
		return
	}
	for c := range int(f.Components) {
		binary.LittleEndian.PutUint32(dst[c*4:], NoIndex)
	}
}
