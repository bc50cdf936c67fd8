// Package graphtest runs the node and edge compute shaders on the CPU and rasterizes their
// picking draws, for tests driving a renderertest.Fake.
package graphtest

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-graph/engine/colors"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
	"github.com/Carmen-Shannon/oxy-graph/engine/element"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/edges"
	"github.com/Carmen-Shannon/oxy-graph/engine/graph/nodes"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderable"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-graph/engine/renderer/shader"
)

// Install registers the node and edge kernels on f and makes f rasterize node and edge picking
// draws.
//
// Parameters:
//   - f: the fake renderer
func Install(f *renderertest.Fake) {
	f.RegisterKernel(nodes.Kind{}.Key(), NodeKernel())
	for _, v := range []edges.Variant{edges.Straight, edges.CurvedPath, edges.Gravity} {
		f.RegisterKernel(edges.KindOf(v).Key(), EdgeKernel(v))
	}
	f.SetRasterizer(Rasterizer(f))
}

func u32(b []byte, at uint32) uint32 {
	return binary.LittleEndian.Uint32(b[at:])
}

func f32(b []byte, at uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[at:]))
}

func putVec4(b []byte, at int, v [4]float32) {
	for c := range v {
		binary.LittleEndian.PutUint32(b[at+c*4:], math.Float32bits(v[c]))
	}
}

func vec4(b []byte, at int) [4]float32 {
	var v [4]float32
	for c := range v {
		v[c] = math.Float32frombits(binary.LittleEndian.Uint32(b[at+c*4:]))
	}
	return v
}

// unorm unpacks a packed RGBA8 word like unpack4x8unorm.
func unorm(word uint32) [4]float32 {
	c := colors.Unpack(word)
	return [4]float32{float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255}
}

// layoutOf resolves the layout every record set of kind packs to. All kinds of this module
// force their field types, so it does not depend on the records.
func layoutOf(kind element.Kind) data.Layout {
	layout, err := data.ResolveLayout(nil, kind.SourceFields()...)
	if err != nil {
		panic(err)
	}
	return layout
}

func offsetOf(layout data.Layout, name string) uint32 {
	f, ok := layout.Field(name)
	if !ok {
		panic("graphtest: no field " + name)
	}
	return f.Offset
}

type buffers struct {
	params, records, points, nodes, out []byte
}

func bound(f *renderertest.Fake, p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider) buffers {
	s := p.Shader(shader.ShaderTypeCompute)
	get := func(identity shader.AnnotationArg) []byte {
		_, binding, ok := s.Binding(identity)
		if !ok {
			return nil
		}
		return f.Bytes(provider.Buffer(binding))
	}
	return buffers{
		params:  get(shader.AnnotationArgParams),
		records: get(shader.AnnotationArgRecordBuffer),
		points:  get(shader.AnnotationArgPoints),
		nodes:   get(shader.AnnotationArgNodes),
		out:     get(shader.AnnotationArgTarget),
	}
}

func pointAt(points []byte, p uint32) ([4]float32, bool) {
	if p == data.NoIndex || int(p+1)*16 > len(points) {
		return [4]float32{}, false
	}
	return vec4(points, int(p)*16), true
}

func nodeAt(nodeBuf []byte, n uint32) ([4]float32, [4]float32, bool) {
	if n == data.NoIndex || int(n+1)*32 > len(nodeBuf) {
		return [4]float32{}, [4]float32{}, false
	}
	return vec4(nodeBuf, int(n)*32), vec4(nodeBuf, int(n)*32+16), true
}

// invocations is the number of records a dispatch of wg workgroups of 64 covers.
func invocations(count uint32, wg [3]uint32) int {
	return int(min(count, wg[0]*64))
}

// NodeKernel mirrors the node compute shader.
//
// Returns:
//   - renderertest.Kernel: the kernel
func NodeKernel() renderertest.Kernel {
	layout := layoutOf(nodes.Kind{})
	point, col, radius := offsetOf(layout, "point"), offsetOf(layout, "color"), offsetOf(layout, "radius")
	return func(f *renderertest.Fake, p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, wg [3]uint32) error {
		b := bound(f, p, provider)
		if b.params == nil || b.records == nil || b.points == nil || b.out == nil {
			return errors.New("graphtest: unbound node buffer")
		}
		minRadius := f32(b.params, 4)
		for i := range invocations(u32(b.params, 0), wg) {
			rec := b.records[uint32(i)*layout.Stride:]
			pt, _ := pointAt(b.points, u32(rec, point))
			r := f32(rec, radius)
			if r <= 0 {
				r = pt[3]
			}
			r = max(r, minRadius)
			putVec4(b.out, i*32, [4]float32{pt[0], pt[1], pt[2], r})
			putVec4(b.out, i*32+16, unorm(u32(rec, col)))
		}
		return nil
	}
}

// EdgeKernel mirrors the edge compute shader of variant.
//
// Parameters:
//   - variant: the edge variant
//
// Returns:
//   - renderertest.Kernel: the kernel
func EdgeKernel(variant edges.Variant) renderertest.Kernel {
	kind := edges.KindOf(variant)
	layout := layoutOf(kind)
	stride := int(kind.TargetStruct().Stride)
	off := func(name string) uint32 { return offsetOf(layout, name) }
	source, target := off("source"), off("target")
	sourceNode, targetNode := off("sourceNode"), off("targetNode")
	sourceColor, targetColor, width := off("sourceColor"), off("targetColor"), off("width")

	return func(f *renderertest.Fake, p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, wg [3]uint32) error {
		b := bound(f, p, provider)
		if b.params == nil || b.records == nil || b.points == nil || b.out == nil {
			return errors.New("graphtest: unbound edge buffer")
		}
		gravity := f32(b.params, 4)
		origin := [2]float32{f32(b.params, 8), f32(b.params, 12)}

		endpoint := func(pi, ni uint32) [4]float32 {
			pt, _ := pointAt(b.points, pi)
			pos, _, ok := nodeAt(b.nodes, ni)
			if !ok {
				return [4]float32{pt[0], pt[1], pt[2], 0}
			}
			return [4]float32{pt[0], pt[1], pt[2], pos[3]}
		}
		edgeColor := func(word, ni uint32) [4]float32 {
			c := unorm(word)
			if c[3] > 0 {
				return c
			}
			if _, nc, ok := nodeAt(b.nodes, ni); ok {
				return nc
			}
			return [4]float32{1, 1, 1, 1}
		}

		for i := range invocations(u32(b.params, 0), wg) {
			rec := b.records[uint32(i)*layout.Stride:]
			sn, tn := u32(rec, sourceNode), u32(rec, targetNode)
			head, tail := endpoint(u32(rec, source), sn), endpoint(u32(rec, target), tn)
			_, okSource := pointAt(b.points, u32(rec, source))
			_, okTarget := pointAt(b.points, u32(rec, target))
			var visible float32
			if okSource && okTarget {
				visible = 1
			}
			style := [4]float32{f32(rec, width), visible, 0, 0}

			dst := i * stride
			putVec4(b.out, dst, head)
			putVec4(b.out, dst+16, tail)
			colorsAt := dst + 32
			switch variant {
			case edges.CurvedPath:
				controls := off("controlPoints")
				for c := range uint32(3) {
					var ctl [4]float32
					if pt, ok := pointAt(b.points, u32(rec, controls+c*4)); ok {
						ctl = [4]float32{pt[0], pt[1], pt[2], 1}
					}
					putVec4(b.out, dst+32+int(c)*16, ctl)
				}
				colorsAt = dst + 80
			case edges.Gravity:
				var pulled [4]float32
				for c := range 3 {
					mid := (head[c] + tail[c]) * 0.5
					o := mid
					if c < 2 {
						o = origin[c]
					}
					pulled[c] = mid + (o-mid)*gravity
				}
				pulled[3] = 1
				putVec4(b.out, dst+32, pulled)
				putVec4(b.out, dst+48, [4]float32{})
				putVec4(b.out, dst+64, [4]float32{})
				colorsAt = dst + 80
			}
			putVec4(b.out, colorsAt, edgeColor(u32(rec, sourceColor), sn))
			putVec4(b.out, colorsAt+16, edgeColor(u32(rec, targetColor), tn))
			putVec4(b.out, colorsAt+32, style)
		}
		return nil
	}
}

// frame is the part of RenderParams the rasterizer needs.
type frame struct {
	viewProj  [16]float32
	viewport  [2]float32
	base      uint32
	sizeScale float32
	lineWidth float32
}

func readFrame(params []byte) frame {
	var fr frame
	for i := range fr.viewProj {
		fr.viewProj[i] = f32(params, uint32(i*4))
	}
	fr.viewport = [2]float32{f32(params, 64), f32(params, 68)}
	fr.base = u32(params, 76)
	fr.sizeScale = f32(params, 80)
	fr.lineWidth = f32(params, 84)
	return fr
}

// toPixel projects a world position to pixel coordinates and normalized depth.
func (fr frame) toPixel(p [4]float32) (float64, float64, float32) {
	m := fr.viewProj
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w == 0 {
		w = 1
	}
	px := float64((x/w + 1) * 0.5 * fr.viewport[0])
	py := float64((1 - y/w) * 0.5 * fr.viewport[1])
	return px, py, z / w
}

// pixelsPerUnit is the screen size of one world unit along x.
func (fr frame) pixelsPerUnit() float64 {
	return math.Hypot(float64(fr.viewProj[0]), float64(fr.viewProj[1])) * float64(fr.viewport[0]) * 0.5
}

func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l := dx*dx + dy*dy
	t := 0.0
	if l > 0 {
		t = math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/l))
	}
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// bezier evaluates the curve through points with de Casteljau.
func bezier(pts [][4]float32, t float32) [4]float32 {
	work := append([][4]float32(nil), pts...)
	for level := 1; level < len(work); level++ {
		for k := 0; k < len(work)-level; k++ {
			for c := range 3 {
				work[k][c] += (work[k+1][c] - work[k][c]) * t
			}
		}
	}
	return work[0]
}

// Rasterizer resolves node and edge picking draws recorded by f. Nodes cover the pixels inside
// their radius and edges the pixels within half their width. Later instances of a draw win.
//
// Parameters:
//   - f: the fake renderer the draws were recorded on
//
// Returns:
//   - renderertest.Rasterizer: the rasterizer
func Rasterizer(f *renderertest.Fake) renderertest.Rasterizer {
	return func(d renderertest.DrawRecord, x, y int) ([4]byte, float32, bool) {
		if len(d.Groups) == 0 {
			return [4]byte{}, 0, false
		}
		p := f.Pipeline(d.Key)
		if p == nil {
			return [4]byte{}, 0, false
		}
		vs := p.Shader(shader.ShaderTypeVertex)
		_, paramsBinding, ok := vs.Binding(shader.AnnotationArgRenderParams)
		if !ok {
			return [4]byte{}, 0, false
		}
		_, instancesBinding, ok := vs.Binding(shader.AnnotationArgTarget)
		if !ok {
			return [4]byte{}, 0, false
		}
		params := f.Bytes(d.Groups[0].Buffer(paramsBinding))
		instances := f.Bytes(d.Groups[0].Buffer(instancesBinding))
		if len(params) < 96 {
			return [4]byte{}, 0, false
		}
		fr := readFrame(params)
		px, py := float64(x)+0.5, float64(y)+0.5

		hit := -1
		var hitDepth float32
		switch {
		case strings.HasPrefix(d.Key, "graph/nodes/"):
			for i := range int(d.InstanceCount) {
				if (i+1)*32 > len(instances) {
					break
				}
				pos := vec4(instances, i*32)
				cx, cy, z := fr.toPixel(pos)
				radius := math.Max(float64(pos[3]*fr.sizeScale)*fr.pixelsPerUnit(), 0.5)
				if math.Hypot(px-cx, py-cy) <= radius {
					hit, hitDepth = i, z
				}
			}
		case strings.HasPrefix(d.Key, "graph/edges/"):
			stride := 80
			if !strings.HasPrefix(d.Key, "graph/edges/straight") {
				stride = 128
			}
			for i := range int(d.InstanceCount) {
				if (i+1)*stride > len(instances) {
					break
				}
				at := i * stride
				head, tail := vec4(instances, at), vec4(instances, at+16)
				style := vec4(instances, at+stride-16)
				if style[1] == 0 {
					continue
				}
				path := [][4]float32{head, tail}
				if stride == 128 {
					pts := [][4]float32{head}
					for c := range 3 {
						if ctl := vec4(instances, at+32+c*16); ctl[3] > 0 {
							pts = append(pts, ctl)
						}
					}
					pts = append(pts, tail)
					path = path[:0]
					for s := 0; s <= 16; s++ {
						path = append(path, bezier(pts, float32(s)/16))
					}
				}
				half := math.Max(float64(fr.lineWidth*style[0])*0.5, 0.5)
				for s := 0; s+1 < len(path); s++ {
					ax, ay, z := fr.toPixel(path[s])
					bx, by, _ := fr.toPixel(path[s+1])
					if segmentDistance(px, py, ax, ay, bx, by) <= half {
						hit, hitDepth = i, z
						break
					}
				}
			}
		}
		if hit < 0 {
			return [4]byte{}, 0, false
		}
		depth := d.MinDepth + min(max(hitDepth, 0), 1)*(d.MaxDepth-d.MinDepth)
		return renderable.EncodePickingID(fr.base + uint32(hit)), depth, true
	}
}
