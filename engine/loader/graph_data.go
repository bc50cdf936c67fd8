package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-graph/engine/config"
	"github.com/Carmen-Shannon/oxy-graph/engine/data"
)

// GraphData is everything needed to build a scene: the shared points, the color table and the
// layers drawn over them.
type GraphData struct {
	// Points are point records: an id, x and y (or a position tuple), optionally z and radius.
	Points []data.Record
	// Colors are registered in order, so records may refer to a color by its index.
	Colors []any
	// Layers are built in order. Earlier layers draw first.
	Layers []LayerData
}

// LayerData describes one layer.
type LayerData struct {
	// Name is the layer name, a generated layer_N name when empty.
	Name string
	// NodeStyle is "circle" or "ring", circle when empty.
	NodeStyle string
	// EdgeType is "straight", "curved" or "gravity", straight when empty.
	EdgeType string
	// Segments is the number of quads per curved edge, the edge default when zero.
	Segments int
	// Nodes are node records. A node without a point field but with coordinates becomes its
	// own point, keyed by the node id.
	Nodes []data.Record
	// Edges are edge records, the layer has no edge set when empty.
	Edges []data.Record
}

// FromConfig converts the graph block of a configuration.
//
// Parameters:
//   - g: the graph block, may be nil
//
// Returns:
//   - GraphData: the graph data, empty for a nil block
//   - error: an error if an attribute has the wrong shape
func FromConfig(g *config.Graph) (GraphData, error) {
	var gd GraphData
	if g == nil {
		return gd, nil
	}
	var err error
	if gd.Points, err = g.PointRecords(); err != nil {
		return gd, fmt.Errorf("loader: %w", err)
	}
	if gd.Colors, err = g.ColorList(); err != nil {
		return gd, fmt.Errorf("loader: %w", err)
	}
	for _, l := range g.Layers {
		ld := LayerData{Name: l.Name, NodeStyle: l.NodeStyle, EdgeType: l.EdgeType, Segments: l.Segments}
		if ld.Nodes, err = l.NodeRecords(); err != nil {
			return gd, fmt.Errorf("loader: %w", err)
		}
		if ld.Edges, err = l.EdgeRecords(); err != nil {
			return gd, fmt.Errorf("loader: %w", err)
		}
		gd.Layers = append(gd.Layers, ld)
	}
	return gd, nil
}

// inlinePoints splits the coordinates out of node records that carry their own. It returns
// copies of the node records pointing at the new points, and the point records to insert.
func inlinePoints(records []data.Record) ([]data.Record, []data.Record) {
	var pts []data.Record
	out := records
	copied := false
	for i, r := range records {
		if _, ok := r["point"]; ok {
			continue
		}
		_, hasX := r["x"]
		_, hasPos := r["position"]
		id, hasID := r["id"]
		if !hasID || (!hasX && !hasPos) {
			continue
		}
		if !copied {
			out = make([]data.Record, len(records))
			copy(out, records)
			copied = true
		}
		pt := data.Record{"id": id}
		for _, k := range []string{"x", "y", "z", "position", "radius"} {
			if v, ok := r[k]; ok {
				pt[k] = v
			}
		}
		pts = append(pts, pt)

		node := make(data.Record, len(r)+1)
		for k, v := range r {
			node[k] = v
		}
		node["point"] = id
		out[i] = node
	}
	return out, pts
}
