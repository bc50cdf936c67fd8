package colors

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-graph/common"
)

// registry is the implementation of the Registry interface.
type registry struct {
	mu     *sync.Mutex
	colors []color.RGBA
}

// Registry is the indexed color table of a graph. Records may name a color directly or refer to
// a registry entry by its integer index.
type Registry interface {
	// Register parses v and appends it to the table.
	//
	// Parameters:
	//   - v: any value accepted by Parse
	//
	// Returns:
	//   - uint32: the index assigned to the color
	//   - error: an error if v is not a color
	Register(v any) (uint32, error)

	// Set replaces the color at an existing index.
	//
	// Parameters:
	//   - index: the registry index
	//   - v: any value accepted by Parse
	//
	// Returns:
	//   - error: an error if index is out of range or v is not a color
	Set(index uint32, v any) error

	// Color returns the color at index.
	Color(index uint32) (color.RGBA, bool)

	// Len returns the number of registered colors.
	Len() int

	// Resolve converts a record value into RGBA. Integer scalars are registry indices,
	// anything else is parsed with Parse.
	//
	// Parameters:
	//   - v: the record value
	//
	// Returns:
	//   - color.RGBA: the resolved color
	//   - error: an error if v is an unknown index or not a color
	Resolve(v any) (color.RGBA, error)
}

var _ Registry = &registry{}

// NewRegistry creates a registry pre-filled with the given colors. Values that fail to parse
// are reported in the returned error but do not stop the remaining values from registering;
// the failed slot keeps its index and holds opaque white.
//
// Parameters:
//   - initial: the colors to register in order
//
// Returns:
//   - Registry: the new registry
//   - error: a joined error for every value that failed to parse, nil if all succeeded
func NewRegistry(initial ...any) (Registry, error) {
	r := &registry{mu: &sync.Mutex{}}
	var errs []error
	for i, v := range initial {
		c, err := Parse(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("color %d: %w", i, err))
			c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		r.colors = append(r.colors, c)
	}
	return r, errors.Join(errs...)
}

func (r *registry) Register(v any) (uint32, error) {
	c, err := Parse(v)
	if err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.colors = append(r.colors, c)
	return uint32(len(r.colors) - 1), nil
}

func (r *registry) Set(index uint32, v any) error {
	c, err := Parse(v)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(index) >= len(r.colors) {
		return fmt.Errorf("colors: index %d out of range (%d registered)", index, len(r.colors))
	}
	r.colors[index] = c
	return nil
}

func (r *registry) Color(index uint32) (color.RGBA, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(index) >= len(r.colors) {
		return color.RGBA{}, false
	}
	return r.colors[index], true
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.colors)
}

func (r *registry) Resolve(v any) (color.RGBA, error) {
	if f, ok := common.ToFloat64(v); ok {
		// NaN fails the Trunc comparison
		if f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
			return color.RGBA{}, fmt.Errorf("colors: %v is not a registry index", v)
		}
		c, found := r.Color(uint32(f))
		if !found {
			return color.RGBA{}, fmt.Errorf("colors: no registered color at index %d", uint32(f))
		}
		return c, nil
	}
	return Parse(v)
}
