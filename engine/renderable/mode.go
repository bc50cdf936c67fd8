// Package renderable holds what every drawn element set shares: the enabled flag, the depth
// window, per draw uniform injection and the two render modes.
package renderable

// Mode selects the fragment output of a draw. Both modes share geometry and transforms.
type Mode int

const (
	// ModeNormal writes colors to the visible surface.
	ModeNormal Mode = iota
	// ModePicking writes encoded element ids to the offscreen picking target.
	ModePicking
)

func (m Mode) String() string {
	if m == ModePicking {
		return "picking"
	}
	return "normal"
}

// MaxPickingID is the largest id the 24-bit picking encoding can carry.
const MaxPickingID = 1<<24 - 1

// DepthRange is a window of the normalized depth buffer.
type DepthRange struct {
	Near, Far float32
}

// EncodePickingID returns the RGBA texel a picking draw writes for id. Only the low 24 bits are
// kept; alpha is 255 to mark a hit.
//
// Parameters:
//   - id: the element id
//
// Returns:
//   - [4]byte: the texel
func EncodePickingID(id uint32) [4]byte {
	return [4]byte{byte(id), byte(id >> 8), byte(id >> 16), 255}
}

// DecodePickingColor reverses EncodePickingID.
//
// Parameters:
//   - texel: the RGBA bytes read from the picking target
//
// Returns:
//   - uint32: the element id
//   - bool: false if the texel is background
func DecodePickingColor(texel [4]byte) (uint32, bool) {
	if texel[3] != 255 {
		return 0, false
	}
	return uint32(texel[0]) | uint32(texel[1])<<8 | uint32(texel[2])<<16, true
}
