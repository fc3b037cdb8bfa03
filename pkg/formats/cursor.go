package formats

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/Faultbox/h4lights/pkg/math"
)

// BlockRange locates a length-prefixed region that was skipped without
// being interpreted. Offset points at the first byte after the length prefix.
type BlockRange struct {
	Offset int64
	Length uint32
}

// cursor is a forward-only reader over tag bytes. The first failed read
// sticks: later reads return zero values and leave the position untouched,
// so callers check err once per logical entry.
type cursor struct {
	data   []byte
	off    int64
	err    error
	errOff int64
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int64 {
	return int64(len(c.data)) - c.off
}

// need records a failure unless n more bytes are available.
func (c *cursor) need(n int64, what string, sentinel error) bool {
	if c.err != nil {
		return false
	}
	if n < 0 || n > c.remaining() {
		c.err = fmt.Errorf("%w: %s needs %d bytes, %d left", sentinel, what, n, c.remaining())
		c.errOff = c.off
		return false
	}
	return true
}

// skip advances over n fixed bytes.
func (c *cursor) skip(n int64, what string) {
	if c.need(n, what, ErrTruncated) {
		c.off += n
	}
}

func (c *cursor) u32(what string) uint32 {
	if !c.need(4, what, ErrTruncated) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v
}

func (c *cursor) f32(what string) float32 {
	return gomath.Float32frombits(c.u32(what))
}

func (c *cursor) vec3(what string) math.Vec3 {
	return math.Vec3{X: c.f32(what), Y: c.f32(what), Z: c.f32(what)}
}

// lengthPrefixed returns the next n bytes of a region whose size came from
// the stream itself. Running past the end is ErrInvalidLength.
func (c *cursor) lengthPrefixed(n int64, what string) []byte {
	if !c.need(n, what, ErrInvalidLength) {
		return nil
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b
}

// skipBlock reads a u32 length and skips exactly that many bytes.
func (c *cursor) skipBlock(what string) BlockRange {
	n := c.u32(what + " length")
	start := c.off
	c.lengthPrefixed(int64(n), what)
	if c.err != nil {
		return BlockRange{}
	}
	return BlockRange{Offset: start, Length: n}
}
