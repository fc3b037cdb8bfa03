// Package formatstest builds synthetic lighting info tags for tests.
//
// Padding and opaque regions are filled with a non-zero byte so that a reader
// which skips the wrong number of bytes reads garbage instead of zeros.
package formatstest

import (
	"bytes"
	"encoding/binary"
)

// Filler is the byte written into every padding region.
const Filler = 0xCD

// Light describes one light across the three passes of the tag.
type Light struct {
	// definitions pass
	Kind             uint32
	Color            [3]float32
	LightingMode     uint32
	AttenuationStart float32
	ConeData         [4]float32
	InnerConeAngle   float32

	// naming pass
	Name      string
	NameNULs  int // trailing NUL bytes stored after Name
	Intensity float32
	Tail      int // unparsed bytes after the fixed naming head
	// BlockSizeDelta is added to the stored block size. A negative value
	// larger than Tail makes the entry corrupt.
	BlockSizeDelta int

	// instance pass
	LightMode uint32
	Origin    [3]float32
	Forward   [3]float32
	Up        [3]float32
}

// Tag describes a whole file.
type Tag struct {
	LeadingBlock []byte
	// MetadataBlocks holds up to 11 opaque blocks; missing ones are empty.
	MetadataBlocks [][]byte
	Lights         []Light
	// ReferenceCount overrides the stored count when non-nil.
	ReferenceCount *uint32
}

// PointLight returns a light of kind 0 facing -Z with +Y up at origin.
func PointLight(name string, origin [3]float32, intensity float32) Light {
	return Light{
		Kind:      0,
		Color:     [3]float32{1, 1, 1},
		Name:      name,
		NameNULs:  1,
		Intensity: intensity,
		Origin:    origin,
		Forward:   [3]float32{0, 0, -1},
		Up:        [3]float32{0, 1, 0},
	}
}

func pad(buf *bytes.Buffer, n int) {
	buf.Write(bytes.Repeat([]byte{Filler}, n))
}

func write(buf *bytes.Buffer, v any) {
	// bytes.Buffer writes never fail
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// Bytes serializes the tag.
func (t Tag) Bytes() []byte {
	buf := new(bytes.Buffer)

	pad(buf, 184)

	write(buf, uint32(len(t.LeadingBlock)))
	buf.Write(t.LeadingBlock)

	for i := 0; i < 11; i++ {
		var block []byte
		if i < len(t.MetadataBlocks) {
			block = t.MetadataBlocks[i]
		}
		pad(buf, 8)
		write(buf, uint32(len(block)))
		buf.Write(block)
	}

	pad(buf, 144)

	count := uint32(len(t.Lights))
	if t.ReferenceCount != nil {
		count = *t.ReferenceCount
	}
	write(buf, count)
	pad(buf, 12)

	for _, l := range t.Lights {
		pad(buf, 8)
		write(buf, l.Kind)
		write(buf, l.Color)
		pad(buf, 36)
		write(buf, l.LightingMode)
		write(buf, l.AttenuationStart)
		pad(buf, 36)
		write(buf, l.ConeData)
		write(buf, l.InnerConeAngle)
		pad(buf, 332)
	}

	pad(buf, 4)

	for _, l := range t.Lights {
		name := append([]byte(l.Name), make([]byte, l.NameNULs)...)
		pad(buf, 8)
		write(buf, uint32(80+len(name)+l.Tail+l.BlockSizeDelta))
		pad(buf, 8)
		write(buf, uint32(len(name)))
		buf.Write(name)
		pad(buf, 76)
		write(buf, l.Intensity)
		pad(buf, l.Tail)
	}

	pad(buf, 12)

	for _, l := range t.Lights {
		pad(buf, 36)
		write(buf, l.LightMode)
		write(buf, l.Origin)
		write(buf, l.Forward)
		write(buf, l.Up)
		pad(buf, 20)
	}

	return buf.Bytes()
}

// Offsets reports where each section of the serialized tag starts. Tests use
// it to cut files at meaningful places.
type Offsets struct {
	ReferenceCount int
	Definitions    int
	Namings        int
	Instances      int
	End            int
}

// Layout computes the section offsets of t.Bytes().
func (t Tag) Layout() Offsets {
	off := 184 + 4 + len(t.LeadingBlock)
	for i := 0; i < 11; i++ {
		off += 8 + 4
		if i < len(t.MetadataBlocks) {
			off += len(t.MetadataBlocks[i])
		}
	}
	off += 144

	var o Offsets
	o.ReferenceCount = off
	off += 4 + 12
	o.Definitions = off
	off += 456*len(t.Lights) + 4
	o.Namings = off
	for _, l := range t.Lights {
		off += 104 + len(l.Name) + l.NameNULs + l.Tail
	}
	off += 12
	o.Instances = off
	off += 96 * len(t.Lights)
	o.End = off
	return o
}
