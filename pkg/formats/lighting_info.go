package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Faultbox/h4lights/pkg/math"
)

// Lighting info format errors.
var (
	ErrTruncated        = errors.New("truncated lighting info data")
	ErrInvalidLength    = errors.New("invalid block length")
	ErrCorruptBlockSize = errors.New("corrupt block size")
)

// Fixed layout of a scenario_structure_lighting_info tag.
const (
	lightingHeaderSize    = 184
	lightingMetadataCount = 11
	metadataPaddingSize   = 8
	metadataTrailerSize   = 144
	referencePaddingSize  = 12
	definitionsTrailer    = 4
	namingsTrailer        = 12

	// definitionSize is the total size of one definitions-pass entry.
	definitionSize = 456
	// namingHeadSize is the part of a naming entry that blocksize describes
	// besides the string itself.
	namingHeadSize = 80
	// namingMinSize is what a naming entry occupies with an empty string
	// and no tail.
	namingMinSize = 104
	instanceSize  = 96
)

// LightingInfoExt is the file extension of lighting info tags.
const LightingInfoExt = ".scenario_structure_lighting_info"

// LightKind is the engine light type.
type LightKind uint8

const (
	LightPoint LightKind = iota
	LightSpot
	LightDirectional
	LightArea
	LightSun
	LightUnknown
)

var lightKindNames = [...]string{
	LightPoint:       "point",
	LightSpot:        "spot",
	LightDirectional: "directional",
	LightArea:        "area",
	LightSun:         "sun",
	LightUnknown:     "unknown",
}

// LightKindFromTag maps the stored u32 light type. Values outside the known
// table map to LightUnknown.
func LightKindFromTag(v uint32) LightKind {
	if v < uint32(LightUnknown) {
		return LightKind(v)
	}
	return LightUnknown
}

// String returns the lowercase kind name.
func (k LightKind) String() string {
	if int(k) < len(lightKindNames) {
		return lightKindNames[k]
	}
	return lightKindNames[LightUnknown]
}

// MarshalText implements encoding.TextMarshaler.
func (k LightKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *LightKind) UnmarshalText(text []byte) error {
	for i, name := range lightKindNames {
		if name == string(text) {
			*k = LightKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown light kind %q", text)
}

// Color is a linear RGB color as stored in the tag.
type Color struct {
	R, G, B float32
}

// RawFrame is the per-instance placement exactly as stored: source units,
// source axis convention, vectors not normalized.
type RawFrame struct {
	LightMode uint32 // read for alignment, not interpreted
	Origin    math.Vec3
	Forward   math.Vec3
	Up        math.Vec3
}

// LightDefinition is one entry of the definitions pass.
type LightDefinition struct {
	Kind                     LightKind
	RawKind                  uint32
	Color                    Color
	LightingMode             uint32 // read for alignment, not interpreted
	DistanceAttenuationStart float32
	ConeData                 [4]float32
	InnerConeAngle           float32
}

// LightNaming is one entry of the naming pass.
type LightNaming struct {
	Name      string
	Intensity float32
}

// LightRecord joins the three passes for a single light index.
type LightRecord struct {
	Index                    int
	Name                     string
	Kind                     LightKind
	RawKind                  uint32
	Color                    Color
	Intensity                float32
	LightingMode             uint32
	DistanceAttenuationStart float32
	ConeData                 [4]float32
	InnerConeAngle           float32
	Frame                    RawFrame
}

// LightingInfo is a decoded lighting info tag.
type LightingInfo struct {
	ReferenceCount uint32
	Lights         []LightRecord
	// OpaqueBlocks are the leading block and the metadata blocks, in file
	// order. Their contents are not interpreted.
	OpaqueBlocks []BlockRange
}

// Pass names the decoder stage an error occurred in.
type Pass string

const (
	PassHeader      Pass = "header"
	PassMetadata    Pass = "metadata"
	PassDefinitions Pass = "definitions"
	PassNaming      Pass = "naming"
	PassInstances   Pass = "instances"
)

// DecodeError reports where decoding stopped. Err wraps one of ErrTruncated,
// ErrInvalidLength or ErrCorruptBlockSize.
type DecodeError struct {
	Path   string
	Pass   Pass
	Index  int // entry within the pass, -1 outside entry loops
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode lighting info")
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	fmt.Fprintf(&b, ": %s pass", e.Pass)
	if e.Index >= 0 {
		fmt.Fprintf(&b, " entry %d", e.Index)
	}
	fmt.Fprintf(&b, " at 0x%X: %v", e.Offset, e.Err)
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Observer receives every entry as soon as it has been parsed. Calls happen
// whether or not the decode as a whole succeeds.
type Observer interface {
	Definition(index int, offset int64, def LightDefinition)
	Naming(index int, offset int64, n LightNaming)
	Instance(index int, offset int64, f RawFrame)
}

// DecodeOptions configures DecodeLightingInfo. A nil *DecodeOptions is valid.
type DecodeOptions struct {
	Observer Observer
}

type nopObserver struct{}

func (nopObserver) Definition(int, int64, LightDefinition) {}
func (nopObserver) Naming(int, int64, LightNaming)         {}
func (nopObserver) Instance(int, int64, RawFrame)          {}

type lightingInfoDecoder struct {
	c    *cursor
	obs  Observer
	pass Pass
}

// DecodeLightingInfo decodes a lighting info tag. On error it returns no
// records at all.
func DecodeLightingInfo(data []byte, opts *DecodeOptions) (*LightingInfo, error) {
	d := &lightingInfoDecoder{c: newCursor(data), obs: nopObserver{}}
	if opts != nil && opts.Observer != nil {
		d.obs = opts.Observer
	}
	return d.decode()
}

// DecodeLightingInfoReader reads r to the end and decodes it.
func DecodeLightingInfoReader(r io.Reader, opts *DecodeOptions) (*LightingInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading lighting info: %w", err)
	}
	return DecodeLightingInfo(data, opts)
}

// DecodeLightingInfoFile decodes a lighting info tag from disk. Decode errors
// carry the path.
func DecodeLightingInfoFile(path string, opts *DecodeOptions) (*LightingInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lighting info file: %w", err)
	}
	info, err := DecodeLightingInfo(data, opts)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return info, nil
}

// fail converts the cursor's sticky error into a DecodeError.
func (d *lightingInfoDecoder) fail(index int) error {
	return &DecodeError{
		Pass:   d.pass,
		Index:  index,
		Offset: d.c.errOff,
		Err:    d.c.err,
	}
}

func (d *lightingInfoDecoder) decode() (*LightingInfo, error) {
	c := d.c
	info := &LightingInfo{}

	d.pass = PassHeader
	c.skip(lightingHeaderSize, "header")
	if c.err != nil {
		return nil, d.fail(-1)
	}

	d.pass = PassMetadata
	info.OpaqueBlocks = make([]BlockRange, 0, lightingMetadataCount+1)
	info.OpaqueBlocks = append(info.OpaqueBlocks, c.skipBlock("leading block"))
	if c.err != nil {
		return nil, d.fail(-1)
	}
	for i := 0; i < lightingMetadataCount; i++ {
		c.skip(metadataPaddingSize, "metadata padding")
		block := c.skipBlock("metadata block")
		if c.err != nil {
			return nil, d.fail(i)
		}
		info.OpaqueBlocks = append(info.OpaqueBlocks, block)
	}
	c.skip(metadataTrailerSize, "metadata trailer")
	info.ReferenceCount = c.u32("reference count")
	c.skip(referencePaddingSize, "reference padding")
	if c.err != nil {
		return nil, d.fail(-1)
	}

	count := info.ReferenceCount

	defs, err := d.definitions(count)
	if err != nil {
		return nil, err
	}
	namings, err := d.namings(count)
	if err != nil {
		return nil, err
	}
	frames, err := d.instances(count)
	if err != nil {
		return nil, err
	}

	info.Lights = mergeLights(defs, namings, frames)
	return info, nil
}

func (d *lightingInfoDecoder) definitions(count uint32) ([]LightDefinition, error) {
	c := d.c
	d.pass = PassDefinitions

	defs := make([]LightDefinition, 0, capacityFor(count, c.remaining(), definitionSize))
	for i := 0; uint32(i) < count; i++ {
		start := c.off
		var def LightDefinition

		c.skip(8, "definition padding")
		def.RawKind = c.u32("light type")
		def.Kind = LightKindFromTag(def.RawKind)
		def.Color = Color{R: c.f32("color"), G: c.f32("color"), B: c.f32("color")}
		c.skip(36, "definition padding")
		def.LightingMode = c.u32("lighting mode")
		def.DistanceAttenuationStart = c.f32("distance attenuation start")
		c.skip(36, "definition padding")
		for j := range def.ConeData {
			def.ConeData[j] = c.f32("cone data")
		}
		def.InnerConeAngle = c.f32("inner cone angle")
		c.skip(332, "definition padding")
		if c.err != nil {
			return nil, d.fail(i)
		}

		d.obs.Definition(i, start, def)
		defs = append(defs, def)
	}

	c.skip(definitionsTrailer, "definitions trailer")
	if c.err != nil {
		return nil, d.fail(-1)
	}
	return defs, nil
}

func (d *lightingInfoDecoder) namings(count uint32) ([]LightNaming, error) {
	c := d.c
	d.pass = PassNaming

	namings := make([]LightNaming, 0, capacityFor(count, c.remaining(), namingMinSize))
	for i := 0; uint32(i) < count; i++ {
		start := c.off
		var n LightNaming

		c.skip(8, "naming padding")
		blockSize := c.u32("block size")
		c.skip(8, "naming padding")
		stringSize := c.u32("string size")
		name := c.lengthPrefixed(int64(stringSize), "name")
		n.Name = strings.TrimRight(string(name), "\x00")
		c.skip(76, "naming padding")
		n.Intensity = c.f32("intensity")
		if c.err != nil {
			return nil, d.fail(i)
		}

		tail := int64(blockSize) - (namingHeadSize + int64(stringSize))
		if tail < 0 {
			return nil, &DecodeError{
				Pass:   d.pass,
				Index:  i,
				Offset: c.off,
				Err: fmt.Errorf("%w: block size %d smaller than %d+%d",
					ErrCorruptBlockSize, blockSize, namingHeadSize, stringSize),
			}
		}
		c.lengthPrefixed(tail, "naming tail")
		if c.err != nil {
			return nil, d.fail(i)
		}

		d.obs.Naming(i, start, n)
		namings = append(namings, n)
	}

	c.skip(namingsTrailer, "naming trailer")
	if c.err != nil {
		return nil, d.fail(-1)
	}
	return namings, nil
}

func (d *lightingInfoDecoder) instances(count uint32) ([]RawFrame, error) {
	c := d.c
	d.pass = PassInstances

	frames := make([]RawFrame, 0, capacityFor(count, c.remaining(), instanceSize))
	for i := 0; uint32(i) < count; i++ {
		start := c.off
		var f RawFrame

		c.skip(36, "instance padding")
		f.LightMode = c.u32("light mode")
		f.Origin = c.vec3("origin")
		f.Forward = c.vec3("forward")
		f.Up = c.vec3("up")
		c.skip(20, "instance padding")
		if c.err != nil {
			return nil, d.fail(i)
		}

		d.obs.Instance(i, start, f)
		frames = append(frames, f)
	}
	return frames, nil
}

// mergeLights joins the three passes by position. The decoder only calls it
// with slices of equal length.
func mergeLights(defs []LightDefinition, namings []LightNaming, frames []RawFrame) []LightRecord {
	lights := make([]LightRecord, len(defs))
	for i, def := range defs {
		lights[i] = LightRecord{
			Index:                    i,
			Name:                     namings[i].Name,
			Kind:                     def.Kind,
			RawKind:                  def.RawKind,
			Color:                    def.Color,
			Intensity:                namings[i].Intensity,
			LightingMode:             def.LightingMode,
			DistanceAttenuationStart: def.DistanceAttenuationStart,
			ConeData:                 def.ConeData,
			InnerConeAngle:           def.InnerConeAngle,
			Frame:                    frames[i],
		}
	}
	return lights
}

// capacityFor bounds a preallocation by what the remaining bytes can hold.
// count is never converted to int before the bound is applied.
func capacityFor(count uint32, remaining int64, entrySize int64) int {
	limit := remaining / entrySize
	if limit < 0 {
		return 0
	}
	if int64(count) > limit {
		return int(limit)
	}
	return int(count)
}
