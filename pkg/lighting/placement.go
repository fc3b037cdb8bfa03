// Package lighting converts decoded tag lights into lights placed in a Z-up,
// meter-scaled target scene.
package lighting

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/math"
)

const (
	// UnitScale converts source world units (10 ft) to meters.
	UnitScale = 3.048

	// PointRadius is the soft-shadow radius given to point-like lights.
	PointRadius = 0.15

	// SpotConeDegrees is the full cone angle given to spot lights.
	SpotConeDegrees = 120

	// EnergyScale maps tag intensity to target light energy.
	EnergyScale = 10

	degenerateEpsilon = 1e-6
)

// SpotConeAngle is SpotConeDegrees in radians.
var SpotConeAngle = mgl32.DegToRad(SpotConeDegrees)

// LightNamespace seeds the deterministic IDs of placed lights.
var LightNamespace = uuid.MustParse("6f1c2a9e-4b7d-4e3a-9c1d-2e8f7a6b5c4d")

// Source to target axis correction: 180 degrees about Y, then -90 degrees
// about the local X axis. Order matters.
var axisCorrection = mgl32.Rotate3DY(gomath.Pi).Mul3(mgl32.Rotate3DX(-gomath.Pi / 2))

// TargetType is the light representation used in the target scene.
type TargetType uint8

const (
	TargetPoint TargetType = iota
	TargetSpot
	TargetSun
)

var targetTypeNames = [...]string{
	TargetPoint: "point",
	TargetSpot:  "spot",
	TargetSun:   "sun",
}

func (t TargetType) String() string {
	if int(t) < len(targetTypeNames) {
		return targetTypeNames[t]
	}
	return fmt.Sprintf("TargetType(%d)", t)
}

// MarshalText implements encoding.TextMarshaler.
func (t TargetType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TargetType) UnmarshalText(text []byte) error {
	for i, name := range targetTypeNames {
		if name == string(text) {
			*t = TargetType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown target light type %q", text)
}

// TargetTypeFor maps a tag light kind. Area and unknown kinds fall back to a
// point light.
func TargetTypeFor(k formats.LightKind) TargetType {
	switch k {
	case formats.LightSpot:
		return TargetSpot
	case formats.LightDirectional, formats.LightSun:
		return TargetSun
	default:
		return TargetPoint
	}
}

// Transform is a reconstructed target-space placement.
type Transform struct {
	Position math.Vec3
	Basis    mgl32.Mat3 // columns are the light's local X, Y, Z axes
	Rotation math.Quat
	// Degenerate is set when the stored frame could not be orthonormalized
	// and an axis-aligned basis was substituted.
	Degenerate bool
}

// Reconstruct converts a stored frame into target space. It never produces
// NaNs from zero or parallel forward/up vectors.
func Reconstruct(f formats.RawFrame) Transform {
	t := Transform{Position: f.Origin.Scale(UnitScale)}

	basis, ok := frameBasis(f.Forward, f.Up)
	if !ok {
		basis = mgl32.Ident3()
		t.Degenerate = true
	}

	t.Basis = basis.Mul3(axisCorrection)
	t.Rotation = math.QuatFromMgl(mgl32.Mat4ToQuat(t.Basis.Mat4())).Normalize()
	return t
}

// frameBasis builds the (right, up, -forward) basis. ok is false when the
// vectors are not finite, near zero, or parallel.
func frameBasis(forward, up math.Vec3) (mgl32.Mat3, bool) {
	if !forward.IsFinite() || !up.IsFinite() {
		return mgl32.Mat3{}, false
	}
	if forward.Length() < degenerateEpsilon || up.Length() < degenerateEpsilon {
		return mgl32.Mat3{}, false
	}

	fwd := forward.Normalize().Mgl()
	u := up.Normalize().Mgl()

	side := fwd.Cross(u)
	if side.Len() < degenerateEpsilon {
		return mgl32.Mat3{}, false
	}
	right := side.Normalize()
	// the stored up is not trusted to be orthogonal to forward
	u = right.Cross(fwd).Normalize()

	return mgl32.Mat3FromCols(right, u, fwd.Mul(-1)), true
}

// PlacedLight is a light ready for the scene-building side.
type PlacedLight struct {
	ID        uuid.UUID
	Index     int
	Name      string
	Kind      formats.LightKind
	Type      TargetType
	Color     formats.Color
	Intensity float32
	Energy    float32
	Position  math.Vec3
	Rotation  math.Quat
	Basis     mgl32.Mat3

	// Display hints; zero when the kind carries none.
	RadiusHint    float32
	ConeAngleHint float32 // radians, full angle

	Degenerate bool
}

// LightID derives the stable ID of the light at index in source.
func LightID(source string, index int) uuid.UUID {
	return uuid.NewSHA1(LightNamespace, []byte(fmt.Sprintf("%s#%d", source, index)))
}

// Place reconstructs one decoded light. source identifies the tag file and
// only feeds the ID.
func Place(source string, rec formats.LightRecord) PlacedLight {
	t := Reconstruct(rec.Frame)
	p := PlacedLight{
		ID:         LightID(source, rec.Index),
		Index:      rec.Index,
		Name:       rec.Name,
		Kind:       rec.Kind,
		Type:       TargetTypeFor(rec.Kind),
		Color:      rec.Color,
		Intensity:  rec.Intensity,
		Energy:     rec.Intensity * EnergyScale,
		Position:   t.Position,
		Rotation:   t.Rotation,
		Basis:      t.Basis,
		Degenerate: t.Degenerate,
	}

	switch p.Type {
	case TargetSpot:
		p.RadiusHint = PointRadius
		p.ConeAngleHint = SpotConeAngle
	case TargetPoint:
		p.RadiusHint = PointRadius
	}
	return p
}

// PlaceAll places every light of a decoded tag and returns how many had a
// degenerate frame.
func PlaceAll(source string, info *formats.LightingInfo) ([]PlacedLight, int) {
	if info == nil {
		return nil, 0
	}

	lights := make([]PlacedLight, 0, len(info.Lights))
	degenerate := 0
	for _, rec := range info.Lights {
		p := Place(source, rec)
		if p.Degenerate {
			degenerate++
		}
		lights = append(lights, p)
	}
	return lights, degenerate
}
