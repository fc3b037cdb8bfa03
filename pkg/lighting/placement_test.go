package lighting

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/math"
)

const tolerance = 1e-5

func frame(forward, up math.Vec3) formats.RawFrame {
	return formats.RawFrame{Forward: forward, Up: up}
}

func assertOrthonormal(t *testing.T, b mgl32.Mat3) {
	t.Helper()
	for i := 0; i < 3; i++ {
		col := b.Col(i)
		assert.InDelta(t, 1, col.Len(), tolerance, "column %d length", i)
		assert.False(t, gomath.IsNaN(float64(col.Len())), "column %d is NaN", i)
		for j := i + 1; j < 3; j++ {
			assert.InDelta(t, 0, col.Dot(b.Col(j)), tolerance, "columns %d and %d", i, j)
		}
	}
	assert.InDelta(t, 1, b.Det(), tolerance, "determinant")
}

// assertMat3InDelta compares element-wise with an absolute tolerance; mgl32's
// relative check rejects float noise next to exact zeros.
func assertMat3InDelta(t *testing.T, want, got mgl32.Mat3, delta float64) {
	t.Helper()
	for k := range want {
		assert.InDelta(t, want[k], got[k], delta, "element %d: got %v want %v", k, got, want)
	}
}

func maxDiff(a, b mgl32.Mat3) float64 {
	var d float64
	for k := range a {
		d = gomath.Max(d, gomath.Abs(float64(a[k]-b[k])))
	}
	return d
}

func TestReconstruct_Scale(t *testing.T) {
	tr := Reconstruct(formats.RawFrame{
		Origin:  math.Vec3{X: 1},
		Forward: math.Vec3{Y: -1},
		Up:      math.Vec3{Z: 1},
	})
	assert.Equal(t, math.Vec3{X: 3.048}, tr.Position)

	tr = Reconstruct(formats.RawFrame{
		Origin:  math.Vec3{X: -2, Y: 0.5, Z: 10},
		Forward: math.Vec3{Y: -1},
		Up:      math.Vec3{Z: 1},
	})
	assert.True(t, tr.Position.ApproxEqual(math.Vec3{X: -6.096, Y: 1.524, Z: 30.48}, tolerance), "got %v", tr.Position)
}

func TestReconstruct_Orthogonality(t *testing.T) {
	tests := []struct {
		name        string
		forward, up math.Vec3
	}{
		{"axis aligned", math.Vec3{X: 1}, math.Vec3{Z: 1}},
		{"identity frame", math.Vec3{Y: -1}, math.Vec3{Z: 1}},
		{"unnormalized", math.Vec3{X: 0, Y: 0, Z: -7}, math.Vec3{X: 0, Y: 3, Z: 0}},
		{"skewed up", math.Vec3{X: 1}, math.Vec3{X: 0.3, Z: 1}},
		{"oblique", math.Vec3{X: 0.3, Y: 0.2, Z: -0.9}, math.Vec3{X: 0.1, Y: 1, Z: 0.4}},
		{"nearly parallel", math.Vec3{X: 1}, math.Vec3{X: 1, Y: 0.01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Reconstruct(frame(tt.forward, tt.up))
			require.False(t, tr.Degenerate)
			assertOrthonormal(t, tr.Basis)

			q := tr.Rotation
			assert.InDelta(t, 1, q.Dot(q), tolerance, "rotation is unit length")

			// the quaternion and the basis describe the same rotation
			for i, axis := range []math.Vec3{{X: 1}, {Y: 1}, {Z: 1}} {
				want := math.Vec3FromMgl(tr.Basis.Col(i))
				got := q.Rotate(axis)
				assert.True(t, got.ApproxEqual(want, 1e-4), "axis %d: got %v want %v", i, got, want)
			}
		})
	}
}

func TestReconstruct_KnownFrames(t *testing.T) {
	// forward -Y, up +Z lands exactly on the target axes
	tr := Reconstruct(frame(math.Vec3{Y: -1}, math.Vec3{Z: 1}))
	for i, axis := range []math.Vec3{{X: 1}, {Y: 1}, {Z: 1}} {
		got := tr.Rotation.Rotate(axis)
		assert.True(t, got.ApproxEqual(axis, tolerance), "axis %d: got %v", i, got)
	}

	// forward +X, up +Z is a quarter turn about Z
	tr = Reconstruct(frame(math.Vec3{X: 1}, math.Vec3{Z: 1}))
	assert.True(t, tr.Rotation.Rotate(math.Vec3{X: 1}).ApproxEqual(math.Vec3{Y: 1}, tolerance))
	assert.True(t, tr.Rotation.Rotate(math.Vec3{Y: 1}).ApproxEqual(math.Vec3{X: -1}, tolerance))
	assert.True(t, tr.Rotation.Rotate(math.Vec3{Z: 1}).ApproxEqual(math.Vec3{Z: 1}, tolerance))
}

func TestReconstruct_AxisMapping(t *testing.T) {
	forward := math.Vec3{X: 0.3, Y: 0.2, Z: -0.9}
	up := math.Vec3{X: 0.1, Y: 1, Z: 0.4}
	tr := Reconstruct(frame(forward, up))

	f := forward.Normalize()
	right := f.Cross(up.Normalize()).Normalize()
	orthoUp := right.Cross(f).Normalize()

	// local X = -right, local Y = -forward, local Z = up
	assert.True(t, math.Vec3FromMgl(tr.Basis.Col(0)).ApproxEqual(right.Negate(), 1e-4))
	assert.True(t, math.Vec3FromMgl(tr.Basis.Col(1)).ApproxEqual(f.Negate(), 1e-4))
	assert.True(t, math.Vec3FromMgl(tr.Basis.Col(2)).ApproxEqual(orthoUp, 1e-4))
}

func TestReconstruct_CorrectionOrder(t *testing.T) {
	reversed := mgl32.Rotate3DX(-gomath.Pi / 2).Mul3(mgl32.Rotate3DY(gomath.Pi))
	assert.Greater(t, maxDiff(axisCorrection, reversed), 0.5,
		"corrective rotations must not commute")

	tr := Reconstruct(frame(math.Vec3{X: 1}, math.Vec3{Z: 1}))
	basis, ok := frameBasis(math.Vec3{X: 1}, math.Vec3{Z: 1})
	require.True(t, ok)
	assertMat3InDelta(t, basis.Mul3(axisCorrection), tr.Basis, tolerance)
}

func TestAssertMat3InDelta_NearZero(t *testing.T) {
	// noise around exact zeros stays within an absolute tolerance
	want := mgl32.Ident3()
	got := want
	got[1] = -4e-8
	got[5] = 2.4e-7
	assertMat3InDelta(t, want, got, 1e-4)
	assert.Less(t, maxDiff(want, got), 1e-6)
}

func TestReconstruct_Degenerate(t *testing.T) {
	nan := float32(gomath.NaN())

	tests := []struct {
		name        string
		forward, up math.Vec3
	}{
		{"zero forward", math.Vec3{}, math.Vec3{Z: 1}},
		{"zero up", math.Vec3{X: 1}, math.Vec3{}},
		{"parallel", math.Vec3{X: 1}, math.Vec3{X: 2}},
		{"anti parallel", math.Vec3{Z: 1}, math.Vec3{Z: -1}},
		{"nan", math.Vec3{X: nan}, math.Vec3{Z: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Reconstruct(frame(tt.forward, tt.up))
			assert.True(t, tr.Degenerate)
			assertOrthonormal(t, tr.Basis)
			assertMat3InDelta(t, axisCorrection, tr.Basis, tolerance)
		})
	}
}

func TestPlace_Hints(t *testing.T) {
	tests := []struct {
		kind   formats.LightKind
		target TargetType
		radius float32
		cone   float32
	}{
		{formats.LightPoint, TargetPoint, PointRadius, 0},
		{formats.LightSpot, TargetSpot, PointRadius, SpotConeAngle},
		{formats.LightDirectional, TargetSun, 0, 0},
		{formats.LightSun, TargetSun, 0, 0},
		{formats.LightArea, TargetPoint, PointRadius, 0},
		{formats.LightUnknown, TargetPoint, PointRadius, 0},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			p := Place("a.tag", formats.LightRecord{
				Kind:  tt.kind,
				Frame: frame(math.Vec3{X: 1}, math.Vec3{Z: 1}),
			})
			assert.Equal(t, tt.target, p.Type)
			assert.Equal(t, tt.radius, p.RadiusHint)
			assert.Equal(t, tt.cone, p.ConeAngleHint)
		})
	}

	assert.InDelta(t, 2*gomath.Pi/3, SpotConeAngle, 1e-6)
}

func TestPlace_UnknownKindIsValid(t *testing.T) {
	rec := formats.LightRecord{
		Index:     4,
		Name:      "odd",
		Kind:      formats.LightKindFromTag(99),
		RawKind:   99,
		Intensity: 3,
		Frame: formats.RawFrame{
			Origin:  math.Vec3{X: 1, Y: 1, Z: 1},
			Forward: math.Vec3{Y: -1},
			Up:      math.Vec3{Z: 1},
		},
	}

	p := Place("level.tag", rec)
	assert.Equal(t, TargetPoint, p.Type)
	assert.Equal(t, float32(PointRadius), p.RadiusHint)
	assert.False(t, p.Degenerate)
	assert.True(t, p.Position.IsFinite())
}

func TestPlace_Fields(t *testing.T) {
	rec := formats.LightRecord{
		Index:     2,
		Name:      "lamp",
		Kind:      formats.LightPoint,
		Color:     formats.Color{R: 1, G: 0.5, B: 0.25},
		Intensity: 2.5,
		Frame:     frame(math.Vec3{X: 1}, math.Vec3{Z: 1}),
	}

	p := Place("a.tag", rec)
	assert.Equal(t, "lamp", p.Name)
	assert.Equal(t, 2, p.Index)
	assert.Equal(t, rec.Color, p.Color)
	assert.Equal(t, float32(2.5), p.Intensity)
	assert.Equal(t, float32(25), p.Energy)
	assert.Equal(t, LightID("a.tag", 2), p.ID)
}

func TestLightID(t *testing.T) {
	a := LightID("a.tag", 0)
	assert.Equal(t, a, LightID("a.tag", 0), "IDs are deterministic")
	assert.NotEqual(t, a, LightID("a.tag", 1))
	assert.NotEqual(t, a, LightID("b.tag", 0))
	assert.Equal(t, 5, int(a.Version()))
}

func TestPlaceAll(t *testing.T) {
	info := &formats.LightingInfo{
		ReferenceCount: 3,
		Lights: []formats.LightRecord{
			{Index: 0, Frame: frame(math.Vec3{X: 1}, math.Vec3{Z: 1})},
			{Index: 1, Frame: frame(math.Vec3{}, math.Vec3{Z: 1})},
			{Index: 2, Frame: frame(math.Vec3{Z: 1}, math.Vec3{Z: 1})},
		},
	}

	lights, degenerate := PlaceAll("x.tag", info)
	require.Len(t, lights, 3)
	assert.Equal(t, 2, degenerate)
	for i, l := range lights {
		assert.Equal(t, i, l.Index)
	}

	lights, degenerate = PlaceAll("x.tag", nil)
	assert.Nil(t, lights)
	assert.Zero(t, degenerate)
}

func TestTargetTypeText(t *testing.T) {
	for _, tt := range []TargetType{TargetPoint, TargetSpot, TargetSun} {
		text, err := tt.MarshalText()
		require.NoError(t, err)

		var back TargetType
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, tt, back)
	}

	var bad TargetType
	assert.Error(t, bad.UnmarshalText([]byte("area")))
	assert.Equal(t, "TargetType(9)", TargetType(9).String())
}
