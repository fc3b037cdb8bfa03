// Package gltfexport writes placed lights as a glTF 2.0 scene using the
// KHR_lights_punctual extension.
//
// Placed lights live in a Z-up space while glTF is Y-up. Positions map
// (x, y, z) to (x, z, -y) and rotations are pre-multiplied by -90 degrees
// about X, which is the same mapping.
package gltfexport

import (
	"fmt"
	"io"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/ext/lightspuntual"

	"github.com/Faultbox/h4lights/internal/importer"
	"github.com/Faultbox/h4lights/pkg/lighting"
	"github.com/Faultbox/h4lights/pkg/math"
)

var yUp = math.QuatFromAxisAngle(math.Vec3{X: 1}, -gomath.Pi/2)

// ToYUp converts a Z-up position.
func ToYUp(p math.Vec3) math.Vec3 {
	return math.Vec3{X: p.X, Y: p.Z, Z: -p.Y}
}

// RotationToYUp converts a Z-up rotation.
func RotationToYUp(q math.Quat) math.Quat {
	return yUp.Mul(q).Normalize()
}

// Builder accumulates collections into one glTF document. Each collection
// becomes a parent node with one child node per light.
type Builder struct {
	doc    *gltf.Document
	lights lightspuntual.Lights
}

var _ importer.SceneBuilder = (*Builder)(nil)

// NewBuilder creates an empty scene.
func NewBuilder() *Builder {
	return &Builder{doc: gltf.NewDocument()}
}

// AddCollection implements importer.SceneBuilder.
func (b *Builder) AddCollection(c importer.Collection) error {
	parent := &gltf.Node{
		Name:     c.Name,
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
		Extras:   map[string]any{"source": c.Source},
	}
	parentIdx := uint32(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, parent)
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, parentIdx)

	for _, l := range c.Lights {
		lightIdx := len(b.lights)
		b.lights = append(b.lights, punctual(l))

		pos := ToYUp(l.Position)
		rot := RotationToYUp(l.Rotation)
		node := &gltf.Node{
			Name:        nodeName(l),
			Translation: pos.Array(),
			Rotation:    rot.Array(),
			Scale:       [3]float32{1, 1, 1},
			Extensions: gltf.Extensions{
				lightspuntual.ExtensionName: lightspuntual.LightIndex(lightIdx),
			},
			Extras: map[string]any{"id": l.ID.String()},
		}
		parent.Children = append(parent.Children, uint32(len(b.doc.Nodes)))
		b.doc.Nodes = append(b.doc.Nodes, node)
	}
	return nil
}

func nodeName(l lighting.PlacedLight) string {
	if l.Name == "" {
		return fmt.Sprintf("light_%d", l.Index)
	}
	return l.Name
}

// punctual converts a placed light. glTF colors are limited to [0, 1], so an
// over-bright color is normalized and the excess moves into the intensity.
func punctual(l lighting.PlacedLight) *lightspuntual.Light {
	color := [3]float32{l.Color.R, l.Color.G, l.Color.B}
	intensity := l.Energy

	peak := math32.Max(color[0], math32.Max(color[1], color[2]))
	if peak > 1 {
		for i := range color {
			color[i] /= peak
		}
		intensity *= peak
	}
	for i := range color {
		color[i] = math32.Max(color[i], 0)
	}
	intensity = math32.Max(intensity, 0)

	out := &lightspuntual.Light{
		Name:      nodeName(l),
		Color:     &color,
		Intensity: &intensity,
	}
	switch l.Type {
	case lighting.TargetSpot:
		out.Type = lightspuntual.TypeSpot
		outer := l.ConeAngleHint / 2
		out.Spot = &lightspuntual.Spot{OuterConeAngle: &outer}
	case lighting.TargetSun:
		out.Type = lightspuntual.TypeDirectional
	default:
		out.Type = lightspuntual.TypePoint
	}
	return out
}

// Document returns the scene built so far.
func (b *Builder) Document() *gltf.Document {
	if len(b.lights) > 0 {
		if b.doc.Extensions == nil {
			b.doc.Extensions = gltf.Extensions{}
		}
		b.doc.Extensions[lightspuntual.ExtensionName] = b.lights
		if !hasExtension(b.doc.ExtensionsUsed, lightspuntual.ExtensionName) {
			b.doc.ExtensionsUsed = append(b.doc.ExtensionsUsed, lightspuntual.ExtensionName)
		}
	}
	return b.doc
}

func hasExtension(used []string, name string) bool {
	for _, u := range used {
		if u == name {
			return true
		}
	}
	return false
}

// Encode writes the scene as glTF JSON.
func (b *Builder) Encode(w io.Writer) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = false
	if err := enc.Encode(b.Document()); err != nil {
		return fmt.Errorf("encoding gltf: %w", err)
	}
	return nil
}

// WriteFile writes the scene to path. A .glb extension selects the binary
// container.
func (b *Builder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := gltf.NewEncoder(f)
	enc.AsBinary = strings.EqualFold(filepath.Ext(path), ".glb")
	if err := enc.Encode(b.Document()); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
