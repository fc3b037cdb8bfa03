// Package manifest reads and writes placed lights as a YAML document.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/h4lights/internal/importer"
	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/lighting"
	"github.com/Faultbox/h4lights/pkg/math"
)

// Version is the manifest layout written by this package.
const Version = 1

type document struct {
	Version     int          `yaml:"version"`
	Collections []collection `yaml:"collections"`
}

type collection struct {
	Name   string  `yaml:"name"`
	Source string  `yaml:"source"`
	Lights []light `yaml:"lights"`
}

type light struct {
	ID            uuid.UUID           `yaml:"id"`
	Index         int                 `yaml:"index"`
	Name          string              `yaml:"name"`
	Kind          formats.LightKind   `yaml:"kind"`
	Type          lighting.TargetType `yaml:"type"`
	Color         [3]float32          `yaml:"color,flow"`
	Intensity     float32             `yaml:"intensity"`
	Energy        float32             `yaml:"energy"`
	Position      [3]float32          `yaml:"position,flow"`
	Rotation      [4]float32          `yaml:"rotation,flow"` // x, y, z, w
	RadiusHint    float32             `yaml:"radius_hint,omitempty"`
	ConeAngleHint float32             `yaml:"cone_angle_hint,omitempty"`
	Degenerate    bool                `yaml:"degenerate,omitempty"`
}

func fromPlaced(p lighting.PlacedLight) light {
	return light{
		ID:            p.ID,
		Index:         p.Index,
		Name:          p.Name,
		Kind:          p.Kind,
		Type:          p.Type,
		Color:         [3]float32{p.Color.R, p.Color.G, p.Color.B},
		Intensity:     p.Intensity,
		Energy:        p.Energy,
		Position:      p.Position.Array(),
		Rotation:      p.Rotation.Array(),
		RadiusHint:    p.RadiusHint,
		ConeAngleHint: p.ConeAngleHint,
		Degenerate:    p.Degenerate,
	}
}

func (l light) placed() lighting.PlacedLight {
	rot := math.Quat{X: l.Rotation[0], Y: l.Rotation[1], Z: l.Rotation[2], W: l.Rotation[3]}
	return lighting.PlacedLight{
		ID:            l.ID,
		Index:         l.Index,
		Name:          l.Name,
		Kind:          l.Kind,
		Type:          l.Type,
		Color:         formats.Color{R: l.Color[0], G: l.Color[1], B: l.Color[2]},
		Intensity:     l.Intensity,
		Energy:        l.Energy,
		Position:      math.Vec3{X: l.Position[0], Y: l.Position[1], Z: l.Position[2]},
		Rotation:      rot,
		Basis:         rot.Mgl().Mat4().Mat3(),
		RadiusHint:    l.RadiusHint,
		ConeAngleHint: l.ConeAngleHint,
		Degenerate:    l.Degenerate,
	}
}

// Write encodes cols as a manifest.
func Write(w io.Writer, cols []importer.Collection) error {
	doc := document{Version: Version, Collections: make([]collection, 0, len(cols))}
	for _, c := range cols {
		out := collection{Name: c.Name, Source: c.Source, Lights: make([]light, 0, len(c.Lights))}
		for _, p := range c.Lights {
			out.Lights = append(out.Lights, fromPlaced(p))
		}
		doc.Collections = append(doc.Collections, out)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return enc.Close()
}

// Read decodes a manifest. The basis of each light is rebuilt from its
// rotation.
func Read(r io.Reader) ([]importer.Collection, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported manifest version %d", doc.Version)
	}

	cols := make([]importer.Collection, 0, len(doc.Collections))
	for _, c := range doc.Collections {
		col := importer.Collection{Name: c.Name, Source: c.Source, Lights: make([]lighting.PlacedLight, 0, len(c.Lights))}
		for _, l := range c.Lights {
			col.Lights = append(col.Lights, l.placed())
		}
		cols = append(cols, col)
	}
	return cols, nil
}

// Builder collects imported lights for a manifest.
type Builder struct {
	Collections []importer.Collection
}

var _ importer.SceneBuilder = (*Builder)(nil)

// AddCollection implements importer.SceneBuilder.
func (b *Builder) AddCollection(c importer.Collection) error {
	b.Collections = append(b.Collections, c)
	return nil
}

// Encode writes the collected manifest to w.
func (b *Builder) Encode(w io.Writer) error {
	return Write(w, b.Collections)
}

// WriteFile writes the collected manifest to path, creating parent
// directories.
func (b *Builder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := b.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
