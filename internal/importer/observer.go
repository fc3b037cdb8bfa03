package importer

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/math"
)

// LogObserver writes every decoded entry to a debug log.
type LogObserver struct {
	Log *zap.Logger
}

var _ formats.Observer = LogObserver{}

func hexOffset(off int64) zap.Field {
	return zap.String("offset", fmt.Sprintf("0x%X", off))
}

func vecField(key string, v math.Vec3) zap.Field {
	a := v.Array()
	return zap.Float32s(key, a[:])
}

func (o LogObserver) Definition(index int, offset int64, def formats.LightDefinition) {
	o.Log.Debug("light definition",
		zap.Int("index", index),
		hexOffset(offset),
		zap.Stringer("kind", def.Kind),
		zap.Uint32("raw_kind", def.RawKind),
		zap.Float32s("color", []float32{def.Color.R, def.Color.G, def.Color.B}))
}

func (o LogObserver) Naming(index int, offset int64, n formats.LightNaming) {
	o.Log.Debug("light naming",
		zap.Int("index", index),
		hexOffset(offset),
		zap.String("name", n.Name),
		zap.Float32("intensity", n.Intensity))
}

func (o LogObserver) Instance(index int, offset int64, f formats.RawFrame) {
	o.Log.Debug("light instance",
		zap.Int("index", index),
		hexOffset(offset),
		vecField("origin", f.Origin),
		vecField("forward", f.Forward),
		vecField("up", f.Up))
}
