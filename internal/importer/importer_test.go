package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/formats/formatstest"
	"github.com/Faultbox/h4lights/pkg/lighting"
)

type recordingBuilder struct {
	mu   sync.Mutex
	cols []Collection
	err  error
}

func (b *recordingBuilder) AddCollection(c Collection) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.cols = append(b.cols, c)
	return nil
}

func writeTag(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func goodTag(names ...string) []byte {
	var tag formatstest.Tag
	for i, name := range names {
		tag.Lights = append(tag.Lights, formatstest.PointLight(name, [3]float32{float32(i), 0, 0}, 1))
	}
	return tag.Bytes()
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"m10_crash.scenario_structure_lighting_info", "m10_crash_lights"},
		{"/levels/ff87/ff87.scenario_structure_lighting_info", "ff87_lights"},
		{"noext", "noext_lights"},
		{"a.b.c", "a.b_lights"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CollectionName(tt.path), tt.path)
	}
}

func TestFindTagFiles(t *testing.T) {
	dir := t.TempDir()
	writeTag(t, dir, "b"+formats.LightingInfoExt, nil)
	writeTag(t, dir, "a"+formats.LightingInfoExt, nil)
	writeTag(t, dir, "sub/c"+formats.LightingInfoExt, nil)
	writeTag(t, dir, "readme.txt", nil)
	writeTag(t, dir, "a.scenario_structure_bsp", nil)

	paths, err := FindTagFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a"+formats.LightingInfoExt),
		filepath.Join(dir, "b"+formats.LightingInfoExt),
		filepath.Join(dir, "sub", "c"+formats.LightingInfoExt),
	}, paths)

	paths, err = FindTagFiles(dir, "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "readme.txt")}, paths)

	_, err = FindTagFiles(dir, "[")
	assert.Error(t, err)

	_, err = FindTagFiles(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestImportFiles_ContinuesAfterBrokenFile(t *testing.T) {
	dir := t.TempDir()

	degenerate := formatstest.PointLight("bent", [3]float32{}, 1)
	degenerate.Forward = [3]float32{}

	paths := []string{
		writeTag(t, dir, "first"+formats.LightingInfoExt, goodTag("lamp_a", "lamp_b")),
		writeTag(t, dir, "broken"+formats.LightingInfoExt, goodTag("x")[:100]),
		writeTag(t, dir, "third"+formats.LightingInfoExt, formatstest.Tag{
			Lights: []formatstest.Light{formatstest.PointLight("ok", [3]float32{}, 1), degenerate},
		}.Bytes()),
	}

	core, logs := observer.New(zapcore.InfoLevel)
	builder := &recordingBuilder{}
	im := New(builder, Options{Workers: 2, Logger: zap.New(core)})

	results, err := im.ImportFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, res := range results {
		assert.Equal(t, paths[i], res.Path)
	}

	assert.NoError(t, results[0].Err)
	assert.Len(t, results[0].Collection.Lights, 2)

	assert.ErrorIs(t, results[1].Err, formats.ErrTruncated)
	assert.Empty(t, results[1].Collection.Lights)

	assert.NoError(t, results[2].Err)
	assert.Equal(t, 1, results[2].DegenerateFrames)

	require.Len(t, builder.cols, 2)
	assert.Equal(t, "first_lights", builder.cols[0].Name)
	assert.Equal(t, "third_lights", builder.cols[1].Name)
	assert.Equal(t, paths[2], builder.cols[1].Source)
	assert.Equal(t, "lamp_a", builder.cols[0].Lights[0].Name)
	assert.Equal(t, lighting.LightID(paths[0], 1), builder.cols[0].Lights[1].ID)

	decodeErrs := logs.FilterMessage("failed to decode lighting info").All()
	require.Len(t, decodeErrs, 1)
	ctx := decodeErrs[0].ContextMap()
	assert.Equal(t, paths[1], ctx["path"])
	assert.Equal(t, "header", ctx["pass"])

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "bent", warnings[0].ContextMap()["name"])
}

func TestImportFiles_PreservesOrder(t *testing.T) {
	dir := t.TempDir()

	var paths []string
	for _, name := range []string{"e", "d", "c", "b", "a", "f", "g", "h"} {
		paths = append(paths, writeTag(t, dir, name+formats.LightingInfoExt, goodTag(name)))
	}

	builder := &recordingBuilder{}
	_, err := New(builder, Options{Workers: 4}).ImportFiles(context.Background(), paths)
	require.NoError(t, err)

	require.Len(t, builder.cols, len(paths))
	for i, c := range builder.cols {
		assert.Equal(t, CollectionName(paths[i]), c.Name)
	}
}

func TestImportFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeTag(t, dir, "a"+formats.LightingInfoExt, goodTag("a")),
		writeTag(t, dir, "b"+formats.LightingInfoExt, goodTag("b")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	builder := &recordingBuilder{}
	results, err := New(builder, Options{Workers: 1}).ImportFiles(ctx, paths)
	assert.ErrorIs(t, err, context.Canceled)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Empty(t, builder.cols)
}

func TestImportFiles_BuilderError(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writeTag(t, dir, "a"+formats.LightingInfoExt, goodTag("a"))}

	boom := errors.New("scene is read-only")
	_, err := New(&recordingBuilder{err: boom}, Options{}).ImportFiles(context.Background(), paths)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a_lights")
}

func TestImportFile_MissingFile(t *testing.T) {
	res := New(&recordingBuilder{}, Options{}).ImportFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, os.ErrNotExist)
}

func TestLogObserver(t *testing.T) {
	dir := t.TempDir()
	path := writeTag(t, dir, "obs"+formats.LightingInfoExt, goodTag("one", "two"))

	core, logs := observer.New(zapcore.DebugLevel)
	res := New(&recordingBuilder{}, Options{Logger: zap.New(core)}).ImportFile(path)
	require.NoError(t, res.Err)

	assert.Equal(t, 2, logs.FilterMessage("light definition").Len())
	assert.Equal(t, 2, logs.FilterMessage("light instance").Len())

	namings := logs.FilterMessage("light naming").All()
	require.Len(t, namings, 2)
	assert.Equal(t, "two", namings[1].ContextMap()["name"])
	assert.Equal(t, path, namings[1].ContextMap()["path"])
}
