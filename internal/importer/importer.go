// Package importer turns lighting info tags into named light collections and
// hands them to a scene builder.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/lighting"
)

// TagPattern matches lighting info tag file names.
const TagPattern = "*" + formats.LightingInfoExt

// Collection groups the lights of one tag file.
type Collection struct {
	Name   string
	Source string
	Lights []lighting.PlacedLight
}

// SceneBuilder receives collections in input order.
type SceneBuilder interface {
	AddCollection(c Collection) error
}

// FileResult reports the outcome for a single file.
type FileResult struct {
	Path             string
	Collection       Collection
	DegenerateFrames int
	Err              error
}

// Options configures an Importer.
type Options struct {
	Workers int
	Logger  *zap.Logger
}

// Importer decodes tag files and feeds a SceneBuilder.
type Importer struct {
	builder SceneBuilder
	workers int
	log     *zap.Logger
}

// New creates an Importer. Workers below 1 mean one file at a time.
func New(builder SceneBuilder, opts Options) *Importer {
	im := &Importer{
		builder: builder,
		workers: opts.Workers,
		log:     opts.Logger,
	}
	if im.workers < 1 {
		im.workers = 1
	}
	if im.log == nil {
		im.log = zap.NewNop()
	}
	return im
}

// CollectionName derives the collection name from a tag path.
func CollectionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_lights"
}

// FindTagFiles walks dir and returns files whose base name matches pattern,
// in lexical order. An empty pattern means TagPattern.
func FindTagFiles(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = TagPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("tag pattern %q: %w", pattern, err)
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	return paths, nil
}

// ImportFile decodes and places a single file without touching the builder.
func (im *Importer) ImportFile(path string) FileResult {
	res := FileResult{Path: path}
	log := im.log.With(zap.String("path", path))

	var opts *formats.DecodeOptions
	if log.Core().Enabled(zap.DebugLevel) {
		opts = &formats.DecodeOptions{Observer: LogObserver{Log: log}}
	}

	info, err := formats.DecodeLightingInfoFile(path, opts)
	if err != nil {
		res.Err = err
		fields := []zap.Field{zap.Error(err)}
		var de *formats.DecodeError
		if errors.As(err, &de) {
			fields = append(fields,
				zap.String("pass", string(de.Pass)),
				zap.String("offset", fmt.Sprintf("0x%X", de.Offset)))
			if de.Index >= 0 {
				fields = append(fields, zap.Int("index", de.Index))
			}
		}
		log.Error("failed to decode lighting info", fields...)
		return res
	}

	lights, degenerate := lighting.PlaceAll(path, info)
	res.Collection = Collection{
		Name:   CollectionName(path),
		Source: path,
		Lights: lights,
	}
	res.DegenerateFrames = degenerate

	if degenerate > 0 {
		for _, l := range lights {
			if l.Degenerate {
				log.Warn("degenerate light frame, using axis-aligned basis",
					zap.Int("index", l.Index), zap.String("name", l.Name))
			}
		}
	}
	log.Info("imported lights",
		zap.String("collection", res.Collection.Name),
		zap.Int("lights", len(lights)),
		zap.Int("degenerate", degenerate))
	return res
}

// ImportFiles decodes paths concurrently and adds every successful collection
// to the builder in input order. A broken file is reported in its result and
// does not stop the batch. Cancelling ctx stops new files from starting; the
// unstarted ones get ctx's error.
//
// The returned error is non-nil only for cancellation or a builder failure.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	results := make([]FileResult, len(paths))

	var g errgroup.Group
	g.SetLimit(im.workers)
	for i, path := range paths {
		results[i].Path = path
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			results[i] = im.ImportFile(path)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			continue
		}
		if err := im.builder.AddCollection(res.Collection); err != nil {
			return results, fmt.Errorf("adding collection %s: %w", res.Collection.Name, err)
		}
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	im.log.Info("import finished", zap.Int("files", len(paths)), zap.Int("failed", failed))

	return results, ctx.Err()
}
