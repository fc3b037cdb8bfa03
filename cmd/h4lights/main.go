// h4lights extracts light placements from Halo 4 lighting info tags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/Faultbox/h4lights/internal/config"
	"github.com/Faultbox/h4lights/internal/gltfexport"
	"github.com/Faultbox/h4lights/internal/importer"
	"github.com/Faultbox/h4lights/internal/logger"
	"github.com/Faultbox/h4lights/internal/manifest"
	"github.com/Faultbox/h4lights/pkg/formats"
	"github.com/Faultbox/h4lights/pkg/lighting"
)

func main() {
	config.ParseFlags()
	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	command := args[0]
	args = args[1:]

	code := 0
	switch command {
	case "list", "ls":
		code = cmdList(cfg, args)
	case "dump":
		code = cmdDump(args)
	case "import":
		code = cmdImport(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		code = 1
	}

	logger.Sync()
	os.Exit(code)
}

func printUsage() {
	fmt.Println(`h4lights - Halo 4 lighting info light importer

Usage:
  h4lights [flags] <command> [options]

Commands:
  list [dir]                 List lighting info tags under dir
  dump <file>                Print decoded and placed lights of one tag
  import [files...]          Import tags into a glTF scene or YAML manifest

Flags:
  -config <path>             Config file
  -debug                     Debug logging (logs every decoded entry)
  -tags-dir <dir>            Base directory for tag files
  -workers <n>               Files decoded concurrently
  -format <gltf|yaml>        Export format
  -out <path>                Export output path (default lights.gltf or lights.yaml)
  -log-file <path>           Also log to a rotating file

Examples:
  h4lights list ./tags
  h4lights dump m10_crash.scenario_structure_lighting_info
  h4lights -out m10.glb import ./tags/m10_crash.scenario_structure_lighting_info
  h4lights -format yaml -out lights.yaml -tags-dir ./tags import`)
}

func cmdList(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.Parse(args)

	dir := cfg.TagsDir()
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	paths, err := importer.FindTagFiles(dir, cfg.Tags.Pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	fmt.Fprintf(os.Stderr, "\n(%d tags found)\n", len(paths))
	return 0
}

func cmdDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	raw := fs.Bool("raw", false, "Print raw tag frames instead of placed transforms")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: h4lights dump [-raw] <file>")
		return 1
	}
	path := fs.Arg(0)

	info, err := formats.DecodeLightingInfoFile(path, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("Tag:        %s\n", path)
	fmt.Printf("Collection: %s\n", importer.CollectionName(path))
	fmt.Printf("Lights:     %d\n", info.ReferenceCount)
	fmt.Printf("Opaque:     %d blocks\n", len(info.OpaqueBlocks))
	fmt.Println()

	if *raw {
		dumpRaw(os.Stdout, info)
		return 0
	}

	lights, degenerate := lighting.PlaceAll(path, info)
	dumpPlaced(os.Stdout, lights)
	if degenerate > 0 {
		fmt.Fprintf(os.Stderr, "\n(%d lights with degenerate frames)\n", degenerate)
	}
	return 0
}

func dumpRaw(w io.Writer, info *formats.LightingInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tKIND\tCOLOR\tINTENSITY\tORIGIN\tFORWARD\tUP")
	for _, l := range info.Lights {
		fmt.Fprintf(tw, "%d\t%s\t%s(%d)\t%.3g %.3g %.3g\t%g\t%v\t%v\t%v\n",
			l.Index, l.Name, l.Kind, l.RawKind,
			l.Color.R, l.Color.G, l.Color.B, l.Intensity,
			l.Frame.Origin.Array(), l.Frame.Forward.Array(), l.Frame.Up.Array())
	}
	tw.Flush()
}

func dumpPlaced(w io.Writer, lights []lighting.PlacedLight) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTYPE\tENERGY\tPOSITION (m)\tROTATION (xyzw)\tNOTE")
	for _, l := range lights {
		note := ""
		if l.Degenerate {
			note = "degenerate frame"
		}
		pos := l.Position.Array()
		rot := l.Rotation.Array()
		fmt.Fprintf(tw, "%d\t%s\t%s\t%g\t%.3f %.3f %.3f\t%.3f %.3f %.3f %.3f\t%s\n",
			l.Index, l.Name, l.Type, l.Energy,
			pos[0], pos[1], pos[2],
			rot[0], rot[1], rot[2], rot[3], note)
	}
	tw.Flush()
}

// sceneWriter is a SceneBuilder that can be flushed to disk.
type sceneWriter interface {
	importer.SceneBuilder
	WriteFile(path string) error
}

func newSceneWriter(format string) sceneWriter {
	if format == config.FormatYAML {
		return &manifest.Builder{}
	}
	return gltfexport.NewBuilder()
}

func cmdImport(cfg *config.Config, args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		found, err := importer.FindTagFiles(cfg.TagsDir(), cfg.Tags.Pattern)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		paths = found
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No tags matching %s under %s\n", cfg.Tags.Pattern, cfg.TagsDir())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	scene := newSceneWriter(cfg.Export.Format)
	im := importer.New(scene, importer.Options{
		Workers: cfg.Import.Workers,
		Logger:  logger.Named("importer"),
	})

	results, err := im.ImportFiles(ctx, paths)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("import failed", zap.Error(err))
		return 1
	}

	failed, lights, degenerate := 0, 0, 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		lights += len(res.Collection.Lights)
		degenerate += res.DegenerateFrames
	}

	if errors.Is(err, context.Canceled) {
		logger.Warn("import interrupted, writing partial scene")
	}
	out := cfg.OutputPath()
	if err := scene.WriteFile(out); err != nil {
		logger.Error("failed to write scene", zap.String("path", out), zap.Error(err))
		return 1
	}

	fmt.Printf("Imported %d lights from %d/%d tags into %s", lights, len(paths)-failed, len(paths), out)
	if degenerate > 0 {
		fmt.Printf(" (%d degenerate frames)", degenerate)
	}
	fmt.Println()

	if failed > 0 {
		return 1
	}
	return 0
}
