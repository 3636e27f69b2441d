// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tessera

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrCmdSyntaxErr is returned by a CommandFunc if the syntax for the command
	// is invalid.
	ErrCmdSyntaxErr = errors.New("Invalid command syntax")
)

// ExecutorState is the state shared by the commands of one invocation.
type ExecutorState struct {
	// WorkingDir is the directory relative paths are resolved against. It must
	// always be an absolute path.
	WorkingDir string

	// Config contains the settings, commands may replace it with the content
	// of a config file.
	Config Config

	// Verbose is true if detailed output should be generated.
	Verbose bool

	// Out is used to write state information.
	Out io.Writer

	// Warnings collects the non-fatal problems of the current command.
	Warnings *Warnings
}

// NewExecutorState returns a state with the default config and the current
// directory as working directory.
func NewExecutorState(out io.Writer, verbose bool) (*ExecutorState, error) {
	dir, err := filepath.Abs(".")
	if err != nil {
		return nil, err
	}
	return &ExecutorState{
		WorkingDir: dir,
		Config:     DefaultConfig(),
		Verbose:    verbose,
		Out:        out,
		Warnings:   &Warnings{},
	}, nil
}

// GetPath returns the absolute path given some other path.
// The idea is the following: If the user inputs a path we have two cases:
// The user used an absolute path, in this case we use this absolute path
// to perform tasks with.
// If it is a relative path we join the working directory with this path
// and thus retrieve the absolute path we work on.
//
// The home directory can be used like on Unix: ~/Pictures is the Pictures
// directory in the home directory of the user.
func (state *ExecutorState) GetPath(path string) (string, error) {
	res, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(res) {
		res = filepath.Join(state.WorkingDir, res)
	}
	return filepath.Abs(res)
}

// printf writes to Out if Verbose is true.
func (state *ExecutorState) printf(format string, args ...interface{}) {
	if state.Verbose {
		fmt.Fprintf(state.Out, format, args...)
	}
}

func (state *ExecutorState) progress(prefix string, max int) ProgressFunc {
	step := IntMax(1, IntMin(100, max/10))
	switch {
	case state.Verbose:
		return StdProgressFunc(state.Out, prefix, max, step)
	case log.IsLevelEnabled(log.DebugLevel):
		return LoggerProgressFunc(prefix, max, step)
	default:
		return ProgressIgnore
	}
}

// existingDir returns the absolute path of dir, or a DataError if it isn't a
// directory.
func (state *ExecutorState) existingDir(dir, what string) (string, error) {
	path, err := state.GetPath(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", newDataError(err, "%s %s not found", what, path)
	}
	if !info.IsDir() {
		return "", newDataError(nil, "%s %s is not a directory", what, path)
	}
	return path, nil
}

// CommandFunc is a function that is applied to the current states and
// arguments to that command.
type CommandFunc func(state *ExecutorState, args ...string) error

// Command a command consists of a function to actually execute the command
// and some information about the command.
type Command struct {
	Exec        CommandFunc
	Usage       string
	Description string
}

// CommandMap maps command names to Commands.
type CommandMap map[string]Command

// DefaultCommands contains the commands of the tessera executable.
var DefaultCommands CommandMap

// Run executes the command with the given name.
func (m CommandMap) Run(state *ExecutorState, name string, args ...string) error {
	cmd, has := m[name]
	if !has {
		return fmt.Errorf("Unknown command \"%s\", use \"help\" for a list of commands", name)
	}
	err := cmd.Exec(state, args...)
	if errors.Is(err, ErrCmdSyntaxErr) {
		return fmt.Errorf("%w, usage: %s", err, cmd.Usage)
	}
	return err
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses the flags in args and returns the positional arguments.
// Flags and positional arguments may be mixed.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrCmdSyntaxErr, err.Error())
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func (state *ExecutorState) loadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	abs, err := state.GetPath(path)
	if err != nil {
		return err
	}
	conf, err := LoadConfig(abs)
	if err != nil {
		return err
	}
	state.Config = conf
	return nil
}

// referenceIndex returns the color index of db. The index is read from
// cachePath if that file describes db, otherwise it is computed and written
// to cachePath.
func (state *ExecutorState) referenceIndex(db *FSImageDB, cachePath string) (*ColorIndex, error) {
	var file IndexFile
	readErr := file.ReadFile(cachePath)
	switch {
	case readErr == nil:
		index, err := file.ToIndex(db)
		if err == nil {
			log.WithField("file", cachePath).Debug("Using cached color index")
			return index, nil
		}
		log.WithFields(log.Fields{
			"file":   cachePath,
			"reason": err.Error(),
		}).Info("Color index cache is outdated, recomputing")
	case IsConfigError(readErr):
		return nil, readErr
	case !errors.Is(readErr, os.ErrNotExist):
		log.WithFields(log.Fields{
			"file":   cachePath,
			"reason": readErr.Error(),
		}).Warn("Can't read color index cache, recomputing")
	}
	state.printf("Computing average colors of %d images\n", db.NumImages())
	start := time.Now()
	index, err := BuildIndex(db, state.Config.Routines, state.Warnings,
		state.progress("Colors", int(db.NumImages())))
	if err != nil {
		return nil, err
	}
	state.printf("Computing colors took %v\n", time.Since(start))
	// a cache that can't be written only costs time on the next run
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		log.WithField("file", cachePath).Warn("Can't create directory for color index cache: ", err)
		return index, nil
	}
	if err := CreateIndexFile(db, index).WriteFile(cachePath); err != nil {
		log.WithField("file", cachePath).Warn("Can't write color index cache: ", err)
	}
	return index, nil
}

// AssembleCommand creates a mosaic of an input image from a reference
// dataset.
func AssembleCommand(state *ExecutorState, args ...string) error {
	fs := newFlagSet("assemble")
	dataset := fs.String("dataset", "", "name of the reference dataset")
	tileSize := fs.Int("tile-size", 0, "tile size in pixels")
	mosaicWidth := fs.Int("mosaic-width", 0, "number of tiles per row")
	webTiles := fs.Bool("web-tiles", false, "also write tile files and metadata for the web tile configuration")
	outputDir := fs.String("output-dir", "output", "output directory of the mosaic")
	webOutputDir := fs.String("web-output-dir", "", "output directory of the web tiles, default <output-dir>/tiles")
	indexCache := fs.String("index-cache", "", "color index cache file")
	configFile := fs.String("config", "", "config file")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return ErrCmdSyntaxErr
	}
	if err := state.loadConfigFile(*configFile); err != nil {
		return err
	}
	conf := &state.Config
	totalStart := time.Now()

	mosaicConf := conf.Mosaic(false)
	if *tileSize != 0 {
		mosaicConf.TileSize = *tileSize
	}
	if *mosaicWidth != 0 {
		mosaicConf.MosaicWidth = *mosaicWidth
	}
	if err := checkPositive("tile-size", mosaicConf.TileSize); err != nil {
		return err
	}
	if err := checkPositive("mosaic-width", mosaicConf.MosaicWidth); err != nil {
		return err
	}

	inPath, err := state.GetPath(positional[0])
	if err != nil {
		return err
	}
	state.printf("Reading image %s\n", inPath)
	target, err := LoadImageFile(inPath)
	if err != nil {
		return newDataError(err, "can't read input image %s", inPath)
	}
	bounds := target.Bounds()
	if bounds.Empty() {
		return newDataError(nil, "input image %s is empty", inPath)
	}

	datasetName := *dataset
	if datasetName == "" {
		datasetName = conf.Datasets.Default
	}
	datasetDir, err := conf.DatasetDir(datasetName)
	if err != nil {
		return err
	}
	refDir, err := state.existingDir(datasetDir, "reference directory")
	if err != nil {
		return err
	}
	db, err := GenFSDatabase(refDir, true, ReferenceImages)
	if err != nil {
		return err
	}
	if db.NumImages() == 0 {
		return newDataError(nil, "no reference images found in %s", refDir)
	}
	cachePath := *indexCache
	if cachePath == "" {
		cachePath = filepath.Join(conf.CacheDir, IndexFileName(datasetName))
	}
	if cachePath, err = state.GetPath(cachePath); err != nil {
		return err
	}
	colors, err := state.referenceIndex(db, cachePath)
	if err != nil {
		return err
	}

	assembler, err := NewAssembler(NewKDTreeIndex(colors), db, conf, state.Warnings)
	if err != nil {
		return err
	}
	outDir, err := state.GetPath(*outputDir)
	if err != nil {
		return err
	}
	grid := mosaicGrid(mosaicConf, bounds)
	res, err := state.assemble(assembler, target, grid, AssembleOptions{Canvas: true})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	path, err := SaveEncoded(outDir, "mosaic", Lossless, res.Canvas, 0)
	if err != nil {
		return err
	}
	fmt.Fprintln(state.Out, "Mosaic saved to", filepath.Join(outDir, path))
	size := res.Canvas.Bounds().Size()
	if IntMax(size.X, size.Y) <= conf.Stitch.LossyMaxDimension {
		if path, err = SaveEncoded(outDir, "mosaic", Lossy, res.Canvas, conf.JPGQuality); err != nil {
			return err
		}
		fmt.Fprintln(state.Out, "Mosaic saved to", filepath.Join(outDir, path))
	}

	if *webTiles {
		tilesDir := *webOutputDir
		if tilesDir == "" {
			tilesDir = filepath.Join(*outputDir, "tiles")
		}
		if tilesDir, err = state.GetPath(tilesDir); err != nil {
			return err
		}
		webGrid := mosaicGrid(conf.Mosaic(true), bounds)
		res, err = state.assemble(assembler, target, webGrid, AssembleOptions{TileDir: tilesDir})
		if err != nil {
			return err
		}
		fmt.Fprintf(state.Out, "Wrote %d tiles and %s to %s\n", len(res.Descriptor.Tiles), GridMetadataFile, tilesDir)
	}
	state.printf("Total time: %v\n", time.Since(totalStart))
	state.Warnings.LogSummary("assemble")
	return nil
}

// mosaicGrid returns the grid for an input image with the given bounds.
func mosaicGrid(mosaicConf MosaicConfig, bounds image.Rectangle) MosaicGrid {
	return MosaicGrid{
		Width:    mosaicConf.MosaicWidth,
		Height:   MosaicHeight(bounds.Dx(), bounds.Dy(), mosaicConf.MosaicWidth),
		TileSize: mosaicConf.TileSize,
	}
}

func (state *ExecutorState) assemble(assembler *Assembler, target image.Image, grid MosaicGrid, opts AssembleOptions) (*AssembleResult, error) {
	assembler.Progress = state.progress("Tiles", grid.NumCells())
	state.printf("Assembling %dx%d mosaic with tile size %d\n", grid.Width, grid.Height, grid.TileSize)
	start := time.Now()
	res, err := assembler.Assemble(target, grid, opts)
	if err != nil {
		return nil, err
	}
	state.printf("Assembling took %v\n", time.Since(start))
	return res, nil
}

// sheetsPerSide chooses the number of sheets per side for grid: explicit is
// used if positive, otherwise tilesPerSheet (if positive) is the upper bound
// for PlanSheetsPerSide. Without both the configured value is used, if it
// doesn't divide the grid the configured tiles per sheet are used as bound.
func sheetsPerSide(conf *Config, grid MosaicGrid, explicit, tilesPerSheet int) (int, error) {
	switch {
	case explicit > 0:
		return explicit, nil
	case tilesPerSheet > 0:
		return PlanSheetsPerSide(grid, tilesPerSheet)
	}
	g := conf.Sprites.SheetsPerSide
	if grid.Width%g == 0 && grid.Height%g == 0 {
		return g, nil
	}
	log.WithFields(log.Fields{
		"sheets_per_side": g,
		"width":           grid.Width,
		"height":          grid.Height,
	}).Info("Configured sheets per side don't divide the grid, planning from tiles per sheet")
	return PlanSheetsPerSide(grid, conf.Sprites.TilesPerSheet)
}

// PackCommand packs the tiles written by "assemble --web-tiles" into sprite
// sheets.
func PackCommand(state *ExecutorState, args ...string) error {
	fs := newFlagSet("pack")
	sheets := fs.Int("sheets", 0, "number of sheets per side")
	spiral := fs.Bool("spiral", false, "order tiles from the center outwards")
	configFile := fs.String("config", "", "config file")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) < 2 || len(positional) > 3 {
		return ErrCmdSyntaxErr
	}
	if *sheets < 0 {
		return &ConfigError{Field: "sheets", Msg: fmt.Sprintf("must be positive, got %d", *sheets)}
	}
	tilesPerSheet := 0
	if len(positional) == 3 {
		n, parseErr := strconv.Atoi(positional[2])
		if parseErr != nil || n <= 0 {
			return &ConfigError{Field: "tiles_per_sheet",
				Msg: fmt.Sprintf("expected a positive number, got \"%s\"", positional[2])}
		}
		tilesPerSheet = n
	}
	if err := state.loadConfigFile(*configFile); err != nil {
		return err
	}
	conf := &state.Config
	tilesDir, err := state.existingDir(positional[0], "tiles directory")
	if err != nil {
		return err
	}
	outDir, err := state.GetPath(positional[1])
	if err != nil {
		return err
	}
	desc, err := ReadGridDescriptor(filepath.Join(tilesDir, GridMetadataFile))
	if err != nil {
		return err
	}
	g, err := sheetsPerSide(conf, desc.MosaicGrid, *sheets, tilesPerSheet)
	if err != nil {
		return err
	}
	packer, err := NewPacker(conf, state.Warnings)
	if err != nil {
		return err
	}
	packer.Spiral = *spiral
	state.printf("Packing %dx%d grid into %dx%d sheets\n", desc.Width, desc.Height, g, g)
	start := time.Now()
	meta, err := packer.PackDir(tilesDir, outDir, PackOptions{
		SheetsPerSide: g,
		WriteLossy:    conf.Sprites.WriteLossy,
		LossyQuality:  conf.Sprites.LossyQuality,
	})
	if err != nil {
		return err
	}
	state.printf("Packing took %v\n", time.Since(start))
	fmt.Fprintf(state.Out, "Packed %d tiles into %d sheets in %s\n",
		len(desc.Tiles), meta.SpriteConfig.NumSheets, outDir)
	state.Warnings.LogSummary("pack")
	return nil
}

// StitchCommand reconstructs the full mosaic from sprite sheets.
func StitchCommand(state *ExecutorState, args ...string) error {
	fs := newFlagSet("stitch")
	verifyEvery := fs.Int("verify-every", 0, "verify every n-th tile")
	configFile := fs.String("config", "", "config file")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return ErrCmdSyntaxErr
	}
	if err := state.loadConfigFile(*configFile); err != nil {
		return err
	}
	conf := &state.Config
	if *verifyEvery < 0 {
		return &ConfigError{Field: "verify-every", Msg: fmt.Sprintf("must be positive, got %d", *verifyEvery)}
	}
	spriteDir, err := state.existingDir(positional[0], "sprite directory")
	if err != nil {
		return err
	}
	outDir, err := state.GetPath(positional[1])
	if err != nil {
		return err
	}
	stitcher := NewStitcher(conf, state.Warnings)
	if *verifyEvery > 0 {
		stitcher.VerifyEvery = *verifyEvery
	}
	start := time.Now()
	meta, err := stitcher.StitchDir(spriteDir, outDir, StitchOptions{
		WriteLossy:        conf.Stitch.WriteLossy,
		LossyQuality:      conf.Stitch.LossyQuality,
		LossyMaxDimension: conf.Stitch.LossyMaxDimension,
	})
	if err != nil {
		return err
	}
	state.printf("Stitching took %v\n", time.Since(start))
	canvas := meta.SingleCanvas
	fmt.Fprintf(state.Out, "Stitched %d tiles into %s (%dx%d), %d checks passed, %d failed\n",
		meta.TilesProcessed, filepath.Join(outDir, canvas.FilenameLossless), canvas.Width, canvas.Height,
		meta.QualityChecksPassed, meta.QualityChecksFailed)
	state.Warnings.LogSummary("stitch")
	return nil
}

// HelpCommand prints the usage of all commands.
func HelpCommand(state *ExecutorState, args ...string) error {
	names := make([]string, 0, len(DefaultCommands))
	for name := range DefaultCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := DefaultCommands[name]
		fmt.Fprintf(state.Out, "%s\n    %s\n\n", cmd.Usage,
			strings.Replace(cmd.Description, "\n", "\n    ", -1))
	}
	return nil
}

func init() {
	DefaultCommands = make(map[string]Command, 4)
	DefaultCommands["assemble"] = Command{
		Exec: AssembleCommand,
		Usage: "assemble <input_image> [--dataset X] [--tile-size N] [--mosaic-width N]" +
			" [--web-tiles] [--output-dir D] [--web-output-dir D] [--index-cache F] [--config F]",
		Description: "Creates a mosaic of the input image from the reference images of a dataset.\n" +
			"The mosaic is saved as mosaic.png (and mosaic.jpg) in the output directory." +
			" With --web-tiles the mosaic is also created with the web tile settings," +
			" each tile is written as its own file together with " + GridMetadataFile + ".",
	}
	DefaultCommands["pack"] = Command{
		Exec:  PackCommand,
		Usage: "pack <tiles_dir> <output_dir> [tiles_per_sheet] [--sheets G] [--spiral] [--config F]",
		Description: "Packs the tiles of a web tiles directory into G x G sprite sheets.\n" +
			"If tiles_per_sheet is given G is the smallest number dividing the grid" +
			" with at most that many tiles per sheet.",
	}
	DefaultCommands["stitch"] = Command{
		Exec:  StitchCommand,
		Usage: "stitch <sprite_dir> <output_dir> [--verify-every N] [--config F]",
		Description: "Reconstructs the full resolution mosaic from sprite sheets and" +
			" verifies every N-th tile.",
	}
	DefaultCommands["help"] = Command{
		Exec:        HelpCommand,
		Usage:       "help",
		Description: "Show this help.",
	}
}
