package tessera

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestState(t *testing.T) (*ExecutorState, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	refDir := writeReferenceDir(t, map[string]RGB{
		"black.png": NewRGB(0, 0, 0),
		"white.png": NewRGB(255, 255, 255),
		"red.png":   NewRGB(255, 0, 0),
		"blue.png":  NewRGB(0, 0, 255),
	})
	conf := DefaultConfig()
	conf.Datasets.Default = "test"
	conf.Datasets.Dirs["test"] = refDir
	conf.CacheDir = filepath.Join(dir, "cache")
	conf.Enhancement.Disabled = true
	target := targetImage([][]RGB{
		{NewRGB(0, 0, 0), NewRGB(250, 250, 250), NewRGB(250, 0, 0), NewRGB(0, 0, 250)},
		{NewRGB(0, 0, 250), NewRGB(250, 0, 0), NewRGB(250, 250, 250), NewRGB(0, 0, 0)},
	})
	if err := SaveImage(filepath.Join(dir, "target.png"), target, 0); err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	return &ExecutorState{
		WorkingDir: dir,
		Config:     conf,
		Out:        out,
		Warnings:   &Warnings{},
	}, out
}

func TestCommandPipeline(t *testing.T) {
	state, out := newTestState(t)
	state.Config.WebTiles = MosaicConfig{TileSize: 4, MosaicWidth: 4}
	cmds := DefaultCommands
	err := cmds.Run(state, "assemble", "target.png", "--web-tiles", "--tile-size", "2",
		"--mosaic-width", "2", "--output-dir", "out", "--web-output-dir", "tiles")
	if err != nil {
		t.Fatal(err)
	}
	static, err := LoadImageFile(filepath.Join(state.WorkingDir, "out", "mosaic.png"))
	if err != nil {
		t.Fatal(err)
	}
	if b := static.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("Static mosaic has bounds %v, want 4x2", b)
	}
	desc, err := ReadGridDescriptor(filepath.Join(state.WorkingDir, "tiles", GridMetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	if desc.Width != 4 || desc.Height != 2 || desc.TileSize != 4 {
		t.Errorf("Unexpected grid %+v", desc.MosaicGrid)
	}
	// the target pixels are close to the reference colors
	wantNames := []string{"black.png", "white.png", "red.png", "blue.png", "blue.png", "red.png", "white.png", "black.png"}
	db, err := GenFSDatabase(state.Config.Datasets.Dirs["test"], true, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i, entry := range desc.Tiles {
		if got := db.Paths[entry.SourceIndex]; got != wantNames[i] {
			t.Errorf("Cell %s: got %s, want %s", entry.Coordinate(), got, wantNames[i])
		}
	}
	if _, err := os.Stat(filepath.Join(state.Config.CacheDir, IndexFileName("test"))); err != nil {
		t.Errorf("Color index cache not written: %v", err)
	}

	if err := cmds.Run(state, "pack", "tiles", "sprites", "--sheets", "2", "--spiral"); err != nil {
		t.Fatal(err)
	}
	meta, err := ReadSpriteMetadata(filepath.Join(state.WorkingDir, "sprites", SpriteMetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Sheets) != 4 || meta.SpriteConfig.SheetWidth != 2 || meta.SpriteConfig.SheetHeight != 1 {
		t.Errorf("Unexpected sprite config %+v", meta.SpriteConfig)
	}

	if err := cmds.Run(state, "stitch", "sprites", "canvas", "--verify-every", "1"); err != nil {
		t.Fatal(err)
	}
	var canvasMeta SingleCanvasMetadata
	if err := ReadJSONFile(filepath.Join(state.WorkingDir, "canvas", SingleCanvasMetadataFile), &canvasMeta); err != nil {
		t.Fatal(err)
	}
	if canvasMeta.QualityChecksPassed != 8 || canvasMeta.QualityChecksFailed != 0 {
		t.Errorf("Unexpected checks: %d passed, %d failed", canvasMeta.QualityChecksPassed, canvasMeta.QualityChecksFailed)
	}
	if canvasMeta.SingleCanvas.Width != 16 || canvasMeta.SingleCanvas.Height != 8 {
		t.Errorf("Unexpected canvas size %+v", canvasMeta.SingleCanvas)
	}
	if !strings.Contains(out.String(), "Stitched 8 tiles") {
		t.Errorf("Unexpected output %q", out.String())
	}

	// second run uses the cached colors
	if err := cmds.Run(state, "assemble", "--mosaic-width", "2", "target.png", "--output-dir", "static"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"mosaic.png", "mosaic.jpg"} {
		if _, err := os.Stat(filepath.Join(state.WorkingDir, "static", name)); err != nil {
			t.Error(err)
		}
	}
}

func TestCommandErrors(t *testing.T) {
	state, _ := newTestState(t)
	tests := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{"unknown command", []string{"mosaic"}, func(err error) bool { return err != nil }},
		{"pack without arguments", []string{"pack"}, func(err error) bool { return errors.Is(err, ErrCmdSyntaxErr) }},
		{"unknown flag", []string{"stitch", "a", "b", "--fast"}, func(err error) bool { return errors.Is(err, ErrCmdSyntaxErr) }},
		{"missing tiles dir", []string{"pack", "nothing", "out"}, IsDataError},
		{"missing sprite metadata", []string{"stitch", ".", "out"}, IsDataError},
		{"missing input", []string{"assemble", "nothing.png"}, IsDataError},
		{"unknown dataset", []string{"assemble", "target.png", "--dataset", "cats"}, IsDataError},
		{"invalid tiles per sheet", []string{"pack", ".", "out", "many"}, IsConfigError},
		{"negative tile size", []string{"assemble", "target.png", "--tile-size", "-2"}, IsConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := DefaultCommands.Run(state, tt.args[0], tt.args[1:]...)
			if !tt.check(err) {
				t.Errorf("Unexpected error %v", err)
			}
		})
	}
}

func TestSheetsPerSide(t *testing.T) {
	conf := DefaultConfig()
	tests := []struct {
		name                    string
		grid                    MosaicGrid
		explicit, tilesPerSheet int
		want                    int
	}{
		{"explicit", MosaicGrid{Width: 80, Height: 45, TileSize: 1}, 5, 100, 5},
		{"planned", MosaicGrid{Width: 8, Height: 8, TileSize: 1}, 0, 16, 2},
		{"configured", MosaicGrid{Width: 80, Height: 45, TileSize: 1}, 0, 0, 5},
		{"configured doesn't divide", MosaicGrid{Width: 12, Height: 12, TileSize: 1}, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sheetsPerSide(&conf, tt.grid, tt.explicit, tt.tilesPerSheet)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseArgs(t *testing.T) {
	fs := newFlagSet("test")
	n := fs.Int("n", 0, "")
	spiral := fs.Bool("spiral", false, "")
	positional, err := parseArgs(fs, []string{"a", "--n", "3", "b", "--spiral", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if *n != 3 || !*spiral {
		t.Errorf("Flags not parsed: n=%d spiral=%v", *n, *spiral)
	}
	if strings.Join(positional, ",") != "a,b,c" {
		t.Errorf("Positional arguments: got %v", positional)
	}
	if fs.Output() != io.Discard {
		t.Error("Flag set must not print usage on its own")
	}
	if _, err := parseArgs(fs, []string{"--unknown"}); !errors.Is(err, ErrCmdSyntaxErr) {
		t.Errorf("Expected syntax error for unknown flag, got %v", err)
	}
}

func TestGetPath(t *testing.T) {
	state := &ExecutorState{WorkingDir: "/work"}
	tests := []struct {
		in, want string
	}{
		{"tiles", "/work/tiles"},
		{"/abs/dir", "/abs/dir"},
		{"a/../b", "/work/b"},
	}
	for _, tt := range tests {
		got, err := state.GetPath(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("GetPath(%s): got %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestHelpCommand(t *testing.T) {
	out := &bytes.Buffer{}
	if err := HelpCommand(&ExecutorState{Out: out}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"assemble", "pack", "stitch", "help"} {
		if !strings.Contains(out.String(), DefaultCommands[name].Usage) {
			t.Errorf("Help doesn't contain usage of %s", name)
		}
	}
}
