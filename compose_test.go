package tessera

import (
	"bytes"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func targetImage(colors [][]RGB) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, len(colors[0]), len(colors)))
	for y, row := range colors {
		for x, c := range row {
			img.SetNRGBA(x, y, c.NRGBA())
		}
	}
	return img
}

func newTestAssembler(t *testing.T, storage ImageStorage, routines int) *Assembler {
	t.Helper()
	index, err := BuildIndex(storage, routines, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &Assembler{
		Index:       index,
		Storage:     storage,
		Enhancer:    NoEnhancer,
		NumRoutines: routines,
		CacheSize:   8,
		Background:  NewRGB(240, 240, 240),
		Warnings:    &Warnings{},
	}
}

func cellColor(img *image.NRGBA, grid MosaicGrid, c GridCoordinate) color.NRGBA {
	min := grid.CellBounds(c).Min
	return img.NRGBAAt(min.X, min.Y)
}

func TestAssembleBlackWhiteRegression(t *testing.T) {
	black, white := NewRGB(0, 0, 0), NewRGB(255, 255, 255)
	red, green := NewRGB(255, 0, 0), NewRGB(0, 255, 0)
	db := NewMemoryImageDB(solid(3, black), solid(3, white))
	a := newTestAssembler(t, db, 2)
	grid := MosaicGrid{Width: 2, Height: 2, TileSize: 3}
	target := targetImage([][]RGB{{black, white}, {red, green}})

	res, err := a.Assemble(target, grid, AssembleOptions{Canvas: true})
	if err != nil {
		t.Fatal(err)
	}
	// red and green are closer to black (255) than to white (360.6)
	want := []ImageID{0, 1, 0, 0}
	if len(res.Descriptor.Tiles) != len(want) {
		t.Fatalf("Got %d entries, want %d", len(res.Descriptor.Tiles), len(want))
	}
	for i, entry := range res.Descriptor.Tiles {
		c := GridCoordinate{X: i % 2, Y: i / 2}
		if entry.Coordinate() != c {
			t.Errorf("Entry %d has coordinate %s, want %s (row-major)", i, entry.Coordinate(), c)
		}
		if entry.SourceIndex != want[i] {
			t.Errorf("Cell %s: got tile %d, want %d", c, entry.SourceIndex, want[i])
		}
		wantColor := black.NRGBA()
		if want[i] == 1 {
			wantColor = white.NRGBA()
		}
		if got := cellColor(res.Canvas, grid, c); got != wantColor {
			t.Errorf("Canvas cell %s: got %v, want %v", c, got, wantColor)
		}
	}
	if err := res.Descriptor.Validate(); err != nil {
		t.Error(err)
	}
	if a.Warnings.Len() != 0 {
		t.Errorf("Unexpected warnings: %v", a.Warnings.List())
	}
}

func TestAssembleIgnoresAlpha(t *testing.T) {
	red, blue := NewRGB(255, 0, 0), NewRGB(0, 0, 255)
	clearRed := solid(3, red)
	for i := 3; i < len(clearRed.Pix); i += 4 {
		clearRed.Pix[i] = 0
	}
	db := NewMemoryImageDB(solid(3, NewRGB(0, 0, 0)), clearRed, solid(3, blue))
	a := newTestAssembler(t, db, 1)
	grid := MosaicGrid{Width: 2, Height: 1, TileSize: 3}
	target := targetImage([][]RGB{{red, blue}})
	target.Pix[7] = 0

	res, err := a.Assemble(target, grid, AssembleOptions{Canvas: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []ImageID{1, 2}
	for i, entry := range res.Descriptor.Tiles {
		if entry.SourceIndex != want[i] {
			t.Errorf("Cell %s: got tile %d, want %d", entry.Coordinate(), entry.SourceIndex, want[i])
		}
	}
	for y := 0; y < 3; y++ {
		for x := 0; x < 6; x++ {
			wantColor := red.NRGBA()
			if x >= 3 {
				wantColor = blue.NRGBA()
			}
			if got := res.Canvas.NRGBAAt(x, y); got != wantColor {
				t.Fatalf("Canvas pixel (%d, %d): got %v, want %v", x, y, got, wantColor)
			}
		}
	}
}

func TestAssembleDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	refs := make([]image.Image, 20)
	for i := range refs {
		refs[i] = solid(2, NewRGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256))))
	}
	colors := make([][]RGB, 5)
	for y := range colors {
		colors[y] = make([]RGB, 6)
		for x := range colors[y] {
			colors[y][x] = NewRGB(uint8(r.Intn(256)), uint8(r.Intn(256)), uint8(r.Intn(256)))
		}
	}
	target := targetImage(colors)
	grid := MosaicGrid{Width: 6, Height: 5, TileSize: 2}

	var results []*AssembleResult
	for _, routines := range []int{1, 8} {
		a := newTestAssembler(t, NewMemoryImageDB(refs...), routines)
		res, err := a.Assemble(target, grid, AssembleOptions{Canvas: true})
		if err != nil {
			t.Fatal(err)
		}
		results = append(results, res)
	}
	first, second := results[0], results[1]
	for i := range first.Descriptor.Tiles {
		if first.Descriptor.Tiles[i] != second.Descriptor.Tiles[i] {
			t.Errorf("Entry %d differs: %+v and %+v", i, first.Descriptor.Tiles[i], second.Descriptor.Tiles[i])
		}
	}
	if !bytes.Equal(first.Canvas.Pix, second.Canvas.Pix) {
		t.Error("Canvases differ between runs")
	}
}

func TestAssembleMissingReference(t *testing.T) {
	index, err := NewColorIndex([]IndexEntry{{ID: 0, Color: ColorVector{0, 0, 0}}})
	if err != nil {
		t.Fatal(err)
	}
	background := NewRGB(240, 240, 240)
	warnings := &Warnings{}
	a := &Assembler{
		Index:       index,
		Storage:     NewMemoryImageDB(nil),
		Enhancer:    NoEnhancer,
		NumRoutines: 2,
		Background:  background,
		Warnings:    warnings,
	}
	grid := MosaicGrid{Width: 2, Height: 1, TileSize: 2}
	target := targetImage([][]RGB{{NewRGB(0, 0, 0), NewRGB(10, 10, 10)}})
	res, err := a.Assemble(target, grid, AssembleOptions{Canvas: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := warnings.Count(MissingResource); got != 2 {
		t.Errorf("Expected 2 missing resource warnings, got %d", got)
	}
	for _, c := range []GridCoordinate{{0, 0}, {1, 0}} {
		if got := cellColor(res.Canvas, grid, c); got != background.NRGBA() {
			t.Errorf("Cell %s: got %v, want background", c, got)
		}
	}
	if len(res.Descriptor.Tiles) != 2 {
		t.Errorf("Descriptor must contain all cells, got %d", len(res.Descriptor.Tiles))
	}
}

func TestAssembleTileDir(t *testing.T) {
	db := NewMemoryImageDB(solid(4, NewRGB(0, 0, 0)), solid(4, NewRGB(255, 255, 255)))
	a := newTestAssembler(t, db, 3)
	grid := MosaicGrid{Width: 3, Height: 2, TileSize: 4}
	target := targetImage([][]RGB{
		{NewRGB(0, 0, 0), NewRGB(250, 250, 250), NewRGB(0, 0, 0)},
		{NewRGB(255, 255, 255), NewRGB(0, 0, 0), NewRGB(200, 200, 200)},
	})
	dir := filepath.Join(t.TempDir(), "tiles")
	res, err := a.Assemble(target, grid, AssembleOptions{TileDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if res.Canvas != nil {
		t.Error("Canvas created although not requested")
	}
	desc, err := ReadGridDescriptor(filepath.Join(dir, GridMetadataFile))
	if err != nil {
		t.Fatal(err)
	}
	if desc.RunID == "" || desc.RunID != res.Descriptor.RunID {
		t.Errorf("Unexpected run id %q", desc.RunID)
	}
	for _, entry := range desc.Tiles {
		if entry.Filename != TileFilename(entry.Coordinate()) {
			t.Errorf("Entry %s has file name %s", entry.Coordinate(), entry.Filename)
		}
		tile, err := LoadImageFile(filepath.Join(dir, entry.Filename))
		if err != nil {
			t.Fatal(err)
		}
		if tile.Bounds().Dx() != 4 || tile.Bounds().Dy() != 4 {
			t.Errorf("Tile %s has size %v", entry.Coordinate(), tile.Bounds())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, TileFilename(GridCoordinate{X: 2, Y: 1}))); err != nil {
		t.Error(err)
	}
}

func TestAssembleErrors(t *testing.T) {
	db := NewMemoryImageDB(solid(2, NewRGB(0, 0, 0)))
	a := newTestAssembler(t, db, 1)
	target := targetImage([][]RGB{{NewRGB(0, 0, 0)}})
	if _, err := a.Assemble(target, MosaicGrid{Width: 0, Height: 1, TileSize: 2}, AssembleOptions{}); !IsConfigError(err) {
		t.Errorf("Expected ConfigError for invalid grid, got %v", err)
	}
	empty := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	if _, err := a.Assemble(empty, MosaicGrid{Width: 1, Height: 1, TileSize: 2}, AssembleOptions{}); !IsDataError(err) {
		t.Errorf("Expected DataError for empty target, got %v", err)
	}
}

func TestImageCacheEviction(t *testing.T) {
	cache := NewImageCache(2)
	img := solid(1, NewRGB(0, 0, 0))
	cache.Put(0, 1, 1, img)
	cache.Put(1, 1, 1, img)
	cache.Put(2, 1, 1, img)
	if cache.Len() != 2 {
		t.Errorf("Cache contains %d images, want 2", cache.Len())
	}
	if cache.Get(0, 1, 1) != nil {
		t.Error("Oldest entry should have been removed")
	}
	if cache.Get(2, 1, 1) == nil || cache.Get(1, 1, 1) == nil {
		t.Error("Newer entries should be cached")
	}
	if cache.Get(1, 2, 2) != nil {
		t.Error("Different size must not be found")
	}
}
