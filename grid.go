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
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"

	"github.com/google/uuid"
)

const (
	// GridMetadataFile is the name of the grid descriptor written next to the
	// tile images.
	GridMetadataFile = "metadata.json"
)

// MosaicGrid describes the dimensions of a mosaic: Width and Height are
// the number of cells, TileSize is the side length of a cell in pixels.
type MosaicGrid struct {
	Width    int `json:"width"`
	Height   int `json:"height"`
	TileSize int `json:"tile_size"`
}

// Validate returns a ConfigError if one of the dimensions is not positive.
func (grid MosaicGrid) Validate() error {
	switch {
	case grid.Width <= 0:
		return &ConfigError{Field: "width", Msg: fmt.Sprintf("must be positive, got %d", grid.Width)}
	case grid.Height <= 0:
		return &ConfigError{Field: "height", Msg: fmt.Sprintf("must be positive, got %d", grid.Height)}
	case grid.TileSize <= 0:
		return &ConfigError{Field: "tile_size", Msg: fmt.Sprintf("must be positive, got %d", grid.TileSize)}
	}
	return nil
}

// NumCells returns Width * Height.
func (grid MosaicGrid) NumCells() int {
	return grid.Width * grid.Height
}

// PixelBounds returns the bounds of the full resolution canvas.
func (grid MosaicGrid) PixelBounds() image.Rectangle {
	return image.Rect(0, 0, grid.Width*grid.TileSize, grid.Height*grid.TileSize)
}

// CellBounds returns the pixel area of a cell in the full resolution canvas.
func (grid MosaicGrid) CellBounds(c GridCoordinate) image.Rectangle {
	min := image.Pt(c.X*grid.TileSize, c.Y*grid.TileSize)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(grid.TileSize, grid.TileSize))}
}

// Contains tests if c is a cell of the grid.
func (grid MosaicGrid) Contains(c GridCoordinate) bool {
	return c.X >= 0 && c.X < grid.Width && c.Y >= 0 && c.Y < grid.Height
}

// RowMajor returns the position of c in row-major order.
func (grid MosaicGrid) RowMajor(c GridCoordinate) int {
	return c.Y*grid.Width + c.X
}

// MosaicHeight returns the number of rows of a mosaic with mosaicWidth
// columns s.t. the aspect ratio of a target with the given pixel dimensions
// is kept. The result is at least 1.
func MosaicHeight(targetWidth, targetHeight, mosaicWidth int) int {
	return IntMax(KeepRatioHeight(targetWidth, targetHeight, mosaicWidth), 1)
}

// GridCoordinate identifies a mosaic cell.
type GridCoordinate struct {
	X, Y int
}

func (c GridCoordinate) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// GridTileEntry is the result of matching one cell: the coordinate, the id of
// the chosen reference tile and the file name of the rendered tile.
type GridTileEntry struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Filename    string  `json:"filename"`
	SourceIndex ImageID `json:"source_index"`
}

// Coordinate returns the cell of the entry.
func (entry GridTileEntry) Coordinate() GridCoordinate {
	return GridCoordinate{X: entry.X, Y: entry.Y}
}

// TileFilename returns the name of the rendered tile for the given cell.
func TileFilename(c GridCoordinate) string {
	return fmt.Sprintf("tile_%d_%d.png", c.Y, c.X)
}

// GridDescriptor is the grid together with one entry per cell.
// It is stored as metadata.json next to the tile images.
type GridDescriptor struct {
	MosaicGrid
	Tiles []GridTileEntry `json:"tiles"`
	RunID string          `json:"run_id,omitempty"`
}

// Validate checks the dimensions of the grid and the central grid invariant:
// The coordinates of the entries are exactly the cells of the grid, each
// one once. Invalid dimensions are reported as ConfigError, a broken
// invariant as DataError.
func (desc *GridDescriptor) Validate() error {
	if err := desc.MosaicGrid.Validate(); err != nil {
		return err
	}
	seen := make([]bool, desc.NumCells())
	for _, entry := range desc.Tiles {
		c := entry.Coordinate()
		if !desc.Contains(c) {
			return newDataError(nil, "tile coordinate %s outside of %dx%d grid", c, desc.Width, desc.Height)
		}
		pos := desc.RowMajor(c)
		if seen[pos] {
			return newDataError(nil, "duplicate tile coordinate %s", c)
		}
		seen[pos] = true
	}
	if len(desc.Tiles) != len(seen) {
		return newDataError(nil, "grid has %d cells, but only %d tiles", len(seen), len(desc.Tiles))
	}
	return nil
}

// SortRowMajor sorts the entries in canonical row-major order.
func (desc *GridDescriptor) SortRowMajor() {
	sort.SliceStable(desc.Tiles, func(i, j int) bool {
		return desc.RowMajor(desc.Tiles[i].Coordinate()) < desc.RowMajor(desc.Tiles[j].Coordinate())
	})
}

// ReadGridDescriptor reads and validates a grid descriptor file. The tiles
// of the result are in row-major order, regardless of the order in the file.
func ReadGridDescriptor(path string) (*GridDescriptor, error) {
	var desc GridDescriptor
	if err := ReadJSONFile(path, &desc); err != nil {
		return nil, newDataError(err, "can't read grid descriptor %s", path)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	desc.SortRowMajor()
	return &desc, nil
}

// NewRunID returns a random id that identifies the metadata of one run.
func NewRunID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// the random source is broken, metadata is still usable without an id
		return ""
	}
	return id.String()
}

// WriteJSONFile writes v as indented json to path.
func WriteJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	encErr := enc.Encode(v)
	closeErr := f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

// ReadJSONFile decodes the content of path into v.
func ReadJSONFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
