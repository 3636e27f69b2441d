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
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// SpriteMetadataFile is the name of the sprite metadata written next to
	// the sheets.
	SpriteMetadataFile = "sprite_metadata.json"
)

// SheetName returns the base name (without extension) of the sheet with the
// given index.
func SheetName(index int) string {
	return fmt.Sprintf("sprite_sheet_%02d", index)
}

// SpriteConfig describes the partition of the grid into sheets.
// SheetWidth and SheetHeight are given in tiles.
type SpriteConfig struct {
	TilesPerSheet int `json:"tiles_per_sheet"`
	SheetWidth    int `json:"sheet_width"`
	SheetHeight   int `json:"sheet_height"`
	TileSize      int `json:"tile_size"`
	NumSheets     int `json:"num_sheets"`
	GridSize      int `json:"grid_size"`
}

// TilePosition is the position of one grid entry inside its sheet.
// SheetX and SheetY are the cell inside the sheet, SpriteX and SpriteY the
// pixel offset.
type TilePosition struct {
	OriginalFilename string  `json:"original_filename"`
	X                int     `json:"x"`
	Y                int     `json:"y"`
	SourceIndex      ImageID `json:"source_index"`
	SheetX           int     `json:"sheet_x"`
	SheetY           int     `json:"sheet_y"`
	SpriteX          int     `json:"sprite_x"`
	SpriteY          int     `json:"sprite_y"`
}

// Coordinate returns the grid cell of the tile.
func (pos TilePosition) Coordinate() GridCoordinate {
	return GridCoordinate{X: pos.X, Y: pos.Y}
}

// SheetDescriptor describes one sprite sheet.
type SheetDescriptor struct {
	Index            int            `json:"index"`
	GridX            int            `json:"grid_x"`
	GridY            int            `json:"grid_y"`
	FilenameLossless string         `json:"filename_lossless"`
	FilenameLossy    string         `json:"filename_lossy"`
	TilesCount       int            `json:"tiles_count"`
	TilePositions    []TilePosition `json:"tile_positions"`
}

// Candidates returns the files of the sheet in dir, lossless first.
func (sheet *SheetDescriptor) Candidates(dir string) []EncodingCandidate {
	res := make([]EncodingCandidate, 0, 2)
	if sheet.FilenameLossless != "" {
		res = append(res, EncodingCandidate{Path: filepath.Join(dir, sheet.FilenameLossless), Encoding: Lossless})
	}
	if sheet.FilenameLossy != "" {
		res = append(res, EncodingCandidate{Path: filepath.Join(dir, sheet.FilenameLossy), Encoding: Lossy})
	}
	return res
}

// SpriteMetadata is the result of packing: the original grid descriptor,
// the partition configuration and all sheets.
type SpriteMetadata struct {
	OriginalMetadata *GridDescriptor   `json:"original_metadata"`
	SpriteConfig     SpriteConfig      `json:"sprite_config"`
	Sheets           []SheetDescriptor `json:"sheets"`
	RunID            string            `json:"run_id,omitempty"`
}

// Grid returns the mosaic grid of the original descriptor.
func (meta *SpriteMetadata) Grid() MosaicGrid {
	return meta.OriginalMetadata.MosaicGrid
}

// Validate checks that the sheets form a partition of the grid: Each cell
// appears in exactly one sheet and all tiles lie inside their sheet.
func (meta *SpriteMetadata) Validate() error {
	if meta.OriginalMetadata == nil {
		return newDataError(nil, "sprite metadata without original metadata")
	}
	grid := meta.Grid()
	if err := grid.Validate(); err != nil {
		return err
	}
	conf := meta.SpriteConfig
	if conf.TileSize != grid.TileSize {
		return &ConfigError{Field: "tile_size",
			Msg: fmt.Sprintf("sprite config uses %d, grid uses %d", conf.TileSize, grid.TileSize)}
	}
	if conf.SheetWidth <= 0 || conf.SheetHeight <= 0 {
		return &ConfigError{Field: "sprite_config",
			Msg: fmt.Sprintf("invalid sheet size %dx%d", conf.SheetWidth, conf.SheetHeight)}
	}
	sheetBounds := image.Rect(0, 0, conf.SheetWidth*conf.TileSize, conf.SheetHeight*conf.TileSize)
	seen := make([]bool, grid.NumCells())
	count := 0
	for _, sheet := range meta.Sheets {
		for _, pos := range sheet.TilePositions {
			c := pos.Coordinate()
			if !grid.Contains(c) {
				return newDataError(nil, "sheet %d: tile %s outside of grid", sheet.Index, c)
			}
			if seen[grid.RowMajor(c)] {
				return newDataError(nil, "sheet %d: tile %s appears more than once", sheet.Index, c)
			}
			seen[grid.RowMajor(c)] = true
			count++
			area := image.Rect(pos.SpriteX, pos.SpriteY, pos.SpriteX+conf.TileSize, pos.SpriteY+conf.TileSize)
			if !area.In(sheetBounds) {
				return newDataError(nil, "sheet %d: tile %s at (%d, %d) outside of sheet",
					sheet.Index, c, pos.SpriteX, pos.SpriteY)
			}
		}
	}
	if count != len(seen) {
		return newDataError(nil, "sheets contain %d tiles, grid has %d cells", count, len(seen))
	}
	return nil
}

// ReadSpriteMetadata reads and validates a sprite metadata file.
func ReadSpriteMetadata(path string) (*SpriteMetadata, error) {
	var meta SpriteMetadata
	if err := ReadJSONFile(path, &meta); err != nil {
		return nil, newDataError(err, "can't read sprite metadata %s", path)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// TileSource loads the rendered tile of a grid entry.
type TileSource interface {
	LoadTile(filename string) (image.Image, error)
}

// DirTileSource loads tiles from a directory.
type DirTileSource string

// LoadTile loads the file with the given name from the directory.
func (dir DirTileSource) LoadTile(filename string) (image.Image, error) {
	if filename == "" {
		return nil, fmt.Errorf("No file name for tile")
	}
	return LoadImageFile(filepath.Join(string(dir), filename))
}

// Packer partitions a mosaic grid into sprite sheets and renders them.
type Packer struct {
	// Resizer is used for tiles that don't have the size of the grid.
	Resizer ImageResizer
	// Background fills the parts of a sheet without tile.
	Background RGB
	// NumRoutines is the number of sheets rendered concurrently.
	NumRoutines int
	// Spiral orders the tiles in the metadata center-outwards instead of
	// row-major. The position of the tiles in the sheets does not change.
	Spiral bool
	// Warnings collects missing tiles, may be nil.
	Warnings *Warnings
}

// NewPacker returns a packer configured by conf.
func NewPacker(conf *Config, warnings *Warnings) (*Packer, error) {
	resizer, err := GetResizer(conf.Resampler)
	if err != nil {
		return nil, err
	}
	return &Packer{
		Resizer:     resizer,
		Background:  conf.BackgroundColor(),
		NumRoutines: conf.Routines,
		Warnings:    warnings,
	}, nil
}

// Pack computes the sprite metadata for desc: The grid is divided into
// sheetsPerSide × sheetsPerSide sheets (a ConfigError is returned if this
// is not possible). Inside each sheet the tiles are enumerated in row-major
// order, the tile with local index i is placed at pixel offset
// (i mod sheetWidth, i div sheetWidth) * tile_size.
//
// desc must contain exactly one entry per cell, otherwise a DataError is
// returned. desc is not modified.
func (p *Packer) Pack(desc *GridDescriptor, sheetsPerSide int) (*SpriteMetadata, error) {
	layout, err := NewSheetLayout(desc.MosaicGrid, sheetsPerSide)
	if err != nil {
		return nil, err
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	grid := desc.MosaicGrid
	byCell := make([]GridTileEntry, grid.NumCells())
	for _, entry := range desc.Tiles {
		byCell[grid.RowMajor(entry.Coordinate())] = entry
	}

	original := &GridDescriptor{MosaicGrid: grid, RunID: desc.RunID}
	original.Tiles = make([]GridTileEntry, len(desc.Tiles))
	copy(original.Tiles, desc.Tiles)

	meta := &SpriteMetadata{
		OriginalMetadata: original,
		SpriteConfig: SpriteConfig{
			TilesPerSheet: layout.TilesPerSheet(),
			SheetWidth:    layout.SheetWidth,
			SheetHeight:   layout.SheetHeight,
			TileSize:      grid.TileSize,
			NumSheets:     layout.NumSheets(),
			GridSize:      sheetsPerSide,
		},
		Sheets: make([]SheetDescriptor, 0, layout.NumSheets()),
		RunID:  NewRunID(),
	}
	for gy := 0; gy < sheetsPerSide; gy++ {
		for gx := 0; gx < sheetsPerSide; gx++ {
			index := layout.SheetIndex(gx, gy)
			name := SheetName(index)
			cells := layout.Cells(gx, gy)
			sheet := SheetDescriptor{
				Index:            index,
				GridX:            gx,
				GridY:            gy,
				FilenameLossless: name + Lossless.Ext(),
				FilenameLossy:    name + Lossy.Ext(),
				TilePositions:    make([]TilePosition, 0, layout.TilesPerSheet()),
			}
			i := 0
			for y := cells.Min.Y; y < cells.Max.Y; y++ {
				for x := cells.Min.X; x < cells.Max.X; x++ {
					entry := byCell[grid.RowMajor(GridCoordinate{X: x, Y: y})]
					offset := layout.LocalOffset(i)
					sheet.TilePositions = append(sheet.TilePositions, TilePosition{
						OriginalFilename: entry.Filename,
						X:                entry.X,
						Y:                entry.Y,
						SourceIndex:      entry.SourceIndex,
						SheetX:           i % layout.SheetWidth,
						SheetY:           i / layout.SheetWidth,
						SpriteX:          offset.X,
						SpriteY:          offset.Y,
					})
					i++
				}
			}
			sheet.TilesCount = len(sheet.TilePositions)
			meta.Sheets = append(meta.Sheets, sheet)
		}
	}
	if p.Spiral {
		if err := applySpiralOrder(meta); err != nil {
			return nil, err
		}
	}
	return meta, nil
}

// applySpiralOrder sorts the original tiles and the tile positions of each
// sheet by their position in the spiral over the grid.
func applySpiralOrder(meta *SpriteMetadata) error {
	grid := meta.Grid()
	order, err := SpiralOrder(grid.Width, grid.Height)
	if err != nil {
		return err
	}
	meta.OriginalMetadata.Tiles = ReorderByCoordinates(meta.OriginalMetadata.Tiles, order)
	rank := make([]int, grid.NumCells())
	for i, c := range order {
		rank[grid.RowMajor(c)] = i
	}
	for i := range meta.Sheets {
		positions := meta.Sheets[i].TilePositions
		sort.SliceStable(positions, func(a, b int) bool {
			return rank[grid.RowMajor(positions[a].Coordinate())] < rank[grid.RowMajor(positions[b].Coordinate())]
		})
	}
	return nil
}

// RenderSheet draws all tiles of a sheet. Tiles that can't be loaded are
// skipped (the area keeps the background color) and recorded as
// MissingResource warnings.
func (p *Packer) RenderSheet(meta *SpriteMetadata, sheet *SheetDescriptor, tiles TileSource) *image.NRGBA {
	conf := meta.SpriteConfig
	size := conf.TileSize
	resizer := p.Resizer
	if resizer == nil {
		resizer = DefaultResizer
	}
	res := FilledImage(conf.SheetWidth*size, conf.SheetHeight*size, p.Background)
	for _, pos := range sheet.TilePositions {
		tile, err := tiles.LoadTile(pos.OriginalFilename)
		if err != nil {
			p.Warnings.Add(MissingResource, pos.OriginalFilename,
				"tile %s missing in sheet %d: %s", pos.Coordinate(), sheet.Index, err.Error())
			continue
		}
		tile = resizeIfNeeded(resizer, size, size, Opaque(tile))
		area := image.Rect(pos.SpriteX, pos.SpriteY, pos.SpriteX+size, pos.SpriteY+size)
		draw.Draw(res, area, tile, tile.Bounds().Min, draw.Src)
	}
	return res
}

// PackOptions controls the files written by PackDir.
type PackOptions struct {
	// SheetsPerSide is the number of sheets in each direction.
	SheetsPerSide int
	// WriteLossy enables the lossy copy of each sheet.
	WriteLossy   bool
	LossyQuality int
}

// PackDir reads the grid descriptor and tiles from tilesDir, packs them and
// writes the sheets together with the sprite metadata to outDir.
func (p *Packer) PackDir(tilesDir, outDir string, opts PackOptions) (*SpriteMetadata, error) {
	descPath := filepath.Join(tilesDir, GridMetadataFile)
	desc, err := ReadGridDescriptor(descPath)
	if err != nil {
		return nil, err
	}
	meta, err := p.Pack(desc, opts.SheetsPerSide)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	tiles := DirTileSource(tilesDir)
	var g errgroup.Group
	g.SetLimit(numWorkers(p.NumRoutines, len(meta.Sheets)))
	for i := range meta.Sheets {
		sheet := &meta.Sheets[i]
		g.Go(func() error {
			img := p.RenderSheet(meta, sheet, tiles)
			name := SheetName(sheet.Index)
			if _, err := SaveEncoded(outDir, name, Lossless, img, 0); err != nil {
				return fmt.Errorf("Can't write sheet %d: %w", sheet.Index, err)
			}
			if opts.WriteLossy {
				if _, err := SaveEncoded(outDir, name, Lossy, img, opts.LossyQuality); err != nil {
					return fmt.Errorf("Can't write sheet %d: %w", sheet.Index, err)
				}
			} else {
				sheet.FilenameLossy = ""
			}
			log.WithFields(log.Fields{
				"sheet": sheet.Index,
				"tiles": sheet.TilesCount,
			}).Debug("Sheet written")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := WriteJSONFile(filepath.Join(outDir, SpriteMetadataFile), meta); err != nil {
		return nil, err
	}
	return meta, nil
}
