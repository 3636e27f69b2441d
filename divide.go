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
)

// SheetLayout divides a mosaic grid into SheetsPerSide × SheetsPerSide
// rectangular sub-grids of equal size. Each sub-grid is packed into one
// sprite sheet.
//
// Sheets are numbered in row-major order: The sheet at grid position
// (gx, gy) has index gy * SheetsPerSide + gx.
type SheetLayout struct {
	Grid          MosaicGrid
	SheetsPerSide int
	// SheetWidth and SheetHeight are the number of cells in each sheet.
	SheetWidth, SheetHeight int
}

// NewSheetLayout returns the layout for the grid. It returns a ConfigError if
// the grid is invalid or can't be divided evenly.
func NewSheetLayout(grid MosaicGrid, sheetsPerSide int) (SheetLayout, error) {
	if err := grid.Validate(); err != nil {
		return SheetLayout{}, err
	}
	if sheetsPerSide <= 0 {
		return SheetLayout{}, &ConfigError{Field: "sheets per side",
			Msg: fmt.Sprintf("must be positive, got %d", sheetsPerSide)}
	}
	if grid.Width%sheetsPerSide != 0 || grid.Height%sheetsPerSide != 0 {
		return SheetLayout{}, &ConfigError{Field: "sheets per side",
			Msg: fmt.Sprintf("grid %dx%d is not divisible into %dx%d sheets",
				grid.Width, grid.Height, sheetsPerSide, sheetsPerSide)}
	}
	return SheetLayout{
		Grid:          grid,
		SheetsPerSide: sheetsPerSide,
		SheetWidth:    grid.Width / sheetsPerSide,
		SheetHeight:   grid.Height / sheetsPerSide,
	}, nil
}

// NumSheets returns SheetsPerSide².
func (layout SheetLayout) NumSheets() int {
	return layout.SheetsPerSide * layout.SheetsPerSide
}

// TilesPerSheet returns the number of cells in each sheet.
func (layout SheetLayout) TilesPerSheet() int {
	return layout.SheetWidth * layout.SheetHeight
}

// SheetIndex returns the index of the sheet at grid position (gx, gy).
func (layout SheetLayout) SheetIndex(gx, gy int) int {
	return gy*layout.SheetsPerSide + gx
}

// Cells returns the cells covered by the sheet at grid position (gx, gy),
// in cell coordinates.
func (layout SheetLayout) Cells(gx, gy int) image.Rectangle {
	min := image.Pt(gx*layout.SheetWidth, gy*layout.SheetHeight)
	return image.Rectangle{Min: min, Max: min.Add(image.Pt(layout.SheetWidth, layout.SheetHeight))}
}

// LocalOffset returns the pixel offset of the tile with the given local index
// (row-major inside the sheet).
func (layout SheetLayout) LocalOffset(i int) image.Point {
	return image.Pt((i%layout.SheetWidth)*layout.Grid.TileSize, (i/layout.SheetWidth)*layout.Grid.TileSize)
}

// PlanSheetsPerSide returns the smallest number of sheets per side that
// divides the grid evenly s.t. no sheet has more than maxTilesPerSheet
// tiles. It returns a ConfigError if no such number exists.
func PlanSheetsPerSide(grid MosaicGrid, maxTilesPerSheet int) (int, error) {
	if err := grid.Validate(); err != nil {
		return -1, err
	}
	if maxTilesPerSheet <= 0 {
		return -1, &ConfigError{Field: "tiles per sheet",
			Msg: fmt.Sprintf("must be positive, got %d", maxTilesPerSheet)}
	}
	upper := IntMin(grid.Width, grid.Height)
	for g := 1; g <= upper; g++ {
		if grid.Width%g != 0 || grid.Height%g != 0 {
			continue
		}
		if (grid.Width/g)*(grid.Height/g) <= maxTilesPerSheet {
			return g, nil
		}
	}
	return -1, &ConfigError{Field: "tiles per sheet",
		Msg: fmt.Sprintf("grid %dx%d can't be divided evenly into sheets of at most %d tiles",
			grid.Width, grid.Height, maxTilesPerSheet)}
}
