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
)

// spiralDirections are right, up, left and down: counter-clockwise on screen
// (y grows downwards).
var spiralDirections = [4]GridCoordinate{{X: 1, Y: 0}, {X: 0, Y: -1}, {X: -1, Y: 0}, {X: 0, Y: 1}}

// SpiralOrder returns all coordinates of a width × height grid, starting at
// the center (width / 2, height / 2) and spiraling outwards
// counter-clockwise. The run lengths of the spiral are 1, 1, 2, 2, 3, 3, ...
// and coordinates outside of the grid are skipped.
//
// Every coordinate is returned exactly once, also for grids with very
// different width and height. Non-positive dimensions result in a
// ConfigError.
func SpiralOrder(width, height int) ([]GridCoordinate, error) {
	if width <= 0 || height <= 0 {
		return nil, &ConfigError{Field: "spiral",
			Msg: fmt.Sprintf("grid dimensions must be positive, got %dx%d", width, height)}
	}
	total := width * height
	res := make([]GridCoordinate, 0, total)
	visited := make([]bool, total)
	visit := func(c GridCoordinate) {
		if c.X < 0 || c.X >= width || c.Y < 0 || c.Y >= height {
			return
		}
		pos := c.Y*width + c.X
		if visited[pos] {
			return
		}
		visited[pos] = true
		res = append(res, c)
	}
	current := GridCoordinate{X: width / 2, Y: height / 2}
	visit(current)
	// after the two runs of length k the spiral has covered a square of side
	// k around the center, this bound covers the grid from any center
	maxRun := 2*IntMax(width, height) + 1
	dir := 0
	for run := 1; len(res) < total && run <= maxRun; run++ {
		for rep := 0; rep < 2; rep++ {
			step := spiralDirections[dir]
			for i := 0; i < run; i++ {
				current = GridCoordinate{X: current.X + step.X, Y: current.Y + step.Y}
				visit(current)
			}
			dir = (dir + 1) % len(spiralDirections)
		}
	}
	if len(res) != total {
		return nil, fmt.Errorf("Spiral over %dx%d grid visited %d of %d coordinates",
			width, height, len(res), total)
	}
	return res, nil
}

// ReorderByCoordinates returns the entries in the given coordinate order.
// Coordinates in order without an entry are skipped, entries whose
// coordinate is not in order are not part of the result.
func ReorderByCoordinates(entries []GridTileEntry, order []GridCoordinate) []GridTileEntry {
	byCoord := make(map[GridCoordinate]GridTileEntry, len(entries))
	for _, entry := range entries {
		byCoord[entry.Coordinate()] = entry
	}
	res := make([]GridTileEntry, 0, IntMin(len(entries), len(order)))
	for _, c := range order {
		if entry, has := byCoord[c]; has {
			res = append(res, entry)
		}
	}
	return res
}
