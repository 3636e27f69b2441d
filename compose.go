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
	"sync"

	log "github.com/sirupsen/logrus"
)

// ImageCache is used to cache scaled and enhanced versions of reference
// images during mosaic generation. The same image with the same size
// appears often in a mosaic and scaling and enhancing is not very fast.
// If the cache is full the oldest entry is removed.
//
// Caches are safe for concurrent use.
type ImageCache struct {
	m           sync.Mutex
	size        int
	content     map[cacheKey]image.Image
	insertOrder []cacheKey
}

type cacheKey struct {
	id            ImageID
	width, height int
}

// NewImageCache returns an empty image cache. size is the number of images that
// will be cached. size must be ≥ 1.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = 1
	}
	return &ImageCache{
		size:        size,
		content:     make(map[cacheKey]image.Image, size),
		insertOrder: make([]cacheKey, 0, size),
	}
}

// Put adds an image to the cache. Usually Put is called after Get: If the
// image was not found in the cache it is scaled and then added to the cache via
// Put.
func (cache *ImageCache) Put(id ImageID, width, height int, img image.Image) {
	cache.m.Lock()
	defer cache.m.Unlock()
	key := cacheKey{id, width, height}
	if _, has := cache.content[key]; has {
		return
	}
	if len(cache.insertOrder) >= cache.size {
		fst := cache.insertOrder[0]
		cache.insertOrder = cache.insertOrder[1:]
		delete(cache.content, fst)
	}
	cache.insertOrder = append(cache.insertOrder, key)
	cache.content[key] = img
}

// Get returns the image from the cache. If the return value is nil the image
// was not found in the cache and should be added to the cache by Put.
func (cache *ImageCache) Get(id ImageID, width, height int) image.Image {
	cache.m.Lock()
	defer cache.m.Unlock()
	return cache.content[cacheKey{id, width, height}]
}

// Len returns the number of cached images.
func (cache *ImageCache) Len() int {
	cache.m.Lock()
	defer cache.m.Unlock()
	return len(cache.insertOrder)
}

// tileSink receives the rendered tile of each cell. It returns the file name
// of the tile or an empty string if the tile is not stored as a file.
// Cells are disjoint, so Put is called concurrently but never twice for the
// same cell.
type tileSink interface {
	Put(grid MosaicGrid, c GridCoordinate, tile image.Image) (string, error)
}

type canvasSink struct {
	canvas *image.NRGBA
}

func (sink canvasSink) Put(grid MosaicGrid, c GridCoordinate, tile image.Image) (string, error) {
	draw.Draw(sink.canvas, grid.CellBounds(c), tile, tile.Bounds().Min, draw.Src)
	return "", nil
}

type dirSink struct {
	dir string
}

func (sink dirSink) Put(grid MosaicGrid, c GridCoordinate, tile image.Image) (string, error) {
	name := TileFilename(c)
	if err := SaveImage(filepath.Join(sink.dir, name), tile, 0); err != nil {
		return "", err
	}
	return name, nil
}

// AssembleOptions controls the output of Assembler.Assemble.
type AssembleOptions struct {
	// Canvas is true if the mosaic should be composed in memory.
	Canvas bool
	// TileDir is the directory to write the tiles and the grid descriptor to.
	// If empty no files are written.
	TileDir string
}

// AssembleResult is the result of Assembler.Assemble.
type AssembleResult struct {
	// Descriptor contains one entry for each cell in row-major order.
	Descriptor *GridDescriptor
	// Canvas is the composed mosaic, nil if AssembleOptions.Canvas was false.
	Canvas *image.NRGBA
}

// Assembler creates mosaics: It matches each cell of a target image to the
// closest reference image and renders the enhanced tiles.
type Assembler struct {
	Index    NearestTileIndex
	Storage  ImageStorage
	Enhancer Enhancer
	Resizer  ImageResizer
	// NumRoutines is the number of goroutines matching and rendering cells.
	NumRoutines int
	// CacheSize is the size of the cache for scaled and enhanced tiles.
	CacheSize int
	// Background is used for cells whose reference image can't be loaded.
	Background RGB
	// Warnings collects missing reference images, may be nil.
	Warnings *Warnings
	// Progress is called after each cell, may be nil.
	Progress ProgressFunc
}

// NewAssembler returns an assembler configured by conf.
func NewAssembler(index NearestTileIndex, storage ImageStorage, conf *Config, warnings *Warnings) (*Assembler, error) {
	resizer, err := GetResizer(conf.Resampler)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		Index:       index,
		Storage:     storage,
		Enhancer:    conf.Enhancer(),
		Resizer:     resizer,
		NumRoutines: conf.Routines,
		CacheSize:   conf.ImageCacheSize,
		Background:  conf.BackgroundColor(),
		Warnings:    warnings,
	}, nil
}

// SampleTarget resamples target to exactly one pixel per grid cell.
func (a *Assembler) SampleTarget(target image.Image, grid MosaicGrid) image.Image {
	resizer := a.Resizer
	if resizer == nil {
		resizer = DefaultResizer
	}
	return resizeIfNeeded(resizer, grid.Width, grid.Height, Opaque(target))
}

// renderTile returns the scaled and enhanced version of a reference image.
func (a *Assembler) renderTile(id ImageID, size int, cache *ImageCache) (image.Image, error) {
	if img := cache.Get(id, size, size); img != nil {
		return img, nil
	}
	img, err := a.Storage.LoadImage(id)
	if err != nil {
		return nil, err
	}
	resizer := a.Resizer
	if resizer == nil {
		resizer = DefaultResizer
	}
	// tiles are composed without transparency
	img = resizeIfNeeded(resizer, size, size, Opaque(img))
	if a.Enhancer != nil {
		img = resizeIfNeeded(resizer, size, size, a.Enhancer.Enhance(img, size))
	}
	cache.Put(id, size, size, img)
	return img, nil
}

// Assemble creates the mosaic of target. The target is resampled to
// grid.Width × grid.Height pixels and the color of each pixel is matched
// against the index. The enhanced tiles are composed into a canvas and / or
// written to opts.TileDir together with the grid descriptor, see
// AssembleOptions.
//
// The entries of the result are always in row-major order and only depend
// on the arguments, not on the number of goroutines.
//
// A reference image that can't be loaded is replaced by the background color
// and recorded as a MissingResource warning.
func (a *Assembler) Assemble(target image.Image, grid MosaicGrid, opts AssembleOptions) (*AssembleResult, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if target == nil || target.Bounds().Empty() {
		return nil, newDataError(nil, "empty target image")
	}
	if a.Index == nil || a.Index.Len() == 0 {
		return nil, newDataError(nil, "empty reference collection")
	}
	progress := a.Progress
	if progress == nil {
		progress = ProgressIgnore
	}

	res := &AssembleResult{}
	sinks := make([]tileSink, 0, 2)
	if opts.Canvas {
		res.Canvas = image.NewNRGBA(grid.PixelBounds())
		sinks = append(sinks, canvasSink{res.Canvas})
	}
	if opts.TileDir != "" {
		if err := os.MkdirAll(opts.TileDir, 0755); err != nil {
			return nil, err
		}
		sinks = append(sinks, dirSink{opts.TileDir})
	}

	sample := a.SampleTarget(target, grid)
	sampleMin := sample.Bounds().Min
	background := FilledImage(grid.TileSize, grid.TileSize, a.Background)
	cache := NewImageCache(a.CacheSize)
	numCells := grid.NumCells()
	entries := make([]GridTileEntry, numCells)

	jobs := make(chan int, BufferSize)
	errorChan := make(chan error, BufferSize)

	numRoutines := numWorkers(a.NumRoutines, numCells)
	for w := 0; w < numRoutines; w++ {
		go func() {
			for pos := range jobs {
				c := GridCoordinate{X: pos % grid.Width, Y: pos / grid.Width}
				color := ColorVectorFromRGB(ConvertRGB(sample.At(sampleMin.X+c.X, sampleMin.Y+c.Y)))
				id := a.Index.FindNearest(color)
				tile, tileErr := a.renderTile(id, grid.TileSize, cache)
				if tileErr != nil {
					a.Warnings.Add(MissingResource, refName(a.Storage, id),
						"filling cell %s with background: %s", c, tileErr.Error())
					tile = background
				}
				entry := GridTileEntry{X: c.X, Y: c.Y, SourceIndex: id}
				var sinkErr error
				for _, sink := range sinks {
					name, err := sink.Put(grid, c, tile)
					if err != nil {
						sinkErr = fmt.Errorf("Can't store tile %s: %w", c, err)
						break
					}
					if name != "" {
						entry.Filename = name
					}
				}
				entries[pos] = entry
				errorChan <- sinkErr
			}
		}()
	}
	go func() {
		for pos := 0; pos < numCells; pos++ {
			jobs <- pos
		}
		close(jobs)
	}()
	// any error that occurs sets this variable (first error)
	var err error
	for i := 0; i < numCells; i++ {
		nextErr := <-errorChan
		if nextErr != nil && err == nil {
			err = nextErr
		}
		progress(i + 1)
	}
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"width":  grid.Width,
		"height": grid.Height,
		"cached": cache.Len(),
	}).Debug("Mosaic assembled")

	res.Descriptor = &GridDescriptor{MosaicGrid: grid, Tiles: entries, RunID: NewRunID()}
	if opts.TileDir != "" {
		if err := WriteJSONFile(filepath.Join(opts.TileDir, GridMetadataFile), res.Descriptor); err != nil {
			return nil, err
		}
	}
	return res, nil
}
