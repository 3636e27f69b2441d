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
	"math"
	"sort"
	"strconv"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// NearestTileIndex finds the reference tile whose average color is closest
// (euclidean distance) to a target color. Among tiles with exactly the same
// distance the one with the smallest id must be returned, mosaics must be
// reproducible.
//
// ColorIndex is the exhaustive reference implementation, KDTreeIndex returns
// the same results and is faster for large collections.
//
// Implementations must be safe for concurrent use.
type NearestTileIndex interface {
	// FindNearest returns the id of the closest tile.
	FindNearest(target ColorVector) ImageID

	// Len returns the number of indexed tiles.
	Len() int
}

// IndexEntry is a reference tile id together with its average color.
type IndexEntry struct {
	ID    ImageID
	Color ColorVector
}

// ColorIndex is a fixed collection of tiles and their average colors.
// Entries are sorted by id and never changed after the index was created.
type ColorIndex struct {
	entries []IndexEntry
}

// NewColorIndex creates a new index from the given entries. The entries are
// sorted by id, the argument is not modified. It returns a DataError if
// entries is empty.
func NewColorIndex(entries []IndexEntry) (*ColorIndex, error) {
	if len(entries) == 0 {
		return nil, newDataError(nil, "empty reference collection")
	}
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	return &ColorIndex{entries: sorted}, nil
}

// Len returns the number of indexed tiles.
func (index *ColorIndex) Len() int {
	return len(index.entries)
}

// Entries returns the entries of the index sorted by id. The returned slice
// must not be modified.
func (index *ColorIndex) Entries() []IndexEntry {
	return index.entries
}

// Color returns the color of the tile with the given id.
func (index *ColorIndex) Color(id ImageID) (ColorVector, bool) {
	i := sort.Search(len(index.entries), func(i int) bool {
		return index.entries[i].ID >= id
	})
	if i < len(index.entries) && index.entries[i].ID == id {
		return index.entries[i].Color, true
	}
	return ColorVector{}, false
}

// FindNearest compares target with every indexed color.
func (index *ColorIndex) FindNearest(target ColorVector) ImageID {
	best := NoImageID
	bestDist := math.Inf(1)
	// entries are sorted by id, so the strict comparison keeps the smallest id
	// among ties
	for _, entry := range index.entries {
		if d := squaredDist(target, entry.Color); d < bestDist {
			best, bestDist = entry.ID, d
		}
	}
	return best
}

// BuildIndex computes the average color of all images in the storage.
// The images are processed by numRoutines goroutines.
//
// An image that can't be loaded is not part of the index, a MissingResource
// warning is added for it. The ids of all other images are not affected.
// If storage is empty or no image could be loaded a DataError is returned.
//
// progress is called after each image and may be nil.
func BuildIndex(storage ImageStorage, numRoutines int, warnings *Warnings, progress ProgressFunc) (*ColorIndex, error) {
	numImages := int(storage.NumImages())
	if numImages == 0 {
		return nil, newDataError(nil, "empty reference collection")
	}
	if progress == nil {
		progress = ProgressIgnore
	}
	colors := make([]ColorVector, numImages)
	loaded := make([]bool, numImages)
	var done int64

	var g errgroup.Group
	g.SetLimit(numWorkers(numRoutines, numImages))
	for _, id := range IDList(storage) {
		id := id
		g.Go(func() error {
			img, err := storage.LoadImage(id)
			if err != nil {
				warnings.Add(MissingResource, refName(storage, id), "skipping reference tile: %s", err.Error())
			} else {
				colors[id] = ComputeColorVector(img)
				loaded[id] = true
			}
			progress(int(atomic.AddInt64(&done, 1)))
			return nil
		})
	}
	// workers never return errors
	_ = g.Wait()

	entries := make([]IndexEntry, 0, numImages)
	for i, ok := range loaded {
		if ok {
			entries = append(entries, IndexEntry{ID: ImageID(i), Color: colors[i]})
		}
	}
	if len(entries) == 0 {
		return nil, newDataError(nil, "none of the %d reference images could be loaded", numImages)
	}
	log.WithField("tiles", len(entries)).Debug("Color index built")
	return &ColorIndex{entries: entries}, nil
}

// refName returns a name for the image used in warnings.
func refName(storage ImageStorage, id ImageID) string {
	if db, ok := storage.(*FSImageDB); ok && id >= 0 && id < db.NumImages() {
		return db.GetPath(id)
	}
	return "reference #" + strconv.Itoa(int(id))
}
