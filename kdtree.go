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
)

// kdNode is a node in a k-d tree over color vectors. All entries in left
// have a value ≤ entry.Color[axis], all entries in right a value ≥.
type kdNode struct {
	entry       IndexEntry
	left, right *kdNode
	axis        int
}

// KDTreeIndex is a NearestTileIndex backed by a k-d tree.
// The search is exact: It returns the same id as ColorIndex.FindNearest for
// every query, including the choice of the smallest id among ties.
type KDTreeIndex struct {
	root *kdNode
	size int
}

// NewKDTreeIndex builds a tree containing all entries of index.
func NewKDTreeIndex(index *ColorIndex) *KDTreeIndex {
	entries := make([]IndexEntry, index.Len())
	copy(entries, index.Entries())
	return &KDTreeIndex{root: buildKDTree(entries), size: len(entries)}
}

func buildKDTree(entries []IndexEntry) *kdNode {
	if len(entries) == 0 {
		return nil
	}
	axis := chooseSplitAxis(entries)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Color[axis] != b.Color[axis] {
			return a.Color[axis] < b.Color[axis]
		}
		return a.ID < b.ID
	})
	median := len(entries) / 2
	return &kdNode{
		entry: entries[median],
		left:  buildKDTree(entries[:median]),
		right: buildKDTree(entries[median+1:]),
		axis:  axis,
	}
}

// chooseSplitAxis returns the channel with the largest variance.
func chooseSplitAxis(entries []IndexEntry) int {
	var mean, variance ColorVector
	n := float64(len(entries))
	for _, e := range entries {
		for i := range mean {
			mean[i] += e.Color[i]
		}
	}
	for i := range mean {
		mean[i] /= n
	}
	for _, e := range entries {
		for i := range variance {
			d := e.Color[i] - mean[i]
			variance[i] += d * d
		}
	}
	axis := 0
	for i := 1; i < len(variance); i++ {
		if variance[i] > variance[axis] {
			axis = i
		}
	}
	return axis
}

// Len returns the number of tiles in the tree.
func (tree *KDTreeIndex) Len() int {
	return tree.size
}

// FindNearest returns the id of the tile closest to target.
func (tree *KDTreeIndex) FindNearest(target ColorVector) ImageID {
	best, _ := tree.root.nearest(target, NoImageID, math.Inf(1))
	return best
}

func (node *kdNode) nearest(target ColorVector, best ImageID, bestDist float64) (ImageID, float64) {
	if node == nil {
		return best, bestDist
	}
	d := squaredDist(target, node.entry.Color)
	if d < bestDist || (d == bestDist && node.entry.ID < best) {
		best, bestDist = node.entry.ID, d
	}
	diff := target[node.axis] - node.entry.Color[node.axis]
	next, other := node.right, node.left
	if diff < 0 {
		next, other = node.left, node.right
	}
	best, bestDist = next.nearest(target, best, bestDist)
	// ≤ instead of <: the other side may contain a tie with a smaller id
	if diff*diff <= bestDist {
		best, bestDist = other.nearest(target, best, bestDist)
	}
	return best, bestDist
}
