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
	"image"

	"github.com/disintegration/gift"
)

// Enhancer improves a selected tile before it's placed in the mosaic.
// The returned image must be a size × size image and must only depend on the
// arguments, mosaics must be reproducible.
//
// Implementations must be safe for concurrent use.
type Enhancer interface {
	Enhance(tile image.Image, size int) image.Image
}

// EnhancerFunc is a function implementing Enhancer.
type EnhancerFunc func(tile image.Image, size int) image.Image

// Enhance calls f.
func (f EnhancerFunc) Enhance(tile image.Image, size int) image.Image {
	return f(tile, size)
}

// NoEnhancer returns the tile unchanged, it expects that the tile already
// has the correct size.
var NoEnhancer Enhancer = EnhancerFunc(func(tile image.Image, size int) image.Image {
	return tile
})

// sharpenKernel is the classic 3x3 sharpen filter, normalized by its sum (16).
var sharpenKernel = []float32{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// GiftEnhancer applies a chain of gift filters: An unsharp mask, a contrast
// adjustment and an optional sharpen convolution. Tiles that don't have the
// requested size are resized (Lanczos) first.
type GiftEnhancer struct {
	filters []gift.Filter
}

// NewGiftEnhancer creates the filter chain described by conf.
func NewGiftEnhancer(conf EnhancementConfig) *GiftEnhancer {
	filters := make([]gift.Filter, 0, 3)
	if conf.UnsharpMask.Percent > 0 {
		// radius is used as sigma of the gaussian, percent and threshold are
		// given for 8 bit channels, gift works on [0, 1]
		filters = append(filters, gift.UnsharpMask(
			float32(conf.UnsharpMask.Radius),
			float32(conf.UnsharpMask.Percent)/100.0,
			float32(conf.UnsharpMask.Threshold)/255.0))
	}
	if conf.Contrast != 1.0 && conf.Contrast > 0 {
		filters = append(filters, gift.Contrast(float32((conf.Contrast-1.0)*100.0)))
	}
	if conf.Sharpen {
		filters = append(filters, gift.Convolution(sharpenKernel, true, false, false, 0))
	}
	return &GiftEnhancer{filters: filters}
}

// Enhance applies the filters to tile.
func (enhancer *GiftEnhancer) Enhance(tile image.Image, size int) image.Image {
	filters := enhancer.filters
	bounds := tile.Bounds()
	if bounds.Dx() != size || bounds.Dy() != size {
		filters = append([]gift.Filter{gift.Resize(size, size, gift.LanczosResampling)}, filters...)
	}
	g := gift.New(filters...)
	// the assembler already runs tiles concurrently
	g.SetParallelization(false)
	dst := image.NewNRGBA(g.Bounds(bounds))
	g.Draw(dst, tile)
	return dst
}
