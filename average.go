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
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ColorVector is the mean intensity of the r, g and b channels of an image.
// Each component is in the range [0, 255].
type ColorVector [3]float64

// ColorVectorFromRGB returns the vector of a single color.
func ColorVectorFromRGB(c RGB) ColorVector {
	return ColorVector{float64(c.R), float64(c.G), float64(c.B)}
}

// ComputeColorVector computes the arithmetic mean of each channel over all
// pixels of img.
func ComputeColorVector(img image.Image) ColorVector {
	bounds := img.Bounds()

	// don't do anything for empty images
	if bounds.Empty() {
		return ColorVector{}
	}
	// uint64 is big enough for every image that fits in memory
	var r, g, b uint64
	numPixels := float64(bounds.Dx() * bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgb := ConvertRGB(img.At(x, y))
			r += uint64(rgb.R)
			g += uint64(rgb.G)
			b += uint64(rgb.B)
		}
	}
	return ColorVector{
		float64(r) / numPixels,
		float64(g) / numPixels,
		float64(b) / numPixels,
	}
}

// RGB rounds the vector to the nearest RGB color.
func (c ColorVector) RGB() RGB {
	return RGB{R: roundChannel(c[0]), G: roundChannel(c[1]), B: roundChannel(c[2])}
}

// Hex returns the hex representation ("#rrggbb") of the rounded color.
func (c ColorVector) Hex() string {
	rgb := c.RGB()
	return colorful.Color{
		R: float64(rgb.R) / 255.0,
		G: float64(rgb.G) / 255.0,
		B: float64(rgb.B) / 255.0,
	}.Hex()
}

// ParseColorHex parses a color in the form "#rrggbb".
func ParseColorHex(s string) (ColorVector, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return ColorVector{}, fmt.Errorf("Invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return ColorVector{float64(r), float64(g), float64(b)}, nil
}

func (c ColorVector) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", c[0], c[1], c[2])
}

func roundChannel(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}
