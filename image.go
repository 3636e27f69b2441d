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
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// SupportedImageFunc is a function that takes a file extension and decides if
// this file extension is supported.
//
// The extension passed to this function could be for example ".txt" or ".jpg".
type SupportedImageFunc func(ext string) bool

// JPGAndPNG is an implementation of SupportedImageFunc accepting jpg and png
// file extensions.
func JPGAndPNG(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// ReferenceImages accepts all formats a reference collection might contain:
// jpg, png and webp.
func ReferenceImages(ext string) bool {
	return JPGAndPNG(ext) || strings.ToLower(ext) == ".webp"
}

// RGB is a color containing r, g and b components.
type RGB struct {
	R, G, B uint8
}

// NewRGB returns a new RGB color.
func NewRGB(r, g, b uint8) RGB {
	return RGB{R: r, G: g, B: b}
}

// ConvertRGB converts a generic color into the internal RGB representation.
// The alpha channel is dropped, the color channels are not premultiplied.
func ConvertRGB(c color.Color) RGB {
	nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGB{R: nrgba.R, G: nrgba.G, B: nrgba.B}
}

// NRGBA returns the opaque color.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}
}

// ImageResizer resizes an image to the given width and height.
type ImageResizer interface {
	Resize(width, height uint, img image.Image) image.Image
}

// NfntResizer uses the nfnt/resize package to resize an image.
type NfntResizer struct {
	// InterP is the interpolation function to use.
	InterP resize.InterpolationFunction
}

// NewNfntResizer returns a new resizer given the interpolation function.
func NewNfntResizer(interP resize.InterpolationFunction) NfntResizer {
	return NfntResizer{interP}
}

// GetInterP returns an interpolation function given a desired quality.
// Currently supported are values between 0 and 4, each selecting a different
// interpolation function. Values greater than 4 select Lanczos3.
func GetInterP(quality uint) resize.InterpolationFunction {
	switch quality {
	case 0:
		return resize.NearestNeighbor
	case 1:
		return resize.Bilinear
	case 2:
		return resize.Bicubic
	case 3:
		return resize.MitchellNetravali
	case 4:
		return resize.Lanczos2
	default:
		return resize.Lanczos3
	}
}

var (
	// DefaultResizer is the resizer that is used by default, it resamples
	// target images to the mosaic grid and scales tiles.
	DefaultResizer = NewNfntResizer(resize.Lanczos3)
)

// Resize calls nfnt/resize methods.
func (resizer NfntResizer) Resize(width, height uint, img image.Image) image.Image {
	return resize.Resize(width, height, img, resizer.InterP)
}

// DrawResizer scales with an x/image/draw interpolator, for example
// draw.CatmullRom.
type DrawResizer struct {
	Scaler draw.Scaler
}

// Resize scales img into a new NRGBA image of the given size.
func (resizer DrawResizer) Resize(width, height uint, img image.Image) image.Image {
	dst := image.NewNRGBA(image.Rect(0, 0, int(width), int(height)))
	resizer.Scaler.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// GetResizer returns the resizer registered under name. "lanczos" is the
// default and also used for the empty string.
func GetResizer(name string) (ImageResizer, error) {
	switch strings.ToLower(name) {
	case "", "lanczos", "lanczos3":
		return DefaultResizer, nil
	case "nearest":
		return NewNfntResizer(GetInterP(0)), nil
	case "bicubic":
		return NewNfntResizer(GetInterP(2)), nil
	case "mitchell":
		return NewNfntResizer(GetInterP(3)), nil
	case "lanczos2":
		return NewNfntResizer(GetInterP(4)), nil
	case "catmullrom":
		return DrawResizer{Scaler: draw.CatmullRom}, nil
	case "bilinear":
		return DrawResizer{Scaler: draw.BiLinear}, nil
	default:
		return nil, &ConfigError{Field: "resampler", Msg: fmt.Sprintf("unknown resampler %q", name)}
	}
}

// resizeIfNeeded resizes img only if it doesn't already have the requested
// size. Resizing an image to its own size is not guaranteed to be the identity
// for all filters.
func resizeIfNeeded(resizer ImageResizer, width, height int, img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	return resizer.Resize(uint(width), uint(height), img)
}

// ImageID is used to unambiguously identify an image.
type ImageID int

const (
	// NoImageID is used to signal errors etc. on images.
	NoImageID ImageID = -1
)

// ImageStorage is used to administrate a collection of reference images.
// Images are not stored in memory but are identified by an id and can be loaded
// into memory when required.
// The access methods should return an error if the image id is not associated
// with any image data or if there is an error reading the image (e.g. from
// the filesystem).
//
// Implementations must be safe for concurrent use.
type ImageStorage interface {
	// NumImages returns the number of images in the storage as an ImageID.
	// All ids < than NumImages are considered valid and can be retrieved via
	// LoadImage.
	NumImages() ImageID

	// LoadImage loads an image into memory.
	LoadImage(id ImageID) (image.Image, error)
}

// IDList returns the list [0, 1, ..., storage.NumImages - 1].
func IDList(storage ImageStorage) []ImageID {
	numImages := storage.NumImages()
	res := make([]ImageID, numImages)
	var i ImageID
	for ; i < numImages; i++ {
		res[i] = i
	}
	return res
}

// Opaque returns a copy of img with the alpha channel dropped: Each pixel
// keeps its (not premultiplied) color and is fully opaque. The result starts
// at (0, 0).
func Opaque(img image.Image) *image.NRGBA {
	res := imaging.Clone(img)
	for i := 3; i < len(res.Pix); i += 4 {
		res.Pix[i] = 0xff
	}
	return res
}

// FilledImage returns a width × height image filled with c.
func FilledImage(width, height int, c RGB) *image.NRGBA {
	return imaging.New(width, height, c.NRGBA())
}
