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
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// sheets and reference images may also be webp encoded
	_ "golang.org/x/image/webp"
)

// Encoding is an image serialization used for tiles, sheets and canvases.
type Encoding int

const (
	// Lossless is pixel exact (png). It is always the fidelity source.
	Lossless Encoding = iota
	// Lossy is a smaller, compressed with loss variant (jpeg).
	Lossy
)

// Ext returns the file extension (with dot) used for the encoding.
func (enc Encoding) Ext() string {
	switch enc {
	case Lossless:
		return ".png"
	default:
		return ".jpg"
	}
}

func (enc Encoding) String() string {
	switch enc {
	case Lossless:
		return "lossless"
	case Lossy:
		return "lossy"
	default:
		return fmt.Sprintf("Encoding(%d)", int(enc))
	}
}

// EncodingCandidate is one possible file for a resource.
type EncodingCandidate struct {
	Path     string
	Encoding Encoding
}

// ErrNoCandidate is returned by OpenFirst if none of the candidates could be
// loaded.
var ErrNoCandidate = errors.New("No encoding candidate could be loaded")

// OpenFirst tries the candidates in the given order and returns the first
// image that can be decoded. Every failed candidate is recorded as a
// MissingResource warning before the next one is tried.
func OpenFirst(candidates []EncodingCandidate, warnings *Warnings) (image.Image, EncodingCandidate, error) {
	for _, candidate := range candidates {
		if candidate.Path == "" {
			continue
		}
		img, err := LoadImageFile(candidate.Path)
		if err == nil {
			return img, candidate, nil
		}
		warnings.Add(MissingResource, candidate.Path, "can't load %s encoding: %s",
			candidate.Encoding, err.Error())
	}
	return nil, EncodingCandidate{}, ErrNoCandidate
}

// LoadImageFile opens and decodes an image file. All formats registered with
// the image package are supported (jpeg, png and webp).
func LoadImageFile(path string) (image.Image, error) {
	r, openErr := os.Open(path)
	if openErr != nil {
		return nil, openErr
	}
	defer r.Close()
	img, _, decodeErr := image.Decode(r)
	if decodeErr != nil {
		return nil, fmt.Errorf("Can't decode %s: %w", path, decodeErr)
	}
	return img, nil
}

// SaveImage writes img to file, the encoding depends on the file extension
// (.png or .jpg / .jpeg). jpgQuality is ignored for png files.
func SaveImage(file string, img image.Image, jpgQuality int) error {
	ext := strings.ToLower(filepath.Ext(file))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return fmt.Errorf("Unsupported file type: %s, expected .jpg or .png", ext)
	}
	outFile, outErr := os.Create(file)
	if outErr != nil {
		return outErr
	}
	var encErr error
	if ext == ".png" {
		encErr = png.Encode(outFile, img)
	} else {
		encErr = jpeg.Encode(outFile, img, &jpeg.Options{Quality: jpgQuality})
	}
	closeErr := outFile.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

// SaveEncoded writes img to dir, the file name is name followed by the
// extension of enc. It returns the base name of the written file.
func SaveEncoded(dir, name string, enc Encoding, img image.Image, jpgQuality int) (string, error) {
	file := name + enc.Ext()
	if err := SaveImage(filepath.Join(dir, file), img, jpgQuality); err != nil {
		return "", err
	}
	return file, nil
}
