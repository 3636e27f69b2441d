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
	"os"
	"path/filepath"
	"sort"
)

// FSImageDB implements ImageStorage. It uses images stored on the filesystem
// and opens them on demand.
// The paths are stored relative to a Root directory, GetPath returns the
// joined path. The order of Paths defines the ImageIDs.
type FSImageDB struct {
	Root  string
	Paths []string
}

// NewFSImageDB returns an empty database for the given root.
func NewFSImageDB(root string) *FSImageDB {
	return &FSImageDB{Root: root, Paths: nil}
}

// GetPath returns the path of the image with the given id.
func (db *FSImageDB) GetPath(id ImageID) string {
	return filepath.Join(db.Root, db.Paths[id])
}

// NumImages returns the number of paths.
func (db *FSImageDB) NumImages() ImageID {
	return ImageID(len(db.Paths))
}

// LoadImage opens and decodes the file with the given id.
func (db *FSImageDB) LoadImage(id ImageID) (image.Image, error) {
	if id < 0 || id >= db.NumImages() {
		return nil, fmt.Errorf("Invalid image id: Not associated with an image %d", id)
	}
	return LoadImageFile(db.GetPath(id))
}

// GenFSDatabase scans root for image files accepted by filter (defaults to
// ReferenceImages). If recursive is true all sub directories are scanned as
// well. The paths are sorted s.t. the ids don't depend on the order the
// filesystem returns the entries in.
func GenFSDatabase(root string, recursive bool, filter SupportedImageFunc) (*FSImageDB, error) {
	root, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, absErr
	}
	if filter == nil {
		filter = ReferenceImages
	}
	var res *FSImageDB
	var err error
	if recursive {
		res, err = genFSDBRecursive(root, filter)
	} else {
		res, err = genFSDBNonRecursive(root, filter)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(res.Paths)
	return res, nil
}

func genFSDBRecursive(root string, filter SupportedImageFunc) (*FSImageDB, error) {
	result := NewFSImageDB(root)
	walkFunc := func(path string, info os.FileInfo, err error) error {
		switch {
		case err != nil:
			return err
		case !info.IsDir() && filter(filepath.Ext(path)):
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			result.Paths = append(result.Paths, rel)
			return nil
		default:
			return nil
		}
	}
	if err := filepath.Walk(root, walkFunc); err != nil {
		return nil, err
	}
	return result, nil
}

func genFSDBNonRecursive(root string, filter SupportedImageFunc) (*FSImageDB, error) {
	result := NewFSImageDB(root)
	files, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if !file.IsDir() && filter(filepath.Ext(file.Name())) {
			result.Paths = append(result.Paths, file.Name())
		}
	}
	return result, nil
}

// MemoryImageDB is an ImageStorage that holds decoded images in memory.
// A nil entry behaves like an unreadable file.
type MemoryImageDB struct {
	Images []image.Image
}

// NewMemoryImageDB returns a storage for the given images, the id of an image
// is its position.
func NewMemoryImageDB(images ...image.Image) *MemoryImageDB {
	return &MemoryImageDB{Images: images}
}

// NumImages returns the number of images.
func (db *MemoryImageDB) NumImages() ImageID {
	return ImageID(len(db.Images))
}

// LoadImage returns the image with the given id.
func (db *MemoryImageDB) LoadImage(id ImageID) (image.Image, error) {
	if id < 0 || id >= db.NumImages() {
		return nil, fmt.Errorf("Invalid image id: Not associated with an image %d", id)
	}
	img := db.Images[id]
	if img == nil {
		return nil, fmt.Errorf("Image %d is not available", id)
	}
	return img, nil
}
