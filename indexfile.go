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
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// This file contains functions and types for storing and retrieving the
// average colors of a reference collection, computing them for thousands of
// images takes a while.

const (
	// IndexFileVersion is written to each index file. Files with another
	// version are rejected.
	IndexFileVersion = 1
)

// ErrStaleIndexFile is returned if an index file doesn't describe the
// current content of a reference directory.
var ErrStaleIndexFile = errors.New("Index file doesn't match reference collection")

// IndexFileEntry stores the color of one image, identified by its path
// relative to the collection root. Hex is only informational.
type IndexFileEntry struct {
	Path  string      `json:"path"`
	Hex   string      `json:"hex"`
	Color ColorVector `json:"color"`
}

// IndexFile is used to store a ColorIndex on the filesystem.
// Because ids depend on the collection they're stored as paths, Skipped
// contains images that couldn't be loaded when the index was created.
//
// Supported formats are json, gob and gob compressed with zstd, see
// WriteFile.
type IndexFile struct {
	Version int              `json:"version"`
	Entries []IndexFileEntry `json:"entries"`
	Skipped []string         `json:"skipped,omitempty"`
}

// CreateIndexFile creates the file representation of index. db is used to
// look up the image paths.
func CreateIndexFile(db *FSImageDB, index *ColorIndex) *IndexFile {
	res := &IndexFile{
		Version: IndexFileVersion,
		Entries: make([]IndexFileEntry, 0, index.Len()),
	}
	indexed := make(map[ImageID]bool, index.Len())
	for _, entry := range index.Entries() {
		indexed[entry.ID] = true
		res.Entries = append(res.Entries, IndexFileEntry{
			Path:  db.Paths[entry.ID],
			Hex:   entry.Color.Hex(),
			Color: entry.Color,
		})
	}
	for i, path := range db.Paths {
		if !indexed[ImageID(i)] {
			res.Skipped = append(res.Skipped, path)
		}
	}
	return res
}

// ToIndex maps the stored entries to the ids of db. If db contains an image
// that is neither an entry nor skipped ErrStaleIndexFile is returned. Entries
// for images that no longer exist in db are ignored.
func (f *IndexFile) ToIndex(db *FSImageDB) (*ColorIndex, error) {
	if f.Version != IndexFileVersion {
		return nil, fmt.Errorf("Unsupported index file version %d, expected %d: %w",
			f.Version, IndexFileVersion, ErrStaleIndexFile)
	}
	colors := make(map[string]ColorVector, len(f.Entries))
	for _, entry := range f.Entries {
		colors[entry.Path] = entry.Color
	}
	skipped := make(map[string]struct{}, len(f.Skipped))
	for _, path := range f.Skipped {
		skipped[path] = struct{}{}
	}
	entries := make([]IndexEntry, 0, len(db.Paths))
	for i, path := range db.Paths {
		if c, has := colors[path]; has {
			entries = append(entries, IndexEntry{ID: ImageID(i), Color: c})
			continue
		}
		if _, has := skipped[path]; !has {
			return nil, fmt.Errorf("No color stored for %s: %w", path, ErrStaleIndexFile)
		}
	}
	return NewColorIndex(entries)
}

// WriteJSON writes the index to a file encoded in json format.
func (f *IndexFile) WriteJSON(path string) error {
	f.Version = IndexFileVersion
	return WriteJSONFile(path, f)
}

// ReadJSONFile reads the content of the index from a json file.
func (f *IndexFile) ReadJSONFile(path string) error {
	return ReadJSONFile(path, f)
}

// WriteGobFile writes the index to a file encoded in gob format. If compress
// is true the gob stream is compressed with zstd.
func (f *IndexFile) WriteGobFile(path string, compress bool) error {
	f.Version = IndexFileVersion
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	var w io.Writer = out
	var zw *zstd.Encoder
	if compress {
		zw, err = zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			out.Close()
			return err
		}
		w = zw
	}
	encErr := gob.NewEncoder(w).Encode(f)
	if zw != nil {
		if closeErr := zw.Close(); encErr == nil {
			encErr = closeErr
		}
	}
	if closeErr := out.Close(); encErr == nil {
		encErr = closeErr
	}
	return encErr
}

// ReadGobFile reads the content of the index from a gob file, compressed
// with zstd if compressed is true.
func (f *IndexFile) ReadGobFile(path string, compressed bool) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	var r io.Reader = in
	if compressed {
		zr, zErr := zstd.NewReader(in)
		if zErr != nil {
			return zErr
		}
		defer zr.Close()
		r = zr
	}
	return gob.NewDecoder(r).Decode(f)
}

type indexFileFormat int

const (
	formatUnknown indexFileFormat = iota
	formatJSON
	formatGob
	formatGobZstd
)

func indexFormat(path string) indexFileFormat {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gob.zst"):
		return formatGobZstd
	case strings.HasSuffix(lower, ".gob"):
		return formatGob
	case strings.HasSuffix(lower, ".json"):
		return formatJSON
	default:
		return formatUnknown
	}
}

func unknownIndexFormat(path string) error {
	return &ConfigError{Field: "index file",
		Msg: fmt.Sprintf("unknown extension of %s, should be \".json\", \".gob\" or \".gob.zst\"", path)}
}

// ReadFile reads the index from a file, the format depends on the
// extension: ".json", ".gob" or ".gob.zst".
func (f *IndexFile) ReadFile(path string) error {
	switch indexFormat(path) {
	case formatJSON:
		return f.ReadJSONFile(path)
	case formatGob:
		return f.ReadGobFile(path, false)
	case formatGobZstd:
		return f.ReadGobFile(path, true)
	default:
		return unknownIndexFormat(path)
	}
}

// WriteFile writes the index to a file, the format depends on the extension
// as in ReadFile.
func (f *IndexFile) WriteFile(path string) error {
	switch indexFormat(path) {
	case formatJSON:
		return f.WriteJSON(path)
	case formatGob:
		return f.WriteGobFile(path, false)
	case formatGobZstd:
		return f.WriteGobFile(path, true)
	default:
		return unknownIndexFormat(path)
	}
}

// IndexFileName returns the proposed name for the index file of a dataset,
// for example "colors-dogs.gob.zst".
func IndexFileName(dataset string) string {
	return fmt.Sprintf("colors-%s.gob.zst", dataset)
}
