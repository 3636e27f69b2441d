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
	"crypto/md5"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// SingleCanvasMetadataFile is the name of the metadata written next to
	// the reconstructed canvas.
	SingleCanvasMetadataFile = "single_canvas_metadata.json"
	// SingleCanvasName is the base name of the reconstructed canvas.
	SingleCanvasName = "mosaic_single"
)

// SheetSource opens the image of a sprite sheet.
type SheetSource interface {
	OpenSheet(sheet *SheetDescriptor) (image.Image, error)
}

// DirSheetSource opens sheets from a directory. The lossless file is
// preferred, the lossy file is only used if the lossless one can't be
// loaded. Each failed attempt is recorded in Warnings.
type DirSheetSource struct {
	Dir      string
	Warnings *Warnings
}

// OpenSheet tries the candidate files of the sheet in order.
func (src DirSheetSource) OpenSheet(sheet *SheetDescriptor) (image.Image, error) {
	img, used, err := OpenFirst(sheet.Candidates(src.Dir), src.Warnings)
	if err != nil {
		return nil, fmt.Errorf("Can't load sheet %d: %w", sheet.Index, err)
	}
	if used.Encoding != Lossless && sheet.FilenameLossless == "" {
		src.Warnings.Add(MissingResource, used.Path, "sheet %d has no lossless encoding, using %s",
			sheet.Index, used.Encoding)
	}
	return img, nil
}

// MemorySheetSource maps sheet indices to decoded images.
type MemorySheetSource map[int]image.Image

// OpenSheet returns the image of the sheet.
func (src MemorySheetSource) OpenSheet(sheet *SheetDescriptor) (image.Image, error) {
	img, has := src[sheet.Index]
	if !has || img == nil {
		return nil, fmt.Errorf("No image for sheet %d", sheet.Index)
	}
	return img, nil
}

// StitchReport contains the counters of a Stitch run.
type StitchReport struct {
	TilesProcessed int
	ChecksPassed   int
	ChecksFailed   int
	SheetsMissing  int
}

func (report *StitchReport) merge(other StitchReport) {
	report.TilesProcessed += other.TilesProcessed
	report.ChecksPassed += other.ChecksPassed
	report.ChecksFailed += other.ChecksFailed
	report.SheetsMissing += other.SheetsMissing
}

// Stitcher reconstructs the full resolution mosaic from sprite sheets.
type Stitcher struct {
	// Background fills the canvas before any tile is pasted.
	Background RGB
	// VerifyEvery is the fidelity check cadence: Every VerifyEvery-th pasted
	// tile (counted over all sheets in sheet order) is verified. 1 verifies
	// all tiles, values < 1 are treated as 1.
	VerifyEvery int
	// NumRoutines is the number of sheets processed concurrently.
	NumRoutines int
	// Warnings collects missing sheets and failed checks, may be nil.
	Warnings *Warnings
}

// NewStitcher returns a stitcher configured by conf.
func NewStitcher(conf *Config, warnings *Warnings) *Stitcher {
	return &Stitcher{
		Background:  conf.BackgroundColor(),
		VerifyEvery: conf.Stitch.VerifyEvery,
		NumRoutines: conf.Routines,
		Warnings:    warnings,
	}
}

// Stitch pastes every tile of every sheet at its position in the grid.
// meta must describe a partition of the grid (see SpriteMetadata.Validate).
//
// Sheets that can't be opened are skipped, their area keeps the background
// color. Failed fidelity checks are recorded as warnings, the canvas is
// returned anyway.
func (s *Stitcher) Stitch(meta *SpriteMetadata, sheets SheetSource) (*image.NRGBA, *StitchReport, error) {
	if err := meta.Validate(); err != nil {
		return nil, nil, err
	}
	grid := meta.Grid()
	every := IntMax(s.VerifyEvery, 1)
	canvas := FilledImage(grid.Width*grid.TileSize, grid.Height*grid.TileSize, s.Background)

	pasted := make([][]pastedTile, len(meta.Sheets))
	reports := make([]StitchReport, len(meta.Sheets))
	var g errgroup.Group
	g.SetLimit(numWorkers(s.NumRoutines, len(meta.Sheets)))
	for i := range meta.Sheets {
		i := i
		g.Go(func() error {
			pasted[i], reports[i] = s.stitchSheet(canvas, grid, &meta.Sheets[i], sheets)
			return nil
		})
	}
	// workers never return errors
	_ = g.Wait()

	res := &StitchReport{}
	for _, r := range reports {
		res.merge(r)
	}
	// the ordinal counts pasted tiles over all sheets in sheet order
	ordinal := 0
	for i, tiles := range pasted {
		for _, tile := range tiles {
			if ordinal%every == 0 {
				got := regionChecksum(canvas, tile.dst)
				if got == tile.sum {
					res.ChecksPassed++
				} else {
					res.ChecksFailed++
					s.Warnings.Add(Fidelity, SheetName(meta.Sheets[i].Index),
						"tile %s differs from its source region (%x != %x)", tile.coord, got, tile.sum)
				}
			}
			ordinal++
		}
	}
	log.WithFields(log.Fields{
		"tiles":  res.TilesProcessed,
		"passed": res.ChecksPassed,
		"failed": res.ChecksFailed,
	}).Debug("Canvas stitched")
	return canvas, res, nil
}

// pastedTile is a tile copied into the canvas together with the checksum of
// its source region.
type pastedTile struct {
	coord GridCoordinate
	dst   image.Rectangle
	sum   [md5.Size]byte
}

func (s *Stitcher) stitchSheet(canvas *image.NRGBA, grid MosaicGrid, sheet *SheetDescriptor,
	sheets SheetSource) ([]pastedTile, StitchReport) {
	var report StitchReport
	size := grid.TileSize
	img, err := sheets.OpenSheet(sheet)
	if err != nil {
		s.Warnings.Add(MissingResource, SheetName(sheet.Index), "skipping sheet: %s", err.Error())
		report.SheetsMissing++
		return nil, report
	}
	origin := img.Bounds().Min
	res := make([]pastedTile, 0, len(sheet.TilePositions))
	for _, pos := range sheet.TilePositions {
		c := pos.Coordinate()
		area := image.Rect(pos.SpriteX, pos.SpriteY, pos.SpriteX+size, pos.SpriteY+size).Add(origin)
		tile := imaging.Crop(img, area)
		if tile.Bounds().Dx() != size || tile.Bounds().Dy() != size {
			s.Warnings.Add(MissingResource, SheetName(sheet.Index),
				"tile %s at (%d, %d) is outside of the sheet image", c, pos.SpriteX, pos.SpriteY)
			continue
		}
		dst := grid.CellBounds(c)
		copyNRGBA(canvas, dst.Min, tile)
		report.TilesProcessed++
		res = append(res, pastedTile{coord: c, dst: dst, sum: regionChecksum(tile, tile.Bounds())})
	}
	return res, report
}

// copyNRGBA copies all pixels of src to dst, with the top left corner of src
// at at. The area must be inside of dst.
func copyNRGBA(dst *image.NRGBA, at image.Point, src *image.NRGBA) {
	b := src.Bounds()
	rowLen := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
		dstOff := dst.PixOffset(at.X, at.Y+y)
		copy(dst.Pix[dstOff:dstOff+rowLen], src.Pix[srcOff:srcOff+rowLen])
	}
}

// regionChecksum returns the md5 sum of the pixels of img in r.
// Only the rows of r are read.
func regionChecksum(img *image.NRGBA, r image.Rectangle) [md5.Size]byte {
	h := md5.New()
	rowLen := 4 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		h.Write(img.Pix[off : off+rowLen])
	}
	var sum [md5.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// SingleCanvasInfo describes the reconstructed canvas files.
type SingleCanvasInfo struct {
	FilenameLossless string `json:"filename_lossless"`
	FilenameLossy    string `json:"filename_lossy"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	TileSize         int    `json:"tile_size"`
	HasLossy         bool   `json:"has_lossy"`
}

// GenerationInfo describes how a canvas was created.
type GenerationInfo struct {
	RunID           string `json:"run_id,omitempty"`
	SourceRunID     string `json:"source_run_id,omitempty"`
	Source          string `json:"source"`
	Method          string `json:"method"`
	PreserveQuality bool   `json:"preserve_quality"`
}

// SingleCanvasMetadata is written next to the reconstructed canvas.
type SingleCanvasMetadata struct {
	SingleCanvas        SingleCanvasInfo `json:"single_canvas"`
	OriginalMetadata    *GridDescriptor  `json:"original_metadata"`
	TilesProcessed      int              `json:"tiles_processed"`
	QualityChecksPassed int              `json:"quality_checks_passed"`
	QualityChecksFailed int              `json:"quality_checks_failed"`
	GenerationInfo      GenerationInfo   `json:"generation_info"`
}

// StitchOptions controls the files written by StitchDir.
type StitchOptions struct {
	WriteLossy   bool
	LossyQuality int
	// LossyMaxDimension is the largest width / height for which the lossy
	// copy is written.
	LossyMaxDimension int
}

// StitchDir reads the sprite metadata and sheets from spriteDir and writes
// the reconstructed canvas and its metadata to outDir.
func (s *Stitcher) StitchDir(spriteDir, outDir string, opts StitchOptions) (*SingleCanvasMetadata, error) {
	meta, err := ReadSpriteMetadata(filepath.Join(spriteDir, SpriteMetadataFile))
	if err != nil {
		return nil, err
	}
	canvas, report, err := s.Stitch(meta, DirSheetSource{Dir: spriteDir, Warnings: s.Warnings})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}
	bounds := canvas.Bounds()
	info := SingleCanvasInfo{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		TileSize: meta.Grid().TileSize,
	}
	if info.FilenameLossless, err = SaveEncoded(outDir, SingleCanvasName, Lossless, canvas, 0); err != nil {
		return nil, err
	}
	if opts.WriteLossy && IntMax(info.Width, info.Height) <= opts.LossyMaxDimension {
		if info.FilenameLossy, err = SaveEncoded(outDir, SingleCanvasName, Lossy, canvas, opts.LossyQuality); err != nil {
			return nil, err
		}
		info.HasLossy = true
	} else if opts.WriteLossy {
		log.WithFields(log.Fields{
			"width":  info.Width,
			"height": info.Height,
		}).Info("Canvas too large for lossy copy, only lossless written")
	}
	res := &SingleCanvasMetadata{
		SingleCanvas:        info,
		OriginalMetadata:    meta.OriginalMetadata,
		TilesProcessed:      report.TilesProcessed,
		QualityChecksPassed: report.ChecksPassed,
		QualityChecksFailed: report.ChecksFailed,
		GenerationInfo: GenerationInfo{
			RunID:           NewRunID(),
			SourceRunID:     meta.RunID,
			Source:          "sprite_sheets",
			Method:          "lossless_stitching",
			PreserveQuality: true,
		},
	}
	if err := WriteJSONFile(filepath.Join(outDir, SingleCanvasMetadataFile), res); err != nil {
		return nil, err
	}
	return res, nil
}
