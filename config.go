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
	"path/filepath"
	"runtime"

	homedir "github.com/mitchellh/go-homedir"
)

// MosaicConfig describes the size of generated mosaics.
type MosaicConfig struct {
	// TileSize is the side length of each tile in pixels.
	TileSize int `json:"tile_size"`
	// MosaicWidth is the number of tiles in each row, the number of rows is
	// computed from the aspect ratio of the target.
	MosaicWidth int `json:"mosaic_width"`
}

// UnsharpMaskConfig contains the parameters of the unsharp mask, given as
// for 8 bit images.
type UnsharpMaskConfig struct {
	Radius    float64 `json:"radius"`
	Percent   int     `json:"percent"`
	Threshold int     `json:"threshold"`
}

// EnhancementConfig configures the GiftEnhancer.
type EnhancementConfig struct {
	Disabled    bool              `json:"disabled"`
	UnsharpMask UnsharpMaskConfig `json:"unsharp_mask"`
	// Contrast is a factor, 1 leaves the contrast unchanged.
	Contrast float64 `json:"contrast"`
	Sharpen  bool    `json:"sharpen"`
}

// DatasetsConfig maps dataset names to directories containing reference
// images. Datasets without an entry in Dirs are looked up in the cache
// directory.
type DatasetsConfig struct {
	Default string            `json:"default"`
	Dirs    map[string]string `json:"dirs"`
}

// SpritesConfig configures the packer.
type SpritesConfig struct {
	SheetsPerSide int  `json:"sheets_per_side"`
	TilesPerSheet int  `json:"tiles_per_sheet"`
	LossyQuality  int  `json:"lossy_quality"`
	WriteLossy    bool `json:"write_lossy"`
}

// StitchConfig configures the stitcher.
type StitchConfig struct {
	// VerifyEvery is the sampling cadence of the fidelity check, 1 verifies
	// every tile.
	VerifyEvery  int  `json:"verify_every"`
	LossyQuality int  `json:"lossy_quality"`
	WriteLossy   bool `json:"write_lossy"`
	// LossyMaxDimension is the largest width / height for which a lossy copy
	// of the canvas is written.
	LossyMaxDimension int `json:"lossy_max_dimension"`
}

// Config contains all settings. It is created once (DefaultConfig or
// LoadConfig) and handed to the components that need it.
type Config struct {
	Datasets     DatasetsConfig    `json:"datasets"`
	CacheDir     string            `json:"cache_dir"`
	StaticMosaic MosaicConfig      `json:"static_mosaic"`
	WebTiles     MosaicConfig      `json:"web_tiles"`
	Enhancement  EnhancementConfig `json:"enhancement"`
	Sprites      SpritesConfig     `json:"sprites"`
	Stitch       StitchConfig      `json:"stitch"`
	// Routines is the number of goroutines used by the different stages.
	Routines int `json:"routines"`
	// ImageCacheSize is the number of scaled tiles cached by the assembler.
	ImageCacheSize int `json:"image_cache_size"`
	// Resampler is the name of the resize filter, see GetResizer.
	Resampler string `json:"resampler"`
	// Background is the hex color ("#rrggbb") of missing tiles.
	Background string `json:"background"`
	// JPGQuality is used for lossy copies written by the assembler.
	JPGQuality int `json:"jpg_quality"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	routines := runtime.NumCPU() * 2
	if routines <= 0 {
		routines = 4
	}
	return Config{
		Datasets: DatasetsConfig{
			Default: "dogs",
			Dirs:    map[string]string{},
		},
		CacheDir:     "data",
		StaticMosaic: MosaicConfig{TileSize: 9, MosaicWidth: 256},
		WebTiles:     MosaicConfig{TileSize: 256, MosaicWidth: 80},
		Enhancement: EnhancementConfig{
			UnsharpMask: UnsharpMaskConfig{Radius: 1.5, Percent: 150, Threshold: 2},
			Contrast:    1.1,
			Sharpen:     true,
		},
		Sprites: SpritesConfig{
			SheetsPerSide: 5,
			TilesPerSheet: 400,
			LossyQuality:  80,
			WriteLossy:    true,
		},
		Stitch: StitchConfig{
			VerifyEvery:       100,
			LossyQuality:      95,
			WriteLossy:        true,
			LossyMaxDimension: 16383,
		},
		Routines:       routines,
		ImageCacheSize: 64,
		Resampler:      "lanczos",
		Background:     "#f0f0f0",
		JPGQuality:     95,
	}
}

// LoadConfig reads a json file, all values not present in the file keep
// their default.
func LoadConfig(path string) (Config, error) {
	conf := DefaultConfig()
	expanded, err := homedir.Expand(path)
	if err != nil {
		return conf, err
	}
	if err := ReadJSONFile(expanded, &conf); err != nil {
		return conf, &ConfigError{Field: "config file", Msg: fmt.Sprintf("can't read %s: %s", expanded, err)}
	}
	return conf, conf.Validate()
}

func checkQuality(field string, quality int) error {
	if quality < 1 || quality > 100 {
		return &ConfigError{Field: field, Msg: fmt.Sprintf("must be between 1 and 100, got %d", quality)}
	}
	return nil
}

func checkPositive(field string, val int) error {
	if val <= 0 {
		return &ConfigError{Field: field, Msg: fmt.Sprintf("must be positive, got %d", val)}
	}
	return nil
}

// Validate returns a ConfigError for the first invalid setting.
func (conf *Config) Validate() error {
	checks := []error{
		checkPositive("static_mosaic.tile_size", conf.StaticMosaic.TileSize),
		checkPositive("static_mosaic.mosaic_width", conf.StaticMosaic.MosaicWidth),
		checkPositive("web_tiles.tile_size", conf.WebTiles.TileSize),
		checkPositive("web_tiles.mosaic_width", conf.WebTiles.MosaicWidth),
		checkPositive("sprites.sheets_per_side", conf.Sprites.SheetsPerSide),
		checkPositive("sprites.tiles_per_sheet", conf.Sprites.TilesPerSheet),
		checkPositive("stitch.verify_every", conf.Stitch.VerifyEvery),
		checkPositive("stitch.lossy_max_dimension", conf.Stitch.LossyMaxDimension),
		checkPositive("routines", conf.Routines),
		checkPositive("image_cache_size", conf.ImageCacheSize),
		checkQuality("sprites.lossy_quality", conf.Sprites.LossyQuality),
		checkQuality("stitch.lossy_quality", conf.Stitch.LossyQuality),
		checkQuality("jpg_quality", conf.JPGQuality),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	if _, err := GetResizer(conf.Resampler); err != nil {
		return err
	}
	if _, err := ParseColorHex(conf.Background); err != nil {
		return &ConfigError{Field: "background", Msg: err.Error()}
	}
	return nil
}

// Mosaic returns the mosaic settings for the static (single image) or the
// web tiles mode.
func (conf *Config) Mosaic(webTiles bool) MosaicConfig {
	if webTiles {
		return conf.WebTiles
	}
	return conf.StaticMosaic
}

// BackgroundColor returns the color used for missing tiles. An invalid
// Background (see Validate) results in black.
func (conf *Config) BackgroundColor() RGB {
	c, _ := ParseColorHex(conf.Background)
	return c.RGB()
}

// DatasetDir returns the directory of the dataset with the given name (the
// default dataset if name is empty).
func (conf *Config) DatasetDir(name string) (string, error) {
	if name == "" {
		name = conf.Datasets.Default
	}
	dir, has := conf.Datasets.Dirs[name]
	if !has {
		dir = filepath.Join(conf.CacheDir, name)
	}
	return homedir.Expand(dir)
}

// Enhancer returns the enhancer described by the enhancement settings.
func (conf *Config) Enhancer() Enhancer {
	if conf.Enhancement.Disabled {
		return NoEnhancer
	}
	return NewGiftEnhancer(conf.Enhancement)
}
