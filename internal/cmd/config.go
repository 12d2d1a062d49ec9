/*
Copyright © 2024 the swdircor authors.
This file is part of swdircor.

swdircor is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

swdircor is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with swdircor.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cmd contains commands and subcommands for the swdircor
// command-line interface.
package cmd

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigData holds the settings for one swdircor run. It is read from a
// TOML configuration file the same way the source model's ConfigData is:
// a plain toml.Decode followed by os.ExpandEnv on every path-valued field,
// so that configuration files can reference environment variables such as
// "$SWDIRCOR_DATA/dem_outer.bin".
type ConfigData struct {
	// OuterDEMFile and InnerDEMFile are the paths to the outer and inner
	// DEM vertex grids, as flat little-endian float32 (x,y,z) buffers.
	OuterDEMFile string
	InnerDEMFile string

	// OuterRows, OuterCols, InnerRows, InnerCols give the vertex-grid
	// dimensions of the outer and inner DEMs.
	OuterRows, OuterCols int
	InnerRows, InnerCols int

	// MaskFile is the path to a flat byte mask, one byte per aggregation
	// cell (1 = process, 0 = skip). May be left blank, in which case
	// every cell is processed.
	MaskFile string

	// SunPositionFile is the path to a TOML file containing one or more
	// named ENU sun positions to evaluate.
	SunPositionFile string

	// OutputDir is the directory correction-factor grids are written to,
	// one flat float32 file per sun position. Can include environment
	// variables.
	OutputDir string

	// LogFile is the path to the desired logfile location. It can include
	// environment variables. If left blank, the logfile is derived from
	// OutputDir.
	LogFile string

	// GeomType selects the scene representation: "triangle", "quad", or
	// "grid". Defaults to "grid" if empty or unrecognized.
	GeomType string

	// Engine selects the ray-tracing engine: "single", "coherent", or
	// "packet8".
	Engine string

	// PixelPerGC is the number of outer-DEM pixels per aggregation-cell
	// edge; must be >= 1, and must be even to use the packet8 engine.
	PixelPerGC int

	// OffsetGC is the number of aggregation cells of border the inner DEM
	// is inset from the outer DEM.
	OffsetGC int

	// DistSearchKM is the maximum occlusion-ray search distance in
	// kilometers; must be > 0.
	DistSearchKM float64

	// SwDirCorMax caps the per-triangle correction factor; must be > 0.
	SwDirCorMax float64

	// AngMaxDeg is the largest angle, in degrees, between the sun
	// direction and the horizontal-triangle normal (so the minimum sun
	// elevation is 90 - AngMaxDeg); a triangle whose sun lies at or beyond
	// it is treated as self-shadowed. Must be in (0, 90].
	AngMaxDeg float64

	// RayOrgElev raises the ray origin above the triangle surface, in
	// metres, to avoid self-intersection at the origin triangle.
	RayOrgElev float64

	// RefractionCor enables atmospheric refraction correction. Only the
	// single-ray engine honors this.
	RefractionCor bool
}

// ReadConfigFile reads and parses a TOML configuration file, expands
// environment variables in its path fields, and validates the numeric
// constraints the core requires at initialization time.
func ReadConfigFile(filename string) (config *ConfigData, err error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("the configuration file you have specified, %v, does not "+
			"appear to exist. Please check the file name and location and try again", filename)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	bytes, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("problem reading configuration file: %v", err)
	}

	config = new(ConfigData)
	if _, err = toml.Decode(string(bytes), config); err != nil {
		return nil, fmt.Errorf("there has been an error parsing the configuration file: %v", err)
	}

	config.OuterDEMFile = os.ExpandEnv(config.OuterDEMFile)
	config.InnerDEMFile = os.ExpandEnv(config.InnerDEMFile)
	config.MaskFile = os.ExpandEnv(config.MaskFile)
	config.SunPositionFile = os.ExpandEnv(config.SunPositionFile)
	config.OutputDir = os.ExpandEnv(config.OutputDir)
	config.LogFile = os.ExpandEnv(config.LogFile)

	if config.OutputDir == "" {
		return nil, fmt.Errorf(`you need to specify an output directory in the configuration file (for example: OutputDir = "out")`)
	}
	if config.LogFile == "" {
		config.LogFile = strings.TrimRight(config.OutputDir, "/") + "/swdircor.log"
	}
	if config.GeomType == "" {
		config.GeomType = "grid"
	}
	if config.Engine == "" {
		config.Engine = "single"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the dimensional and numeric invariants the core
// requires at initialization: the inner DEM must be the outer DEM shrunk
// by exactly offset_gc cells' worth of pixels on every side (so
// 2*offset_gc*pixel_per_gc vertices fewer in each dimension), and the
// user-tunable thresholds must lie in their valid ranges.
func (c *ConfigData) Validate() error {
	if c.PixelPerGC < 1 {
		return fmt.Errorf("swdircor: pixel_per_gc must be >= 1, got %d", c.PixelPerGC)
	}
	if c.OffsetGC < 0 {
		return fmt.Errorf("swdircor: offset_gc must be >= 0, got %d", c.OffsetGC)
	}
	if c.DistSearchKM <= 0 {
		return fmt.Errorf("swdircor: dist_search_km must be > 0, got %v", c.DistSearchKM)
	}
	if c.SwDirCorMax <= 0 {
		return fmt.Errorf("swdircor: sw_dir_cor_max must be > 0, got %v", c.SwDirCorMax)
	}
	if c.AngMaxDeg <= 0 || c.AngMaxDeg > 90 {
		return fmt.Errorf("swdircor: ang_max_deg must be in (0, 90], got %v", c.AngMaxDeg)
	}
	switch c.Engine {
	case "single", "coherent", "packet8":
	default:
		return fmt.Errorf("swdircor: unrecognized engine %q", c.Engine)
	}
	if c.Engine == "packet8" && c.PixelPerGC%2 != 0 {
		return fmt.Errorf("swdircor: packet8 engine requires an even pixel_per_gc, got %d", c.PixelPerGC)
	}

	border := 2 * c.OffsetGC * c.PixelPerGC
	wantInnerRows := c.OuterRows - border
	wantInnerCols := c.OuterCols - border
	if c.InnerRows != wantInnerRows || c.InnerCols != wantInnerCols {
		return fmt.Errorf("swdircor: inner DEM must be %dx%d (outer %dx%d shrunk by 2*offset_gc*pixel_per_gc=%d in each dimension), got %dx%d",
			wantInnerRows, wantInnerCols, c.OuterRows, c.OuterCols, border, c.InnerRows, c.InnerCols)
	}
	if c.OuterRows < 2 || c.OuterCols < 2 {
		return fmt.Errorf("swdircor: outer DEM must be at least 2x2, got %dx%d", c.OuterRows, c.OuterCols)
	}
	return nil
}
