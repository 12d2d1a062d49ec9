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

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/spatialmodel/swdircor"
	"github.com/spatialmodel/swdircor/internal/demio"
)

func init() {
	RootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a shortwave terrain correction.",
	Long: "run loads the DEMs, mask, and sun positions named in the configuration " +
		"file, builds the occlusion scene once, and writes one correction-factor " +
		"grid per sun position to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(Run(Config))
	},
}

// aggGridShape returns the aggregation-grid shape (num_gc_y, num_gc_x) per
// spec.md §3: (D0_in-1)/pixel_per_gc and (D1_in-1)/pixel_per_gc, not
// D0_in/pixel_per_gc -- the inner DEM's vertex counts are one larger than
// its pixel counts in each dimension.
func aggGridShape(c *ConfigData) (numGCY, numGCX int) {
	return (c.InnerRows - 1) / c.PixelPerGC, (c.InnerCols - 1) / c.PixelPerGC
}

// loadFacade reads the DEM, mask, and sun-position files named in c and
// builds a swdircor.Facade over them.
func loadFacade(c *ConfigData) (*swdircor.Facade, []demio.SunPosition, error) {
	outer, err := demio.LoadVertexGrid(c.OuterDEMFile, c.OuterRows, c.OuterCols)
	if err != nil {
		return nil, nil, err
	}
	inner, err := demio.LoadVertexGrid(c.InnerDEMFile, c.InnerRows, c.InnerCols)
	if err != nil {
		return nil, nil, err
	}

	numGCY, numGCX := aggGridShape(c)

	var maskBytes []byte
	if c.MaskFile != "" {
		m, err := demio.LoadMask(c.MaskFile, numGCY, numGCX)
		if err != nil {
			return nil, nil, err
		}
		maskBytes = m.Bytes()
		log.Infof("mask: %d of %d cells marked for processing", m.ProcessedCells(), numGCY*numGCX)
	} else {
		maskBytes = make([]byte, numGCY*numGCX)
		for i := range maskBytes {
			maskBytes[i] = 1
		}
	}

	fp := demio.Footprint(outer)
	log.Infof("outer DEM footprint: x [%v, %v], y [%v, %v]", fp.Min.X, fp.Max.X, fp.Min.Y, fp.Max.Y)

	suns, err := demio.LoadSunPositions(c.SunPositionFile)
	if err != nil {
		return nil, nil, err
	}

	f, err := swdircor.Initialise(swdircor.Config{
		OuterVerts:   outer.Verts,
		OuterRows:    outer.Rows,
		OuterCols:    outer.Cols,
		InnerVerts:   inner.Verts,
		InnerRows:    inner.Rows,
		InnerCols:    inner.Cols,
		PixelPerGC:   c.PixelPerGC,
		OffsetGC:     c.OffsetGC,
		Mask:         maskBytes,
		DistSearchKM: c.DistSearchKM,
		GeomType:     c.GeomType,
		SwDirCorMax:  c.SwDirCorMax,
		AngMaxDeg:    c.AngMaxDeg,
		RayOrgElev:   c.RayOrgElev,
	})
	if err != nil {
		return nil, nil, err
	}
	return f, suns, nil
}

// Run executes a full correction batch: load inputs, build the scene
// once, run the configured engine across every sun position in
// c.SunPositionFile, and write one output grid per position.
func Run(c *ConfigData) error {
	f, suns, err := loadFacade(c)
	if err != nil {
		return err
	}
	defer f.Release()

	numGCY, numGCX := aggGridShape(c)

	out := make([][]float32, len(suns))
	sunTriples := make([][3]float64, len(suns))
	for i, s := range suns {
		out[i] = make([]float32, numGCY*numGCX)
		sunTriples[i] = [3]float64{s.X, s.Y, s.Z}
	}

	if err := f.CorrectionSeries(c.Engine, sunTriples, c.RefractionCor, out); err != nil {
		return err
	}

	for i := range suns {
		path := filepath.Join(c.OutputDir, fmt.Sprintf("swdircor_%03d.bin", i))
		if err := demio.WriteOutput(path, out[i]); err != nil {
			return err
		}
		log.Infof("wrote %s", path)
	}
	return nil
}

// runValidate checks c's dimension and threshold invariants, then loads
// the referenced DEM, mask, and sun-position files and builds the scene
// they describe -- without running any correction pass. A missing or
// malformed input file is reported as an error. It is the supplemented "validate"
// operation: catching a misconfigured offset_gc/pixel_per_gc pair before
// a long batch run.
func runValidate(c *ConfigData) error {
	if err := c.Validate(); err != nil {
		return err
	}
	f, suns, err := loadFacade(c)
	if err != nil {
		return err
	}
	defer f.Release()
	log.Infof("configuration valid: %d sun position(s) to process", len(suns))
	return nil
}
