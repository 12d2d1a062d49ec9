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

// Package engine implements the three shortwave-correction submission
// policies (single ray, coherent batch, 8-wide packet) described in
// §4.5-4.7. All three share one inner per-triangle routine
// (evalTriangle) that performs the geometric setup and both
// self-shadow tests and yields a ray plus its pre-computed contribution;
// the policies differ only in how they submit the resulting rays to the
// scene and reduce the results, per the factoring suggested in §9 Design
// Notes.
//
// The outer reduction over aggregation-cell rows is data-parallel and
// fork-join, the same row-striped worker-channel pattern the teacher
// uses in lib.inmap/run.go's doScience: GOMAXPROCS(0) workers each own a
// disjoint stripe of rows (and therefore disjoint output cells), so no
// locking is required to combine their results beyond a final ray-count
// sum.
package engine

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/spatialmodel/swdircor/indexer"
	"github.com/spatialmodel/swdircor/refract"
	"github.com/spatialmodel/swdircor/scene"
	"github.com/spatialmodel/swdircor/vector"
)

// DEM describes one of the two co-registered vertex buffers (outer or
// inner), shared (not copied) with the caller.
type DEM struct {
	Verts      []float32
	Rows, Cols int
}

func (d DEM) vertexAt(offset int) vector.Vec3 {
	return vector.Vec3{X: float64(d.Verts[offset]), Y: float64(d.Verts[offset+1]), Z: float64(d.Verts[offset+2])}
}

// Config holds the per-call numerical parameters shared by all three
// engines, cached by the façade (C8) across calls.
type Config struct {
	PixelPerGC    int
	OffsetGC      int
	DistSearchM   float64 // metres; caller-facing km is converted once by the façade
	SwDirCorMax   float64
	DotProdMin    float64 // cos(deg2rad(ang_max))
	RayOrgElev    float64 // metres, lift applied to the ray origin along the tilted normal
	RefractionCor bool    // only honored by Single
}

// Stats summarizes one correction call for the façade to log.
type Stats struct {
	RaysIssued     uint64
	TotalTriangles uint64
}

// RaysPerTriangle returns the fraction of candidate triangles that
// actually survived both self-shadow culls and were submitted as rays --
// a measure of how effective the cheap culls were before the expensive
// occlusion query.
func (s Stats) RaysPerTriangle() float64 {
	if s.TotalTriangles == 0 {
		return 0
	}
	return float64(s.RaysIssued) / float64(s.TotalTriangles)
}

// triangleEval is the outcome of the shared per-triangle geometric setup:
// a candidate ray plus its pre-computed, pre-occlusion contribution. If
// Valid is false, the triangle failed a self-shadow test and contributes
// 0 without needing an occlusion query at all.
type triangleEval struct {
	Origin, Dir  vector.Vec3
	Contribution float64
	Valid        bool
}

// evalTriangle performs the shared C5/C6/C7 per-triangle geometry: tilted
// and horizontal triangle construction, enlargement factor, sun vector,
// optional refraction, and both self-shadow tests. outerK/outerM and
// innerK/innerM are the outer- and inner-DEM pixel row/col for this
// sub-triangle; n selects lower-left (0) or upper-right (1).
func evalTriangle(outer, inner DEM, outerK, outerM, innerK, innerM, n int, sun vector.Vec3, cfg Config, doRefract bool) triangleEval {
	to := indexer.Triangle(n, outer.Cols, outerK, outerM)
	vt0, vt1, vt2 := outer.vertexAt(to.V0), outer.vertexAt(to.V1), outer.vertexAt(to.V2)
	ct := vector.TriangleCentroid(vt0, vt1, vt2)
	nt, at := vector.TriangleNormalArea(vt0, vt1, vt2)

	origin := ct.Add(nt.Scale(cfg.RayOrgElev))

	io := indexer.Triangle(n, inner.Cols, innerK, innerM)
	vh0, vh1, vh2 := inner.vertexAt(io.V0), inner.vertexAt(io.V1), inner.vertexAt(io.V2)
	nh, ah := vector.TriangleNormalArea(vh0, vh1, vh2)

	f := at / ah

	s := vector.Unit(sun.Sub(origin))
	if doRefract {
		ch := vector.TriangleCentroid(vh0, vh1, vh2)
		elevM := ct.Sub(ch).Norm()
		s = refract.Apply(s, nh, elevM)
	}

	dhs := nh.Dot(s)
	if dhs <= cfg.DotProdMin { // self-shadow, Earth
		return triangleEval{}
	}
	dts := nt.Dot(s) // self-shadow, tilted surface
	if dts <= 0 {
		return triangleEval{}
	}

	contribution := math.Min((dts/dhs)*f, cfg.SwDirCorMax)
	return triangleEval{Origin: origin, Dir: s, Contribution: contribution, Valid: true}
}

// outerPixel maps an inner-DEM pixel (k, m) to its outer-DEM counterpart
// via the fixed offsetGC grid-cell shift (§3).
func outerPixel(k, m, pixelPerGC, offsetGC int) (int, int) {
	shift := pixelPerGC * offsetGC
	return k + shift, m + shift
}

// validateOdd is the §4.7 precondition check for the packet-8 engine.
func validateOdd(pixelPerGC int) error {
	if pixelPerGC%2 != 0 {
		return fmt.Errorf("engine: packet-8 correction requires an even pixel_per_gc, got %d", pixelPerGC)
	}
	return nil
}

// forEachRow runs fn(i) for every row i in [0, numGCY) across
// GOMAXPROCS(0) worker goroutines, each owning a disjoint row stripe, and
// sums the uint64 result of each call into the returned total. Output
// writes inside fn must only ever target row i's own cells, so no
// additional synchronization is required between workers.
func forEachRow(numGCY int, fn func(i int) uint64) uint64 {
	nprocs := runtime.GOMAXPROCS(0)
	if nprocs > numGCY {
		nprocs = numGCY
	}
	if nprocs < 1 {
		nprocs = 1
	}
	var wg sync.WaitGroup
	totals := make([]uint64, nprocs)
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func(p int) {
			defer wg.Done()
			var local uint64
			for i := p; i < numGCY; i += nprocs {
				local += fn(i)
			}
			totals[p] = local
		}(p)
	}
	wg.Wait()
	var total uint64
	for _, t := range totals {
		total += t
	}
	return total
}

// Params bundles everything a correction call needs beyond the
// per-triangle Config: the two DEMs, the aggregation grid shape, the
// mask, and the sun position.
type Params struct {
	Outer, Inner   DEM
	NumGCY, NumGCX int
	Mask           []byte
	Sun            vector.Vec3
	Scene          *scene.Scene
}

func (p Params) numTrianglesPerCell(cfg Config) int {
	return cfg.PixelPerGC * cfg.PixelPerGC * 2
}

func (p Params) cellMasked(i, j int) bool {
	return p.Mask[i*p.NumGCX+j] != 1
}
