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

// Package scene builds a bounding-volume-hierarchy-backed occlusion scene
// over an outer DEM and answers shadow-ray queries against it. The
// geometry it indexes is shared (zero-copy) with the caller's vertex
// buffer, following the same "alias, don't copy" discipline the teacher
// uses for met-data arrays in io.go.
//
// The BVH here is grounded on the squared-distance/bounds arithmetic in
// github.com/ctessum/geom/index/rtree (a 2-D nearest-neighbour R-tree),
// generalized from 2 axes to 3 and from point queries to ray/AABB slab
// tests, since that package only ships 2-D geometry and has no ray
// intersection of its own.
package scene

import (
	"fmt"
	"time"

	"github.com/spatialmodel/swdircor/indexer"
	"github.com/spatialmodel/swdircor/vector"
)

// GeometryType selects how the outer DEM is presented to the occlusion
// backend.
type GeometryType int

const (
	// Triangle emits one explicit triangle primitive per DEM sub-triangle.
	Triangle GeometryType = iota
	// Quad emits one quadrilateral primitive per DEM pixel.
	Quad
	// Grid emits a single grid primitive descriptor spanning the whole DEM.
	Grid
)

// ParseGeometryType maps a configuration string to a GeometryType. Any
// value other than "triangle" or "quad" defaults to Grid, matching the
// source behavior documented in the external interface.
func ParseGeometryType(s string) GeometryType {
	switch s {
	case "triangle":
		return Triangle
	case "quad":
		return Quad
	default:
		return Grid
	}
}

func (g GeometryType) String() string {
	switch g {
	case Triangle:
		return "triangle"
	case Quad:
		return "quad"
	default:
		return "grid"
	}
}

// ErrorCallback is invoked once, at most, if scene construction fails
// (device/BVH allocation failure). Per §7, subsequent operations on a
// scene that failed to build are undefined; callers that need strict
// failure detection should check the error returned by Build.
type ErrorCallback func(err error)

// Stats summarizes the scene that was built, for the façade to log.
type Stats struct {
	Mode           GeometryType
	Rows, Cols     int
	VertexCount    int
	PrimitiveCount int
	TriangleCount  int // actual ray-testable triangle count, regardless of mode
	BuildTime      time.Duration
}

// pixelPrimitive is one BVH leaf-level primitive: either a single DEM
// sub-triangle (Triangle mode) or a whole DEM pixel, tested as its two
// constituent sub-triangles (Quad and Grid modes). Unifying the
// traversal over both shapes keeps the BVH itself mode-agnostic, the way
// the spec's three geometry modes are meant to produce the same
// occlusion answers (§9 Open Questions).
type pixelPrimitive struct {
	row, col int
	n        int8 // 0 or 1 for Triangle mode; unused (both tested) otherwise
	bothTris bool
}

// Scene is a BVH-backed occlusion scene over an outer DEM vertex buffer.
type Scene struct {
	verts      []float32 // shared with the caller; never copied
	rows, cols int
	mode       GeometryType
	robust     bool
	prims      []pixelPrimitive
	tree       *bvh
	stats      Stats
}

// Build constructs a Scene over a (rows x cols) row-major vertex buffer,
// in the given geometry mode. The vertex buffer is aliased, not copied:
// its lifetime must outlive the Scene. robust enables conservative
// (epsilon-widened) ray/AABB tests, mirroring Embree's "robust" scene
// flag. onError, if non-nil, is invoked if the BVH cannot be built.
func Build(verts []float32, rows, cols int, mode GeometryType, robust bool, onError ErrorCallback) (*Scene, error) {
	start := time.Now()
	if rows < 2 || cols < 2 {
		err := fmt.Errorf("scene: DEM must be at least 2x2 vertices, got %dx%d", rows, cols)
		if onError != nil {
			onError(err)
		}
		return nil, err
	}
	if len(verts) < rows*cols*3 {
		err := fmt.Errorf("scene: vertex buffer too short: have %d floats, need %d", len(verts), rows*cols*3)
		if onError != nil {
			onError(err)
		}
		return nil, err
	}

	s := &Scene{
		verts:  verts,
		rows:   rows,
		cols:   cols,
		mode:   mode,
		robust: robust,
	}

	switch mode {
	case Triangle:
		s.prims = make([]pixelPrimitive, 0, (rows-1)*(cols-1)*2)
		for i := 0; i < rows-1; i++ {
			for j := 0; j < cols-1; j++ {
				s.prims = append(s.prims,
					pixelPrimitive{row: i, col: j, n: 0},
					pixelPrimitive{row: i, col: j, n: 1})
			}
		}
	default: // Quad and Grid both index whole pixels as a BVH primitive.
		s.prims = make([]pixelPrimitive, 0, (rows-1)*(cols-1))
		for i := 0; i < rows-1; i++ {
			for j := 0; j < cols-1; j++ {
				s.prims = append(s.prims, pixelPrimitive{row: i, col: j, bothTris: true})
			}
		}
	}

	s.tree = buildBVH(s, s.prims)

	s.stats = Stats{
		Mode:          mode,
		Rows:          rows,
		Cols:          cols,
		VertexCount:   rows * cols,
		TriangleCount: (rows - 1) * (cols - 1) * 2,
		BuildTime:     time.Since(start),
	}
	switch mode {
	case Triangle:
		s.stats.PrimitiveCount = (rows - 1) * (cols - 1) * 2
	case Quad:
		s.stats.PrimitiveCount = (rows - 1) * (cols - 1)
	case Grid:
		// A single grid primitive descriptor (startVertexID=0, stride=cols,
		// width=cols, height=rows), as reported by the source engine; the
		// BVH underneath still indexes per-pixel for tractable traversal.
		s.stats.PrimitiveCount = 1
	}
	return s, nil
}

// Stats returns the statistics recorded when the scene was built.
func (s *Scene) Stats() Stats { return s.stats }

func (s *Scene) vertexAt(offset int) vector.Vec3 {
	return vector.Vec3{
		X: float64(s.verts[offset]),
		Y: float64(s.verts[offset+1]),
		Z: float64(s.verts[offset+2]),
	}
}

// triangles returns the one or two triangles making up primitive p.
func (s *Scene) triangles(p pixelPrimitive) [][3]vector.Vec3 {
	if !p.bothTris {
		o := indexer.Triangle(int(p.n), s.cols, p.row, p.col)
		return [][3]vector.Vec3{{s.vertexAt(o.V0), s.vertexAt(o.V1), s.vertexAt(o.V2)}}
	}
	o0 := indexer.Triangle(0, s.cols, p.row, p.col)
	o1 := indexer.Triangle(1, s.cols, p.row, p.col)
	return [][3]vector.Vec3{
		{s.vertexAt(o0.V0), s.vertexAt(o0.V1), s.vertexAt(o0.V2)},
		{s.vertexAt(o1.V0), s.vertexAt(o1.V1), s.vertexAt(o1.V2)},
	}
}

func (s *Scene) boundsOf(p pixelPrimitive) bounds3 {
	b := emptyBounds()
	for _, tri := range s.triangles(p) {
		b.extend(tri[0])
		b.extend(tri[1])
		b.extend(tri[2])
	}
	return b
}

// robustEpsilon returns the conservative slab-test widening used when the
// scene was built with robust=true, proportional to the scene extent.
func (s *Scene) robustEpsilon() float64 {
	if !s.robust {
		return 0
	}
	return 1e-9 * (1 + s.tree.root().bounds.diagonal())
}
