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

// Package indexer maps a DEM pixel (row, col) and a sub-triangle id (0 or
// 1) to the three vertex offsets of that triangle within a shared,
// row-major vertex buffer. A pixel spans vertices (i,j), (i,j+1),
// (i+1,j+1), (i+1,j) and splits into a lower-left triangle (id 0) and an
// upper-right triangle (id 1).
package indexer

// Offsets holds the flat float-buffer offsets (index of the first of the
// 3 contiguous x,y,z floats) of a triangle's three vertices.
type Offsets struct {
	V0, V1, V2 int
}

// vertexOffset returns the offset of vertex (row, col) within a row-major
// buffer with the given column count.
func vertexOffset(cols, row, col int) int {
	return (row*cols + col) * 3
}

// triLL returns the offsets of the lower-left triangle {(i,j), (i,j+1),
// (i+1,j)} of pixel (i,j).
func triLL(cols, i, j int) Offsets {
	return Offsets{
		V0: vertexOffset(cols, i, j),
		V1: vertexOffset(cols, i, j+1),
		V2: vertexOffset(cols, i+1, j),
	}
}

// triUR returns the offsets of the upper-right triangle {(i,j+1),
// (i+1,j+1), (i+1,j)} of pixel (i,j).
func triUR(cols, i, j int) Offsets {
	return Offsets{
		V0: vertexOffset(cols, i, j+1),
		V1: vertexOffset(cols, i+1, j+1),
		V2: vertexOffset(cols, i+1, j),
	}
}

// dispatch is the two-entry table keyed by sub-triangle id, letting the
// per-pixel loop advance through both sub-triangles uniformly.
var dispatch = [2]func(cols, i, j int) Offsets{triLL, triUR}

// Triangle returns the vertex offsets of sub-triangle n (0 = lower-left,
// 1 = upper-right) of pixel (i,j) in a buffer with the given column
// count. n must be 0 or 1.
func Triangle(n, cols, i, j int) Offsets {
	return dispatch[n](cols, i, j)
}
