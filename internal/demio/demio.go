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

// Package demio is the file-I/O and array-marshalling collaborator the
// core treats as external (§1): it reads DEM vertex buffers, masks, and
// sun-position series off disk and hands the core nothing but plain
// []float32 vertex buffers and [3]float64 sun positions, matching the
// core's documented input contract exactly.
//
// It follows the teacher's io.go/preproc.go division of labor (file
// reading and array marshalling live outside the scientific core) and
// its resilience style: cloud/client.go retries transient failures with
// github.com/cenkalti/backoff, which this package reuses for DEM reads
// since mounted/network filesystems can surface transient errors that a
// bare os.Open would treat as fatal.
package demio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cenkalti/backoff"
	"github.com/ctessum/geom"

	sparse "bitbucket.org/ctessum/sparse"
)

// VertexGrid is a DEM vertex buffer: rows*cols vertices, row-major, each
// 3 float32 components (x, y, z in ENU metres). Verts is shared directly
// with the scene/engine packages; it is never copied after loading.
type VertexGrid struct {
	Verts      []float32
	Rows, Cols int
}

// retryPolicy bounds how long a DEM/mask read will retry transient I/O
// errors before giving up, matching the backoff defaults the teacher
// uses for its cloud job-status polling in cloud/client.go.
func retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	return b
}

// readAllRetrying reads the whole contents of path, retrying transient
// open/read failures.
func readAllRetrying(path string) ([]byte, error) {
	var data []byte
	op := func() error {
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer f.Close()
		data, err = io.ReadAll(bufio.NewReader(f))
		return err
	}
	if err := backoff.Retry(op, retryPolicy()); err != nil {
		return nil, fmt.Errorf("demio: reading %s: %w", path, err)
	}
	return data, nil
}

// LoadVertexGrid reads a (rows x cols) row-major grid of little-endian
// float32 (x,y,z) vertices from a flat binary file.
func LoadVertexGrid(path string, rows, cols int) (*VertexGrid, error) {
	data, err := readAllRetrying(path)
	if err != nil {
		return nil, err
	}
	want := rows * cols * 3 * 4
	if len(data) != want {
		return nil, fmt.Errorf("demio: %s has %d bytes, want %d for a %dx%d vertex grid",
			path, len(data), want, rows, cols)
	}
	verts := make([]float32, rows*cols*3)
	for i := range verts {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		verts[i] = math.Float32frombits(bits)
	}
	return &VertexGrid{Verts: verts, Rows: rows, Cols: cols}, nil
}

// Footprint returns the (x, y) bounding box of the DEM, using
// github.com/ctessum/geom's Bounds/Point types the way the teacher
// reports grid extents throughout its shapefile and grid-building code.
func Footprint(g *VertexGrid) *geom.Bounds {
	b := geom.NewBounds()
	for i := 0; i < len(g.Verts); i += 3 {
		pt := geom.Point{X: float64(g.Verts[i]), Y: float64(g.Verts[i+1])}
		b.Extend(pt.Bounds())
	}
	return b
}

// Mask loads a byte mask of length n (1 = process, anything else =
// masked) from a flat binary file, backed by a sparse.DenseArrayInt for
// bounds-checked access and a cheap processed-cell count.
type Mask struct {
	arr  *sparse.DenseArrayInt
	rows int
	cols int
}

// LoadMask reads a (rows x cols) mask from path, one byte per cell.
func LoadMask(path string, rows, cols int) (*Mask, error) {
	data, err := readAllRetrying(path)
	if err != nil {
		return nil, err
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("demio: mask %s has %d bytes, want %d", path, len(data), rows*cols)
	}
	arr := sparse.ZerosDenseInt(rows, cols)
	for i, b := range data {
		if b == 1 {
			arr.Elements[i] = 1
		}
	}
	return &Mask{arr: arr, rows: rows, cols: cols}, nil
}

// Bytes returns the mask as the flat []byte the engine package expects.
func (m *Mask) Bytes() []byte {
	out := make([]byte, len(m.arr.Elements))
	for i, v := range m.arr.Elements {
		if v == 1 {
			out[i] = 1
		}
	}
	return out
}

// ProcessedCells returns the number of cells marked for processing.
func (m *Mask) ProcessedCells() int {
	n := 0
	for _, v := range m.arr.Elements {
		if v == 1 {
			n++
		}
	}
	return n
}

// SunPosition is one ENU sun position, in metres.
type SunPosition struct {
	X, Y, Z float64
}

// sunPositionFile is the on-disk TOML shape LoadSunPositions decodes.
type sunPositionFile struct {
	Sun []SunPosition
}

// LoadSunPositions reads a TOML file of ENU sun positions, one table per
// position, e.g.:
//
//	[[sun]]
//	X = 1000.0
//	Y = 500.0
//	Z = 20000.0
//
// This is the supplemented loader that hands the façade the "[3]double
// sun position" buffers its external interface expects; the core never
// derives sun positions itself.
func LoadSunPositions(path string) ([]SunPosition, error) {
	var f sunPositionFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("demio: decoding sun positions %s: %w", path, err)
	}
	if len(f.Sun) == 0 {
		return nil, fmt.Errorf("demio: %s defines no [[sun]] positions", path)
	}
	return f.Sun, nil
}

// WriteOutput writes a []float32 cell grid to path as flat little-endian
// binary, the counterpart of LoadVertexGrid/LoadMask.
func WriteOutput(path string, out []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("demio: creating %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	buf := make([]byte, 4)
	for _, v := range out {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("demio: writing %s: %w", path, err)
		}
	}
	return w.Flush()
}
