package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spatialmodel/swdircor/vector"
)

// flatDEM builds a flat (z=0) rows x cols grid of unit-spaced vertices.
func flatDEM(rows, cols int) []float32 {
	verts := make([]float32, rows*cols*3)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			o := (i*cols + j) * 3
			verts[o] = float32(j)
			verts[o+1] = float32(i)
			verts[o+2] = 0
		}
	}
	return verts
}

// ridgeDEM is a flat grid except for one elevated row in the middle,
// forming a ridge that can occlude a low sun.
func ridgeDEM(rows, cols int, ridgeRow int, height float32) []float32 {
	verts := flatDEM(rows, cols)
	for j := 0; j < cols; j++ {
		o := (ridgeRow*cols + j) * 3
		verts[o+2] = height
	}
	return verts
}

func TestBuildRejectsTinyDEM(t *testing.T) {
	if _, err := Build(make([]float32, 3), 1, 1, Triangle, true, nil); err == nil {
		t.Errorf("expected error building scene from a 1x1 DEM")
	}
}

func TestBuildStatsTriangleMode(t *testing.T) {
	verts := flatDEM(5, 5)
	s, err := Build(verts, 5, 5, Triangle, true, nil)
	require.NoError(t, err)
	st := s.Stats()
	assert.Equal(t, 25, st.VertexCount)
	assert.Equal(t, 32, st.PrimitiveCount) // 4*4*2
}

func TestBuildStatsGridMode(t *testing.T) {
	verts := flatDEM(5, 5)
	s, err := Build(verts, 5, 5, Grid, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats().PrimitiveCount)
}

func TestOcclusionRoundTrip(t *testing.T) {
	// A ridge at row 5 of an 11x11 flat grid. A point above the terrain,
	// on the near (low row) side, looking toward +y (across the ridge)
	// should be occluded; looking toward -y (away from the ridge, open
	// sky) should not be.
	verts := ridgeDEM(11, 11, 5, 10)
	s, err := Build(verts, 11, 11, Triangle, true, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	origin := vector.Vec3{X: 5, Y: 2, Z: 0.5}
	towardRidge := vector.Unit(vector.Vec3{X: 0, Y: 1, Z: 0.05})
	awayFromRidge := vector.Unit(vector.Vec3{X: 0, Y: -1, Z: 0.05})

	hitRay := &Ray{Org: origin, Dir: towardRidge, Tnear: 0.01, Tfar: 100}
	s.Occluded1(hitRay)
	if !hitRay.Hit() {
		t.Errorf("expected ray toward ridge to be occluded")
	}

	missRay := &Ray{Org: origin, Dir: awayFromRidge, Tnear: 0.01, Tfar: 100}
	s.Occluded1(missRay)
	if missRay.Hit() {
		t.Errorf("expected ray away from ridge (open sky) not to be occluded")
	}
}

func TestOccluded1MAgreesWithOccluded1(t *testing.T) {
	verts := ridgeDEM(11, 11, 5, 10)
	s, _ := Build(verts, 11, 11, Triangle, true, nil)

	origin := vector.Vec3{X: 5, Y: 2, Z: 0.5}
	dirs := []vector.Vec3{
		vector.Unit(vector.Vec3{X: 0, Y: 1, Z: 0.05}),
		vector.Unit(vector.Vec3{X: 0, Y: -1, Z: 0.05}),
		vector.Unit(vector.Vec3{X: 0, Y: 1, Z: 5}),
	}
	batch := make([]*Ray, len(dirs))
	singles := make([]*Ray, len(dirs))
	for i, d := range dirs {
		batch[i] = &Ray{Org: origin, Dir: d, Tnear: 0.01, Tfar: 100}
		singles[i] = &Ray{Org: origin, Dir: d, Tnear: 0.01, Tfar: 100}
	}
	s.Occluded1M(batch)
	for i := range singles {
		s.Occluded1(singles[i])
		if batch[i].Hit() != singles[i].Hit() {
			t.Errorf("ray %d: Occluded1M hit=%v, Occluded1 hit=%v", i, batch[i].Hit(), singles[i].Hit())
		}
	}
}

func TestOccluded8MaskRespectsInactiveLanes(t *testing.T) {
	verts := ridgeDEM(11, 11, 5, 10)
	s, _ := Build(verts, 11, 11, Triangle, true, nil)
	origin := vector.Vec3{X: 5, Y: 2, Z: 0.5}
	toward := vector.Unit(vector.Vec3{X: 0, Y: 1, Z: 0.05})

	var rays Ray8
	var mask [8]int32
	for i := 0; i < 8; i++ {
		rays.Org[i] = origin
		rays.Dir[i] = toward
		rays.Tnear[i] = 0.01
		rays.Tfar[i] = 100
		if i%2 == 0 {
			mask[i] = -1
		} else {
			mask[i] = 0
		}
	}
	s.Occluded8(mask, &rays)
	for i := 0; i < 8; i++ {
		hit := rays.Tfar[i] <= 0
		if i%2 == 0 && !hit {
			t.Errorf("lane %d: active lane should be occluded", i)
		}
		if i%2 == 1 && hit {
			t.Errorf("lane %d: inactive lane should be untouched", i)
		}
	}
}

func TestGeometryModesAgreeOnOcclusion(t *testing.T) {
	// Supplemented feature: cross-check that triangle/quad/grid modes
	// produce the same any-hit answer over the same DEM (§9 Open
	// Questions). This holds by construction here since all three modes
	// route through the same per-pixel triangle test.
	verts := ridgeDEM(11, 11, 5, 10)
	origin := vector.Vec3{X: 5, Y: 2, Z: 0.5}
	dir := vector.Unit(vector.Vec3{X: 0, Y: 1, Z: 0.05})

	for _, mode := range []GeometryType{Triangle, Quad, Grid} {
		s, err := Build(verts, 11, 11, mode, true, nil)
		if err != nil {
			t.Fatalf("Build(%v): %v", mode, err)
		}
		r := &Ray{Org: origin, Dir: dir, Tnear: 0.01, Tfar: 100}
		s.Occluded1(r)
		if !r.Hit() {
			t.Errorf("mode %v: expected occlusion by ridge", mode)
		}
	}
}

func TestParseGeometryType(t *testing.T) {
	cases := map[string]GeometryType{
		"triangle": Triangle,
		"quad":     Quad,
		"grid":     Grid,
		"bogus":    Grid,
		"":         Grid,
	}
	for in, want := range cases {
		if got := ParseGeometryType(in); got != want {
			t.Errorf("ParseGeometryType(%q) = %v, want %v", in, got, want)
		}
	}
}
