package engine

import (
	"math"
	"testing"

	"github.com/spatialmodel/swdircor/scene"
	"github.com/spatialmodel/swdircor/vector"
	"gonum.org/v1/gonum/floats"
)

func flatDEM(rows, cols int) []float32 {
	v := make([]float32, rows*cols*3)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			o := (i*cols + j) * 3
			v[o], v[o+1], v[o+2] = float32(j), float32(i), 0
		}
	}
	return v
}

func baseConfig() Config {
	return Config{
		PixelPerGC:  2,
		OffsetGC:    0,
		DistSearchM: 1e7,
		SwDirCorMax: 5,
		DotProdMin:  math.Cos(85 * math.Pi / 180),
		RayOrgElev:  0.1,
	}
}

func buildParams(t *testing.T, rows, cols, pixelPerGC int, mask []byte, sun vector.Vec3) Params {
	t.Helper()
	verts := flatDEM(rows, cols)
	sc, err := scene.Build(verts, rows, cols, scene.Triangle, true, nil)
	if err != nil {
		t.Fatalf("scene.Build: %v", err)
	}
	numGC := (rows - 1) / pixelPerGC
	return Params{
		Outer:  DEM{Verts: verts, Rows: rows, Cols: cols},
		Inner:  DEM{Verts: verts, Rows: rows, Cols: cols},
		NumGCY: numGC,
		NumGCX: numGC,
		Mask:   mask,
		Sun:    sun,
		Scene:  sc,
	}
}

func allOnes(n int) []byte {
	m := make([]byte, n)
	for i := range m {
		m[i] = 1
	}
	return m
}

func TestSingleFlatOverheadSun(t *testing.T) {
	// S1: flat plane, sun overhead -> every cell approx 1.0.
	p := buildParams(t, 3, 3, 2, allOnes(1), vector.Vec3{X: 0, Y: 0, Z: 1e9})
	out := make([]float32, 1)
	Single(p, baseConfig(), out)
	if !floats.EqualWithinAbsOrRel(float64(out[0]), 1.0, 1e-3, 1e-3) {
		t.Errorf("out[0] = %v, want ~1.0", out[0])
	}
}

func TestSingleFlatLowSun(t *testing.T) {
	// S2: flat plane, sun near the horizon -> below ang_max, all 0.
	p := buildParams(t, 3, 3, 2, allOnes(1), vector.Vec3{X: 1e9, Y: 0, Z: 0})
	out := make([]float32, 1)
	Single(p, baseConfig(), out)
	if out[0] != 0 {
		t.Errorf("out[0] = %v, want 0", out[0])
	}
}

func TestSingleMaskedCellIsNaN(t *testing.T) {
	// S4: a single masked cell is exactly NaN; others remain ~1.0.
	mask := allOnes(4)
	mask[1] = 0
	p := buildParams(t, 5, 5, 2, mask, vector.Vec3{X: 0, Y: 0, Z: 1e9})
	out := make([]float32, 4)
	Single(p, baseConfig(), out)
	for i, v := range out {
		if i == 1 {
			if !math.IsNaN(float64(v)) {
				t.Errorf("masked cell out[1] = %v, want NaN", v)
			}
			continue
		}
		if !floats.EqualWithinAbsOrRel(float64(v), 1.0, 1e-3, 1e-3) {
			t.Errorf("out[%d] = %v, want ~1.0", i, v)
		}
	}
}

func TestAllMaskedZeroYieldsAllNaNAndNoRays(t *testing.T) {
	// I5: mask all zero -> output all NaN, zero rays issued.
	mask := make([]byte, 4)
	p := buildParams(t, 5, 5, 2, mask, vector.Vec3{X: 0, Y: 0, Z: 1e9})
	out := make([]float32, 4)
	stats := Single(p, baseConfig(), out)
	if stats.RaysIssued != 0 {
		t.Errorf("RaysIssued = %d, want 0", stats.RaysIssued)
	}
	for i, v := range out {
		if !math.IsNaN(float64(v)) {
			t.Errorf("out[%d] = %v, want NaN", i, v)
		}
	}
}

func TestEnginesAgree(t *testing.T) {
	// I6/S5: Single (no refraction), Coherent, and Packet8 agree.
	sun := vector.Vec3{X: 2, Y: 1, Z: 5}
	cfg := baseConfig()

	outSingle := make([]float32, 4)
	Single(buildParams(t, 5, 5, 2, allOnes(4), sun), cfg, outSingle)

	outCoherent := make([]float32, 4)
	Coherent(buildParams(t, 5, 5, 2, allOnes(4), sun), cfg, outCoherent)

	outPacket := make([]float32, 4)
	if _, err := Packet8(buildParams(t, 5, 5, 2, allOnes(4), sun), cfg, outPacket); err != nil {
		t.Fatalf("Packet8: %v", err)
	}

	for i := range outSingle {
		if !floats.EqualWithinAbsOrRel(float64(outSingle[i]), float64(outCoherent[i]), 1e-5, 1e-5) {
			t.Errorf("cell %d: Single=%v Coherent=%v disagree", i, outSingle[i], outCoherent[i])
		}
		if !floats.EqualWithinAbsOrRel(float64(outSingle[i]), float64(outPacket[i]), 1e-5, 1e-5) {
			t.Errorf("cell %d: Single=%v Packet8=%v disagree", i, outSingle[i], outPacket[i])
		}
	}
}

func TestPacket8RejectsOddPixelPerGC(t *testing.T) {
	cfg := baseConfig()
	cfg.PixelPerGC = 3
	p := buildParams(t, 5, 5, 2, allOnes(4), vector.Vec3{X: 0, Y: 0, Z: 1e9})
	out := make([]float32, 4)
	_, err := Packet8(p, cfg, out)
	if err == nil {
		t.Errorf("expected error for odd pixel_per_gc")
	}
	for _, v := range out {
		if v != 0 {
			t.Errorf("Packet8 must not write output on precondition failure, got %v", v)
		}
	}
}

func TestSinglePixelPerGCOne(t *testing.T) {
	// Regression: pixel_per_gc=1 is explicitly legal per spec.md §6. A 3x3
	// DEM has a 2x2 grid of one-pixel cells -- NumGCY/NumGCX must be
	// (rows-1)/pixel_per_gc, not rows/pixel_per_gc, or the engines index
	// one row/col past the end of the vertex buffer.
	cfg := baseConfig()
	cfg.PixelPerGC = 1
	p := buildParams(t, 3, 3, 1, allOnes(4), vector.Vec3{X: 0, Y: 0, Z: 1e9})
	if p.NumGCY != 2 || p.NumGCX != 2 {
		t.Fatalf("NumGCY/NumGCX = %d/%d, want 2/2", p.NumGCY, p.NumGCX)
	}
	out := make([]float32, 4)
	Single(p, cfg, out)
	for i, v := range out {
		if !floats.EqualWithinAbsOrRel(float64(v), 1.0, 1e-3, 1e-3) {
			t.Errorf("out[%d] = %v, want ~1.0", i, v)
		}
	}
}

func TestContributionClampedToMax(t *testing.T) {
	// I2/I3: lowering sw_dir_cor_max must not raise any cell's output.
	sun := vector.Vec3{X: 0, Y: 0, Z: 1e9}
	cfgLow := baseConfig()
	cfgLow.SwDirCorMax = 0.5
	cfgHigh := baseConfig()
	cfgHigh.SwDirCorMax = 5

	outLow := make([]float32, 1)
	Single(buildParams(t, 3, 3, 2, allOnes(1), sun), cfgLow, outLow)
	outHigh := make([]float32, 1)
	Single(buildParams(t, 3, 3, 2, allOnes(1), sun), cfgHigh, outHigh)

	if outLow[0] > outHigh[0] {
		t.Errorf("raising sw_dir_cor_max should not lower output: low=%v high=%v", outLow[0], outHigh[0])
	}
	if float64(outLow[0]) > cfgLow.SwDirCorMax {
		t.Errorf("output %v exceeds sw_dir_cor_max %v", outLow[0], cfgLow.SwDirCorMax)
	}
}
