package refract

import (
	"testing"

	"github.com/spatialmodel/swdircor/vector"
	"gonum.org/v1/gonum/floats"
)

func TestAtmosRefracOverhead(t *testing.T) {
	// B3: sun exactly overhead, standard pressure/temperature.
	d := AtmosRefrac(90, 10, 101.0)
	if !floats.EqualWithinAbsOrRel(d, 0, 1e-9, 1e-9) {
		t.Errorf("AtmosRefrac(90,...) = %v, want 0", d)
	}
}

func TestAtmosRefracClamping(t *testing.T) {
	below := AtmosRefrac(-5, 10, 101.0)
	atMin := AtmosRefrac(-1, 10, 101.0)
	if below != atMin {
		t.Errorf("AtmosRefrac should clamp elevDeg to -1, got %v vs %v", below, atMin)
	}
	above := AtmosRefrac(95, 10, 101.0)
	atMax := AtmosRefrac(90, 10, 101.0)
	if above != atMax {
		t.Errorf("AtmosRefrac should clamp elevDeg to 90, got %v vs %v", above, atMax)
	}
}

func TestPressureTemperatureAtReference(t *testing.T) {
	p, tk := PressureTemperature(0)
	if !floats.EqualWithinAbsOrRel(p, PRef, 1e-9, 1e-9) {
		t.Errorf("pressure at 0m = %v, want %v", p, PRef)
	}
	if !floats.EqualWithinAbsOrRel(tk, TRef, 1e-9, 1e-9) {
		t.Errorf("temperature at 0m = %v, want %v", tk, TRef)
	}
}

func TestApplyOverheadIsNoOp(t *testing.T) {
	s := vector.Vec3{0, 0, 1}
	nh := vector.Vec3{0, 0, 1}
	got := Apply(s, nh, 0)
	if got != s {
		t.Errorf("Apply with sun overhead should not change s; got %v", got)
	}
}

func TestApplyIncreasesElevationNearHorizon(t *testing.T) {
	// A low sun near the horizon should be bent upward (toward nh) by
	// refraction, increasing the apparent dot product with nh.
	nh := vector.Vec3{0, 0, 1}
	s := vector.Unit(vector.Vec3{1, 0, 0.02})
	apparent := Apply(s, nh, 3000)
	if apparent.Dot(nh) <= s.Dot(nh) {
		t.Errorf("expected refraction to raise apparent sun elevation: before=%v after=%v",
			s.Dot(nh), apparent.Dot(nh))
	}
}
