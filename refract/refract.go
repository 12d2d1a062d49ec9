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

// Package refract implements the Saemundsson atmospheric refraction
// correction applied to the apparent solar elevation, and the
// barometric-pressure model used to derive pressure and temperature from
// terrain elevation above the reference surface. The barometric closed
// form here follows the same "named physical constants feeding a
// closed-form function" shape as the teacher's atmos/seinfeld package.
package refract

import (
	"math"

	"github.com/spatialmodel/swdircor/vector"
)

// Standard-atmosphere constants used to derive pressure and temperature
// at a given elevation above the reference surface.
const (
	TRef           = 283.15 // K, reference temperature at the reference surface
	PRef           = 101.0  // kPa, reference pressure at the reference surface
	Lapse          = 0.0065 // K/m, standard lapse rate
	Gravity        = 9.81   // m/s^2
	GasConstDryAir = 287.0  // J/(kg*K)
)

// barometricExponent is g/(R_d*L).
func barometricExponent() float64 {
	return Gravity / (GasConstDryAir * Lapse)
}

// AtmosRefrac returns the Saemundsson refraction correction, in degrees,
// for a true elevation angle elevDeg (degrees), ambient temperature tempC
// (Celsius) and barometric pressure pKPa (kilopascals).
func AtmosRefrac(elevDeg, tempC, pKPa float64) float64 {
	if elevDeg < -1 {
		elevDeg = -1
	} else if elevDeg > 90 {
		elevDeg = 90
	}
	r := 1.02 / math.Tan(deg2rad(elevDeg+10.3/(elevDeg+5.11)))
	r += 0.0019279 // so that r(90deg) == 0
	r *= (pKPa / 101.0) * (283.0 / (273.0 + tempC))
	return r / 60.0 // arc-minutes -> degrees
}

// PressureTemperature returns the barometric pressure (kPa) and
// temperature (K) at elevM metres above the reference surface, using the
// standard-atmosphere lapse-rate model.
func PressureTemperature(elevM float64) (pKPa, tK float64) {
	tK = TRef - Lapse*elevM
	pKPa = PRef * math.Pow(tK/TRef, barometricExponent())
	return pKPa, tK
}

// Apply bends the unit sun vector s toward the apparent position implied
// by atmospheric refraction, given the horizontal-triangle unit normal nh
// and the elevation (metres) of the tilted triangle's centroid above the
// reference (horizontal) triangle's centroid. It returns the apparent sun
// vector; the normal nh is never modified by refraction.
func Apply(s, nh vector.Vec3, elevM float64) vector.Vec3 {
	pKPa, tK := PressureTemperature(elevM)
	dhs := nh.Dot(s)
	thetaTrue := 90 - rad2deg(math.Acos(clampUnit(dhs)))
	delta := AtmosRefrac(thetaTrue, tK-273.15, pKPa)

	axisRaw := vector.Cross(s, nh)
	if axisRaw.Norm() == 0 {
		// s and nh are parallel (sun directly overhead): no well-defined
		// rotation axis, and refraction at 90 degrees is zero anyway.
		return s
	}
	axis := vector.Unit(axisRaw)
	return vector.Rotate(axis, deg2rad(delta), s)
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }
