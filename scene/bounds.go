package scene

import (
	"math"

	"github.com/spatialmodel/swdircor/vector"
)

// bounds3 is an axis-aligned bounding box in 3 dimensions. It follows the
// same Min/Max-point, Extend-to-grow idiom as github.com/ctessum/geom's
// 2-D Bounds type, generalized to a third axis.
type bounds3 struct {
	Min, Max vector.Vec3
}

func emptyBounds() bounds3 {
	return bounds3{
		Min: vector.Vec3{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)},
		Max: vector.Vec3{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)},
	}
}

func (b *bounds3) extend(p vector.Vec3) {
	b.Min.X, b.Max.X = math.Min(b.Min.X, p.X), math.Max(b.Max.X, p.X)
	b.Min.Y, b.Max.Y = math.Min(b.Min.Y, p.Y), math.Max(b.Max.Y, p.Y)
	b.Min.Z, b.Max.Z = math.Min(b.Min.Z, p.Z), math.Max(b.Max.Z, p.Z)
}

func (b *bounds3) extendBounds(o bounds3) {
	b.extend(o.Min)
	b.extend(o.Max)
}

func (b bounds3) centroid() vector.Vec3 {
	return vector.Vec3{
		X: 0.5 * (b.Min.X + b.Max.X),
		Y: 0.5 * (b.Min.Y + b.Max.Y),
		Z: 0.5 * (b.Min.Z + b.Max.Z),
	}
}

func (b bounds3) diagonal() float64 {
	return vector.Vec3{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y, Z: b.Max.Z - b.Min.Z}.Norm()
}

// longestAxis returns 0, 1, or 2 for X, Y, Z.
func (b bounds3) longestAxis() int {
	d := vector.Vec3{X: b.Max.X - b.Min.X, Y: b.Max.Y - b.Min.Y, Z: b.Max.Z - b.Min.Z}
	axis := 0
	longest := d.X
	if d.Y > longest {
		axis, longest = 1, d.Y
	}
	if d.Z > longest {
		axis = 2
	}
	return axis
}

func axisOf(v vector.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// minDistSq computes the squared distance from ray origin o to bounds b, 0
// if o is inside b. Same definition as
// github.com/ctessum/geom/index/rtree's minDist, generalized to 3 axes;
// used here to order BVH child traversal by nearness rather than, as in
// the 2-D R-tree, to prioritize nearest-neighbour search.
func minDistSq(o vector.Vec3, b bounds3) float64 {
	sum := 0.0
	for _, a := range [3]struct{ p, lo, hi float64 }{
		{o.X, b.Min.X, b.Max.X},
		{o.Y, b.Min.Y, b.Max.Y},
		{o.Z, b.Min.Z, b.Max.Z},
	} {
		if a.p < a.lo {
			d := a.p - a.lo
			sum += d * d
		} else if a.p > a.hi {
			d := a.p - a.hi
			sum += d * d
		}
	}
	return sum
}
