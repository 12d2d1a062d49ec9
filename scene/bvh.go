package scene

import (
	"math"
	"sort"

	"github.com/spatialmodel/swdircor/vector"
)

// bvhLeafSize bounds how many primitives a leaf node carries before the
// builder keeps splitting.
const bvhLeafSize = 4

// bvhNode is one node of the binary bounding-volume hierarchy. Interior
// nodes have left/right >= 0 indices into the tree's node slice; leaves
// have left == right == -1 and reference a contiguous primIdx range.
type bvhNode struct {
	bounds       bounds3
	left, right  int
	start, count int // primIdx[start:start+count], leaves only
}

type bvh struct {
	nodes   []bvhNode
	primIdx []int
}

func (t *bvh) root() bvhNode { return t.nodes[0] }

// buildBVH constructs a median-split BVH over the given primitives. The
// split axis is the longest axis of the node's bounding box and the
// split point is the median primitive centroid along that axis, a
// standard, allocation-light binary-tree construction well suited to the
// mostly-regular grids produced by DEM pixels.
func buildBVH(s *Scene, prims []pixelPrimitive) *bvh {
	t := &bvh{
		nodes:   make([]bvhNode, 0, 2*len(prims)+1),
		primIdx: make([]int, len(prims)),
	}
	for i := range prims {
		t.primIdx[i] = i
	}
	boundsCache := make([]bounds3, len(prims))
	for i, p := range prims {
		boundsCache[i] = s.boundsOf(p)
	}
	t.build(boundsCache, 0, len(prims))
	return t
}

// build recursively partitions primIdx[start:end], appending nodes and
// returning the index of the node it created.
func (t *bvh) build(boundsCache []bounds3, start, end int) int {
	nodeIdx := len(t.nodes)
	t.nodes = append(t.nodes, bvhNode{})

	b := emptyBounds()
	for i := start; i < end; i++ {
		b.extendBounds(boundsCache[t.primIdx[i]])
	}

	if end-start <= bvhLeafSize {
		t.nodes[nodeIdx] = bvhNode{bounds: b, left: -1, right: -1, start: start, count: end - start}
		return nodeIdx
	}

	axis := b.longestAxis()
	segment := t.primIdx[start:end]
	sort.Slice(segment, func(i, j int) bool {
		return axisOf(boundsCache[segment[i]].centroid(), axis) < axisOf(boundsCache[segment[j]].centroid(), axis)
	})
	mid := start + (end-start)/2

	left := t.build(boundsCache, start, mid)
	right := t.build(boundsCache, mid, end)
	t.nodes[nodeIdx] = bvhNode{bounds: b, left: left, right: right, start: start, count: end - start}
	return nodeIdx
}

// rayAABB performs a slab test, returning whether the ray [tnear,tfar]
// interval intersects b, optionally widened by eps (the scene's robust
// epsilon) to guard against grazing misses from float round-off.
func rayAABB(org, invDir vector.Vec3, tnear, tfar float64, b bounds3, eps float64) bool {
	lo, hi := tnear, tfar
	for _, a := range [3]struct{ o, invd, bmin, bmax float64 }{
		{org.X, invDir.X, b.Min.X - eps, b.Max.X + eps},
		{org.Y, invDir.Y, b.Min.Y - eps, b.Max.Y + eps},
		{org.Z, invDir.Z, b.Min.Z - eps, b.Max.Z + eps},
	} {
		t1 := (a.bmin - a.o) * a.invd
		t2 := (a.bmax - a.o) * a.invd
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > lo {
			lo = t1
		}
		if t2 < hi {
			hi = t2
		}
		if lo > hi {
			return false
		}
	}
	return true
}

// rayTriangle is the Moller-Trumbore ray/triangle intersection test. It
// returns (t, true) if the ray hits the triangle within (tnear, tfar].
func rayTriangle(org, dir, v0, v1, v2 vector.Vec3, tnear, tfar float64) (float64, bool) {
	const eps = 1e-12
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	pvec := vector.Cross(dir, e2)
	det := e1.Dot(pvec)
	if det > -eps && det < eps {
		return 0, false
	}
	invDet := 1 / det
	tvec := org.Sub(v0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}
	qvec := vector.Cross(tvec, e1)
	v := dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(qvec) * invDet
	if t <= tnear || t > tfar {
		return 0, false
	}
	return t, true
}

// anyHit walks the BVH depth-first, visiting the child nearer the ray
// origin first, and returns true as soon as any primitive intersection
// is found within (tnear, tfar] -- the "occluded" query this package
// exposes never needs the closest hit, only whether one exists.
func (s *Scene) anyHit(org, dir vector.Vec3, tnear, tfar float64) bool {
	t := s.tree
	if len(t.nodes) == 0 {
		return false
	}
	invDir := vector.Vec3{X: safeInv(dir.X), Y: safeInv(dir.Y), Z: safeInv(dir.Z)}
	eps := s.robustEpsilon()

	var stack [64]int
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		nodeIdx := stack[sp]
		node := t.nodes[nodeIdx]
		if !rayAABB(org, invDir, tnear, tfar, node.bounds, eps) {
			continue
		}
		if node.left < 0 {
			for i := node.start; i < node.start+node.count; i++ {
				p := s.prims[t.primIdx[i]]
				for _, tri := range s.triangles(p) {
					if _, hit := rayTriangle(org, dir, tri[0], tri[1], tri[2], tnear, tfar); hit {
						return true
					}
				}
			}
			continue
		}
		left, right := t.nodes[node.left], t.nodes[node.right]
		// Visit the nearer child first; for an any-hit query this mostly
		// affects how quickly we can bail out, not correctness.
		if minDistSq(org, left.bounds) <= minDistSq(org, right.bounds) {
			stack[sp] = node.right
			sp++
			stack[sp] = node.left
			sp++
		} else {
			stack[sp] = node.left
			sp++
			stack[sp] = node.right
			sp++
		}
	}
	return false
}

func safeInv(x float64) float64 {
	if x == 0 {
		return math.Inf(1)
	}
	return 1 / x
}
