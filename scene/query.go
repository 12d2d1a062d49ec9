package scene

import (
	"math"

	"github.com/spatialmodel/swdircor/vector"
)

// Ray is a single occlusion query. Org and Dir are in the same ENU frame
// as the scene's vertex buffer; Tnear/Tfar bound the search interval in
// metres. Occluded1 (and the batch/packet variants) set Tfar to -Inf if
// the ray hits anything in (Tnear, Tfar]; they leave Tfar untouched on a
// miss, matching Embree's occluded-query convention that this package
// mirrors.
type Ray struct {
	Org, Dir    vector.Vec3
	Tnear, Tfar float64
}

// Hit reports whether the ray was marked as occluded by a prior query.
func (r *Ray) Hit() bool { return r.Tfar <= 0 }

// Occluded1 issues a single shadow-ray query against the scene.
func (s *Scene) Occluded1(r *Ray) {
	if s.anyHit(r.Org, r.Dir, r.Tnear, r.Tfar) {
		r.Tfar = math.Inf(-1)
	}
}

// Occluded1M issues a coherent batch of N independent shadow-ray
// queries. The "coherence" Embree exploits is a SIMD/traversal-order
// optimization with no observable effect on results; this package
// preserves the API shape (one call site, N rays) without claiming a
// SIMD speedup, since Go has no portable ray-packet intrinsic to exploit.
func (s *Scene) Occluded1M(rays []*Ray) {
	for _, r := range rays {
		s.Occluded1(r)
	}
}

// Ray8 is a fixed-width packet of 8 rays sharing a single call site, with
// per-lane activity controlled by a mask (-1 active, 0 inactive), as in
// Embree's RTCRay8.
type Ray8 struct {
	Org, Dir    [8]vector.Vec3
	Tnear, Tfar [8]float64
}

// Occluded8 issues an 8-wide occlusion query. Only lanes with mask[i] ==
// -1 are tested; inactive lanes are left untouched.
func (s *Scene) Occluded8(mask [8]int32, r *Ray8) {
	for i := 0; i < 8; i++ {
		if mask[i] != -1 {
			continue
		}
		if s.anyHit(r.Org[i], r.Dir[i], r.Tnear[i], r.Tfar[i]) {
			r.Tfar[i] = math.Inf(-1)
		}
	}
}
