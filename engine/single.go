package engine

import (
	"math"

	"github.com/spatialmodel/swdircor/scene"
)

// Single implements C5: the single-ray engine. For each unmasked cell it
// issues one occlusion query per candidate triangle, accumulating the
// clipped per-triangle contribution. It is the only engine that supports
// atmospheric refraction (cfg.RefractionCor).
func Single(p Params, cfg Config, out []float32) Stats {
	numTri := p.numTrianglesPerCell(cfg)
	unmasked := countUnmasked(p.Mask)

	rays := forEachRow(p.NumGCY, func(i int) uint64 {
		var localRays uint64
		for j := 0; j < p.NumGCX; j++ {
			idx := i*p.NumGCX + j
			if p.cellMasked(i, j) {
				out[idx] = float32(math.NaN())
				continue
			}
			var acc float64
			for kk := 0; kk < cfg.PixelPerGC; kk++ {
				for mm := 0; mm < cfg.PixelPerGC; mm++ {
					k := i*cfg.PixelPerGC + kk
					m := j*cfg.PixelPerGC + mm
					outerK, outerM := outerPixel(k, m, cfg.PixelPerGC, cfg.OffsetGC)
					for n := 0; n < 2; n++ {
						ev := evalTriangle(p.Outer, p.Inner, outerK, outerM, k, m, n, p.Sun, cfg, cfg.RefractionCor)
						if !ev.Valid {
							continue
						}
						ray := &scene.Ray{Org: ev.Origin, Dir: ev.Dir, Tnear: 0, Tfar: cfg.DistSearchM}
						p.Scene.Occluded1(ray)
						localRays++
						if !ray.Hit() {
							acc += ev.Contribution
						}
					}
				}
			}
			out[idx] = float32(acc / float64(numTri))
		}
		return localRays
	})

	return Stats{RaysIssued: rays, TotalTriangles: uint64(unmasked) * uint64(numTri)}
}

func countUnmasked(mask []byte) int {
	n := 0
	for _, v := range mask {
		if v == 1 {
			n++
		}
	}
	return n
}
