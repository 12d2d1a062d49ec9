package engine

import (
	"math"

	"github.com/spatialmodel/swdircor/scene"
)

// Coherent implements C6: the coherent-batch engine. Per cell, every
// triangle that survives both self-shadow tests has its ray and
// pre-computed contribution buffered; the whole batch is then submitted
// with a single Occluded1M call before the accumulator sums the
// contributions of the rays that came back unoccluded. Refraction is not
// supported, matching the source engine.
func Coherent(p Params, cfg Config, out []float32) Stats {
	numTri := p.numTrianglesPerCell(cfg)
	unmasked := countUnmasked(p.Mask)

	rays := forEachRow(p.NumGCY, func(i int) uint64 {
		rayBuf := make([]*scene.Ray, 0, numTri)
		contribBuf := make([]float64, 0, numTri)
		var localRays uint64
		for j := 0; j < p.NumGCX; j++ {
			idx := i*p.NumGCX + j
			if p.cellMasked(i, j) {
				out[idx] = float32(math.NaN())
				continue
			}
			rayBuf = rayBuf[:0]
			contribBuf = contribBuf[:0]
			for kk := 0; kk < cfg.PixelPerGC; kk++ {
				for mm := 0; mm < cfg.PixelPerGC; mm++ {
					k := i*cfg.PixelPerGC + kk
					m := j*cfg.PixelPerGC + mm
					outerK, outerM := outerPixel(k, m, cfg.PixelPerGC, cfg.OffsetGC)
					for n := 0; n < 2; n++ {
						ev := evalTriangle(p.Outer, p.Inner, outerK, outerM, k, m, n, p.Sun, cfg, false)
						if !ev.Valid {
							continue
						}
						rayBuf = append(rayBuf, &scene.Ray{Org: ev.Origin, Dir: ev.Dir, Tnear: 0, Tfar: cfg.DistSearchM})
						contribBuf = append(contribBuf, ev.Contribution)
					}
				}
			}
			p.Scene.Occluded1M(rayBuf)
			localRays += uint64(len(rayBuf))
			var acc float64
			for ri, r := range rayBuf {
				if !r.Hit() {
					acc += contribBuf[ri]
				}
			}
			out[idx] = float32(acc / float64(numTri))
		}
		return localRays
	})

	return Stats{RaysIssued: rays, TotalTriangles: uint64(unmasked) * uint64(numTri)}
}
