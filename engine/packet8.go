package engine

import (
	"math"

	"github.com/spatialmodel/swdircor/scene"
)

// Packet8 implements C7: the 8-wide packet engine. A cell is walked in
// 2x2 pixel blocks (2x2 pixels x 2 triangles/pixel = 8 triangles), each
// block filling one 8-lane ray packet with per-lane validity taken from
// the shared self-shadow tests; lanes that fail a self-shadow test are
// marked inactive and contribute 0 without needing the occlusion query.
// Refraction is not supported. Requires an even pixel_per_gc; if it is
// odd, returns immediately with a zero Stats and an error, writing
// nothing to out.
func Packet8(p Params, cfg Config, out []float32) (Stats, error) {
	if err := validateOdd(cfg.PixelPerGC); err != nil {
		return Stats{}, err
	}
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
			for kk := 0; kk < cfg.PixelPerGC; kk += 2 {
				for mm := 0; mm < cfg.PixelPerGC; mm += 2 {
					var packet scene.Ray8
					var mask [8]int32
					var contrib [8]float64

					lane := 0
					for dk := 0; dk < 2; dk++ {
						for dm := 0; dm < 2; dm++ {
							k := i*cfg.PixelPerGC + kk + dk
							m := j*cfg.PixelPerGC + mm + dm
							outerK, outerM := outerPixel(k, m, cfg.PixelPerGC, cfg.OffsetGC)
							for n := 0; n < 2; n++ {
								ev := evalTriangle(p.Outer, p.Inner, outerK, outerM, k, m, n, p.Sun, cfg, false)
								if ev.Valid {
									mask[lane] = -1
									packet.Org[lane] = ev.Origin
									packet.Dir[lane] = ev.Dir
									packet.Tnear[lane] = 0
									packet.Tfar[lane] = cfg.DistSearchM
									contrib[lane] = ev.Contribution
									localRays++
								} else {
									mask[lane] = 0
								}
								lane++
							}
						}
					}

					p.Scene.Occluded8(mask, &packet)
					for l := 0; l < 8; l++ {
						if mask[l] == -1 && packet.Tfar[l] > 0 {
							acc += contrib[l]
						}
					}
				}
			}
			out[idx] = float32(acc / float64(numTri))
		}
		return localRays
	})

	return Stats{RaysIssued: rays, TotalTriangles: uint64(unmasked) * uint64(numTri)}, nil
}
