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

// Package swdircor computes terrain-shadowing correction factors for
// shortwave direct solar radiation by ray tracing against a triangulated
// digital elevation model. It is the façade (C8) over the vector,
// refract, indexer, scene, and engine packages: it owns the scene handle,
// caches per-run configuration, and dispatches to one of the three
// correction engines.
package swdircor

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/spatialmodel/swdircor/engine"
	"github.com/spatialmodel/swdircor/scene"
	"github.com/spatialmodel/swdircor/vector"
)

// Facade owns a built scene and the cached configuration needed to issue
// correction calls against it, mirroring the source engine's single
// global device handle plus cached parameters.
type Facade struct {
	outer, inner engine.DEM
	numGCY       int
	numGCX       int
	mask         []byte
	cfg          engine.Config

	scene *scene.Scene

	// Log receives the stdout progress lines §6 requires: DEM dims,
	// vertex/primitive counts, geometry mode, BVH build time, and, per
	// correction call, ray-trace time, rays issued, and the
	// rays-per-triangle ratio. Defaults to logrus.StandardLogger(),
	// matching the teacher's default logger field.
	Log logrus.FieldLogger
}

// Config collects the caller-facing parameters to Initialise, using the
// same units and names as spec.md §6's external-interface description.
type Config struct {
	OuterVerts   []float32
	OuterRows    int
	OuterCols    int
	InnerVerts   []float32
	InnerRows    int
	InnerCols    int
	PixelPerGC   int
	OffsetGC     int
	Mask         []byte
	DistSearchKM float64
	GeomType     string // "triangle", "quad", or "grid"; unrecognized defaults to grid
	SwDirCorMax  float64
	AngMaxDeg    float64
	RayOrgElev   float64 // defaults to 0.1m if zero
}

// Initialise validates the §6 input constraints, builds the occlusion
// scene over the outer DEM, and caches the per-call configuration. It
// logs the derived quantities the source engine prints at startup:
// triangle count, search distance, ang_max, sw_dir_cor_max, and scene
// build time.
func Initialise(cfg Config) (*Facade, error) {
	if cfg.AngMaxDeg <= 0 || cfg.AngMaxDeg > 90 {
		return nil, fmt.Errorf("swdircor: ang_max_deg must be in (0, 90], got %v", cfg.AngMaxDeg)
	}
	if cfg.SwDirCorMax <= 0 {
		return nil, fmt.Errorf("swdircor: sw_dir_cor_max must be > 0, got %v", cfg.SwDirCorMax)
	}
	if cfg.DistSearchKM <= 0 {
		return nil, fmt.Errorf("swdircor: dist_search_km must be > 0, got %v", cfg.DistSearchKM)
	}
	if cfg.PixelPerGC < 1 {
		return nil, fmt.Errorf("swdircor: pixel_per_gc must be >= 1, got %d", cfg.PixelPerGC)
	}
	if cfg.OffsetGC < 0 {
		return nil, fmt.Errorf("swdircor: offset_gc must be >= 0, got %d", cfg.OffsetGC)
	}
	border := 2 * cfg.OffsetGC * cfg.PixelPerGC
	if cfg.InnerRows != cfg.OuterRows-border || cfg.InnerCols != cfg.OuterCols-border {
		return nil, fmt.Errorf("swdircor: inner DEM dims (%d,%d) must equal outer (%d,%d) minus 2*offset_gc*pixel_per_gc=%d",
			cfg.InnerRows, cfg.InnerCols, cfg.OuterRows, cfg.OuterCols, border)
	}
	wantNumGCY := (cfg.InnerRows - 1) / cfg.PixelPerGC
	wantNumGCX := (cfg.InnerCols - 1) / cfg.PixelPerGC
	if len(cfg.Mask) != wantNumGCY*wantNumGCX {
		return nil, fmt.Errorf("swdircor: mask length %d does not match aggregation grid %dx%d (%d cells)",
			len(cfg.Mask), wantNumGCY, wantNumGCX, wantNumGCY*wantNumGCX)
	}

	rayOrgElev := cfg.RayOrgElev
	if rayOrgElev == 0 {
		rayOrgElev = 0.1
	}

	log := logrus.StandardLogger()

	var buildErr error
	sc, err := scene.Build(cfg.OuterVerts, cfg.OuterRows, cfg.OuterCols,
		scene.ParseGeometryType(cfg.GeomType), true,
		func(err error) { buildErr = err })
	if err != nil {
		log.WithError(err).Error("swdircor: scene construction failed")
		return nil, err
	}
	if buildErr != nil {
		log.WithError(buildErr).Warn("swdircor: scene reported a build error but returned a scene")
	}

	st := sc.Stats()

	log.WithFields(logrus.Fields{
		"outer_rows":      cfg.OuterRows,
		"outer_cols":      cfg.OuterCols,
		"inner_rows":      cfg.InnerRows,
		"inner_cols":      cfg.InnerCols,
		"vertex_count":    st.VertexCount,
		"primitive_count": st.PrimitiveCount,
		"triangle_count":  st.TriangleCount,
		"geom_mode":       st.Mode.String(),
		"build_time":      st.BuildTime,
		"dist_search_km":  cfg.DistSearchKM,
		"ang_max_deg":     cfg.AngMaxDeg,
		"sw_dir_cor_max":  cfg.SwDirCorMax,
	}).Info("swdircor: scene initialised")

	return &Facade{
		outer:  engine.DEM{Verts: cfg.OuterVerts, Rows: cfg.OuterRows, Cols: cfg.OuterCols},
		inner:  engine.DEM{Verts: cfg.InnerVerts, Rows: cfg.InnerRows, Cols: cfg.InnerCols},
		numGCY: wantNumGCY,
		numGCX: wantNumGCX,
		mask:   cfg.Mask,
		cfg: engine.Config{
			PixelPerGC:  cfg.PixelPerGC,
			OffsetGC:    cfg.OffsetGC,
			DistSearchM: cfg.DistSearchKM * 1000,
			SwDirCorMax: cfg.SwDirCorMax,
			DotProdMin:  math.Cos(cfg.AngMaxDeg * math.Pi / 180),
			RayOrgElev:  rayOrgElev,
		},
		scene: sc,
		Log:   log,
	}, nil
}

func (f *Facade) params(sun vector.Vec3) engine.Params {
	return engine.Params{
		Outer:  f.outer,
		Inner:  f.inner,
		NumGCY: f.numGCY,
		NumGCX: f.numGCX,
		Mask:   f.mask,
		Sun:    sun,
		Scene:  f.scene,
	}
}

func (f *Facade) logStats(name string, elapsed time.Duration, st engine.Stats) {
	f.Log.WithFields(logrus.Fields{
		"engine":            name,
		"ray_trace_time":    elapsed,
		"rays_issued":       st.RaysIssued,
		"total_triangles":   st.TotalTriangles,
		"rays_per_triangle": st.RaysPerTriangle(),
	}).Info("swdircor: correction call complete")
}

// SWDirCor runs the single-ray engine (C5) for one sun position. It is
// the only engine that supports atmospheric refraction.
func (f *Facade) SWDirCor(sunPos [3]float64, out []float32, refracCor bool) {
	cfg := f.cfg
	cfg.RefractionCor = refracCor
	start := time.Now()
	st := engine.Single(f.params(sunVec(sunPos)), cfg, out)
	f.logStats("single", time.Since(start), st)
}

// SWDirCorCoherent runs the coherent-batch engine (C6) for one sun
// position. Refraction is not supported.
func (f *Facade) SWDirCorCoherent(sunPos [3]float64, out []float32) {
	start := time.Now()
	st := engine.Coherent(f.params(sunVec(sunPos)), f.cfg, out)
	f.logStats("coherent", time.Since(start), st)
}

// SWDirCorCoherentRP8 runs the packet-8 engine (C7) for one sun position.
// It returns an error and writes nothing to out if pixel_per_gc is odd.
func (f *Facade) SWDirCorCoherentRP8(sunPos [3]float64, out []float32) error {
	start := time.Now()
	st, err := engine.Packet8(f.params(sunVec(sunPos)), f.cfg, out)
	if err != nil {
		f.Log.WithError(err).Error("swdircor: packet8 precondition failed")
		return err
	}
	f.logStats("packet8", time.Since(start), st)
	return nil
}

// CorrectionSeries runs engineName ("single", "coherent", or "packet8")
// across a series of sun positions, reusing the one scene build for
// every call -- the natural extension of spec.md §3 invariant 5 ("the
// BVH is built once... reused across all sun positions") to a batch of
// positions instead of just one. out must have len(suns) rows of
// numGCY*numGCX cells each; row i of out receives the correction for
// suns[i].
func (f *Facade) CorrectionSeries(engineName string, suns [][3]float64, refracCor bool, out [][]float32) error {
	if len(suns) != len(out) {
		return fmt.Errorf("swdircor: CorrectionSeries got %d sun positions but %d output rows", len(suns), len(out))
	}
	for i, sun := range suns {
		switch engineName {
		case "single":
			f.SWDirCor(sun, out[i], refracCor)
		case "coherent":
			f.SWDirCorCoherent(sun, out[i])
		case "packet8":
			if err := f.SWDirCorCoherentRP8(sun, out[i]); err != nil {
				return fmt.Errorf("swdircor: CorrectionSeries sun index %d: %w", i, err)
			}
		default:
			return fmt.Errorf("swdircor: unrecognized engine %q", engineName)
		}
	}
	return nil
}

// Release tears down the façade's scene handle. After Release, the
// Facade must not be used again.
func (f *Facade) Release() {
	f.scene = nil
}

func sunVec(p [3]float64) vector.Vec3 {
	return vector.Vec3{X: p[0], Y: p[1], Z: p[2]}
}
