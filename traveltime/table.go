// Package traveltime defines the travel-time table contract the associator
// core depends on: given a source location, predict arrival time at a
// receiver and back again. Actual travel-time computation — 1D/3D model
// lookup, phase libraries — is out of scope for the associator; this
// package gives it a concrete, swappable shape plus a simple reference
// implementation so the rest of the repo runs end-to-end.
package traveltime

import "math"

// Table looks up travel times for a single phase (e.g. P or S) from a
// settable origin. setOrigin is intentionally stateful and not
// thread-safe, mirroring the source interface's design note: callers that
// need concurrent lookups from different origins must hold independent
// Table instances (glasscore's Hypo.WireTravelTimes clones every table it
// is given for that reason).
type Table interface {
	// SetOrigin fixes the hypothetical source location subsequent T calls
	// are measured from.
	SetOrigin(latDeg, lonDeg, depthKm float64)

	// T returns the predicted travel time in seconds from the current
	// origin to a receiver at (latDeg, lonDeg).
	T(latDeg, lonDeg float64) (seconds float64, ok bool)

	// Phase names the seismic phase this table predicts (e.g. "P", "S").
	Phase() string

	// Clone returns an independent copy with its own origin state, so a
	// Hypo can hold a private table per goroutine without races on
	// SetOrigin.
	Clone() Table
}

// cacheEntry is one memoized lookup, keyed by a coarse-quantized receiver
// location.
type cacheEntry struct {
	latQ, lonQ int64
	seconds    float64
	ok         bool
}

// sphericalTable is a minimal concrete Table: constant-velocity
// straight-ray approximation plus a depth correction, wrapped in a small
// bounded cache. It exists so the repository builds and tests end-to-end;
// production deployments supply a real 1D/3D Table implementation.
type sphericalTable struct {
	phase       string
	velocityKmS float64

	originLat, originLon, originDepth float64

	cache    []cacheEntry
	cacheCap int
}

// NewSphericalTable builds a reference Table for the named phase at a
// fixed velocity (km/s). Depth is folded in as a simple right-triangle
// correction against the horizontal distance.
func NewSphericalTable(phase string, velocityKmS float64) Table {
	return &sphericalTable{
		phase:       phase,
		velocityKmS: velocityKmS,
		cacheCap:    256,
	}
}

func (t *sphericalTable) Phase() string { return t.phase }

func (t *sphericalTable) SetOrigin(latDeg, lonDeg, depthKm float64) {
	if t.originLat == latDeg && t.originLon == lonDeg && t.originDepth == depthKm {
		return
	}
	t.originLat, t.originLon, t.originDepth = latDeg, lonDeg, depthKm
	t.cache = t.cache[:0]
}

func (t *sphericalTable) T(latDeg, lonDeg float64) (float64, bool) {
	latQ := int64(latDeg * 1000)
	lonQ := int64(lonDeg * 1000)
	for _, e := range t.cache {
		if e.latQ == latQ && e.lonQ == lonQ {
			return e.seconds, e.ok
		}
	}

	deltaDeg := greatCircleDeg(t.originLat, t.originLon, latDeg, lonDeg)
	horizKm := deltaDeg * 111.19
	sl := math.Hypot(horizKm, t.originDepth)
	seconds := sl / t.velocityKmS
	ok := true

	if len(t.cache) >= t.cacheCap {
		t.cache = t.cache[1:]
	}
	t.cache = append(t.cache, cacheEntry{latQ: latQ, lonQ: lonQ, seconds: seconds, ok: ok})
	return seconds, ok
}

func (t *sphericalTable) Clone() Table {
	return &sphericalTable{phase: t.phase, velocityKmS: t.velocityKmS, cacheCap: t.cacheCap}
}

func greatCircleDeg(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	p1, p2 := lat1*toRad, lat2*toRad
	dLon := (lon2 - lon1) * toRad
	dot := math.Sin(p1)*math.Sin(p2) + math.Cos(p1)*math.Cos(p2)*math.Cos(dLon)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) / toRad
}
