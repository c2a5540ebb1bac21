package cmn

import "math"

// Geodetic constants, average-Earth approximations used throughout the
// associator (travel-time tables are the only place a true ellipsoid
// model would matter, and those live outside this package).
const (
	EarthRadiusKm = 6371.0
	DegToKm       = 111.19
	KmToDeg       = 1.0 / DegToKm
)

// Geo is a geocentric point cached with its Cartesian unit vector, so
// repeated delta/azimuth computations against it avoid re-deriving
// trigonometry from lat/lon every time.
type Geo struct {
	LatDeg float64
	LonDeg float64
	DepthK float64

	ux, uy, uz float64
}

// NewGeo builds a Geo from geographic latitude/longitude (degrees) and
// depth (km, positive down).
func NewGeo(latDeg, lonDeg, depthKm float64) Geo {
	g := Geo{LatDeg: latDeg, LonDeg: lonDeg, DepthK: depthKm}
	g.recompute()
	return g
}

func (g *Geo) recompute() {
	latR := g.LatDeg * math.Pi / 180
	lonR := g.LonDeg * math.Pi / 180
	g.ux = math.Cos(latR) * math.Cos(lonR)
	g.uy = math.Cos(latR) * math.Sin(lonR)
	g.uz = math.Sin(latR)
}

// Delta returns the great-circle angular distance to other, in degrees.
func (g Geo) Delta(other Geo) float64 {
	dot := g.ux*other.ux + g.uy*other.uy + g.uz*other.uz
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) * 180 / math.Pi
}

// DeltaKm returns the great-circle distance to other, in kilometers.
func (g Geo) DeltaKm(other Geo) float64 {
	return g.Delta(other) * DegToKm
}

// Azimuth returns the initial bearing in degrees (0-360, clockwise from
// north) from g to other.
func (g Geo) Azimuth(other Geo) float64 {
	lat1 := g.LatDeg * math.Pi / 180
	lat2 := other.LatDeg * math.Pi / 180
	dLon := (other.LonDeg - g.LonDeg) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	az := math.Atan2(y, x) * 180 / math.Pi
	if az < 0 {
		az += 360
	}
	return az
}

// LocalKm projects other into local tangent-plane kilometers around g:
// east-component scaled by cos(latitude) the way Hypo's anneal step does.
func (g Geo) LocalKm(other Geo) (eastKm, northKm float64) {
	northKm = (other.LatDeg - g.LatDeg) * DegToKm
	eastKm = (other.LonDeg - g.LonDeg) * DegToKm * math.Cos(g.LatDeg*math.Pi/180)
	return
}

// OffsetKm returns a new Geo obtained by moving eastKm/northKm in the local
// tangent plane and adding depthKm to the current depth.
func (g Geo) OffsetKm(eastKm, northKm, depthKm float64) Geo {
	lat := g.LatDeg + northKm*KmToDeg
	cosLat := math.Cos(g.LatDeg * math.Pi / 180)
	if cosLat < 1e-6 {
		cosLat = 1e-6
	}
	lon := g.LonDeg + eastKm*KmToDeg/cosLat
	return NewGeo(lat, lon, g.DepthK+depthKm)
}

// GreatCircleDeg is a free function form of Delta, used where callers only
// have raw lat/lon pairs rather than constructed Geo values.
func GreatCircleDeg(lat1, lon1, lat2, lon2 float64) float64 {
	return NewGeo(lat1, lon1, 0).Delta(NewGeo(lat2, lon2, 0))
}
