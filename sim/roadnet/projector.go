package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projector maps lat/lon onto a local planar frame in metres centred on a
// reference point. Web Mercator is stretched by 1/cos(lat), so distances are
// rescaled by the cosine of the reference latitude.
type Projector struct {
	origin orb.Point // mercator coordinates of the reference point
	scale  float64
}

// NewProjector creates a projector centred on (refLat, refLon).
func NewProjector(refLat, refLon float64) Projector {
	return Projector{
		origin: project.WGS84.ToMercator(orb.Point{refLon, refLat}),
		scale:  math.Cos(refLat * math.Pi / 180),
	}
}

// FromLatLon returns the planar position of a geographic point.
func (p Projector) FromLatLon(lat, lon float64) orb.Point {
	m := project.WGS84.ToMercator(orb.Point{lon, lat})
	return orb.Point{(m[0] - p.origin[0]) * p.scale, (m[1] - p.origin[1]) * p.scale}
}

// ToLatLon is the inverse of FromLatLon.
func (p Projector) ToLatLon(pt orb.Point) (lat, lon float64) {
	m := orb.Point{pt[0]/p.scale + p.origin[0], pt[1]/p.scale + p.origin[1]}
	g := project.Mercator.ToWGS84(m)
	return g[1], g[0]
}
