package region

import (
	"math"

	"github.com/paulmach/orb"
)

// bufferDegrees is the fixed buffer spec.md §3 documents for buffered
// shapes: roughly 55km at the equator, enough to capture coastal
// station fixes that land just offshore of the true polygon.
const bufferDegrees = 0.5

// bufferRing offsets every vertex of a closed ring outward along the
// averaged right-hand normal of its two adjacent edges. Right-hand
// normals point away from the enclosed area for a CCW ring and away
// from the excluded area for a CW ring (GeoJSON's convention for
// holes), so the same formula dilates exterior rings and erodes
// holes without branching on winding order. It's a bevel-style
// offset, not a true geometric buffer: adequate for a coastal capture
// margin, not for exact area computation.
func bufferRing(ring orb.Ring, amount float64) orb.Ring {
	n := len(ring)
	if n < 4 {
		return append(orb.Ring{}, ring...)
	}
	pts := ring[:n-1]
	m := len(pts)

	normals := make([]orb.Point, m)
	for i := 0; i < m; i++ {
		a := pts[i]
		b := pts[(i+1)%m]
		dx := b[0] - a[0]
		dy := b[1] - a[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			normals[i] = orb.Point{0, 0}
			continue
		}
		normals[i] = orb.Point{dy / length, -dx / length}
	}

	out := make(orb.Ring, 0, n)
	for i := 0; i < m; i++ {
		prev := normals[(i-1+m)%m]
		curr := normals[i]
		nx := prev[0] + curr[0]
		ny := prev[1] + curr[1]
		nl := math.Hypot(nx, ny)
		if nl == 0 {
			out = append(out, pts[i])
			continue
		}
		out = append(out, orb.Point{
			pts[i][0] + (nx/nl)*amount,
			pts[i][1] + (ny/nl)*amount,
		})
	}
	out = append(out, out[0])
	return out
}

func bufferPolygon(poly orb.Polygon, amount float64) orb.Polygon {
	out := make(orb.Polygon, 0, len(poly))
	for _, ring := range poly {
		out = append(out, bufferRing(ring, amount))
	}
	return out
}

// crossesAntimeridian reports whether a polygon's bounding longitude
// span is wide enough that it must have wrapped around +/-180, a
// buffering artifact rather than a genuine geographic feature.
func crossesAntimeridian(poly orb.Polygon) bool {
	if len(poly) == 0 {
		return false
	}
	b := poly.Bound()
	return b.Min[0] < -180 || b.Max[0] > 180 || (b.Max[0]-b.Min[0]) > 359
}

// bufferGeometry buffers a Polygon or MultiPolygon by amount degrees,
// dropping any resulting part that crosses the +/-180 meridian.
func bufferGeometry(geom orb.Geometry, amount float64) orb.Geometry {
	switch g := geom.(type) {
	case orb.Polygon:
		buffered := bufferPolygon(g, amount)
		if crossesAntimeridian(buffered) {
			return orb.MultiPolygon{}
		}
		return buffered
	case orb.MultiPolygon:
		var kept orb.MultiPolygon
		for _, part := range g {
			buffered := bufferPolygon(part, amount)
			if crossesAntimeridian(buffered) {
				continue
			}
			kept = append(kept, buffered)
		}
		return kept
	default:
		return geom
	}
}
