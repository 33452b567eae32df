package geofence

import "github.com/washpoint/washpoint-backend/pkg/types"

// PointInPolygon reports whether the point lies inside the polygon using the
// even-odd ray casting rule. Polygons with fewer than three vertices never
// match anything.
func PointInPolygon(lat, lng float64, polygon types.Polygon) bool {
	if !polygon.Valid() {
		return false
	}

	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		yi, xi := polygon[i].Lat(), polygon[i].Lng()
		yj, xj := polygon[j].Lat(), polygon[j].Lng()

		if (yi > lat) != (yj > lat) {
			crossing := (xj-xi)*(lat-yi)/(yj-yi) + xi
			if lng < crossing {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// AnyContains reports whether any polygon in the set contains the point.
func AnyContains(lat, lng float64, polygons []types.Polygon) bool {
	for _, polygon := range polygons {
		if PointInPolygon(lat, lng, polygon) {
			return true
		}
	}
	return false
}
