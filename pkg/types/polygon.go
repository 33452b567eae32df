package types

// Vertex is a [lat, lng] pair.
type Vertex [2]float64

func (v Vertex) Lat() float64 { return v[0] }
func (v Vertex) Lng() float64 { return v[1] }

// Polygon is an ordered ring of vertices, persisted as a JSONB column.
// Anything with fewer than three vertices is not a polygon and never
// contains a point.
type Polygon []Vertex

func (p Polygon) Valid() bool {
	return len(p) >= 3
}
