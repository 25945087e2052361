// Package roadnet holds the road-network data model used by the simulator:
// vertices, directed links, roads between intersections, the spatial index over
// links and the precomputed shortest-travel-time table.
//
// All graph objects live in arenas owned by CityMap and refer to each other by
// index, so there are no pointer cycles between intersections, roads and links.
package roadnet

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/samber/lo"
)

// Arena indices. IntersectionIndex is also the row/column of the path table.
type (
	VertexIndex       int
	LinkIndex         int
	RoadIndex         int
	IntersectionIndex int
)

// NoIntersection is returned by strategies that have no next hop to offer.
const NoIntersection IntersectionIndex = -1

// Vertex is a geographic point of the network. It may or may not be an intersection.
type Vertex struct {
	ID    int64
	Index VertexIndex
	Lat   float64
	Lon   float64
	X     float64 // projected, metres
	Y     float64 // projected, metres
}

// Point returns the projected position of the vertex.
func (v Vertex) Point() orb.Point { return orb.Point{v.X, v.Y} }

// Link is a directed straight segment between two vertices.
type Link struct {
	ID         int
	Index      LinkIndex
	From       VertexIndex
	To         VertexIndex
	Length     float64 // metres
	Speed      float64 // metres per second
	TravelTime float64 // Length / Speed, seconds
	Road       RoadIndex

	// BeginTime and BeginDistance are the aggregates of the owning road
	// before this link was appended.
	BeginTime     float64
	BeginDistance float64

	Bound orb.Bound // projected bounding box, used by the KD-tree
}

// Road is a directed chain of one or more links between two intersections.
type Road struct {
	ID         int
	Index      RoadIndex
	From       IntersectionIndex
	To         IntersectionIndex
	Links      []LinkIndex
	Length     float64
	TravelTime float64
}

// Speed is the average static speed of the road.
func (r *Road) Speed() float64 {
	if r.TravelTime == 0 {
		return 0
	}
	return r.Length / r.TravelTime
}

// Intersection is a node of the road graph.
type Intersection struct {
	ID     int64
	Index  IntersectionIndex // stable path-table index
	Vertex VertexIndex
	Lat    float64
	Lon    float64
	X      float64
	Y      float64

	// At most one road per ordered neighbour pair.
	RoadsOut map[IntersectionIndex]RoadIndex
	RoadsIn  map[IntersectionIndex]RoadIndex
}

// Neighbors returns the intersections reachable over one outgoing road, in index order.
func (in *Intersection) Neighbors() []IntersectionIndex {
	out := lo.Keys(in.RoadsOut)
	slices.Sort(out)
	return out
}

// LocationOnRoad is a position along a road, expressed as the distance from
// the road's start intersection.
type LocationOnRoad struct {
	Road   RoadIndex
	Offset float64
}

// NewLocationOnRoad clamps offset into the road and returns the location.
func NewLocationOnRoad(road *Road, offset float64) LocationOnRoad {
	return LocationOnRoad{Road: road.Index, Offset: lo.Clamp(offset, 0, road.Length)}
}

// StartOf returns the location at the start intersection of road.
func StartOf(road *Road) LocationOnRoad { return LocationOnRoad{Road: road.Index} }

// EndOf returns the location at the end intersection of road.
func EndOf(road *Road) LocationOnRoad { return LocationOnRoad{Road: road.Index, Offset: road.Length} }

// Compare orders two locations on the same road. Locations on different
// roads are not comparable.
func (l LocationOnRoad) Compare(o LocationOnRoad) (int, error) {
	if l.Road != o.Road {
		return 0, fmt.Errorf("locations on roads %d and %d are not comparable", l.Road, o.Road)
	}
	switch {
	case l.Offset < o.Offset:
		return -1, nil
	case l.Offset > o.Offset:
		return 1, nil
	}
	return 0, nil
}

// AtEnd reports whether l sits at the end intersection of road.
func (l LocationOnRoad) AtEnd(road *Road) bool { return l.Offset >= road.Length }

func (l LocationOnRoad) String() string {
	return fmt.Sprintf("road %d @ %.1fm", l.Road, l.Offset)
}
