package roadnet

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/sirupsen/logrus"
)

// CityMap owns the road network. It is mutated only while being built; once
// BuildPathTable has run the simulator treats it as read-only.
type CityMap struct {
	vertices      []Vertex
	links         []Link
	roads         []Road
	intersections []Intersection

	byIntersectionID map[int64]IntersectionIndex

	projector Projector
	kdTree    *KdTree
	paths     *PathTable
}

// Vertex returns the vertex at index i.
func (m *CityMap) Vertex(i VertexIndex) *Vertex { return &m.vertices[i] }

// Link returns the link at index i.
func (m *CityMap) Link(i LinkIndex) *Link { return &m.links[i] }

// Road returns the road at index i.
func (m *CityMap) Road(i RoadIndex) *Road { return &m.roads[i] }

// Intersection returns the intersection at index i.
func (m *CityMap) Intersection(i IntersectionIndex) *Intersection { return &m.intersections[i] }

// IntersectionByID looks up an intersection by its external ID.
func (m *CityMap) IntersectionByID(id int64) (IntersectionIndex, bool) {
	i, ok := m.byIntersectionID[id]
	return i, ok
}

func (m *CityMap) NumVertices() int      { return len(m.vertices) }
func (m *CityMap) NumLinks() int         { return len(m.links) }
func (m *CityMap) NumRoads() int         { return len(m.roads) }
func (m *CityMap) NumIntersections() int { return len(m.intersections) }

// Projector returns the coordinate projector of the map.
func (m *CityMap) Projector() Projector { return m.projector }

// PathTable returns the frozen shortest-path table, or nil before BuildPathTable.
func (m *CityMap) PathTable() *PathTable { return m.paths }

// addIntersection registers a new intersection for vertex v.
func (m *CityMap) addIntersection(v *Vertex) IntersectionIndex {
	idx := IntersectionIndex(len(m.intersections))
	m.intersections = append(m.intersections, Intersection{
		ID:       v.ID,
		Index:    idx,
		Vertex:   v.Index,
		Lat:      v.Lat,
		Lon:      v.Lon,
		X:        v.X,
		Y:        v.Y,
		RoadsOut: make(map[IntersectionIndex]RoadIndex),
		RoadsIn:  make(map[IntersectionIndex]RoadIndex),
	})
	m.byIntersectionID[v.ID] = idx
	return idx
}

// addRoad creates an empty road between two intersections.
func (m *CityMap) addRoad(from, to IntersectionIndex) RoadIndex {
	idx := RoadIndex(len(m.roads))
	m.roads = append(m.roads, Road{ID: int(idx), Index: idx, From: from, To: to})
	return idx
}

// appendLink adds link to the end of road and updates the road aggregates.
func (m *CityMap) appendLink(ri RoadIndex, li LinkIndex) {
	road, link := &m.roads[ri], &m.links[li]
	link.Road = ri
	link.BeginTime = road.TravelTime
	link.BeginDistance = road.Length
	road.Links = append(road.Links, li)
	road.Length += link.Length
	road.TravelTime += link.TravelTime
}

// connect registers road in both endpoint intersections.
func (m *CityMap) connect(ri RoadIndex) {
	road := &m.roads[ri]
	m.intersections[road.From].RoadsOut[road.To] = ri
	m.intersections[road.To].RoadsIn[road.From] = ri
}

// RoadBetween returns the road from a to b, if any.
func (m *CityMap) RoadBetween(a, b IntersectionIndex) (RoadIndex, bool) {
	ri, ok := m.intersections[a].RoadsOut[b]
	return ri, ok
}

// IsAdjacent reports whether next is one road away from the end of road.
func (m *CityMap) IsAdjacent(road RoadIndex, next IntersectionIndex) bool {
	if next < 0 || int(next) >= len(m.intersections) {
		return false
	}
	_, ok := m.intersections[m.roads[road].To].RoadsOut[next]
	return ok
}

// BuildPathTable computes the all-pairs shortest-path table and freezes it.
func (m *CityMap) BuildPathTable(workers int) {
	logrus.Infof("Building shortest-path table for %d intersections", len(m.intersections))
	m.paths = newPathTable(m, workers)
}

// TravelTimeBetweenIntersections returns the static shortest travel time
// from a to b in seconds, +Inf when b is unreachable.
func (m *CityMap) TravelTimeBetweenIntersections(a, b IntersectionIndex) float64 {
	return m.paths.Time(a, b)
}

// Reachable reports whether dst can be reached from src.
func (m *CityMap) Reachable(src, dst LocationOnRoad) bool {
	if src.Road == dst.Road && src.Offset <= dst.Offset {
		return true
	}
	return !math.IsInf(m.paths.Time(m.roads[src.Road].To, m.roads[dst.Road].From), 1)
}

// TravelTimeBetween returns the static travel time from src to dst, rounded
// half-up to whole seconds. The pair must be reachable.
func (m *CityMap) TravelTimeBetween(src, dst LocationOnRoad) int64 {
	return roundHalfUp(m.travelTime(src, dst))
}

func (m *CityMap) travelTime(src, dst LocationOnRoad) float64 {
	srcRoad := &m.roads[src.Road]
	if src.Road == dst.Road && src.Offset <= dst.Offset {
		return (dst.Offset - src.Offset) / srcRoad.Speed()
	}
	dstRoad := &m.roads[dst.Road]
	toEnd := (srcRoad.Length - src.Offset) / srcRoad.Speed()
	between := m.paths.Time(srcRoad.To, dstRoad.From)
	fromStart := dst.Offset / dstRoad.Speed()
	return toEnd + between + fromStart
}

func roundHalfUp(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// ShortestTravelTimePath returns the intersections on the shortest path from
// src to dst, both included. It returns nil when dst is unreachable.
func (m *CityMap) ShortestTravelTimePath(src, dst IntersectionIndex) []IntersectionIndex {
	if src == dst {
		return []IntersectionIndex{src}
	}
	if math.IsInf(m.paths.Time(src, dst), 1) {
		return nil
	}
	path := []IntersectionIndex{dst}
	for cur := dst; cur != src; {
		cur = m.paths.Pred(src, cur)
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// RoadsOnPath converts a path of intersections into the roads joining them.
func (m *CityMap) RoadsOnPath(path []IntersectionIndex) ([]RoadIndex, error) {
	roads := make([]RoadIndex, 0, max(len(path)-1, 0))
	for i := 1; i < len(path); i++ {
		ri, ok := m.RoadBetween(path[i-1], path[i])
		if !ok {
			return nil, fmt.Errorf("no road from intersection %d to %d", path[i-1], path[i])
		}
		roads = append(roads, ri)
	}
	return roads, nil
}

// NearestLink returns the link closest to the projected point (x, y).
func (m *CityMap) NearestLink(x, y float64) LinkIndex {
	li, _ := m.kdTree.Nearest(orb.Point{x, y})
	return li
}

// NearestLinkLatLon returns the link closest to a geographic point.
func (m *CityMap) NearestLinkLatLon(lat, lon float64) LinkIndex {
	p := m.projector.FromLatLon(lat, lon)
	return m.NearestLink(p[0], p[1])
}

// MapMatch snaps a geographic point onto the network: the point is projected
// onto its nearest link and expressed as a location on the link's road.
func (m *CityMap) MapMatch(lat, lon float64) (LocationOnRoad, error) {
	if m.kdTree == nil || m.kdTree.Len() == 0 {
		return LocationOnRoad{}, fmt.Errorf("map has no spatial index")
	}
	p := m.projector.FromLatLon(lat, lon)
	link := &m.links[m.NearestLink(p[0], p[1])]
	a, b := m.vertices[link.From].Point(), m.vertices[link.To].Point()

	frac := 0.0
	if segLen := planar.Distance(a, b); segLen > 0 {
		// projection of p onto a→b, clamped to the segment
		dx, dy := b[0]-a[0], b[1]-a[1]
		frac = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (segLen * segLen)
		frac = math.Max(0, math.Min(1, frac))
	}
	return NewLocationOnRoad(&m.roads[link.Road], link.BeginDistance+frac*link.Length), nil
}

// Clone returns an independent copy of the map. Intersections, roads, links
// and vertices are copied; the frozen path table, the spatial index and the
// projector are shared because nothing mutates them.
func (m *CityMap) Clone() *CityMap {
	c := &CityMap{
		vertices:         slices.Clone(m.vertices),
		links:            slices.Clone(m.links),
		roads:            slices.Clone(m.roads),
		intersections:    slices.Clone(m.intersections),
		byIntersectionID: maps.Clone(m.byIntersectionID),
		projector:        m.projector,
		kdTree:           m.kdTree,
		paths:            m.paths,
	}
	for i := range c.roads {
		c.roads[i].Links = slices.Clone(c.roads[i].Links)
	}
	for i := range c.intersections {
		c.intersections[i].RoadsOut = maps.Clone(c.intersections[i].RoadsOut)
		c.intersections[i].RoadsIn = maps.Clone(c.intersections[i].RoadsIn)
	}
	return c
}
