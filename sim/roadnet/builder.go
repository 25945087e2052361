package roadnet

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Builder assembles a CityMap from raw vertices and directed links. Chains of
// pass-through vertices are folded into a single road between intersections.
type Builder struct {
	vertices []Vertex
	byID     map[int64]VertexIndex
	links    []rawLink
}

type rawLink struct {
	from, to VertexIndex
	speed    float64
	length   float64
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[int64]VertexIndex)}
}

// AddVertex registers a geographic vertex.
func (b *Builder) AddVertex(id int64, lat, lon float64) error {
	if _, dup := b.byID[id]; dup {
		return fmt.Errorf("duplicate vertex %d", id)
	}
	idx := VertexIndex(len(b.vertices))
	b.vertices = append(b.vertices, Vertex{ID: id, Index: idx, Lat: lat, Lon: lon})
	b.byID[id] = idx
	return nil
}

// AddLink registers a directed link between two known vertices. A length of
// zero is replaced by the great-circle distance between the endpoints.
func (b *Builder) AddLink(fromID, toID int64, speed, length float64) error {
	from, ok := b.byID[fromID]
	if !ok {
		return fmt.Errorf("link %d->%d: unknown vertex %d", fromID, toID, fromID)
	}
	to, ok := b.byID[toID]
	if !ok {
		return fmt.Errorf("link %d->%d: unknown vertex %d", fromID, toID, toID)
	}
	if from == to {
		return fmt.Errorf("link %d->%d: self loop", fromID, toID)
	}
	if speed <= 0 {
		return fmt.Errorf("link %d->%d: speed must be > 0, got %v", fromID, toID, speed)
	}
	if length <= 0 {
		va, vb := b.vertices[from], b.vertices[to]
		length = geo.Distance(orb.Point{va.Lon, va.Lat}, orb.Point{vb.Lon, vb.Lat})
	}
	// a road must have a positive length for its speed to be defined
	if length <= 0 {
		return fmt.Errorf("link %d->%d: zero length, vertices %d and %d coincide", fromID, toID, fromID, toID)
	}
	b.links = append(b.links, rawLink{from: from, to: to, speed: speed, length: length})
	return nil
}

// Build projects the vertices, folds links into roads, and indexes the links.
// The shortest-path table is not built; call CityMap.BuildPathTable.
func (b *Builder) Build() (*CityMap, error) {
	if len(b.links) == 0 {
		return nil, fmt.Errorf("map has no links")
	}

	m := &CityMap{
		vertices:         slices.Clone(b.vertices),
		byIntersectionID: make(map[int64]IntersectionIndex),
	}

	bound := orb.Bound{Min: orb.Point{m.vertices[0].Lon, m.vertices[0].Lat}, Max: orb.Point{m.vertices[0].Lon, m.vertices[0].Lat}}
	for _, v := range m.vertices {
		bound = bound.Extend(orb.Point{v.Lon, v.Lat})
	}
	center := bound.Center()
	m.projector = NewProjector(center[1], center[0])
	for i := range m.vertices {
		p := m.projector.FromLatLon(m.vertices[i].Lat, m.vertices[i].Lon)
		m.vertices[i].X, m.vertices[i].Y = p[0], p[1]
	}

	out := make([][]LinkIndex, len(m.vertices))
	in := make([][]LinkIndex, len(m.vertices))
	for i, rl := range b.links {
		a, c := m.vertices[rl.from].Point(), m.vertices[rl.to].Point()
		m.links = append(m.links, Link{
			ID:         i,
			Index:      LinkIndex(i),
			From:       rl.from,
			To:         rl.to,
			Length:     rl.length,
			Speed:      rl.speed,
			TravelTime: rl.length / rl.speed,
			Road:       -1,
			Bound:      orb.Bound{Min: a, Max: a}.Extend(c),
		})
		out[rl.from] = append(out[rl.from], LinkIndex(i))
		in[rl.to] = append(in[rl.to], LinkIndex(i))
	}

	isIntersection := make([]bool, len(m.vertices))
	for v := range m.vertices {
		isIntersection[v] = !b.passThrough(VertexIndex(v), in[v], out[v])
	}

	// Chains are collected first so that parallel chains between the same
	// pair of intersections can be resolved to the fastest one.
	type chain struct {
		from, to VertexIndex
		links    []LinkIndex
		time     float64
	}
	assigned := make([]bool, len(m.links))
	var chains []chain
	for {
		for v := range m.vertices {
			if !isIntersection[v] {
				continue
			}
			for _, first := range out[v] {
				if assigned[first] {
					continue
				}
				c := chain{from: VertexIndex(v)}
				for li := first; ; {
					assigned[li] = true
					c.links = append(c.links, li)
					c.time += m.links[li].TravelTime
					next := m.links[li].To
					if isIntersection[next] || next == c.from {
						c.to = next
						break
					}
					prev := m.links[li].From
					nl, ok := lo.Find(out[next], func(cand LinkIndex) bool {
						return !assigned[cand] && m.links[cand].To != prev
					})
					if !ok {
						c.to = next
						isIntersection[next] = true
						break
					}
					li = nl
				}
				chains = append(chains, c)
			}
		}
		// links on a cycle of pass-through vertices: split the cycle at one link
		stray, found := lo.Find(lo.Range(len(m.links)), func(i int) bool { return !assigned[i] })
		if !found {
			break
		}
		isIntersection[m.links[stray].From] = true
		isIntersection[m.links[stray].To] = true
	}

	for v := range m.vertices {
		if isIntersection[v] {
			m.addIntersection(&m.vertices[v])
		}
	}

	best := make(map[[2]VertexIndex]int)
	for i, c := range chains {
		if c.from == c.to {
			continue
		}
		key := [2]VertexIndex{c.from, c.to}
		if j, ok := best[key]; !ok || c.time < chains[j].time {
			best[key] = i
		}
	}
	keep := lo.Values(best)
	slices.Sort(keep)
	for _, i := range keep {
		c := chains[i]
		from := m.byIntersectionID[m.vertices[c.from].ID]
		to := m.byIntersectionID[m.vertices[c.to].ID]
		ri := m.addRoad(from, to)
		for _, li := range c.links {
			m.appendLink(ri, li)
		}
		m.connect(ri)
	}
	if dropped := len(chains) - len(keep); dropped > 0 {
		logrus.Debugf("Dropped %d duplicate or looping link chains", dropped)
	}

	m.kdTree = NewKdTree(m)
	logrus.Infof("Built map: %d vertices, %d links, %d roads, %d intersections",
		len(m.vertices), len(m.links), len(m.roads), len(m.intersections))
	return m, nil
}

// passThrough reports whether v merely continues a road: either a one-way
// chain (one link in, one out, different neighbours) or a two-way chain
// (two in, two out, same two neighbours).
func (b *Builder) passThrough(v VertexIndex, in, out []LinkIndex) bool {
	ins := lo.Uniq(lo.Map(in, func(l LinkIndex, _ int) VertexIndex { return b.links[l].from }))
	outs := lo.Uniq(lo.Map(out, func(l LinkIndex, _ int) VertexIndex { return b.links[l].to }))
	switch {
	case len(in) == 1 && len(out) == 1:
		return ins[0] != outs[0]
	case len(in) == 2 && len(out) == 2 && len(ins) == 2 && len(outs) == 2:
		return len(lo.Intersect(ins, outs)) == 2
	}
	return false
}
