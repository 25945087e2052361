package roadnet

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// kdNode stores one link and the partition band [lo, hi] of its axis.
// Links in the left subtree end before the band; links in the right subtree
// start inside or after it.
type kdNode struct {
	link        LinkIndex
	a, b        orb.Point
	bound       orb.Bound
	lo, hi      float64
	left, right *kdNode
}

// KdTree is a 2-d tree over directed links keyed by their bounding boxes.
// Even depths split on x, odd depths on y. It is built once and read-only
// afterwards, so a cloned CityMap shares it.
type KdTree struct {
	root *kdNode
	size int
}

// NewKdTree indexes every link of m that belongs to a road.
func NewKdTree(m *CityMap) *KdTree {
	t := &KdTree{}
	for i := range m.links {
		l := &m.links[i]
		if l.Road < 0 {
			continue
		}
		t.Insert(l.Index, m.vertices[l.From].Point(), m.vertices[l.To].Point())
	}
	return t
}

// Len returns the number of indexed links.
func (t *KdTree) Len() int { return t.size }

// Insert adds the segment a→b of link to the tree.
func (t *KdTree) Insert(link LinkIndex, a, b orb.Point) {
	n := &kdNode{link: link, a: a, b: b, bound: orb.Bound{Min: a, Max: a}.Extend(b)}
	t.size++
	if t.root == nil {
		n.lo, n.hi = n.bound.Min[0], n.bound.Max[0]
		t.root = n
		return
	}

	cur := t.root
	for depth := 0; ; depth++ {
		axis := depth % 2
		lo, hi := n.bound.Min[axis], n.bound.Max[axis]

		var next **kdNode
		switch {
		case hi < cur.lo:
			next = &cur.left
		case lo > cur.hi:
			next = &cur.right
		default:
			// overlap: widen the band and keep the link on the right
			cur.lo = math.Min(cur.lo, lo)
			cur.hi = math.Max(cur.hi, hi)
			next = &cur.right
		}

		if *next == nil {
			childAxis := (depth + 1) % 2
			n.lo, n.hi = n.bound.Min[childAxis], n.bound.Max[childAxis]
			*next = n
			return
		}
		cur = *next
	}
}

// Nearest returns the link closest to p by point-to-segment distance and the
// squared distance. It returns -1 on an empty tree.
func (t *KdTree) Nearest(p orb.Point) (LinkIndex, float64) {
	s := kdSearch{p: p, best: -1, bestDist: math.Inf(1)}
	s.visit(t.root, 0)
	return s.best, s.bestDist
}

type kdSearch struct {
	p        orb.Point
	best     LinkIndex
	bestDist float64
}

func (s *kdSearch) visit(n *kdNode, depth int) {
	if n == nil {
		return
	}

	d := planar.DistanceFromSegmentSquared(n.a, n.b, s.p)
	if d < s.bestDist || (d == s.bestDist && n.link < s.best) {
		s.best, s.bestDist = n.link, d
	}

	v := s.p[depth%2]
	var near, far *kdNode
	gap := 0.0
	switch {
	case v < n.lo:
		near, far, gap = n.left, n.right, n.lo-v
	case v > n.hi:
		near, far, gap = n.right, n.left, v-n.hi
	default:
		near, far = n.right, n.left
	}

	s.visit(near, depth+1)
	if gap*gap <= s.bestDist {
		s.visit(far, depth+1)
	}
}
