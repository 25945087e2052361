package roadnet

import (
	"container/heap"
	"math"

	"github.com/sourcegraph/conc/pool"
)

// PathTable is the all-pairs static shortest travel time between
// intersections, addressed by IntersectionIndex. It is immutable once built.
type PathTable struct {
	n     int
	times []float64           // row-major, +Inf when unreachable
	preds []IntersectionIndex // predecessor on the shortest path, NoIntersection when none
}

// Time returns the shortest travel time from a to b. The result is +Inf for
// unreachable pairs.
func (pt *PathTable) Time(a, b IntersectionIndex) float64 {
	return pt.times[int(a)*pt.n+int(b)]
}

// Pred returns the predecessor of b on the shortest path from a.
func (pt *PathTable) Pred(a, b IntersectionIndex) IntersectionIndex {
	return pt.preds[int(a)*pt.n+int(b)]
}

// Size returns the number of intersections covered by the table.
func (pt *PathTable) Size() int { return pt.n }

// newPathTable runs one Dijkstra per source intersection. Rows are
// independent, so sources are spread over up to workers goroutines.
func newPathTable(m *CityMap, workers int) *PathTable {
	n := len(m.intersections)
	pt := &PathTable{
		n:     n,
		times: make([]float64, n*n),
		preds: make([]IntersectionIndex, n*n),
	}
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	for src := 0; src < n; src++ {
		p.Go(func() {
			row := src * n
			dijkstra(m, IntersectionIndex(src), pt.times[row:row+n], pt.preds[row:row+n])
		})
	}
	p.Wait()
	return pt
}

// dijkstra fills one table row. Frontier ties are broken by intersection ID.
func dijkstra(m *CityMap, src IntersectionIndex, dist []float64, pred []IntersectionIndex) {
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = NoIntersection
	}
	dist[src] = 0
	done := make([]bool, len(dist))

	pq := &frontier{}
	heap.Push(pq, frontierItem{node: src, cost: 0, id: m.intersections[src].ID})
	for pq.Len() > 0 {
		cur := heap.Pop(pq).(frontierItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true

		for next, ri := range m.intersections[cur.node].RoadsOut {
			if done[next] {
				continue
			}
			alt := cur.cost + m.roads[ri].TravelTime
			if alt < dist[next] {
				dist[next] = alt
				pred[next] = cur.node
				heap.Push(pq, frontierItem{node: next, cost: alt, id: m.intersections[next].ID})
			}
		}
	}
}

type frontierItem struct {
	node IntersectionIndex
	cost float64
	id   int64
}

// frontier is a min-heap ordered by cost, then intersection ID.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].id < f[j].id
}
func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(frontierItem)) }

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}
