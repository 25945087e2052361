package roadnet_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleet-sim/fleet-sim/sim/internal/testutil"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

func roadFromTo(t *testing.T, m *roadnet.CityMap, fromID, toID int64) *roadnet.Road {
	t.Helper()
	a, ok := m.IntersectionByID(fromID)
	require.True(t, ok, "intersection %d", fromID)
	b, ok := m.IntersectionByID(toID)
	require.True(t, ok, "intersection %d", toID)
	ri, ok := m.RoadBetween(a, b)
	require.True(t, ok, "road %d->%d", fromID, toID)
	return m.Road(ri)
}

func TestTravelTimeBetween_StraightLineRoad(t *testing.T) {
	// GIVEN a single road of length 1000 at speed 1
	m := testutil.Line(t, 1000, 1)
	road := roadFromTo(t, m, 1, 2)
	require.InDelta(t, 1000, road.Length, 1e-9)

	// THEN end to end takes 1000
	assert.Equal(t, int64(1000), m.TravelTimeBetween(roadnet.StartOf(road), roadnet.EndOf(road)))

	// AND 0.2 -> 0.3 of the road takes 100
	src := roadnet.NewLocationOnRoad(road, 0.2*road.Length)
	dst := roadnet.NewLocationOnRoad(road, 0.3*road.Length)
	assert.Equal(t, int64(100), m.TravelTimeBetween(src, dst))
}

func TestTravelTimeBetween_SameRoad_RoundsHalfUp(t *testing.T) {
	m := testutil.Line(t, 1000, 2)
	road := roadFromTo(t, m, 1, 2)

	tests := []struct {
		from, to float64
		want     int64
	}{
		{from: 0, to: 5, want: 3},     // 2.5 -> 3
		{from: 10, to: 13, want: 2},   // 1.5 -> 2
		{from: 10, to: 12.9, want: 1}, // 1.45 -> 1
		{from: 400, to: 400, want: 0},
	}
	for _, tc := range tests {
		got := m.TravelTimeBetween(roadnet.NewLocationOnRoad(road, tc.from), roadnet.NewLocationOnRoad(road, tc.to))
		assert.Equal(t, tc.want, got, "offsets %v -> %v", tc.from, tc.to)
	}
}

func TestTravelTimeBetween_CrossRoad_SumsLegsAndRoundsOnce(t *testing.T) {
	// GIVEN a 3x3 grid with 100 m links at 10 m/s (10 s per link)
	m := testutil.Grid(t, 3, 3, 100, nil)
	roadA := roadFromTo(t, m, 5, 6) // centre -> east edge
	roadB := roadFromTo(t, m, 8, 5) // north edge -> centre

	// source near the end of A, destination near the start of B
	src := roadnet.NewLocationOnRoad(roadA, 96)  // 0.4 s to the end
	dst := roadnet.NewLocationOnRoad(roadB, 1.5) // 0.15 s from the start

	between := m.TravelTimeBetweenIntersections(roadA.To, roadB.From)
	require.False(t, math.IsInf(between, 1))

	want := int64(math.Floor(0.4 + between + 0.15 + 0.5))
	assert.Equal(t, want, m.TravelTimeBetween(src, dst))
}

func TestTravelTimeBetween_SameRoadBackwards_GoesAround(t *testing.T) {
	m := testutil.Line(t, 1000, 10)
	road := roadFromTo(t, m, 1, 2)

	// WHEN the destination is behind the source on the same road
	src := roadnet.NewLocationOnRoad(road, 600)
	dst := roadnet.NewLocationOnRoad(road, 200)

	// THEN the trip runs to the end, back over the return road, and forward again
	// 400/10 + (2->1 = 100) + 200/10
	assert.Equal(t, int64(160), m.TravelTimeBetween(src, dst))
}

// floydWarshall returns all-pairs shortest road travel times by brute force.
func floydWarshall(m *roadnet.CityMap) [][]float64 {
	n := m.NumIntersections()
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = math.Inf(1)
		}
		d[i][i] = 0
	}
	for ri := 0; ri < m.NumRoads(); ri++ {
		r := m.Road(roadnet.RoadIndex(ri))
		d[r.From][r.To] = math.Min(d[r.From][r.To], r.TravelTime)
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if d[i][k]+d[k][j] < d[i][j] {
					d[i][j] = d[i][k] + d[k][j]
				}
			}
		}
	}
	return d
}

func TestPathTable_MatchesBruteForce(t *testing.T) {
	// GIVEN a grid with random per-direction speeds
	rng := rand.New(rand.NewSource(7))
	m := testutil.Grid(t, 5, 6, 120, func(a, b int64) float64 {
		return 3 + rng.Float64()*15
	})
	want := floydWarshall(m)

	for s := 0; s < m.NumIntersections(); s++ {
		for d := 0; d < m.NumIntersections(); d++ {
			src, dst := roadnet.IntersectionIndex(s), roadnet.IntersectionIndex(d)
			got := m.TravelTimeBetweenIntersections(src, dst)
			require.InDelta(t, want[s][d], got, 1e-6, "pair %d->%d", s, d)

			// the reconstructed path realizes the same sum
			path := m.ShortestTravelTimePath(src, dst)
			require.NotEmpty(t, path)
			assert.Equal(t, src, path[0])
			assert.Equal(t, dst, path[len(path)-1])
			roads, err := m.RoadsOnPath(path)
			require.NoError(t, err)
			sum := 0.0
			for _, ri := range roads {
				sum += m.Road(ri).TravelTime
			}
			assert.InDelta(t, got, sum, 1e-6, "path sum %d->%d", s, d)
		}
	}
}

func TestShortestTravelTimePath_Unreachable_ReturnsNil(t *testing.T) {
	// GIVEN two disconnected one-way links
	b := roadnet.NewBuilder()
	require.NoError(t, b.AddVertex(1, 40.0, -73.0))
	require.NoError(t, b.AddVertex(2, 40.001, -73.0))
	require.NoError(t, b.AddVertex(3, 40.1, -73.0))
	require.NoError(t, b.AddVertex(4, 40.101, -73.0))
	require.NoError(t, b.AddLink(1, 2, 10, 100))
	require.NoError(t, b.AddLink(3, 4, 10, 100))
	m, err := b.Build()
	require.NoError(t, err)
	m.BuildPathTable(1)

	a, _ := m.IntersectionByID(1)
	d, _ := m.IntersectionByID(4)
	assert.Nil(t, m.ShortestTravelTimePath(a, d))
	assert.True(t, math.IsInf(m.TravelTimeBetweenIntersections(a, d), 1))
}

func TestShortestTravelTimePath_SameIntersection(t *testing.T) {
	m := testutil.Grid(t, 3, 3, 100, nil)
	c, _ := m.IntersectionByID(5)
	assert.Equal(t, []roadnet.IntersectionIndex{c}, m.ShortestTravelTimePath(c, c))
}

func TestClone_IsIndependentButSharesFrozenTable(t *testing.T) {
	m := testutil.Grid(t, 3, 4, 100, nil)
	c := m.Clone()

	// THEN topology and indices are identical
	require.Equal(t, m.NumIntersections(), c.NumIntersections())
	require.Equal(t, m.NumRoads(), c.NumRoads())
	for i := 0; i < m.NumIntersections(); i++ {
		idx := roadnet.IntersectionIndex(i)
		assert.Equal(t, m.Intersection(idx).ID, c.Intersection(idx).ID)
		assert.Equal(t, m.Intersection(idx).RoadsOut, c.Intersection(idx).RoadsOut)
	}
	assert.Same(t, m.PathTable(), c.PathTable())

	// WHEN the copy is mutated
	centre, _ := c.IntersectionByID(6)
	for k := range c.Intersection(centre).RoadsOut {
		delete(c.Intersection(centre).RoadsOut, k)
	}
	c.Road(0).Length = -1
	c.Road(0).Links[0] = 99

	// THEN the original is untouched
	orig, _ := m.IntersectionByID(6)
	assert.NotEmpty(t, m.Intersection(orig).RoadsOut)
	assert.Positive(t, m.Road(0).Length)
	assert.NotEqual(t, roadnet.LinkIndex(99), m.Road(0).Links[0])
}

func TestIsAdjacent(t *testing.T) {
	m := testutil.Grid(t, 3, 3, 100, nil)
	road := roadFromTo(t, m, 4, 5) // west edge -> centre
	east, _ := m.IntersectionByID(6)
	centre, _ := m.IntersectionByID(5)

	assert.True(t, m.IsAdjacent(road.Index, east))
	assert.False(t, m.IsAdjacent(road.Index, centre))
	assert.False(t, m.IsAdjacent(road.Index, roadnet.NoIntersection))
}

func TestMapMatch_SnapsOntoRoadOffset(t *testing.T) {
	m := testutil.Line(t, 1000, 10)

	// a point half-way along the line, slightly to the east
	loc, err := m.MapMatch(testutil.BaseLat+500/111_320.0, testutil.BaseLon+0.00001)
	require.NoError(t, err)

	road := m.Road(loc.Road)
	assert.InDelta(t, 500, loc.Offset, 5)
	assert.LessOrEqual(t, loc.Offset, road.Length)
}

func TestLocationOnRoad_Compare(t *testing.T) {
	m := testutil.Line(t, 1000, 10)
	a := roadFromTo(t, m, 1, 2)
	b := roadFromTo(t, m, 2, 1)

	c, err := roadnet.NewLocationOnRoad(a, 10).Compare(roadnet.NewLocationOnRoad(a, 20))
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = roadnet.NewLocationOnRoad(a, 10).Compare(roadnet.NewLocationOnRoad(b, 10))
	assert.Error(t, err)

	// offsets are clamped into the road
	assert.Equal(t, a.Length, roadnet.NewLocationOnRoad(a, 5000).Offset)
	assert.Equal(t, 0.0, roadnet.NewLocationOnRoad(a, -3).Offset)
}
