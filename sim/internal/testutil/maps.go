// Package testutil provides shared test fixtures for the simulator packages:
// small road networks with a built shortest-path table.
package testutil

import (
	"testing"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// Reference position of generated fixtures (midtown Manhattan).
const (
	BaseLat = 40.75
	BaseLon = -73.98

	metresPerDegreeLat = 111_320.0
)

// Line builds two intersections joined by one road in each direction, each a
// single link of the given length and speed. Intersection IDs are 1 and 2.
func Line(t testing.TB, length, speed float64) *roadnet.CityMap {
	t.Helper()
	b := roadnet.NewBuilder()
	must(t, b.AddVertex(1, BaseLat, BaseLon))
	must(t, b.AddVertex(2, BaseLat+length/metresPerDegreeLat, BaseLon))
	must(t, b.AddLink(1, 2, speed, length))
	must(t, b.AddLink(2, 1, speed, length))
	return build(t, b)
}

// Chain builds a two-way chain of vertices 1…n. Only the end vertices are
// intersections, so each direction is a single road of n-1 links.
func Chain(t testing.TB, n int, length, speed float64) *roadnet.CityMap {
	t.Helper()
	b := roadnet.NewBuilder()
	step := length / metresPerDegreeLat
	for i := 1; i <= n; i++ {
		must(t, b.AddVertex(int64(i), BaseLat+float64(i-1)*step, BaseLon))
	}
	for i := 1; i < n; i++ {
		must(t, b.AddLink(int64(i), int64(i+1), speed, length))
		must(t, b.AddLink(int64(i+1), int64(i), speed, length))
	}
	return build(t, b)
}

// Grid builds a rows×cols grid with two-way links of length spacing between
// orthogonal neighbours. speedOf chooses the speed of the link from vertex a
// to vertex b; nil means 10 m/s everywhere. Vertex IDs are r*cols+c+1.
func Grid(t testing.TB, rows, cols int, spacing float64, speedOf func(a, b int64) float64) *roadnet.CityMap {
	t.Helper()
	if speedOf == nil {
		speedOf = func(int64, int64) float64 { return 10 }
	}
	b := roadnet.NewBuilder()
	step := spacing / metresPerDegreeLat
	id := func(r, c int) int64 { return int64(r*cols + c + 1) }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			must(t, b.AddVertex(id(r, c), BaseLat+float64(r)*step, BaseLon+float64(c)*step))
		}
	}
	link := func(a, c int64) {
		must(t, b.AddLink(a, c, speedOf(a, c), spacing))
		must(t, b.AddLink(c, a, speedOf(c, a), spacing))
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				link(id(r, c), id(r, c+1))
			}
			if r+1 < rows {
				link(id(r, c), id(r+1, c))
			}
		}
	}
	return build(t, b)
}

func build(t testing.TB, b *roadnet.Builder) *roadnet.CityMap {
	t.Helper()
	m, err := b.Build()
	must(t, err)
	m.BuildPathTable(4)
	return m
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("building fixture map: %v", err)
	}
}
