package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleet-sim/fleet-sim/sim/internal/testutil"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
	"github.com/fleet-sim/fleet-sim/sim/trace"
)

// lineMap returns a two-way single-road map and its forward (1→2) and
// backward (2→1) roads.
func lineMap(t *testing.T, length, speed float64) (*roadnet.CityMap, *roadnet.Road, *roadnet.Road) {
	t.Helper()
	m := testutil.Line(t, length, speed)
	a, _ := m.IntersectionByID(1)
	b, _ := m.IntersectionByID(2)
	fwd, ok := m.RoadBetween(a, b)
	require.True(t, ok)
	back, ok := m.RoadBetween(b, a)
	require.True(t, ok)
	return m, m.Road(fwd), m.Road(back)
}

func testConfig() SimConfig {
	return SimConfig{
		Seed:        42,
		NumAgents:   1,
		MaxLifetime: 600,
		Trace:       trace.TraceConfig{Level: trace.TraceLevelDecisions},
	}
}

func specOn(m *roadnet.CityMap, available int64, pickup, dropoff roadnet.LocationOnRoad) ResourceSpec {
	return ResourceSpec{
		AvailableTime: available,
		Pickup:        pickup,
		Dropoff:       dropoff,
		TripTime:      m.TravelTimeBetween(pickup, dropoff),
	}
}

// placeAgent moves a deployed agent before the run starts.
func placeAgent(s *Simulator, id int64, loc roadnet.LocationOnRoad) {
	s.agents[id].Loc = loc
}

type change struct {
	res   Resource
	state ResourceState
	time  int64
}

// scriptedFleet is a FleetManager whose decisions are supplied by the test.
// By default it assigns nothing and routes agents to the lowest-index
// neighbour.
type scriptedFleet struct {
	t     *testing.T
	m     *roadnet.CityMap
	sim   *Simulator
	check bool // verify kernel invariants on every notification

	introduced          []int64
	changes             []change
	reached             int
	reachedWithResource int

	onChange func(f *scriptedFleet, res Resource, state ResourceState, time int64) Action
	next     func(agentID int64, time int64, loc roadnet.LocationOnRoad) roadnet.IntersectionIndex
}

func newScriptedFleet(t *testing.T, m *roadnet.CityMap) *scriptedFleet {
	return &scriptedFleet{t: t, m: m}
}

func (f *scriptedFleet) OnAgentIntroduced(agentID int64, _ roadnet.LocationOnRoad, _ int64) {
	f.introduced = append(f.introduced, agentID)
}

func (f *scriptedFleet) OnResourceAvailabilityChange(res Resource, state ResourceState, _ roadnet.LocationOnRoad, time int64) Action {
	f.changes = append(f.changes, change{res: res, state: state, time: time})
	if f.check {
		checkInvariants(f.t, f.sim)
	}
	if f.onChange == nil {
		return NoAction()
	}
	return f.onChange(f, res, state, time)
}

func (f *scriptedFleet) route(agentID int64, time int64, loc roadnet.LocationOnRoad) roadnet.IntersectionIndex {
	if f.check {
		checkInvariants(f.t, f.sim)
	}
	if f.next != nil {
		return f.next(agentID, time, loc)
	}
	return f.m.Intersection(f.m.Road(loc.Road).To).Neighbors()[0]
}

func (f *scriptedFleet) OnReachIntersection(agentID int64, time int64, loc roadnet.LocationOnRoad) roadnet.IntersectionIndex {
	f.reached++
	return f.route(agentID, time, loc)
}

func (f *scriptedFleet) OnReachIntersectionWithResource(agentID int64, time int64, loc roadnet.LocationOnRoad, _ Resource) roadnet.IntersectionIndex {
	f.reachedWithResource++
	return f.route(agentID, time, loc)
}

func (f *scriptedFleet) changesOf(state ResourceState) []change {
	var out []change
	for _, c := range f.changes {
		if c.state == state {
			out = append(out, c)
		}
	}
	return out
}

// checkInvariants asserts assignment exclusivity and that links are mutual.
func checkInvariants(t *testing.T, s *Simulator) {
	t.Helper()
	if s == nil {
		return
	}
	linkedTo := make(map[int64]int64)
	for id, a := range s.agents {
		if a.linked != nil {
			require.Equal(t, phaseWaiting, a.linked.phase, "agent %d linked to resource %d", id, a.linked.id)
			require.Same(t, a, a.linked.agent, "link of agent %d is not mutual", id)
			prev, dup := linkedTo[a.linked.id]
			require.False(t, dup, "resource %d linked to agents %d and %d", a.linked.id, prev, id)
			linkedTo[a.linked.id] = id
		}
		if a.serving != nil {
			require.Equal(t, phasePickedUp, a.serving.phase)
			require.Same(t, a, a.serving.agent)
			require.NotSame(t, a.serving, a.linked)
		}
		if a.approaching(s.clock) {
			require.Nil(t, a.linked, "agent %d linked on its way to pickup %d", id, a.serving.id)
		}
	}
	for id, r := range s.waiting {
		require.Equal(t, phaseWaiting, r.phase, "resource %d in pool", id)
	}
	for id, r := range s.resources {
		if r.phase == phasePickedUp || r.phase == phaseDroppedOff {
			require.False(t, s.queue.Contains(r), "picked up resource %d still queued", id)
			_, inPool := s.waiting[id]
			require.False(t, inPool, "picked up resource %d still waiting", id)
		}
	}
}
