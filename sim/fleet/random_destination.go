package fleet

import (
	"math/rand"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fleet-sim/fleet-sim/sim"
	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// noResource marks an agent with nothing assigned.
const noResource int64 = -1

// planAttempts bounds the destination draws before falling back to a random neighbour.
const planAttempts = 8

// agentState is what the strategy believes about one agent.
type agentState struct {
	loc      roadnet.LocationOnRoad // last observed location
	seen     int64                  // time loc was observed
	resource int64                  // resource assigned to or carried by the agent
	route    []roadnet.IntersectionIndex
}

// RandomDestination assigns every new resource to the idle agent that can
// reach it soonest, and hands a freed agent the nearest resource still
// waiting. Empty agents drive along the shortest path to a random
// intersection and draw a new one on arrival.
type RandomDestination struct {
	m    *roadnet.CityMap
	rng  *rand.Rand
	walk bool // route one random hop at a time instead of to a destination

	agents  map[int64]*agentState
	waiting map[int64]sim.Resource // unassigned resources in the pool
	carrier map[int64]int64        // resource → agent, assigned or carried
}

// NewRandomDestination creates the strategy on a copy of cityMap.
func NewRandomDestination(cityMap *roadnet.CityMap, rng *rand.Rand) *RandomDestination {
	return &RandomDestination{
		m:       cityMap.Clone(),
		rng:     rng,
		agents:  make(map[int64]*agentState),
		waiting: make(map[int64]sim.Resource),
		carrier: make(map[int64]int64),
	}
}

// NewRandomWalk creates the same assignment logic with agents that pick a
// random neighbouring intersection at every intersection.
func NewRandomWalk(cityMap *roadnet.CityMap, rng *rand.Rand) *RandomDestination {
	f := NewRandomDestination(cityMap, rng)
	f.walk = true
	return f
}

// OnAgentIntroduced implements sim.FleetManager.
func (f *RandomDestination) OnAgentIntroduced(agentID int64, loc roadnet.LocationOnRoad, time int64) {
	f.agents[agentID] = &agentState{loc: loc, seen: time, resource: noResource}
}

// OnResourceAvailabilityChange implements sim.FleetManager.
func (f *RandomDestination) OnResourceAvailabilityChange(res sim.Resource, state sim.ResourceState, loc roadnet.LocationOnRoad, time int64) sim.Action {
	switch state {
	case sim.Available:
		if agentID, ok := f.nearestIdleAgent(res, time); ok {
			f.bind(agentID, res.ID)
			return sim.Assign(agentID, res.ID)
		}
		f.waiting[res.ID] = res

	case sim.PickedUp:
		delete(f.waiting, res.ID)
		if res.AssignedAgent != sim.NoAgent {
			f.bind(res.AssignedAgent, res.ID)
		}

	case sim.DroppedOff:
		agentID, ok := f.carrier[res.ID]
		if !ok {
			return sim.NoAction()
		}
		delete(f.carrier, res.ID)
		a := f.agent(agentID)
		a.resource = noResource
		a.loc, a.seen, a.route = loc, time, nil
		if next, ok := f.nearestWaiting(a, time); ok {
			delete(f.waiting, next.ID)
			f.bind(agentID, next.ID)
			return sim.Assign(agentID, next.ID)
		}

	case sim.Expired:
		delete(f.waiting, res.ID)
		if agentID, ok := f.carrier[res.ID]; ok {
			delete(f.carrier, res.ID)
			f.agent(agentID).resource = noResource
		}
	}
	return sim.NoAction()
}

// OnReachIntersection implements sim.FleetManager.
func (f *RandomDestination) OnReachIntersection(agentID int64, time int64, loc roadnet.LocationOnRoad) roadnet.IntersectionIndex {
	a := f.agent(agentID)
	here := f.m.Road(loc.Road).To
	if len(a.route) == 0 || !f.m.IsAdjacent(loc.Road, a.route[0]) {
		a.route = f.plan(here)
	}
	if len(a.route) == 0 {
		logrus.Warnf("[t %07d] agent %d stuck at dead-end intersection %d", time, agentID, f.m.Intersection(here).ID)
		return roadnet.NoIntersection
	}
	next := a.route[0]
	a.route = a.route[1:]
	f.moved(a, here, next, time)
	return next
}

// OnReachIntersectionWithResource implements sim.FleetManager. The agent
// heads for the start of the pickup road, then onto it.
func (f *RandomDestination) OnReachIntersectionWithResource(agentID int64, time int64, loc roadnet.LocationOnRoad, res sim.Resource) roadnet.IntersectionIndex {
	a := f.agent(agentID)
	a.route = nil
	here := f.m.Road(loc.Road).To
	pickupRoad := f.m.Road(res.Pickup.Road)

	next := roadnet.NoIntersection
	if here == pickupRoad.From {
		next = pickupRoad.To
	} else if path := f.m.ShortestTravelTimePath(here, pickupRoad.From); len(path) > 1 {
		next = path[1]
	} else if hop := f.randomNeighbour(here); len(hop) > 0 {
		next = hop[0]
	}
	if next != roadnet.NoIntersection {
		f.moved(a, here, next, time)
	}
	return next
}

// agent returns the state of agentID, creating it for agents the strategy
// was never introduced to.
func (f *RandomDestination) agent(agentID int64) *agentState {
	a, ok := f.agents[agentID]
	if !ok {
		a = &agentState{resource: noResource}
		f.agents[agentID] = a
	}
	return a
}

func (f *RandomDestination) bind(agentID, resourceID int64) {
	f.agent(agentID).resource = resourceID
	f.carrier[resourceID] = agentID
}

// moved records that the agent left here towards next.
func (f *RandomDestination) moved(a *agentState, here, next roadnet.IntersectionIndex, time int64) {
	if ri, ok := f.m.RoadBetween(here, next); ok {
		a.loc = roadnet.StartOf(f.m.Road(ri))
		a.seen = time
	}
}

// approach estimates the seconds a needs to reach dst from its last observed
// location.
func (f *RandomDestination) approach(a *agentState, dst roadnet.LocationOnRoad) (int64, bool) {
	if !f.m.Reachable(a.loc, dst) {
		return 0, false
	}
	return f.m.TravelTimeBetween(a.loc, dst), true
}

func (f *RandomDestination) nearestIdleAgent(res sim.Resource, time int64) (int64, bool) {
	ids := lo.Keys(f.agents)
	slices.Sort(ids)
	best, bestTime := sim.NoAgent, int64(-1)
	for _, id := range ids {
		a := f.agents[id]
		if a.resource != noResource {
			continue
		}
		dt, ok := f.approach(a, res.Pickup)
		if !ok || time+dt > res.ExpirationTime {
			continue
		}
		if bestTime < 0 || dt < bestTime {
			best, bestTime = id, dt
		}
	}
	return best, best != sim.NoAgent
}

func (f *RandomDestination) nearestWaiting(a *agentState, time int64) (sim.Resource, bool) {
	ids := lo.Keys(f.waiting)
	slices.Sort(ids)
	var best sim.Resource
	bestTime := int64(-1)
	for _, id := range ids {
		res := f.waiting[id]
		dt, ok := f.approach(a, res.Pickup)
		if !ok || time+dt > res.ExpirationTime {
			continue
		}
		if bestTime < 0 || dt < bestTime {
			best, bestTime = res, dt
		}
	}
	return best, bestTime >= 0
}

// plan returns the intersections to visit after here.
func (f *RandomDestination) plan(here roadnet.IntersectionIndex) []roadnet.IntersectionIndex {
	if f.walk {
		return f.randomNeighbour(here)
	}
	n := f.m.NumIntersections()
	for range planAttempts {
		dest := roadnet.IntersectionIndex(f.rng.Intn(n))
		if dest == here {
			continue
		}
		if path := f.m.ShortestTravelTimePath(here, dest); len(path) > 1 {
			return path[1:]
		}
	}
	return f.randomNeighbour(here)
}

func (f *RandomDestination) randomNeighbour(here roadnet.IntersectionIndex) []roadnet.IntersectionIndex {
	neighbours := f.m.Intersection(here).Neighbors()
	if len(neighbours) == 0 {
		return nil
	}
	return []roadnet.IntersectionIndex{neighbours[f.rng.Intn(len(neighbours))]}
}
