package sim

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
	"github.com/fleet-sim/fleet-sim/sim/trace"
	"github.com/fleet-sim/fleet-sim/sim/traffic"
)

// Simulator holds the clock, the event queue, the fleet and the waiting
// pool, and runs the event loop. It is single-threaded: each event runs to
// completion before the next one is popped.
type Simulator struct {
	cfg     SimConfig
	cityMap *roadnet.CityMap
	pattern *traffic.Pattern // nil = static road speeds
	fleet   FleetManager
	rng     *PartitionedRNG

	queue       *EventQueue
	nextEventID int64
	clock       int64
	startTime   int64
	endTime     int64
	started     bool
	hasRun      bool

	agents    map[int64]*AgentEvent
	resources map[int64]*ResourceEvent
	waiting   map[int64]*ResourceEvent
	inFlight  int // agents with a committed pickup

	assignment *AssignmentManager
	metrics    *Metrics
	trace      *trace.SimulationTrace
}

// NewSimulator builds a run over cityMap, whose shortest-path table must
// already be built. Resources are scheduled at their availability times and
// cfg.NumAgents agents are deployed at random road locations at the first
// availability time. pattern may be nil unless cfg.Traffic.Dynamic is set.
func NewSimulator(cfg SimConfig, cityMap *roadnet.CityMap, pattern *traffic.Pattern, fm FleetManager, specs []ResourceSpec) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cityMap == nil || cityMap.PathTable() == nil {
		return nil, fmt.Errorf("city map with a built shortest-path table is required")
	}
	if cityMap.NumRoads() == 0 {
		return nil, fmt.Errorf("city map has no roads")
	}
	if fm == nil {
		return nil, fmt.Errorf("fleet manager is required")
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no resources to simulate")
	}
	if cfg.Traffic.Dynamic && pattern == nil {
		return nil, fmt.Errorf("dynamic traffic requires a traffic pattern")
	}
	if !cfg.Traffic.Dynamic {
		pattern = nil
	}

	s := &Simulator{
		cfg:       cfg,
		cityMap:   cityMap,
		pattern:   pattern,
		fleet:     fm,
		rng:       NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		queue:     NewEventQueue(),
		agents:    make(map[int64]*AgentEvent),
		resources: make(map[int64]*ResourceEvent),
		waiting:   make(map[int64]*ResourceEvent),
		metrics:   NewMetrics(),
		trace:     trace.NewSimulationTrace(cfg.Trace),
	}
	s.assignment = &AssignmentManager{sim: s}

	specs = slices.Clone(specs)
	slices.SortStableFunc(specs, func(a, b ResourceSpec) int { return cmp.Compare(a.AvailableTime, b.AvailableTime) })
	for _, spec := range specs {
		r := &ResourceEvent{
			baseEvent:      newBaseEvent(s.newEventID(), spec.AvailableTime),
			Spec:           spec,
			ExpirationTime: spec.AvailableTime + cfg.MaxLifetime,
			phase:          phasePending,
		}
		s.resources[r.id] = r
		s.queue.Schedule(r)
	}
	s.metrics.TotalResources = len(specs)

	s.endTime = cfg.EndTime
	if s.endTime == 0 {
		s.endTime = specs[len(specs)-1].AvailableTime
	}

	s.deployAgents(specs[0].AvailableTime)
	logrus.Infof("Simulator ready: %d agents, %d resources, end time %d, dynamic traffic %v",
		len(s.agents), len(s.resources), s.endTime, s.pattern != nil)
	return s, nil
}

func (s *Simulator) newEventID() int64 {
	id := s.nextEventID
	s.nextEventID++
	return id
}

// deployAgents places agents uniformly over roads and offsets.
func (s *Simulator) deployAgents(at int64) {
	rng := s.rng.ForSubsystem(SubsystemDeployment)
	for i := 0; i < s.cfg.NumAgents; i++ {
		road := s.cityMap.Road(roadnet.RoadIndex(rng.Intn(s.cityMap.NumRoads())))
		loc := roadnet.NewLocationOnRoad(road, rng.Float64()*road.Length)
		a := &AgentEvent{
			baseEvent:   newBaseEvent(s.newEventID(), at),
			Cause:       DroppingOff,
			Loc:         loc,
			searchStart: at,
		}
		s.agents[a.id] = a
		s.queue.Schedule(a)
		s.fleet.OnAgentIntroduced(a.id, loc, at)
	}
	s.metrics.TotalAgents = len(s.agents)
}

// Clock returns the current simulation time.
func (s *Simulator) Clock() int64 { return s.clock }

// StartTime returns the time of the first processed event.
func (s *Simulator) StartTime() int64 { return s.startTime }

// EndTime returns the nominal end time. The run continues past it while any
// agent is delivering, but no expiration past it is processed: resources
// still waiting when the run stops count as Unresolved, not expired. With the
// default end time that includes every request still waiting at the last
// availability time; an end time of the last availability time plus
// MaxLifetime lets every request resolve.
func (s *Simulator) EndTime() int64 { return s.endTime }

// Metrics returns the metrics accumulated so far.
func (s *Simulator) Metrics() *Metrics { return s.metrics }

// Trace returns the decision trace, empty unless tracing is enabled.
func (s *Simulator) Trace() *trace.SimulationTrace { return s.trace }

// AgentIDs returns the agent ids in ascending order.
func (s *Simulator) AgentIDs() []int64 {
	ids := lo.Keys(s.agents)
	slices.Sort(ids)
	return ids
}

// Waiting returns snapshots of the resources in the waiting pool, by id.
func (s *Simulator) Waiting() []Resource {
	ids := lo.Keys(s.waiting)
	slices.Sort(ids)
	return lo.Map(ids, func(id int64, _ int) Resource { return s.waiting[id].snapshot() })
}

// Run processes events until the queue is empty or the next event lies past
// the end time with no agent delivering. It returns the run metrics.
func (s *Simulator) Run() *Metrics {
	if s.hasRun {
		panic("Simulator.Run() called more than once")
	}
	s.hasRun = true

	for s.queue.Len() > 0 {
		if next := s.queue.Peek(); next.Time() > s.endTime && s.inFlight == 0 {
			break
		}
		ev := s.queue.PopNext()
		if ev.Time() < s.clock {
			panic(fmt.Sprintf("clock going backwards: event %d at %d, clock %d", ev.ID(), ev.Time(), s.clock))
		}
		if !s.started {
			s.started = true
			s.startTime = ev.Time()
		}
		s.clock = ev.Time()
		s.trigger(ev)
	}

	s.metrics.SimStartTime = s.startTime
	s.metrics.SimEndTime = s.clock
	s.metrics.Unresolved = len(s.waiting) + s.inFlight
	logrus.Infof("Simulation ended at %d: %d picked up, %d expired, %d unresolved",
		s.clock, len(s.metrics.Assignments), len(s.metrics.Expirations), s.metrics.Unresolved)
	return s.metrics
}

// trigger dispatches an event to the transition of its kind.
func (s *Simulator) trigger(ev Event) {
	switch e := ev.(type) {
	case *AgentEvent:
		logrus.Debugf("[t %07d] %s", s.clock, e)
		switch e.Cause {
		case DroppingOff:
			s.agentDroppingOff(e)
		case IntersectionReached:
			s.agentAtIntersection(e)
		default:
			panic(fmt.Sprintf("agent %d has unknown cause %d", e.id, e.Cause))
		}
	case *ResourceEvent:
		logrus.Debugf("[t %07d] %s", s.clock, e)
		switch e.phase {
		case phasePending:
			s.resourceAvailable(e)
		case phaseWaiting:
			s.resourceExpired(e)
		default:
			panic(fmt.Sprintf("resource %d triggered while %s", e.id, e.phase))
		}
	default:
		panic(fmt.Sprintf("unknown event type %T", ev))
	}
}

// agentDroppingOff completes a delivery if there is one, then either picks up
// the resource the agent is assigned to or starts searching.
func (s *Simulator) agentDroppingOff(a *AgentEvent) {
	t := s.clock
	if a.serving != nil {
		s.completeTrip(a, t)
		// the drop-off notification may already have sent the agent on its way
		if s.queue.Contains(a) {
			return
		}
	}
	if a.linked != nil && s.tryPickup(a, a.linked, t, a.Loc) {
		return
	}
	s.startSearch(a, t)
}

func (s *Simulator) completeTrip(a *AgentEvent, t int64) {
	r := a.serving
	a.serving = nil
	a.searchStart = t
	s.inFlight--
	r.phase = phaseDroppedOff
	r.agent = nil

	s.metrics.recordTrip(TripRecord{
		AgentID:     a.id,
		ResourceID:  r.id,
		PickupTime:  r.pickupTime,
		DropoffTime: t,
		TripTime:    t - r.pickupTime,
	})
	logrus.Debugf("[t %07d] agent %d dropped off resource %d", t, a.id, r.id)

	action := s.fleet.OnResourceAvailabilityChange(r.snapshot(), DroppedOff, r.Spec.Dropoff, t)
	s.assignment.Apply(action, t)
}

// startSearch sends an empty agent to the end of its current road.
func (s *Simulator) startSearch(a *AgentEvent, t int64) {
	road := s.cityMap.Road(a.Loc.Road)
	end := roadnet.EndOf(road)
	s.beginLeg(a, t, a.Loc, end)
}

func (s *Simulator) beginLeg(a *AgentEvent, t int64, from, to roadnet.LocationOnRoad) {
	dt, _ := s.routeTime(t, from, to)
	// a search leg always advances the clock so that strategies cycling over
	// very short roads cannot stall it
	dt = max(dt, 1)
	a.Cause = IntersectionReached
	a.legStart = t
	a.legStartLoc = from
	a.Loc = to
	a.setTime(t + dt)
	s.queue.Schedule(a)
}

// agentAtIntersection picks up the assigned resource when it is reachable in
// time, otherwise asks the fleet manager where to go next.
func (s *Simulator) agentAtIntersection(a *AgentEvent) {
	t := s.clock
	if a.linked != nil && s.tryPickup(a, a.linked, t, a.Loc) {
		return
	}

	var next roadnet.IntersectionIndex
	if a.linked != nil {
		next = s.fleet.OnReachIntersectionWithResource(a.id, t, a.Loc, a.linked.snapshot())
	} else {
		next = s.fleet.OnReachIntersection(a.id, t, a.Loc)
	}

	current := s.cityMap.Road(a.Loc.Road)
	if next == roadnet.NoIntersection {
		panic(fmt.Sprintf("agent %d at intersection %d: fleet manager returned no next intersection",
			a.id, s.cityMap.Intersection(current.To).ID))
	}
	if !s.cityMap.IsAdjacent(current.Index, next) {
		panic(fmt.Sprintf("agent %d at intersection %d: next intersection %d is not adjacent",
			a.id, s.cityMap.Intersection(current.To).ID, next))
	}
	ri, _ := s.cityMap.RoadBetween(current.To, next)
	road := s.cityMap.Road(ri)
	s.beginLeg(a, t, roadnet.StartOf(road), roadnet.EndOf(road))
}

// resourceAvailable adds r to the waiting pool, lets the fleet manager react
// and arms the expiration unless r was picked up right away.
func (s *Simulator) resourceAvailable(r *ResourceEvent) {
	t := s.clock
	r.phase = phaseWaiting
	s.waiting[r.id] = r

	action := s.fleet.OnResourceAvailabilityChange(r.snapshot(), Available, r.Spec.Pickup, t)
	s.assignment.Apply(action, t)

	// an aborted pickup may already have re-armed the expiration
	if r.phase == phaseWaiting && !s.queue.Contains(r) {
		r.setTime(r.ExpirationTime)
		s.queue.Schedule(r)
	}
}

// resourceExpired removes r from the pool. An agent assigned to r that has
// not picked it up is detached before the fleet manager is told.
func (s *Simulator) resourceExpired(r *ResourceEvent) {
	t := s.clock
	r.phase = phaseExpired
	delete(s.waiting, r.id)

	detached := NoAgent
	if a := r.agent; a != nil {
		detached = a.id
		a.linked = nil
		r.agent = nil
		logrus.Debugf("[t %07d] agent %d detached from expired resource %d", t, a.id, r.id)
	}
	s.metrics.recordExpiration(ExpirationRecord{
		ResourceID:    r.id,
		Time:          t,
		WaitTime:      t - r.Spec.AvailableTime,
		DetachedAgent: detached,
	})
	s.trace.RecordDecision(trace.DecisionRecord{
		Clock: t, Kind: trace.KindExpire, AgentID: detached, ResourceID: r.id, Applied: true,
	})

	action := s.fleet.OnResourceAvailabilityChange(r.snapshot(), Expired, r.Spec.Pickup, t)
	s.assignment.Apply(action, t)
}

// agentLocation returns where a is at time t.
func (s *Simulator) agentLocation(a *AgentEvent, t int64) roadnet.LocationOnRoad {
	if a.Cause == IntersectionReached && s.queue.Contains(a) {
		return s.TravelRoadForTime(a.legStart, a.legStartLoc, t-a.legStart)
	}
	return a.Loc
}

// tryPickup commits a to r if the pickup, starting from `from` at t, happens
// no later than r's expiration.
func (s *Simulator) tryPickup(a *AgentEvent, r *ResourceEvent, t int64, from roadnet.LocationOnRoad) bool {
	approach, ok := s.routeTime(t, from, r.Spec.Pickup)
	if !ok || t+approach > r.ExpirationTime {
		return false
	}
	s.commitPickup(a, r, t, t+approach, from)
	return true
}

// commitPickup takes r out of the pool and the queue and sends a straight to
// the drop-off, arriving at pickupTime + trip time. Until pickupTime the
// agent is approaching from `from`.
func (s *Simulator) commitPickup(a *AgentEvent, r *ResourceEvent, t, pickupTime int64, from roadnet.LocationOnRoad) {
	s.queue.Remove(a)
	s.queue.Remove(r)
	delete(s.waiting, r.id)

	r.phase = phasePickedUp
	r.agent = a
	r.pickupTime = pickupTime
	a.linked = nil
	a.serving = r
	a.legStart = t
	a.legStartLoc = from
	s.inFlight++

	trip := r.Spec.TripTime
	if s.pattern != nil {
		trip, _ = s.routeTime(pickupTime, r.Spec.Pickup, r.Spec.Dropoff)
	}
	dropoff := pickupTime + trip

	assigned := max(r.assignTime, a.searchStart)
	rec := AssignmentRecord{
		AgentID:      a.id,
		ResourceID:   r.id,
		AssignTime:   assigned,
		PickupTime:   pickupTime,
		CruiseTime:   assigned - a.searchStart,
		ApproachTime: pickupTime - assigned,
		SearchTime:   pickupTime - a.searchStart,
		WaitTime:     pickupTime - r.Spec.AvailableTime,
	}
	s.metrics.recordAssignment(rec)
	s.trace.RecordPickup(trace.PickupRecord{
		Clock:        t,
		AgentID:      a.id,
		ResourceID:   r.id,
		PickupTime:   pickupTime,
		DropoffTime:  dropoff,
		ApproachTime: rec.ApproachTime,
	})

	a.Cause = DroppingOff
	a.Loc = r.Spec.Dropoff
	a.setTime(dropoff)
	s.queue.Schedule(a)
	logrus.Debugf("[t %07d] agent %d picks up resource %d at %d, drops off at %d", t, a.id, r.id, pickupTime, dropoff)

	action := s.fleet.OnResourceAvailabilityChange(r.snapshot(), PickedUp, r.Spec.Pickup, t)
	s.assignment.Apply(action, t)
}

// cancelPickup undoes a committed pickup that has not happened yet: the
// drop-off is unscheduled, r returns to the waiting pool with its expiration
// re-armed and its assignment record is withdrawn, and a starts searching
// from where it is on the approach route.
func (s *Simulator) cancelPickup(a *AgentEvent, r *ResourceEvent, t int64) {
	s.queue.Remove(a)
	s.inFlight--
	a.serving = nil
	a.Loc = s.routeLocation(a.legStart, a.legStartLoc, r.Spec.Pickup, t)

	r.phase = phaseWaiting
	r.agent = nil
	r.pickupTime = 0
	s.waiting[r.id] = r
	r.setTime(r.ExpirationTime)
	s.queue.Schedule(r)

	s.metrics.retractAssignment(r.id)
	s.trace.RetractPickup(r.id)
	logrus.Debugf("[t %07d] agent %d dropped its pickup of resource %d at %s", t, a.id, r.id, a.Loc)

	s.startSearch(a, t)
}

// routeLocation returns where an agent that left src at start, heading for
// dst along the static shortest path, is at t.
func (s *Simulator) routeLocation(start int64, src, dst roadnet.LocationOnRoad, t int64) roadnet.LocationOnRoad {
	type stretch struct {
		road     *roadnet.Road
		from, to float64 // offsets
	}
	srcRoad := s.cityMap.Road(src.Road)
	var route []stretch
	if src.Road == dst.Road && src.Offset <= dst.Offset {
		route = []stretch{{srcRoad, src.Offset, dst.Offset}}
	} else {
		dstRoad := s.cityMap.Road(dst.Road)
		route = append(route, stretch{srcRoad, src.Offset, srcRoad.Length})
		roads, err := s.cityMap.RoadsOnPath(s.cityMap.ShortestTravelTimePath(srcRoad.To, dstRoad.From))
		if err != nil {
			panic(fmt.Sprintf("shortest-path table inconsistent with roads: %v", err))
		}
		for _, ri := range roads {
			r := s.cityMap.Road(ri)
			route = append(route, stretch{r, 0, r.Length})
		}
		route = append(route, stretch{dstRoad, 0, dst.Offset})
	}

	now, until := float64(start), float64(t)
	for _, st := range route {
		dist := st.to - st.from
		var dt float64
		if s.pattern != nil {
			dt = s.pattern.ForwardTravelTime(now, st.road.Speed(), dist)
		} else {
			dt = dist / st.road.Speed()
		}
		if now+dt >= until {
			var d float64
			if s.pattern != nil {
				d, _ = s.pattern.TravelDistance(now, st.road.Speed(), until-now, dist)
			} else {
				d = math.Min(st.road.Speed()*(until-now), dist)
			}
			return roadnet.NewLocationOnRoad(st.road, st.from+d)
		}
		now += dt
	}
	return dst
}

// TravelRoadForTime advances loc along its road for elapsed seconds starting
// at startTime, stopping at the end of the road.
func (s *Simulator) TravelRoadForTime(startTime int64, loc roadnet.LocationOnRoad, elapsed int64) roadnet.LocationOnRoad {
	if elapsed <= 0 {
		return loc
	}
	road := s.cityMap.Road(loc.Road)
	remaining := road.Length - loc.Offset
	var d float64
	if s.pattern != nil {
		d, _ = s.pattern.TravelDistance(float64(startTime), road.Speed(), float64(elapsed), remaining)
	} else {
		d = math.Min(road.Speed()*float64(elapsed), remaining)
	}
	return roadnet.NewLocationOnRoad(road, loc.Offset+d)
}

// routeTime returns the travel time from src to dst departing at t, and
// false when dst cannot be reached.
func (s *Simulator) routeTime(t int64, src, dst roadnet.LocationOnRoad) (int64, bool) {
	if !s.cityMap.Reachable(src, dst) {
		return 0, false
	}
	if s.pattern == nil {
		return s.cityMap.TravelTimeBetween(src, dst), true
	}
	return int64(math.Floor(s.dynamicTravelTime(float64(t), src, dst) + 0.5)), true
}

// dynamicTravelTime follows the static shortest path and integrates the
// traffic pattern road by road.
func (s *Simulator) dynamicTravelTime(t float64, src, dst roadnet.LocationOnRoad) float64 {
	srcRoad := s.cityMap.Road(src.Road)
	if src.Road == dst.Road && src.Offset <= dst.Offset {
		return s.pattern.ForwardTravelTime(t, srcRoad.Speed(), dst.Offset-src.Offset)
	}
	dstRoad := s.cityMap.Road(dst.Road)
	now := t + s.pattern.ForwardTravelTime(t, srcRoad.Speed(), srcRoad.Length-src.Offset)
	roads, err := s.cityMap.RoadsOnPath(s.cityMap.ShortestTravelTimePath(srcRoad.To, dstRoad.From))
	if err != nil {
		panic(fmt.Sprintf("shortest-path table inconsistent with roads: %v", err))
	}
	for _, ri := range roads {
		r := s.cityMap.Road(ri)
		now += s.pattern.ForwardTravelTime(now, r.Speed(), r.Length)
	}
	now += s.pattern.ForwardTravelTime(now, dstRoad.Speed(), dst.Offset)
	return now - t
}
