package sim

import (
	"fmt"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// EventCategory breaks ties between events that share a trigger time.
// Agent events run before resource events.
type EventCategory int

const (
	CategoryAgent EventCategory = iota
	CategoryResource
)

func (c EventCategory) String() string {
	switch c {
	case CategoryAgent:
		return "agent"
	case CategoryResource:
		return "resource"
	}
	return fmt.Sprintf("EventCategory(%d)", int(c))
}

// Event is the closed set of schedulable simulation events: *AgentEvent and
// *ResourceEvent. The EventQueue owns queue membership; an event's time must
// not change while it is queued.
type Event interface {
	Time() int64
	ID() int64
	Category() EventCategory
	base() *baseEvent
}

type baseEvent struct {
	id    int64
	time  int64
	index int // position in the EventQueue, -1 when not queued
}

func newBaseEvent(id, time int64) baseEvent {
	return baseEvent{id: id, time: time, index: -1}
}

// Time returns the trigger time in seconds.
func (e *baseEvent) Time() int64 { return e.time }

// ID returns the creation-order id. Agent and resource ids share one sequence.
func (e *baseEvent) ID() int64 { return e.id }

func (e *baseEvent) base() *baseEvent { return e }

func (e *baseEvent) setTime(t int64) {
	if e.index >= 0 {
		panic(fmt.Sprintf("event %d: time changed from %d to %d while queued", e.id, e.time, t))
	}
	e.time = t
}

// AgentCause is what an agent is doing when its event fires.
type AgentCause int

const (
	// IntersectionReached: the agent is searching and arrives at the end of its road.
	IntersectionReached AgentCause = iota
	// DroppingOff: the agent is at a drop-off point or was just deployed.
	DroppingOff
)

func (c AgentCause) String() string {
	switch c {
	case IntersectionReached:
		return "INTERSECTION_REACHED"
	case DroppingOff:
		return "DROPPING_OFF"
	}
	return fmt.Sprintf("AgentCause(%d)", int(c))
}

// AgentEvent is one vehicle. It lives from deployment to the end of the run.
type AgentEvent struct {
	baseEvent
	Cause AgentCause
	// Loc is where the agent is when the event fires.
	Loc roadnet.LocationOnRoad

	legStart    int64 // when the current search leg or approach began
	legStartLoc roadnet.LocationOnRoad
	searchStart int64 // when the agent last became empty

	serving *ResourceEvent // picked up, being delivered
	linked  *ResourceEvent // assigned, not yet picked up
}

// Category implements Event.
func (a *AgentEvent) Category() EventCategory { return CategoryAgent }

// Serving reports whether the agent has a committed pickup it is delivering.
func (a *AgentEvent) Serving() bool { return a.serving != nil }

// approaching reports whether the agent is still on its way to the pickup it
// committed to.
func (a *AgentEvent) approaching(t int64) bool {
	return a.serving != nil && t < a.serving.pickupTime
}

func (a *AgentEvent) String() string {
	return fmt.Sprintf("agent %d (%s at %s)", a.id, a.Cause, a.Loc)
}

type resourcePhase int

const (
	phasePending resourcePhase = iota // not yet available
	phaseWaiting                      // in the waiting pool
	phasePickedUp
	phaseDroppedOff
	phaseExpired
)

var phaseNames = map[resourcePhase]string{
	phasePending:    "pending",
	phaseWaiting:    "waiting",
	phasePickedUp:   "picked-up",
	phaseDroppedOff: "dropped-off",
	phaseExpired:    "expired",
}

func (p resourcePhase) String() string { return phaseNames[p] }

// ResourceEvent is one transportation request. It fires once when it becomes
// available and, unless picked up first, once more when it expires.
type ResourceEvent struct {
	baseEvent
	Spec           ResourceSpec
	ExpirationTime int64

	phase      resourcePhase
	agent      *AgentEvent // linked or serving agent
	assignTime int64
	pickupTime int64
}

// Category implements Event.
func (r *ResourceEvent) Category() EventCategory { return CategoryResource }

func (r *ResourceEvent) String() string {
	return fmt.Sprintf("resource %d (%s)", r.id, r.phase)
}

func (r *ResourceEvent) snapshot() Resource {
	res := Resource{
		ID:             r.id,
		Pickup:         r.Spec.Pickup,
		Dropoff:        r.Spec.Dropoff,
		AvailableTime:  r.Spec.AvailableTime,
		ExpirationTime: r.ExpirationTime,
		TripTime:       r.Spec.TripTime,
		AssignedAgent:  NoAgent,
	}
	if r.agent != nil {
		res.AssignedAgent = r.agent.id
	}
	return res
}
