package sim

import (
	"fmt"

	"github.com/fleet-sim/fleet-sim/sim/roadnet"
)

// NoAgent marks a resource with no assigned agent.
const NoAgent int64 = -1

// ResourceSpec is one request as delivered by the loader: map-matched pickup
// and drop-off locations, availability time and static trip time.
type ResourceSpec struct {
	AvailableTime int64
	PickupLat     float64
	PickupLon     float64
	DropoffLat    float64
	DropoffLon    float64
	Pickup        roadnet.LocationOnRoad
	Dropoff       roadnet.LocationOnRoad
	TripTime      int64
}

// ResourceState is the availability change a FleetManager is notified about.
type ResourceState int

const (
	Available ResourceState = iota
	PickedUp
	DroppedOff
	Expired
)

func (s ResourceState) String() string {
	switch s {
	case Available:
		return "AVAILABLE"
	case PickedUp:
		return "PICKED_UP"
	case DroppedOff:
		return "DROPPED_OFF"
	case Expired:
		return "EXPIRED"
	}
	return fmt.Sprintf("ResourceState(%d)", int(s))
}

// Resource is a read-only snapshot of a request handed to a FleetManager.
type Resource struct {
	ID             int64
	Pickup         roadnet.LocationOnRoad
	Dropoff        roadnet.LocationOnRoad
	AvailableTime  int64
	ExpirationTime int64
	TripTime       int64
	AssignedAgent  int64 // NoAgent when unassigned
}

// ActionType enumerates what a FleetManager may ask for.
type ActionType int

const (
	ActionNone ActionType = iota
	ActionAssign
	ActionAbort
)

func (t ActionType) String() string {
	switch t {
	case ActionNone:
		return "none"
	case ActionAssign:
		return "assign"
	case ActionAbort:
		return "abort"
	}
	return fmt.Sprintf("ActionType(%d)", int(t))
}

// Action is a FleetManager's reply to a resource availability change.
type Action struct {
	Type       ActionType
	AgentID    int64
	ResourceID int64
}

// NoAction leaves the fleet as it is.
func NoAction() Action { return Action{Type: ActionNone, AgentID: NoAgent, ResourceID: -1} }

// Assign asks agentID to pick up resourceID.
func Assign(agentID, resourceID int64) Action {
	return Action{Type: ActionAssign, AgentID: agentID, ResourceID: resourceID}
}

// Abort detaches agentID from a resource it has not picked up yet.
func Abort(agentID int64) Action {
	return Action{Type: ActionAbort, AgentID: agentID, ResourceID: -1}
}

// FleetManager is the dispatch strategy. The simulator calls it synchronously
// and never makes matching decisions itself. Locations and resources are
// values; a strategy that needs the map gets its own CityMap.Clone.
type FleetManager interface {
	// OnAgentIntroduced is called once per agent at deployment.
	OnAgentIntroduced(agentID int64, loc roadnet.LocationOnRoad, time int64)

	// OnResourceAvailabilityChange is the only place an assignment can be
	// created or aborted.
	OnResourceAvailabilityChange(res Resource, state ResourceState, loc roadnet.LocationOnRoad, time int64) Action

	// OnReachIntersection routes an empty agent. The result must be a
	// neighbour of the intersection at the end of loc's road.
	OnReachIntersection(agentID int64, time int64, loc roadnet.LocationOnRoad) roadnet.IntersectionIndex

	// OnReachIntersectionWithResource routes an agent assigned to res that
	// could not yet reach its pickup in time.
	OnReachIntersectionWithResource(agentID int64, time int64, loc roadnet.LocationOnRoad, res Resource) roadnet.IntersectionIndex
}
