// Package trace records the outcome of every dispatch decision the simulator
// applies or rejects, for offline analysis of fleet strategies.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// DecisionKind names the protocol step a record describes.
type DecisionKind string

const (
	KindAssign DecisionKind = "assign"
	KindAbort  DecisionKind = "abort"
	KindPickup DecisionKind = "pickup"
	KindExpire DecisionKind = "expire"
)

// DecisionRecord captures a single assignment protocol outcome.
type DecisionRecord struct {
	Clock      int64
	Kind       DecisionKind
	AgentID    int64 // -1 when no agent is involved
	ResourceID int64 // -1 when no resource is involved
	Applied    bool
	Reason     string
}

// PickupRecord captures a committed pickup and the times it was planned with.
type PickupRecord struct {
	Clock        int64
	AgentID      int64
	ResourceID   int64
	PickupTime   int64
	DropoffTime  int64
	ApproachTime int64
}
