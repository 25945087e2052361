package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures all assign, abort, pickup and expiry outcomes.
	TraceLevelDecisions TraceLevel = "decisions"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects decision records during a run.
type SimulationTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
	Pickups   []PickupRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
		Pickups:   make([]PickupRecord, 0),
	}
}

// Enabled reports whether records are kept. Safe on a nil trace.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelDecisions
}

// RecordDecision appends a protocol outcome.
func (st *SimulationTrace) RecordDecision(record DecisionRecord) {
	if !st.Enabled() {
		return
	}
	st.Decisions = append(st.Decisions, record)
}

// RecordPickup appends a committed pickup.
func (st *SimulationTrace) RecordPickup(record PickupRecord) {
	if !st.Enabled() {
		return
	}
	st.Pickups = append(st.Pickups, record)
}

// RetractPickup removes the latest pickup of a resource whose pickup was
// aborted before it happened.
func (st *SimulationTrace) RetractPickup(resourceID int64) {
	if !st.Enabled() {
		return
	}
	for i := len(st.Pickups) - 1; i >= 0; i-- {
		if st.Pickups[i].ResourceID == resourceID {
			st.Pickups = append(st.Pickups[:i], st.Pickups[i+1:]...)
			return
		}
	}
}
