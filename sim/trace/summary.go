package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions      int
	AppliedAssignments  int
	RejectedAssignments int
	Aborts              int
	RejectedAborts      int
	Expirations         int
	Pickups             int
	MeanApproachTime    float64
	MaxApproachTime     int64
	RejectReasons       map[string]int // reason → count of rejected actions
	PickupsPerAgent     map[int64]int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RejectReasons:   make(map[string]int),
		PickupsPerAgent: make(map[int64]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	for _, d := range st.Decisions {
		switch d.Kind {
		case KindAssign:
			if d.Applied {
				summary.AppliedAssignments++
			} else {
				summary.RejectedAssignments++
			}
		case KindAbort:
			if d.Applied {
				summary.Aborts++
			} else {
				summary.RejectedAborts++
			}
		case KindExpire:
			summary.Expirations++
		}
		if !d.Applied && d.Reason != "" {
			summary.RejectReasons[d.Reason]++
		}
	}

	if len(st.Pickups) > 0 {
		total := int64(0)
		for _, p := range st.Pickups {
			summary.PickupsPerAgent[p.AgentID]++
			total += p.ApproachTime
			if p.ApproachTime > summary.MaxApproachTime {
				summary.MaxApproachTime = p.ApproachTime
			}
		}
		summary.Pickups = len(st.Pickups)
		summary.MeanApproachTime = float64(total) / float64(len(st.Pickups))
	}
	return summary
}
