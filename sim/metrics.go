package sim

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// AssignmentRecord is produced when a pickup is committed.
type AssignmentRecord struct {
	AgentID      int64
	ResourceID   int64
	AssignTime   int64
	PickupTime   int64
	CruiseTime   int64 // empty until assignment
	ApproachTime int64 // assignment until pickup
	SearchTime   int64 // cruise + approach
	WaitTime     int64 // availability until pickup
}

// TripRecord is produced when an agent drops a resource off.
type TripRecord struct {
	AgentID     int64
	ResourceID  int64
	PickupTime  int64
	DropoffTime int64
	TripTime    int64
}

// ExpirationRecord is produced when a resource expires unserved.
type ExpirationRecord struct {
	ResourceID    int64
	Time          int64
	WaitTime      int64 // availability until expiration
	DetachedAgent int64 // agent that was assigned but never picked up, NoAgent if none
}

// Metrics accumulates the records handed over by state transitions. It is
// the only place run statistics are kept.
type Metrics struct {
	TotalAgents     int
	TotalResources  int
	Assignments     []AssignmentRecord
	Trips           []TripRecord
	Expirations     []ExpirationRecord
	RejectedActions int
	Aborts          int
	Unresolved      int // waiting or in flight when the run stopped

	SimStartTime int64
	SimEndTime   int64
}

// NewMetrics returns empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) recordAssignment(r AssignmentRecord) { m.Assignments = append(m.Assignments, r) }
func (m *Metrics) recordTrip(r TripRecord)             { m.Trips = append(m.Trips, r) }
func (m *Metrics) recordExpiration(r ExpirationRecord) { m.Expirations = append(m.Expirations, r) }

// retractAssignment withdraws the latest assignment record of a resource
// whose pickup was aborted before it happened.
func (m *Metrics) retractAssignment(resourceID int64) {
	for i := len(m.Assignments) - 1; i >= 0; i-- {
		if m.Assignments[i].ResourceID == resourceID {
			m.Assignments = slices.Delete(m.Assignments, i, i+1)
			return
		}
	}
}

// Distribution summarizes one time series in seconds.
type Distribution struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

func distributionOf[T any](records []T, value func(T) int64) Distribution {
	if len(records) == 0 {
		return Distribution{}
	}
	xs := make([]float64, len(records))
	for i, r := range records {
		xs[i] = float64(value(r))
	}
	slices.Sort(xs)
	return Distribution{
		Count: len(xs),
		Mean:  stat.Mean(xs, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, xs, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, xs, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, xs, nil),
		Max:   xs[len(xs)-1],
	}
}

// Summary is the aggregate view of a run.
type Summary struct {
	Agents          int          `json:"agents"`
	Resources       int          `json:"resources"`
	PickedUp        int          `json:"picked_up"`
	DroppedOff      int          `json:"dropped_off"`
	Expired         int          `json:"expired"`
	Unresolved      int          `json:"unresolved"`
	ExpirationRate  float64      `json:"expiration_rate"`
	RejectedActions int          `json:"rejected_actions"`
	Aborts          int          `json:"aborts"`
	SimStartTime    int64        `json:"sim_start_time"`
	SimEndTime      int64        `json:"sim_end_time"`
	CruiseTime      Distribution `json:"cruise_time"`
	ApproachTime    Distribution `json:"approach_time"`
	SearchTime      Distribution `json:"search_time"`
	WaitTime        Distribution `json:"wait_time"`
	TripTime        Distribution `json:"trip_time"`
}

// Summary computes aggregates over the recorded transitions.
func (m *Metrics) Summary() Summary {
	s := Summary{
		Agents:          m.TotalAgents,
		Resources:       m.TotalResources,
		PickedUp:        len(m.Assignments),
		DroppedOff:      len(m.Trips),
		Expired:         len(m.Expirations),
		Unresolved:      m.Unresolved,
		RejectedActions: m.RejectedActions,
		Aborts:          m.Aborts,
		SimStartTime:    m.SimStartTime,
		SimEndTime:      m.SimEndTime,
		CruiseTime:      distributionOf(m.Assignments, func(r AssignmentRecord) int64 { return r.CruiseTime }),
		ApproachTime:    distributionOf(m.Assignments, func(r AssignmentRecord) int64 { return r.ApproachTime }),
		SearchTime:      distributionOf(m.Assignments, func(r AssignmentRecord) int64 { return r.SearchTime }),
		TripTime:        distributionOf(m.Trips, func(r TripRecord) int64 { return r.TripTime }),
	}
	// wait time covers both terminal states
	waits := make([]int64, 0, len(m.Assignments)+len(m.Expirations))
	for _, r := range m.Assignments {
		waits = append(waits, r.WaitTime)
	}
	for _, r := range m.Expirations {
		waits = append(waits, r.WaitTime)
	}
	s.WaitTime = distributionOf(waits, func(w int64) int64 { return w })
	if m.TotalResources > 0 {
		s.ExpirationRate = float64(s.Expired) / float64(m.TotalResources)
	}
	return s
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print() {
	s := m.Summary()
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Simulated Interval   : %d .. %d s\n", s.SimStartTime, s.SimEndTime)
	fmt.Printf("Agents               : %d\n", s.Agents)
	fmt.Printf("Resources            : %d\n", s.Resources)
	fmt.Printf("Picked Up            : %d\n", s.PickedUp)
	fmt.Printf("Dropped Off          : %d\n", s.DroppedOff)
	fmt.Printf("Expired              : %d (%.2f%%)\n", s.Expired, 100*s.ExpirationRate)
	fmt.Printf("Unresolved           : %d\n", s.Unresolved)
	fmt.Printf("Rejected Actions     : %d\n", s.RejectedActions)
	if s.PickedUp > 0 {
		printDistribution("Cruise Time", s.CruiseTime)
		printDistribution("Approach Time", s.ApproachTime)
		printDistribution("Search Time", s.SearchTime)
		printDistribution("Trip Time", s.TripTime)
	}
	if s.WaitTime.Count > 0 {
		printDistribution("Wait Time", s.WaitTime)
	}
}

func printDistribution(name string, d Distribution) {
	fmt.Printf("%-21s: mean %.1f s, p50 %.0f, p90 %.0f, p99 %.0f, max %.0f\n", name, d.Mean, d.P50, d.P90, d.P99, d.Max)
}
