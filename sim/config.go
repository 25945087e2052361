package sim

import (
	"fmt"

	"github.com/fleet-sim/fleet-sim/sim/trace"
)

// TrafficConfig groups time-of-day traffic parameters.
type TrafficConfig struct {
	Dynamic bool  // true = integrate the traffic pattern, false = static road speeds
	Step    int64 // pattern epoch length in seconds (must be > 0 when Dynamic)
	Window  int64 // estimation window in seconds (must be >= Step when Dynamic)
}

// SimConfig groups the parameters of one simulation run. It is built once at
// startup and passed by value into the simulator and strategy constructors.
type SimConfig struct {
	Seed             int64         // master seed for PartitionedRNG
	NumAgents        int           // vehicles deployed at the first availability time (must be > 0)
	MaxLifetime      int64         // seconds a request waits before it expires (must be > 0)
	EndTime          int64         // nominal end of the run; 0 = last availability time (see Simulator.EndTime)
	Traffic          TrafficConfig // dynamic traffic settings
	PathTableWorkers int           // goroutines used to build the shortest-path table (0 = 1)
	Trace            trace.TraceConfig
}

// Validate reports the first invalid field.
func (c SimConfig) Validate() error {
	if c.NumAgents <= 0 {
		return fmt.Errorf("number of agents must be > 0, got %d", c.NumAgents)
	}
	if c.MaxLifetime <= 0 {
		return fmt.Errorf("max lifetime must be > 0, got %d", c.MaxLifetime)
	}
	if c.EndTime < 0 {
		return fmt.Errorf("end time must be >= 0, got %d", c.EndTime)
	}
	if c.PathTableWorkers < 0 {
		return fmt.Errorf("path table workers must be >= 0, got %d", c.PathTableWorkers)
	}
	if !trace.IsValidTraceLevel(string(c.Trace.Level)) {
		return fmt.Errorf("unknown trace level %q", c.Trace.Level)
	}
	if c.Traffic.Dynamic {
		if c.Traffic.Step <= 0 {
			return fmt.Errorf("traffic step must be > 0, got %d", c.Traffic.Step)
		}
		if c.Traffic.Window < c.Traffic.Step {
			return fmt.Errorf("traffic window %d must be >= step %d", c.Traffic.Window, c.Traffic.Step)
		}
	}
	return nil
}
