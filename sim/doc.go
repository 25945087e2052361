// Package sim provides the discrete-event engine that simulates a vehicle
// fleet serving time-stamped pickup requests on a road network.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go: AgentEvent (a vehicle) and ResourceEvent (a request), the two event kinds
//   - event_queue.go: deterministic ordering by time, then category, then id
//   - simulator.go: the event loop and the agent/resource transitions
//   - assignment.go: validation and application of fleet manager actions
//
// # Architecture
//
// The sim package owns the clock, the queue and the waiting pool. Everything
// else lives in sub-packages:
//   - sim/roadnet/: road graph, shortest-path table, link KD-tree, map matching
//   - sim/traffic/: time-of-day speed factors and dynamic travel times
//   - sim/mapdata/: network file loading
//   - sim/tripdata/: trip record loading and map matching
//   - sim/fleet/: reference dispatch strategies
//   - sim/trace/: decision trace recording
//
// # Key Interfaces
//
// FleetManager is the single extension point. The simulator notifies it of
// agent deployment, resource availability changes and intersection arrivals,
// and applies the Action it returns. It never matches agents to resources on
// its own.
package sim
