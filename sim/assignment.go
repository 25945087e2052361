package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/fleet-sim/fleet-sim/sim/trace"
)

// Reasons recorded for rejected actions.
const (
	reasonUnknownAgent     = "unknown agent"
	reasonUnknownResource  = "unknown resource"
	reasonNotWaiting       = "resource not waiting"
	reasonResourceTaken    = "resource assigned to another agent"
	reasonAgentCommitted   = "agent already assigned"
	reasonAgentApproaching = "agent on its way to a pickup"
	reasonNothingToAbort   = "agent has no pending assignment"
	reasonUnknownAction    = "unknown action type"
)

// AssignmentManager validates and applies the actions a FleetManager returns.
// Actions produced while another action is being applied are queued and run
// in order afterwards, so a notification never re-enters a half-applied
// transition.
type AssignmentManager struct {
	sim      *Simulator
	pending  []Action
	draining bool
}

// Apply applies action at time t. Invalid actions are logged, recorded and ignored.
func (m *AssignmentManager) Apply(action Action, t int64) {
	if action.Type == ActionNone {
		return
	}
	m.pending = append(m.pending, action)
	if m.draining {
		return
	}
	m.draining = true
	defer func() { m.draining = false }()
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		switch next.Type {
		case ActionAssign:
			m.assign(next, t)
		case ActionAbort:
			m.abort(next, t)
		default:
			m.reject(next, t, trace.KindAssign, reasonUnknownAction)
		}
	}
}

// assign links the agent to the resource. A searching or idle agent that can
// reach the pickup before the resource expires is committed immediately; a
// delivering agent picks up at its drop-off; otherwise the link is kept and
// re-evaluated at every intersection.
func (m *AssignmentManager) assign(action Action, t int64) {
	s := m.sim
	a, ok := s.agents[action.AgentID]
	if !ok {
		m.reject(action, t, trace.KindAssign, reasonUnknownAgent)
		return
	}
	r, ok := s.resources[action.ResourceID]
	if !ok {
		m.reject(action, t, trace.KindAssign, reasonUnknownResource)
		return
	}
	if r.phase != phaseWaiting {
		m.reject(action, t, trace.KindAssign, reasonNotWaiting)
		return
	}
	if r.agent == a {
		logrus.Debugf("[t %07d] agent %d already assigned to resource %d", t, a.id, r.id)
		return
	}
	if r.agent != nil {
		m.reject(action, t, trace.KindAssign, reasonResourceTaken)
		return
	}
	if a.linked != nil {
		m.reject(action, t, trace.KindAssign, reasonAgentCommitted)
		return
	}
	if a.approaching(t) {
		m.reject(action, t, trace.KindAssign, reasonAgentApproaching)
		return
	}

	r.agent = a
	r.assignTime = t
	a.linked = r
	s.trace.RecordDecision(trace.DecisionRecord{
		Clock: t, Kind: trace.KindAssign, AgentID: a.id, ResourceID: r.id, Applied: true,
	})

	if a.serving != nil {
		logrus.Debugf("[t %07d] agent %d will pick up resource %d after its drop-off", t, a.id, r.id)
		return
	}
	if !s.tryPickup(a, r, t, s.agentLocation(a, t)) {
		logrus.Debugf("[t %07d] agent %d cannot reach resource %d before it expires, keeps searching", t, a.id, r.id)
	}
}

// abort detaches the agent from a resource it has not picked up yet. A
// linked agent keeps its current leg; an agent on its way to a committed
// pickup stops where it is and searches again, and the resource returns to
// the waiting pool.
func (m *AssignmentManager) abort(action Action, t int64) {
	s := m.sim
	a, ok := s.agents[action.AgentID]
	if !ok {
		m.reject(action, t, trace.KindAbort, reasonUnknownAgent)
		return
	}
	var r *ResourceEvent
	switch {
	case a.linked != nil:
		r = a.linked
		a.linked = nil
		r.agent = nil
	case a.approaching(t):
		r = a.serving
		s.cancelPickup(a, r, t)
	default:
		m.reject(action, t, trace.KindAbort, reasonNothingToAbort)
		return
	}
	s.metrics.Aborts++
	s.trace.RecordDecision(trace.DecisionRecord{
		Clock: t, Kind: trace.KindAbort, AgentID: a.id, ResourceID: r.id, Applied: true,
	})
	logrus.Debugf("[t %07d] agent %d aborted resource %d", t, a.id, r.id)
}

func (m *AssignmentManager) reject(action Action, t int64, kind trace.DecisionKind, reason string) {
	m.sim.metrics.RejectedActions++
	m.sim.trace.RecordDecision(trace.DecisionRecord{
		Clock: t, Kind: kind, AgentID: action.AgentID, ResourceID: action.ResourceID, Reason: reason,
	})
	logrus.Warnf("[t %07d] ignoring %s(agent=%d, resource=%d): %s", t, action.Type, action.AgentID, action.ResourceID, reason)
}
