// Package lifecycle defines load and driver status enums and the valid
// transitions between them, enforced by the tools executor.
package lifecycle

import "fmt"

// Load statuses.
const (
	LoadAvailable  = "available"
	LoadDispatched = "dispatched"
	LoadInTransit  = "in_transit"
	LoadDelivered  = "delivered"
	LoadProblem    = "problem"
)

// POD statuses. Independent of the load's operational status.
const (
	PODNone     = "none"
	PODPending  = "pending"
	PODReceived = "received"
)

// Driver statuses.
const (
	DriverAvailable = "available"
	DriverAssigned  = "assigned"
	DriverInactive  = "inactive"
)

// ValidTransitions maps each load status to its valid next statuses.
// Flagging a problem is not in the map: it depends on the POD state, so
// it goes through CanFlagProblem instead.
var ValidTransitions = map[string][]string{
	LoadAvailable:  {LoadDispatched, LoadInTransit},
	LoadDispatched: {LoadInTransit, LoadDelivered},
	LoadInTransit:  {LoadDelivered},
	LoadDelivered:  {},
	LoadProblem:    {LoadAvailable, LoadDispatched, LoadInTransit, LoadDelivered},
}

// operational reports whether s is a normal (non-problem) load status.
func operational(s string) bool {
	switch s {
	case LoadAvailable, LoadDispatched, LoadInTransit, LoadDelivered:
		return true
	}
	return false
}

// Terminal reports whether a load is fully closed: delivered with POD received.
func Terminal(status, podStatus string) bool {
	return status == LoadDelivered && podStatus == PODReceived
}

// CanFlagProblem reports whether a load may be flagged as a problem.
// Any load short of fully closed qualifies; a delivered load whose POD is
// still outstanding can carry a delivery dispute.
func CanFlagProblem(status, podStatus string) bool {
	return operational(status) && !Terminal(status, podStatus)
}

// CanTransition reports whether a load may move from one operational
// status to another, or return from problem to an operational status.
// Flagging a problem is POD-aware and decided by CanFlagProblem.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a descriptive error when a transition is not allowed.
func ValidateTransition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("lifecycle: invalid load transition %s → %s", from, to)
	}
	return nil
}

// ValidLoadStatus reports whether s names a known load status.
func ValidLoadStatus(s string) bool {
	return operational(s) || s == LoadProblem
}
