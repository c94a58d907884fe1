package node

import "fmt"

// Status defines the operational status of a node. Transitions go
// through the closed table in canTransition; there is no other mutation
// path.
type Status string

const (
	StatusBootstrapping Status = "bootstrapping"
	StatusActive        Status = "active"
	StatusLearning      Status = "learning"
	StatusAdapting      Status = "adapting"
	StatusDegraded      Status = "degraded"
	StatusOffline       Status = "offline"
)

// Capability tags what a node can do. Assigned at construction,
// read-only thereafter.
type Capability string

const (
	CapabilityDataProcessing Capability = "data_processing"
	CapabilityMlTraining     Capability = "ml_training"
	CapabilityDecisionMaking Capability = "decision_making"
	CapabilityCommunication  Capability = "communication"
	CapabilitySelfHealing    Capability = "self_healing"
)

// ParseCapability maps a configuration string onto the fixed vocabulary
func ParseCapability(s string) (Capability, error) {
	switch Capability(s) {
	case CapabilityDataProcessing, CapabilityMlTraining, CapabilityDecisionMaking,
		CapabilityCommunication, CapabilitySelfHealing:
		return Capability(s), nil
	default:
		return "", fmt.Errorf("unknown capability %q", s)
	}
}

// operational reports whether the node is in one of the freely
// interchangeable working states
func (s Status) operational() bool {
	return s == StatusActive || s == StatusLearning || s == StatusAdapting
}

// canTransition is the closed transition table:
//
//	Bootstrapping -> Active            (successful registration only)
//	Active <-> Learning <-> Adapting   (caller controlled)
//	operational -> Degraded            (automatic, sustained failure)
//	Degraded -> Active                 (one successful heartbeat)
//	any -> Offline                     (explicit deregistration, terminal)
func canTransition(from, to Status) bool {
	if to == StatusOffline {
		return from != StatusOffline
	}
	switch from {
	case StatusBootstrapping:
		return to == StatusActive
	case StatusActive, StatusLearning, StatusAdapting:
		return to.operational() || to == StatusDegraded
	case StatusDegraded:
		return to == StatusActive
	default:
		return false
	}
}
