// Package event defines the cross-technique event bus both engines poll:
// new invariants discovered elsewhere, properties proven or falsified by
// other techniques, and the channel for publishing this engine's own
// property-status transitions. The bus itself is external shared state
// (§5): engines only ever read from it and write status transitions to it,
// the property-status lattice it relays is owned by package ts.
package event

import (
	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
)

// Raw is an opaque event as delivered by Recv; UpdateTransSys interprets a
// batch of them.
type Raw struct {
	Kind    string
	Payload interface{}
}

// Bus is the pluggable channel engines consume. Recv is non-blocking: it
// returns immediately with whatever is currently queued, never waiting for
// more.
type Bus interface {
	Recv() []Raw

	// UpdateTransSys folds a batch of raw events into the externally-owned
	// transition-system property statuses and returns what changed:
	// invariants learned since the last call, and the names of properties
	// newly proven valid (KTrue/Invariant) or newly falsified.
	UpdateTransSys(events []Raw) (newInvariants []*term.Term, newValid []string, newFalsified []string)

	// PublishStatus announces a status transition for a named property.
	PublishStatus(status ts.Status, propertyName string)

	// StatusOf returns the currently known external status of a property,
	// used both to drop properties that became resolved by some other
	// technique and, in the k-induction confirm phase, to observe the
	// companion BMC engine's KTrue(k) promotions.
	StatusOf(propertyName string) ts.Status
}
