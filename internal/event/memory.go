package event

import (
	"sync"

	"github.com/rfielding/symcheck/internal/term"
	"github.com/rfielding/symcheck/internal/ts"
)

// InvariantEvent, FalsifiedEvent, and ValidEvent are the Raw.Kind values
// this bus's UpdateTransSys understands; other kinds pass through
// unconsumed (future techniques can add their own kinds without breaking
// this bus).
const (
	InvariantEvent = "invariant"
	FalsifiedEvent = "falsified"
	ValidEvent     = "valid"
)

// InMemoryBus is a process-local Bus, grounded on the non-blocking
// mailbox pattern used throughout the teacher's Actor type
// (TryReceiveMessage: a buffered channel drained with select/default).
// It is meant for tests and for the single-process cmd/symcheck driver,
// where the engines share one property table guarded by a mutex instead
// of talking to a real cross-process bus.
type InMemoryBus struct {
	mu     sync.Mutex
	queue  chan Raw
	status map[string]ts.Status
}

// NewInMemoryBus creates a bus seeded with props; capacity bounds how many
// pending raw events may queue before Inject blocks.
func NewInMemoryBus(props []ts.Property, capacity int) *InMemoryBus {
	b := &InMemoryBus{
		queue:  make(chan Raw, capacity),
		status: make(map[string]ts.Status, len(props)),
	}
	for _, p := range props {
		b.status[p.Name] = ts.Status{Kind: ts.Unknown}
	}
	return b
}

// Inject enqueues a raw event for the next Recv, e.g. another technique
// reporting a new invariant or a property falsification.
func (b *InMemoryBus) Inject(r Raw) {
	b.queue <- r
}

func (b *InMemoryBus) Recv() []Raw {
	var out []Raw
	for {
		select {
		case r := <-b.queue:
			out = append(out, r)
		default:
			return out
		}
	}
}

func (b *InMemoryBus) UpdateTransSys(events []Raw) (newInvariants []*term.Term, newValid []string, newFalsified []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range events {
		switch e.Kind {
		case InvariantEvent:
			if t, ok := e.Payload.(*term.Term); ok {
				newInvariants = append(newInvariants, t)
			}
		case FalsifiedEvent:
			if name, ok := e.Payload.(string); ok {
				b.status[name] = ts.Status{Kind: ts.False}
				newFalsified = append(newFalsified, name)
			}
		case ValidEvent:
			if upd, ok := e.Payload.(struct {
				Name string
				K    int64
			}); ok {
				cur, known := b.status[upd.Name]
				next := ts.Status{Kind: ts.KTrue, K: upd.K}
				if !known || cur.Leq(next) {
					b.status[upd.Name] = next
					newValid = append(newValid, upd.Name)
				}
			}
		}
	}
	return newInvariants, newValid, newFalsified
}

func (b *InMemoryBus) PublishStatus(status ts.Status, propertyName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[propertyName] = status
}

// StatusOf returns the currently known status of a property, for tests and
// for the confirm phase of k-induction to poll the BMC-adjacent KTrue(k)
// level of an optimistic property.
func (b *InMemoryBus) StatusOf(propertyName string) ts.Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status[propertyName]
}
