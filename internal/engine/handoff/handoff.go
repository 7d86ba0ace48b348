// Package handoff provides the cross-thread buffer ownership primitive
// used to pass render targets between the render thread and the
// presentation thread. It enforces a strict alternating-ownership
// protocol in one place, the way keyed mutexes hand a shared texture
// between two device contexts.
package handoff

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Owner tags one of the two sides of a handoff.
type Owner int

const (
	// OwnerRenderer is the application/render thread.
	OwnerRenderer Owner = iota + 1
	// OwnerPresenter is the presentation/time-warp thread.
	OwnerPresenter
)

func (o Owner) String() string {
	switch o {
	case OwnerRenderer:
		return "renderer"
	case OwnerPresenter:
		return "presenter"
	default:
		return fmt.Sprintf("Owner(%d)", int(o))
	}
}

func (o Owner) other() Owner {
	if o == OwnerRenderer {
		return OwnerPresenter
	}
	return OwnerRenderer
}

// DefaultTimeout bounds Acquire waits. An expired acquire indicates
// device-level trouble, not a transient condition, and is treated as
// fatal by callers.
const DefaultTimeout = 500 * time.Millisecond

// ErrTimeout is returned when an Acquire wait expires.
var ErrTimeout = errors.New("handoff: acquire timed out")

// EventKind tags entries in the ownership call log.
type EventKind int

const (
	// EventAcquire records a successful acquire.
	EventAcquire EventKind = iota
	// EventRelease records a release.
	EventRelease
)

// Event is one entry of the ownership call log.
type Event struct {
	Kind EventKind
	By   Owner
}

// Handoff is the alternating-ownership lock for one buffer slot. After
// an owner releases, only the other owner may acquire; an owner can
// therefore never observe a buffer it handed away until the peer has
// taken and returned it.
type Handoff struct {
	mu       sync.Mutex
	holder   Owner // 0 when free
	next     Owner // who may acquire while free
	changed  chan struct{}
	observer func(Event)
}

// New creates a handoff whose first acquire belongs to first.
func New(first Owner) *Handoff {
	return &Handoff{
		next:    first,
		changed: make(chan struct{}),
	}
}

// SetObserver installs a callback invoked on every acquire and release,
// used by tests to audit the protocol. Must be called before the
// handoff is shared between goroutines.
func (h *Handoff) SetObserver(fn func(Event)) {
	h.observer = fn
}

// Acquire takes ownership for o, waiting up to timeout for the peer to
// release. It fails with ErrTimeout when the wait expires and
// immediately when o tries to acquire out of turn while the slot is
// free for the peer.
func (h *Handoff) Acquire(o Owner, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		h.mu.Lock()
		if h.holder == 0 && h.next == o {
			h.holder = o
			if h.observer != nil {
				h.observer(Event{Kind: EventAcquire, By: o})
			}
			h.mu.Unlock()
			return nil
		}
		ch := h.changed
		h.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return fmt.Errorf("%w (%s waited %v)", ErrTimeout, o, timeout)
		}
	}
}

// TryAcquire takes ownership for o only if the slot is immediately
// available to it. Used by the presenter to reclaim a superseded slot
// without stalling the present path.
func (h *Handoff) TryAcquire(o Owner) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.holder == 0 && h.next == o {
		h.holder = o
		if h.observer != nil {
			h.observer(Event{Kind: EventAcquire, By: o})
		}
		return true
	}
	return false
}

// Release returns ownership, making the slot acquirable by the other
// owner only. Releasing a slot o does not hold is a protocol violation
// and errors.
func (h *Handoff) Release(o Owner) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.holder != o {
		return fmt.Errorf("handoff: %s released a slot held by %s", o, h.holder)
	}
	h.holder = 0
	h.next = o.other()
	if h.observer != nil {
		h.observer(Event{Kind: EventRelease, By: o})
	}
	close(h.changed)
	h.changed = make(chan struct{})
	return nil
}

// Holder reports the current owner (0 when free). Test helper.
func (h *Handoff) Holder() Owner {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.holder
}
