// Package poll runs a single-owner periodic task with at most one tick in flight.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/rbright/kamay/internal/clock"
)

// State is the poller's tagged lifecycle state.
type State int

const (
	Stopped State = iota
	Armed
	Ticking
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Armed:
		return "armed"
	case Ticking:
		return "ticking"
	default:
		return "unknown"
	}
}

// TickFunc performs one unit of work. ctx is cancelled when the poller stops.
type TickFunc func(ctx context.Context)

// Poller owns exactly one timer handle. Start re-arms from scratch and Stop
// cancels both the pending timer and any in-flight tick. The next tick is
// armed only after the previous one returns, so ticks never overlap.
type Poller struct {
	clock    clock.Clock
	interval time.Duration
	tick     TickFunc

	mu       sync.Mutex
	state    State
	gen      uint64
	timer    clock.Timer
	cancel   context.CancelFunc
	inflight bool
	parent   context.Context
}

// New builds a stopped poller.
func New(c clock.Clock, interval time.Duration, tick TickFunc) *Poller {
	if c == nil {
		c = clock.Real{}
	}
	return &Poller{clock: c, interval: interval, tick: tick, state: Stopped}
}

// Start arms the first tick one interval from now. A running poller is reset.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.parent = ctx
	p.armLocked(p.gen)
}

// Stop cancels the pending timer and the in-flight tick. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// State reports the current lifecycle state.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Running reports whether a tick is armed or executing.
func (p *Poller) Running() bool {
	return p.State() != Stopped
}

func (p *Poller) stopLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = Stopped
}

func (p *Poller) armLocked(gen uint64) {
	p.state = Armed
	p.timer = p.clock.AfterFunc(p.interval, func() { p.fire(gen) })
}

func (p *Poller) fire(gen uint64) {
	p.mu.Lock()
	if p.gen != gen || p.state != Armed {
		p.mu.Unlock()
		return
	}
	if p.inflight {
		// a tick from an earlier generation has not returned yet
		p.armLocked(gen)
		p.mu.Unlock()
		return
	}

	parent := p.parent
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.timer = nil
	p.state = Ticking
	p.inflight = true
	p.mu.Unlock()

	p.tick(ctx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inflight = false
	if p.gen != gen {
		return
	}
	p.cancel = nil
	if parent.Err() != nil {
		p.state = Stopped
		return
	}
	p.armLocked(gen)
}
