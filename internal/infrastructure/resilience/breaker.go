package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen is returned for calls refused while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when the half-open probe budget is spent.
	ErrTooManyRequests = errors.New("too many requests")
)

// State is the breaker's admission mode.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings tunes a breaker. Zero values fall back to defaults in New.
type Settings struct {
	// MaxRequests caps concurrent probes in the half-open state; closing
	// requires the same number of consecutive successes.
	MaxRequests uint32
	// Interval is how often the closed state clears its counts. Without
	// clearing, failures spread across hours could still trip the breaker.
	Interval time.Duration
	// Timeout is how long the open state refuses before probing.
	Timeout time.Duration
	// ReadyToTrip decides, after each closed-state failure, whether the
	// accumulated counts justify opening.
	ReadyToTrip func(counts Counts) bool
	// OnStateChange observes transitions, for logs or metrics.
	OnStateChange func(name string, from State, to State)
}

// Counts is the outcome tally for the current generation.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Breaker wraps calls to one upstream and sheds them while it is down.
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New builds a breaker. Unset settings get conservative defaults:
// one half-open probe, 60s count interval, 60s open timeout, and a trip
// threshold of more than five consecutive failures.
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Interval == 0 {
		settings.Interval = 60 * time.Second
	}
	if settings.Timeout == 0 {
		settings.Timeout = 60 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	b.newGeneration(time.Now())
	return b
}

// Name returns the identifier given at construction.
func (b *Breaker) Name() string {
	return b.name
}

// State reports the current admission mode, applying any transition the
// clock has earned (open past its timeout becomes half-open).
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.stateAt(time.Now())
	return state
}

// Counts returns a copy of the current generation's tally.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Execute runs req if the breaker admits it and settles the outcome.
// A refused call returns ErrCircuitOpen or ErrTooManyRequests without
// running req and without touching the counts. A panic in req counts as
// a failure before propagating.
func (b *Breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	gen, err := b.admit()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			b.settle(gen, false)
			panic(e)
		}
	}()

	result, err := req()
	b.settle(gen, err == nil)
	return result, err
}

// admit decides whether a call may proceed and records it as in flight.
func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, gen := b.stateAt(now)

	switch {
	case state == StateOpen:
		return gen, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		return gen, ErrTooManyRequests
	}

	b.counts.Requests++
	return gen, nil
}

// settle records the outcome of a call admitted under gen. Outcomes from
// a superseded generation are dropped.
func (b *Breaker) settle(gen uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, current := b.stateAt(now)
	if current != gen {
		return
	}

	if success {
		b.recordSuccess(state, now)
	} else {
		b.recordFailure(state, now)
	}
}

func (b *Breaker) recordSuccess(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			b.transition(StateClosed, now)
		}
	}
}

func (b *Breaker) recordFailure(state State, now time.Time) {
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.settings.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		// One failed probe is enough evidence the upstream is still down.
		b.transition(StateOpen, now)
	}
}

// stateAt resolves the state for now, performing lazy clock-driven
// transitions: closed-state count windows roll over, and an open breaker
// past its timeout moves to half-open. Callers hold b.mu.
func (b *Breaker) stateAt(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.transition(StateHalfOpen, now)
		}
	}

	return b.state, b.generation
}

// transition switches states and starts a fresh generation. Callers
// hold b.mu.
func (b *Breaker) transition(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.newGeneration(now)

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}

// newGeneration clears the tally and arms the expiry appropriate to the
// current state. Half-open has no expiry; it leaves only on an outcome.
func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}

	switch b.state {
	case StateClosed:
		b.expiry = now.Add(b.settings.Interval)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
}
