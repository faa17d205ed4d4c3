package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed is the initial state where requests are allowed.
	Closed State = iota
	// Open state is when the circuit has tripped and requests are blocked.
	Open
	// HalfOpen allows a single trial request at a time to test recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

var (
	// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when a half-open breaker already has a trial request in flight.
	ErrTooManyRequests = errors.New("circuit breaker is half-open and busy")

	// errPanic 记录一次 panic 的请求，总是计为失败。
	errPanic = errors.New("circuit breaker request panicked")
)

// CircuitBreaker is the interface for the circuit breaker pattern.
type CircuitBreaker interface {
	// Execute runs the given request if the circuit breaker is closed or half-open.
	Execute(req func() (interface{}, error)) (interface{}, error)
	// State returns the current state of the circuit breaker.
	State() State
}

// Option customises a breaker created by New.
type Option func(*breaker)

// WithStateChange registers a callback invoked (outside the lock) on every transition.
func WithStateChange(fn func(from, to State)) Option {
	return func(b *breaker) { b.onStateChange = fn }
}

// WithIsFailure overrides which errors count as failures. Errors for which fn
// returns false are passed through without affecting the breaker.
func WithIsFailure(fn func(error) bool) Option {
	return func(b *breaker) { b.isFailure = fn }
}

type breaker struct {
	failureThreshold uint32
	successThreshold uint32
	timeout          time.Duration
	onStateChange    func(from, to State)
	isFailure        func(error) bool
	now              func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
	probing   bool
}

// New creates a new circuit breaker.
// failureThreshold: consecutive failures required to open the circuit.
// successThreshold: consecutive half-open successes required to close it again.
// timeout: how long the circuit stays open before allowing a trial request.
func New(failureThreshold, successThreshold uint32, timeout time.Duration, opts ...Option) CircuitBreaker {
	if failureThreshold == 0 {
		failureThreshold = 1
	}
	if successThreshold == 0 {
		successThreshold = 1
	}
	b := &breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state of the circuit breaker.
func (b *breaker) State() State {
	b.mu.Lock()
	s, notify := b.refresh()
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
	return s
}

// Execute wraps the execution of a function with the circuit breaker logic.
func (b *breaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	if err := b.before(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			b.after(errPanic)
			panic(r)
		}
	}()
	res, err := req()
	b.after(err)
	return res, err
}

// refresh moves an expired Open breaker to HalfOpen. Caller holds the lock.
func (b *breaker) refresh() (State, func()) {
	if b.state == Open && b.now().Sub(b.openedAt) > b.timeout {
		notify := b.setState(HalfOpen)
		return b.state, notify
	}
	return b.state, nil
}

func (b *breaker) before() error {
	b.mu.Lock()
	_, notify := b.refresh()
	var err error
	switch b.state {
	case Open:
		err = ErrCircuitOpen
	case HalfOpen:
		if b.probing {
			err = ErrTooManyRequests
		} else {
			b.probing = true
		}
	}
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
	return err
}

func (b *breaker) after(err error) {
	b.mu.Lock()
	var notify func()
	failed := err == errPanic || (err != nil && b.isFailure(err))
	switch b.state {
	case HalfOpen:
		b.probing = false
		if failed {
			notify = b.setState(Open)
			break
		}
		b.successes++
		if b.successes >= b.successThreshold {
			notify = b.setState(Closed)
		}
	case Closed:
		if !failed {
			b.failures = 0
			break
		}
		b.failures++
		if b.failures >= b.failureThreshold {
			notify = b.setState(Open)
		}
	}
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// setState resets counters for the new state and returns the deferred callback.
func (b *breaker) setState(to State) func() {
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	b.probing = false
	if to == Open {
		b.openedAt = b.now()
	}
	if b.onStateChange == nil || from == to {
		return nil
	}
	cb := b.onStateChange
	return func() { cb(from, to) }
}
