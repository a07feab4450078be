package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Observer pushes link-layer events. The first event is a snapshot of the
// current link state. Errors are informational; a closed event channel ends
// the stream.
type Observer interface {
	Observe(ctx context.Context) (<-chan LinkEvent, <-chan error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context) (<-chan LinkEvent, <-chan error)

func (f ObserverFunc) Observe(ctx context.Context) (<-chan LinkEvent, <-chan error) {
	return f(ctx)
}

// Status is a point-in-time copy of what a Machine knows.
type Status struct {
	State     State     `json:"state"`
	Link      bool      `json:"link"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Option func(*Machine)

// WithTimeout bounds every Internet check started by the machine.
func WithTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Machine) {
		if r != nil {
			m.recorder = r
		}
	}
}

// Machine caches the connectivity state derived from link events. Until the
// first event arrives it optimistically reports HasInternet.
type Machine struct {
	checker  Checker
	timeout  time.Duration
	log      logrus.FieldLogger
	recorder Recorder

	state   atomic.Int32
	link    atomic.Bool
	updated atomic.Int64
	started atomic.Bool
	done    chan struct{}

	mu      sync.Mutex
	subs    map[int]chan Transition
	nextSub int
	changed chan struct{}
}

func NewMachine(checker Checker, opts ...Option) *Machine {
	m := &Machine{
		checker:  checker,
		timeout:  DefaultTimeout,
		log:      logrus.StandardLogger(),
		recorder: nopRecorder{},
		done:     make(chan struct{}),
		subs:     make(map[int]chan Transition),
		changed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	m.state.Store(int32(HasInternet))
	m.link.Store(true)
	return m
}

// Start subscribes to obs and processes its events until ctx is done.
func (m *Machine) Start(ctx context.Context, obs Observer) error {
	if obs == nil {
		return errors.New("nil observer")
	}
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	events, errs := obs.Observe(ctx)
	go m.run(ctx, events, errs)
	return nil
}

// CurrentState returns the last committed state without blocking.
func (m *Machine) CurrentState() State {
	return State(m.state.Load())
}

// LinkSignal returns the last link value received from the observer.
func (m *Machine) LinkSignal() bool {
	return m.link.Load()
}

func (m *Machine) Status() Status {
	s := Status{State: m.CurrentState(), Link: m.LinkSignal()}
	if ns := m.updated.Load(); ns != 0 {
		s.UpdatedAt = time.Unix(0, ns)
	}
	return s
}

// Done is closed once the event loop has exited.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Subscribe returns a stream of state transitions. Transitions are dropped
// for a subscriber whose buffer is full. The returned func unsubscribes and
// closes the channel.
func (m *Machine) Subscribe(buffer int) (<-chan Transition, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Transition, buffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// WaitForStateChange blocks until the committed state differs from from. It
// returns false if ctx ends first.
func (m *Machine) WaitForStateChange(ctx context.Context, from State) (State, bool) {
	for {
		m.mu.Lock()
		changed := m.changed
		m.mu.Unlock()

		if s := m.CurrentState(); s != from {
			return s, true
		}
		select {
		case <-ctx.Done():
			return m.CurrentState(), false
		case <-changed:
		}
	}
}

type verdict struct {
	gen   uint64
	ok    bool
	cause string
}

func (m *Machine) run(ctx context.Context, events <-chan LinkEvent, errs <-chan error) {
	defer close(m.done)

	results := make(chan verdict)
	var gen uint64
	cancelProbe := context.CancelFunc(func() {})
	defer func() { cancelProbe() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.log.Warn("link event stream closed, keeping last state")
				events = nil
				continue
			}
			gen++
			cancelProbe()
			cancelProbe = func() {}
			m.link.Store(ev.Online)
			m.log.WithFields(logrus.Fields{"link": ev.Online, "cause": ev.Cause}).Debug("link event")

			if !ev.Online {
				m.commit(NoConnection, ev.Cause)
				continue
			}
			// the link is up, so NoConnection no longer holds while the check runs
			if m.CurrentState() == NoConnection {
				m.commit(NoInternet, ev.Cause)
			}
			probeCtx, cancel := context.WithCancel(ctx)
			cancelProbe = cancel
			go m.check(probeCtx, gen, ev.Cause, results)
		case v := <-results:
			if v.gen != gen {
				m.log.WithField("cause", v.cause).Debug("discarding stale internet check")
				continue
			}
			if v.ok {
				m.commit(HasInternet, v.cause)
			} else {
				m.commit(NoInternet, v.cause)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				m.log.WithError(err).Warn("link observer error")
			}
		}
	}
}

func (m *Machine) check(ctx context.Context, gen uint64, cause string, out chan<- verdict) {
	ok := m.checker.HasInternet(ctx, m.timeout)
	select {
	case out <- verdict{gen: gen, ok: ok, cause: cause}:
	case <-ctx.Done():
	}
}

// commit is only called from the event loop goroutine.
func (m *Machine) commit(next State, cause string) {
	prev := State(m.state.Swap(int32(next)))
	now := time.Now()
	m.updated.Store(now.UnixNano())

	fields := logrus.Fields{"state": next, "link": m.LinkSignal(), "cause": cause}
	if prev == next {
		m.log.WithFields(fields).Debug("connectivity unchanged")
		return
	}
	m.log.WithFields(fields).WithField("previous", prev).Info("connectivity changed")
	m.recorder.StateChanged(prev, next)

	t := Transition{From: prev, To: next, Link: m.LinkSignal(), At: now, Cause: cause}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- t:
		default:
		}
	}
	close(m.changed)
	m.changed = make(chan struct{})
}
