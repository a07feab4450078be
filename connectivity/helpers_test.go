package connectivity

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type resolverFunc func(ctx context.Context, host string) ([]string, error)

func (f resolverFunc) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}

type pingerFunc func(ctx context.Context, target string, timeout time.Duration) (bool, error)

func (f pingerFunc) Ping(ctx context.Context, target string, timeout time.Duration) (bool, error) {
	return f(ctx, target, timeout)
}

type checkerFunc func(ctx context.Context, timeout time.Duration) bool

func (f checkerFunc) HasInternet(ctx context.Context, timeout time.Duration) bool {
	return f(ctx, timeout)
}

type fakeObserver struct {
	events chan LinkEvent
	errs   chan error
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{events: make(chan LinkEvent), errs: make(chan error)}
}

func (o *fakeObserver) Observe(context.Context) (<-chan LinkEvent, <-chan error) {
	return o.events, o.errs
}

func (o *fakeObserver) push(online bool) {
	o.events <- LinkEvent{Online: online, ChangedAt: time.Now(), Cause: "test"}
}

type countingRecorder struct {
	mu          sync.Mutex
	probes      map[string][]bool
	arbitration []bool
	changes     [][2]State
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{probes: make(map[string][]bool)}
}

func (r *countingRecorder) ProbeResult(probe string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[probe] = append(r.probes[probe], ok)
}

func (r *countingRecorder) Arbitration(_ time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arbitration = append(r.arbitration, ok)
}

func (r *countingRecorder) StateChanged(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, [2]State{from, to})
}

func (r *countingRecorder) snapshotChanges() [][2]State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]State(nil), r.changes...)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// blockUntilDone ignores everything but cancellation.
func blockUntilDone(ctx context.Context) {
	<-ctx.Done()
}
