// Package linkwatch reports link-layer connectivity changes of the host.
//
// A Watcher picks one event source for the running platform when it is
// created (netlink on Linux, a routing socket on Darwin and FreeBSD, IP
// Helper notifications on Windows, periodic polling elsewhere). Raw OS
// notifications are debounced and turned into a passive online verdict:
// default route, interface up, usable address and a configured resolver.
package linkwatch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/checkconnectivity/connectivity"
)

type Mode string

const (
	ModeAuto Mode = "auto"
	ModePoll Mode = "poll"
)

const (
	DefaultDebounce     = 750 * time.Millisecond
	DefaultPollInterval = 30 * time.Second
	DefaultWakeSample   = time.Second
	DefaultWakeGap      = 1500 * time.Millisecond
)

type osEvent struct{ reason string }

// source produces raw, undebounced change notifications.
type source interface {
	name() string
	stream(ctx context.Context) (<-chan osEvent, <-chan error)
}

type Option func(*Watcher)

func WithMode(m Mode) Option {
	return func(w *Watcher) { w.mode = m }
}

func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithWakeDetection sets the sleep/resume detector parameters. A zero
// sample disables it.
func WithWakeDetection(sample, gap time.Duration) Option {
	return func(w *Watcher) {
		w.wakeSample = sample
		w.wakeGap = gap
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// Watcher is a connectivity.Observer backed by the host network stack.
type Watcher struct {
	mode         Mode
	debounce     time.Duration
	pollInterval time.Duration
	wakeSample   time.Duration
	wakeGap      time.Duration
	log          logrus.FieldLogger

	src      source
	evaluate func() (bool, string, error)
	wakes    func(ctx context.Context) <-chan struct{}
}

var _ connectivity.Observer = (*Watcher)(nil)

func New(opts ...Option) *Watcher {
	w := &Watcher{
		mode:         ModeAuto,
		debounce:     DefaultDebounce,
		pollInterval: DefaultPollInterval,
		wakeSample:   DefaultWakeSample,
		wakeGap:      DefaultWakeGap,
		log:          logrus.StandardLogger(),
		evaluate:     recomputeOnline,
	}
	for _, o := range opts {
		o(w)
	}
	if w.mode != ModePoll {
		w.src = nativeSource()
	}
	if w.src == nil {
		w.src = pollSource{interval: w.pollInterval}
	}
	w.wakes = func(ctx context.Context) <-chan struct{} {
		if w.wakeSample <= 0 {
			return nil
		}
		return WakeSignals(ctx, w.wakeSample, w.wakeGap)
	}
	w.log.WithField("source", w.src.name()).Debug("link watcher source selected")
	return w
}

// Source names the event source selected for this platform.
func (w *Watcher) Source() string {
	return w.src.name()
}

// Observe emits the current link state immediately, then every debounced
// change. After a wake from sleep the current state is re-emitted even if
// it did not change.
func (w *Watcher) Observe(ctx context.Context) (<-chan connectivity.LinkEvent, <-chan error) {
	out := make(chan connectivity.LinkEvent, 1)
	errc := make(chan error, 1)
	events, errs := w.src.stream(ctx)
	wakes := w.wakes(ctx)

	go func() {
		defer close(out)
		defer close(errc)

		emit := func(online bool, cause string) bool {
			select {
			case out <- connectivity.LinkEvent{Online: online, ChangedAt: time.Now(), Cause: cause}:
				return true
			case <-ctx.Done():
				return false
			}
		}
		report := func(err error) {
			select {
			case errc <- err:
			default:
				w.log.WithError(err).Debug("dropping link watcher error")
			}
		}

		online, why, err := w.evaluate()
		if err != nil {
			report(err)
		}
		last := online
		if !emit(online, "initial: "+why) {
			return
		}

		var (
			timer      *time.Timer
			fire       <-chan time.Time
			lastReason string
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				lastReason = e.reason
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			case <-fire:
				fire = nil
				online, why, err := w.evaluate()
				if err != nil {
					report(err)
					continue
				}
				if online == last {
					continue
				}
				last = online
				cause := why
				if lastReason != "" {
					cause = lastReason + "; " + why
				}
				if !emit(online, cause) {
					return
				}
			case _, ok := <-wakes:
				if !ok {
					wakes = nil
					continue
				}
				online, why, err := w.evaluate()
				if err != nil {
					report(err)
					continue
				}
				last = online
				if !emit(online, "wake; "+why) {
					return
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				if err != nil {
					report(err)
				}
			}
		}
	}()
	return out, errc
}
