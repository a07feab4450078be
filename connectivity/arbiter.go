package connectivity

import (
	"context"
	"time"
)

// DefaultTimeout bounds one Internet check.
const DefaultTimeout = time.Second

const (
	probePing = "ping"
	probeDNS  = "dns"
)

// Checker answers whether the Internet is reachable within timeout.
type Checker interface {
	HasInternet(ctx context.Context, timeout time.Duration) bool
}

// Recorder receives probe and state observations. All methods must be safe
// for concurrent use.
type Recorder interface {
	ProbeResult(probe string, ok bool)
	Arbitration(d time.Duration, ok bool)
	StateChanged(from, to State)
}

type nopRecorder struct{}

func (nopRecorder) ProbeResult(string, bool)        {}
func (nopRecorder) Arbitration(time.Duration, bool) {}
func (nopRecorder) StateChanged(State, State)       {}

// Arbiter races a ping against a name resolution and reports the Internet
// reachable as soon as either succeeds.
type Arbiter struct {
	Ping       *PingProbe
	Reach      *ReachabilityProbe
	PingTarget string
	Hostname   string
	Recorder   Recorder
}

func (a *Arbiter) HasInternet(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rec := a.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	ping, reach := a.Ping, a.Reach
	if ping == nil {
		ping = &PingProbe{}
	}
	if reach == nil {
		reach = &ReachabilityProbe{}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := make(chan probeOutcome, 2)
	go func() { res <- probeOutcome{probe: probePing, ok: ping.Ping(ctx, a.PingTarget, timeout)} }()
	go func() { res <- probeOutcome{probe: probeDNS, ok: reach.Resolve(ctx, a.Hostname, timeout)} }()

	ok := await(ctx, res, 2, rec)
	rec.Arbitration(time.Since(start), ok)
	return ok
}

type probeOutcome struct {
	probe string
	ok    bool
}

// await returns true on the first successful outcome and false once all n
// outcomes failed or ctx is done.
func await(ctx context.Context, res <-chan probeOutcome, n int, rec Recorder) bool {
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return false
		case o := <-res:
			rec.ProbeResult(o.probe, o.ok)
			if o.ok {
				return true
			}
		}
	}
	return false
}
