package connectivity

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func newTestArbiter(ping pingerFunc, resolve resolverFunc, rec Recorder) *Arbiter {
	return &Arbiter{
		Ping:       &PingProbe{Pinger: ping, Log: quietLogger(), LinkSignal: func() bool { return true }},
		Reach:      &ReachabilityProbe{Resolver: resolve, Log: quietLogger()},
		PingTarget: "192.0.2.1",
		Hostname:   "example.test",
		Recorder:   rec,
	}
}

func TestArbiterShortCircuitsOnPing(t *testing.T) {
	dnsCancelled := make(chan struct{})
	a := newTestArbiter(
		func(context.Context, string, time.Duration) (bool, error) {
			time.Sleep(50 * time.Millisecond)
			return true, nil
		},
		func(ctx context.Context, _ string) ([]string, error) {
			<-ctx.Done()
			close(dnsCancelled)
			return nil, ctx.Err()
		},
		nil,
	)

	start := time.Now()
	assert.True(t, a.HasInternet(context.Background(), 2*time.Second))
	assert.Less(t, time.Since(start), time.Second)

	select {
	case <-dnsCancelled:
	case <-time.After(time.Second):
		t.Fatal("pending resolution was not cancelled")
	}
}

func TestArbiterDNSAloneIsEnough(t *testing.T) {
	rec := newCountingRecorder()
	a := newTestArbiter(
		func(context.Context, string, time.Duration) (bool, error) { return false, nil },
		func(context.Context, string) ([]string, error) { return []string{"192.0.2.1"}, nil },
		rec,
	)
	assert.True(t, a.HasInternet(context.Background(), time.Second))
	assert.Equal(t, []bool{true}, rec.arbitration)
	assert.Equal(t, []bool{true}, rec.probes[probeDNS])
}

func TestArbiterBothFail(t *testing.T) {
	rec := newCountingRecorder()
	a := newTestArbiter(
		func(context.Context, string, time.Duration) (bool, error) { return false, nil },
		func(_ context.Context, host string) ([]string, error) {
			return nil, errors.Wrapf(ErrNotFound, "lookup %s", host)
		},
		rec,
	)
	assert.False(t, a.HasInternet(context.Background(), time.Second))
	assert.Equal(t, []bool{false}, rec.arbitration)
	assert.Equal(t, []bool{false}, rec.probes[probePing])
	assert.Equal(t, []bool{false}, rec.probes[probeDNS])
}

func TestArbiterTimeoutBoundary(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	a := newTestArbiter(
		func(context.Context, string, time.Duration) (bool, error) {
			<-release
			return true, nil
		},
		func(context.Context, string) ([]string, error) {
			<-release
			return []string{"192.0.2.1"}, nil
		},
		nil,
	)

	timeout := 100 * time.Millisecond
	start := time.Now()
	assert.False(t, a.HasInternet(context.Background(), timeout))
	assert.Less(t, time.Since(start), timeout+300*time.Millisecond)
}

func TestArbiterParentCancel(t *testing.T) {
	a := newTestArbiter(
		func(ctx context.Context, _ string, _ time.Duration) (bool, error) {
			blockUntilDone(ctx)
			return false, nil
		},
		func(ctx context.Context, _ string) ([]string, error) {
			blockUntilDone(ctx)
			return nil, ctx.Err()
		},
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	assert.False(t, a.HasInternet(ctx, 5*time.Second))
}
