package connectivity

import (
	"context"
	"net"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingProbe(t *testing.T) {
	unavailable := errors.Wrap(ErrProbeUnavailable, "socket: operation not permitted")

	tests := []struct {
		name   string
		ok     bool
		err    error
		link   bool
		expect bool
	}{
		{name: "reply", ok: true, link: true, expect: true},
		{name: "no reply", ok: false, link: true, expect: false},
		{name: "exec error link up", err: errors.New("fork/exec: permission denied"), link: true, expect: true},
		{name: "exec error link down", err: errors.New("fork/exec: permission denied"), link: false, expect: false},
		{name: "unavailable link up", err: unavailable, link: true, expect: true},
		{name: "unavailable link down", err: unavailable, link: false, expect: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PingProbe{
				Log:        quietLogger(),
				LinkSignal: func() bool { return tt.link },
				Pinger: pingerFunc(func(_ context.Context, target string, _ time.Duration) (bool, error) {
					assert.Equal(t, DefaultPingTarget, target)
					return tt.ok, tt.err
				}),
			}
			assert.Equal(t, tt.expect, p.Ping(context.Background(), "", time.Second))
		})
	}
}

func TestPingProbeUnavailableWithoutLinkSignal(t *testing.T) {
	p := &PingProbe{Log: quietLogger(), Pinger: pingerFunc(func(context.Context, string, time.Duration) (bool, error) {
		return false, ErrProbeUnavailable
	})}
	assert.True(t, p.Ping(context.Background(), "192.0.2.1", time.Second))
}

func TestPingProbeTimeoutIsNotUnavailable(t *testing.T) {
	p := &PingProbe{
		Log:        quietLogger(),
		LinkSignal: func() bool { return true },
		Pinger: pingerFunc(func(ctx context.Context, _ string, _ time.Duration) (bool, error) {
			<-ctx.Done()
			return false, errors.Wrap(ErrProbeUnavailable, "killed")
		}),
	}
	assert.False(t, p.Ping(context.Background(), "192.0.2.1", 20*time.Millisecond))
}

func TestPingArgs(t *testing.T) {
	assert.Equal(t, []string{"-c", "1", "-W", "1", "8.8.8.8"}, pingArgs("linux", "8.8.8.8", time.Second))
	assert.Equal(t, []string{"-c", "1", "-W", "2", "8.8.8.8"}, pingArgs("linux", "8.8.8.8", 1500*time.Millisecond))
	assert.Equal(t, []string{"-c", "1", "-W", "1", "8.8.8.8"}, pingArgs("linux", "8.8.8.8", 0))
	assert.Equal(t, []string{"-c", "1", "-W", "1000", "8.8.8.8"}, pingArgs("darwin", "8.8.8.8", time.Second))
	assert.Equal(t, []string{"-n", "1", "-w", "250", "8.8.8.8"}, pingArgs("windows", "8.8.8.8", 250*time.Millisecond))
}

func TestExecPingerMissingBinary(t *testing.T) {
	ok, err := ExecPinger{Command: "checkconnectivity-no-such-ping"}.Ping(context.Background(), "192.0.2.1", time.Second)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProbeUnavailable))
}

func TestExecPingerExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on true/false utilities")
	}
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not in PATH", bin)
		}
	}

	ok, err := ExecPinger{Command: "true"}.Ping(context.Background(), "192.0.2.1", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ExecPinger{Command: "false"}.Ping(context.Background(), "192.0.2.1", time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestICMPPingerLoopback(t *testing.T) {
	for _, privileged := range []bool{false, true} {
		p := ICMPPinger{Privileged: privileged}
		ok, err := p.Ping(context.Background(), "127.0.0.1", time.Second)
		if err != nil {
			// neither socket kind is permitted for this user
			require.True(t, errors.Is(err, ErrProbeUnavailable), "privileged=%v: %v", privileged, err)
			continue
		}
		assert.True(t, ok, "privileged=%v: socket opened but loopback echo got no reply", privileged)
	}
}

func TestPeerIP(t *testing.T) {
	loopback := net.IPv4(127, 0, 0, 1)
	tests := []struct {
		name   string
		addr   net.Addr
		expect net.IP
	}{
		{name: "datagram", addr: &net.UDPAddr{IP: loopback}, expect: loopback},
		{name: "raw", addr: &net.IPAddr{IP: loopback}, expect: loopback},
		{name: "unrelated", addr: &net.TCPAddr{IP: loopback}},
		{name: "nil", addr: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := peerIP(tt.addr)
			if tt.expect == nil {
				assert.Nil(t, got)
				return
			}
			assert.True(t, tt.expect.Equal(got))
		})
	}
}
