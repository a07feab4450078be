package connectivity

import (
	"context"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultPingTarget is pinged when no target is configured.
const DefaultPingTarget = "8.8.8.8"

const protocolICMP = 1

// Pinger sends a single echo to target. It returns an error wrapping
// ErrProbeUnavailable when the probe could not be run at all; a missing
// reply is (false, nil).
type Pinger interface {
	Ping(ctx context.Context, target string, timeout time.Duration) (bool, error)
}

// PingProbe runs a Pinger and substitutes the last link signal when the
// pinger returns any error before the deadline. Only a missing reply reads
// as "no Internet".
type PingProbe struct {
	Pinger     Pinger
	LinkSignal func() bool
	Log        logrus.FieldLogger
}

func (p *PingProbe) Ping(ctx context.Context, target string, timeout time.Duration) bool {
	pinger := p.Pinger
	if pinger == nil {
		pinger = ICMPPinger{}
	}
	if target == "" {
		target = DefaultPingTarget
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := pinger.Ping(ctx, target, timeout)
	if err == nil {
		return ok
	}
	if ctx.Err() != nil {
		return false
	}
	link := true
	if p.LinkSignal != nil {
		link = p.LinkSignal()
	}
	logger(p.Log).WithError(err).WithField("link", link).Debug("ping failed to run, falling back to link signal")
	return link
}

// ExecPinger runs the system ping command with a count of one.
type ExecPinger struct {
	Command string
}

func (p ExecPinger) Ping(ctx context.Context, target string, timeout time.Duration) (bool, error) {
	command := p.Command
	if command == "" {
		command = "ping"
	}
	err := exec.CommandContext(ctx, command, pingArgs(runtime.GOOS, target, timeout)...).Run()
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, errors.Wrapf(ErrProbeUnavailable, "exec %s: %v", command, err)
}

func pingArgs(goos, target string, timeout time.Duration) []string {
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(timeout.Milliseconds(), 10), target}
	case "darwin", "freebsd":
		return []string{"-c", "1", "-W", strconv.FormatInt(timeout.Milliseconds(), 10), target}
	default:
		secs := int64((timeout + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return []string{"-c", "1", "-W", strconv.FormatInt(secs, 10), target}
	}
}

// ICMPPinger sends an ICMP echo itself. It prefers an unprivileged datagram
// socket and falls back to a raw socket; if neither can be opened the probe
// is unavailable.
type ICMPPinger struct {
	Privileged bool
}

func (p ICMPPinger) Ping(ctx context.Context, target string, timeout time.Duration) (bool, error) {
	dst, err := net.ResolveIPAddr("ip4", target)
	if err != nil {
		return false, nil
	}

	conn, datagram, err := p.listen()
	if err != nil {
		return false, errors.Wrapf(ErrProbeUnavailable, "icmp listen: %v", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false, nil
	}

	id := os.Getpid() & 0xffff
	const seq = 1
	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("checkconnectivity")},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return false, errors.Wrapf(ErrProbeUnavailable, "icmp marshal: %v", err)
	}

	var to net.Addr = dst
	if datagram {
		to = &net.UDPAddr{IP: dst.IP}
	}
	if _, err := conn.WriteTo(wb, to); err != nil {
		if ctx.Err() == nil && errors.Is(err, os.ErrPermission) {
			return false, errors.Wrapf(ErrProbeUnavailable, "icmp write: %v", err)
		}
		return false, nil
	}

	rb := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			return false, nil
		}
		if !peerIP(peer).Equal(dst.IP) {
			continue
		}
		reply, err := icmp.ParseMessage(protocolICMP, rb[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// datagram sockets have their echo id rewritten by the kernel
		if !datagram && echo.ID != id {
			continue
		}
		return true, nil
	}
}

func (p ICMPPinger) listen() (*icmp.PacketConn, bool, error) {
	if !p.Privileged {
		conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
		if err == nil {
			return conn, true, nil
		}
	}
	conn, err := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if err != nil {
		return nil, false, err
	}
	return conn, false, nil
}

func peerIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.UDPAddr:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
