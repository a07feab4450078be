//go:build freebsd || darwin

package linkwatch

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/net/route"
	"golang.org/x/sys/unix"
)

var resolvConfPaths = []string{"/etc/resolv.conf"}

const skipLoopbackResolvers = false

var (
	routeRead  = unix.Read
	routeClose = unix.Close
)

type routeSocketSource struct{}

func nativeSource() source { return routeSocketSource{} }

func (routeSocketSource) name() string { return "route-socket" }

func (routeSocketSource) stream(ctx context.Context) (<-chan osEvent, <-chan error) {
	out := make(chan osEvent, 8)
	errc := make(chan error, 1)

	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		close(out)
		errc <- errors.Wrap(err, "route socket")
		close(errc)
		return out, errc
	}
	// closing the socket unblocks the pending read
	stop := context.AfterFunc(ctx, func() { routeClose(fd) })

	go func() {
		defer close(out)
		defer close(errc)
		defer func() {
			// the read failed on its own; the socket is still ours to close
			if stop() {
				routeClose(fd)
			}
		}()
		buf := make([]byte, 1<<16)
		for {
			n, err := routeRead(fd, buf)
			if err != nil {
				if errors.Is(err, unix.EINTR) {
					continue
				}
				if ctx.Err() == nil {
					errc <- errors.Wrap(err, "route recv")
				}
				return
			}
			select {
			case out <- osEvent{reason: routeReason(buf[:n])}:
			default:
			}
		}
	}()
	return out, errc
}

func routeReason(b []byte) string {
	msgs, err := route.ParseRIB(route.RIBTypeRoute, b)
	if err != nil || len(msgs) == 0 {
		return "net change"
	}
	switch msgs[0].(type) {
	case *route.RouteMessage:
		return "route change"
	case *route.InterfaceMessage:
		return "link change"
	case *route.InterfaceAddrMessage:
		return "addr change"
	default:
		return "net change"
	}
}

func recomputeOnline() (bool, string, error) {
	ifname, ok := defaultRouteIface()
	if !ok {
		return false, "no default route", nil
	}
	if ifname == "" {
		return false, "default route no iface", nil
	}
	ifi, err := net.InterfaceByName(ifname)
	if err != nil || ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
		return false, "default iface down/loopback", nil
	}
	if !ifaceHasUsableAddr(ifname) {
		return false, "default iface has no usable IP", nil
	}
	if !hasDNSResolver() {
		return false, "no DNS resolver", nil
	}
	return true, "default via " + ifname, nil
}

func defaultRouteIface() (string, bool) {
	for _, af := range []int{unix.AF_INET, unix.AF_INET6} {
		rib, err := route.FetchRIB(af, route.RIBTypeRoute, 0)
		if err != nil {
			continue
		}
		msgs, err := route.ParseRIB(route.RIBTypeRoute, rib)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			rm, ok := m.(*route.RouteMessage)
			if !ok || len(rm.Addrs) <= unix.RTAX_DST {
				continue
			}
			if isZeroAddr(rm.Addrs[unix.RTAX_DST]) {
				return ifNameFromIndex(rm.Index), true
			}
		}
	}
	return "", false
}

func isZeroAddr(a route.Addr) bool {
	switch t := a.(type) {
	case *route.Inet4Addr:
		return t.IP == [4]byte{}
	case *route.Inet6Addr:
		return t.IP == [16]byte{}
	default:
		return false
	}
}

func ifNameFromIndex(idx int) string {
	ifi, err := net.InterfaceByIndex(idx)
	if err != nil {
		return ""
	}
	return ifi.Name
}
