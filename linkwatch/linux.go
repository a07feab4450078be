//go:build linux

package linkwatch

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

var resolvConfPaths = []string{"/run/systemd/resolve/resolv.conf", "/etc/resolv.conf"}

// systemd-resolved and similar stubs listen on loopback; only the upstream
// file tells whether real servers are configured.
const skipLoopbackResolvers = true

type netlinkSource struct{}

func nativeSource() source { return netlinkSource{} }

func (netlinkSource) name() string { return "netlink" }

func (netlinkSource) stream(ctx context.Context) (<-chan osEvent, <-chan error) {
	out := make(chan osEvent, 8)
	errc := make(chan error, 1)
	done := make(chan struct{})

	onErr := func(err error) {
		select {
		case errc <- errors.Wrap(err, "netlink"):
		default:
		}
	}
	links := make(chan netlink.LinkUpdate, 8)
	addrs := make(chan netlink.AddrUpdate, 8)
	routes := make(chan netlink.RouteUpdate, 8)

	subscribe := func() error {
		if err := netlink.LinkSubscribeWithOptions(links, done, netlink.LinkSubscribeOptions{ErrorCallback: onErr}); err != nil {
			return errors.Wrap(err, "netlink link subscribe")
		}
		if err := netlink.AddrSubscribeWithOptions(addrs, done, netlink.AddrSubscribeOptions{ErrorCallback: onErr}); err != nil {
			return errors.Wrap(err, "netlink addr subscribe")
		}
		if err := netlink.RouteSubscribeWithOptions(routes, done, netlink.RouteSubscribeOptions{ErrorCallback: onErr}); err != nil {
			return errors.Wrap(err, "netlink route subscribe")
		}
		return nil
	}
	if err := subscribe(); err != nil {
		close(done)
		close(out)
		errc <- err
		return out, errc
	}

	go func() {
		defer close(out)
		defer close(done)
		send := func(reason string) {
			select {
			case out <- osEvent{reason: reason}:
			default:
			}
		}
		for links != nil || addrs != nil || routes != nil {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-links:
				if !ok {
					links = nil
					continue
				}
				send("link change")
			case _, ok := <-addrs:
				if !ok {
					addrs = nil
					continue
				}
				send("addr change")
			case _, ok := <-routes:
				if !ok {
					routes = nil
					continue
				}
				send("route change")
			}
		}
	}()
	return out, errc
}

func recomputeOnline() (bool, string, error) {
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_ALL, &netlink.Route{Table: unix.RT_TABLE_MAIN}, netlink.RT_FILTER_TABLE)
	if err != nil {
		return false, "default route check failed", errors.Wrap(err, "list routes")
	}
	linkIndex, gw, ok := defaultRoute(routes)
	if !ok {
		return false, "no default route", nil
	}
	link, err := netlink.LinkByIndex(linkIndex)
	if err != nil {
		return false, "default route no iface", nil
	}
	attrs := link.Attrs()
	if !linkUsable(attrs) {
		return false, "default iface down", nil
	}
	if !ifaceHasUsableAddr(attrs.Name) {
		return false, "default iface has no usable IP", nil
	}
	if gw != nil && gw.To4() != nil && !gatewayReachable(gw, linkIndex) {
		return false, "gateway neighbor not ready", nil
	}
	if !hasDNSResolver() {
		return false, "no DNS resolver", nil
	}
	return true, "default via " + attrs.Name, nil
}

// defaultRoute returns the outgoing link and gateway of the first default
// route, looking into multipath next hops when needed.
func defaultRoute(routes []netlink.Route) (int, net.IP, bool) {
	for _, r := range routes {
		if !isDefaultDst(r.Dst) {
			continue
		}
		if r.LinkIndex > 0 {
			return r.LinkIndex, r.Gw, true
		}
		for _, nh := range r.MultiPath {
			if nh != nil && nh.LinkIndex > 0 {
				return nh.LinkIndex, nh.Gw, true
			}
		}
	}
	return 0, nil, false
}

func isDefaultDst(dst *net.IPNet) bool {
	if dst == nil {
		return true
	}
	ones, _ := dst.Mask.Size()
	return ones == 0 && dst.IP.IsUnspecified()
}

func linkUsable(attrs *netlink.LinkAttrs) bool {
	if attrs.Flags&net.FlagUp == 0 || attrs.Flags&net.FlagLoopback != 0 {
		return false
	}
	return attrs.OperState == netlink.OperUp || attrs.OperState == netlink.OperUnknown
}

// gatewayReachable only rejects a gateway whose neighbour entry has
// explicitly failed; a missing entry is resolved on first use.
func gatewayReachable(gw net.IP, linkIndex int) bool {
	neighs, err := netlink.NeighList(linkIndex, netlink.FAMILY_V4)
	if err != nil {
		return true
	}
	for _, n := range neighs {
		if !n.IP.Equal(gw) {
			continue
		}
		return n.State&(netlink.NUD_FAILED|netlink.NUD_INCOMPLETE) == 0
	}
	return true
}
