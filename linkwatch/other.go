//go:build !linux && !darwin && !freebsd && !windows

package linkwatch

import "net"

var resolvConfPaths = []string{"/etc/resolv.conf"}

const skipLoopbackResolvers = false

// No change notifications here; the watcher polls instead.
func nativeSource() source { return nil }

// recomputeOnline has no routing table access on these platforms and falls
// back to any up, non-loopback interface with a usable address.
func recomputeOnline() (bool, string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, "interface list failed", err
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if !ifaceHasUsableAddr(ifi.Name) {
			continue
		}
		if !hasDNSResolver() {
			return false, "no DNS resolver", nil
		}
		return true, "up iface " + ifi.Name, nil
	}
	return false, "no usable interface", nil
}
