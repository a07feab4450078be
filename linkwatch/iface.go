package linkwatch

import "net"

func ifaceHasUsableAddr(ifname string) bool {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return false
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return false
	}
	return hasUsableAddr(addrs)
}

// hasUsableAddr accepts any non-loopback IPv4 address and any IPv6 address
// outside the link-local range.
func hasUsableAddr(addrs []net.Addr) bool {
	for _, a := range addrs {
		ip := addrIP(a)
		if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
			continue
		}
		if ip.To4() != nil || !ip.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}

func addrIP(a net.Addr) net.IP {
	switch v := a.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
