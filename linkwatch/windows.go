//go:build windows

package linkwatch

import (
	"context"
	"net"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

var (
	iphlpapi                    = windows.NewLazySystemDLL("iphlpapi.dll")
	procNotifyIpInterfaceChange = iphlpapi.NewProc("NotifyIpInterfaceChange")
	procNotifyRouteChange2      = iphlpapi.NewProc("NotifyRouteChange2")
	procCancelMibChangeNotify2  = iphlpapi.NewProc("CancelMibChangeNotify2")
	procGetBestInterfaceEx      = iphlpapi.NewProc("GetBestInterfaceEx")
)

const (
	ifOperStatusUp = 1

	gaaFlagSkipAnycast     = 0x2
	gaaFlagSkipMulticast   = 0x4
	gaaFlagIncludeGateways = 0x80
)

// Leading part of IP_ADAPTER_ADDRESSES up to FirstGatewayAddress, laid out
// as in the Windows SDK.
type adapterAddresses struct {
	Length                uint32
	IfIndex               uint32
	Next                  *adapterAddresses
	AdapterName           *byte
	FirstUnicastAddress   uintptr
	FirstAnycastAddress   uintptr
	FirstMulticastAddress uintptr
	FirstDnsServerAddress uintptr
	DnsSuffix             *uint16
	Description           *uint16
	FriendlyName          *uint16
	PhysicalAddress       [8]byte
	PhysicalAddressLength uint32
	Flags                 uint32
	Mtu                   uint32
	IfType                uint32
	OperStatus            uint32
	Ipv6IfIndex           uint32
	ZoneIndices           [16]uint32
	FirstGatewayAddress   uintptr
}

type adapter struct {
	index      int
	up         bool
	hasGateway bool
	hasDNS     bool
}

type ipHelperSource struct{}

func nativeSource() source { return ipHelperSource{} }

func (ipHelperSource) name() string { return "iphlpapi" }

func (ipHelperSource) stream(ctx context.Context) (<-chan osEvent, <-chan error) {
	out := make(chan osEvent, 8)
	errc := make(chan error, 1)

	var stopped atomic.Bool
	send := func(reason string) {
		if stopped.Load() {
			return
		}
		select {
		case out <- osEvent{reason: reason}:
		default:
		}
	}

	go func() {
		defer close(out)
		defer close(errc)

		var ifHandle, routeHandle uintptr
		ifCallback := windows.NewCallback(func(_, _ uintptr, _ uint32) uintptr {
			send("ip interface change")
			return 0
		})
		routeCallback := windows.NewCallback(func(_, _ uintptr, _ uint32) uintptr {
			send("route change")
			return 0
		})

		if r, _, e := procNotifyIpInterfaceChange.Call(windows.AF_UNSPEC, ifCallback, 0, 1, uintptr(unsafe.Pointer(&ifHandle))); r != 0 {
			errc <- errors.Errorf("NotifyIpInterfaceChange: %v", e)
			return
		}
		if r, _, e := procNotifyRouteChange2.Call(windows.AF_UNSPEC, routeCallback, 0, 1, uintptr(unsafe.Pointer(&routeHandle))); r != 0 {
			procCancelMibChangeNotify2.Call(ifHandle)
			errc <- errors.Errorf("NotifyRouteChange2: %v", e)
			return
		}

		// Unregister before returning so no callback sends on a closed channel.
		<-ctx.Done()
		stopped.Store(true)
		procCancelMibChangeNotify2.Call(routeHandle)
		procCancelMibChangeNotify2.Call(ifHandle)
	}()
	return out, errc
}

func recomputeOnline() (bool, string, error) {
	adapters, err := adapterTable()
	if err != nil {
		return false, "adapter table unavailable", err
	}
	if !anyDNS(adapters) {
		return false, "no DNS resolver", nil
	}

	ifname := ""
	for _, a := range adapters {
		if a.up && a.hasGateway {
			if ifi, err := net.InterfaceByIndex(a.index); err == nil && ifi.Flags&net.FlagLoopback == 0 {
				ifname = ifi.Name
				break
			}
		}
	}
	if ifname == "" {
		// some drivers do not surface a gateway; ask the routing engine
		ifname = bestInterfaceFor(net.ParseIP("2606:4700:4700::1111"))
	}
	if ifname == "" {
		ifname = bestInterfaceFor(net.IPv4(1, 1, 1, 1))
	}
	if ifname != "" {
		ifi, err := net.InterfaceByName(ifname)
		if err != nil || ifi.Flags&net.FlagUp == 0 || ifi.Flags&net.FlagLoopback != 0 {
			return false, "default iface down/loopback", nil
		}
		if !ifaceHasUsableAddr(ifname) {
			return false, "default iface has no usable IP", nil
		}
		return true, "default via " + ifname, nil
	}

	// bridged, shared or VPN setups may have neither; accept any up adapter
	// with a routable address
	for _, a := range adapters {
		if !a.up {
			continue
		}
		ifi, err := net.InterfaceByIndex(a.index)
		if err != nil || ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		if ifaceHasUsableAddr(ifi.Name) {
			return true, "fallback: up iface " + ifi.Name, nil
		}
	}
	return false, "no default route", nil
}

func adapterTable() ([]adapter, error) {
	size := uint32(15 * 1024)
	for attempt := 0; attempt < 3; attempt++ {
		buf := make([]byte, size)
		err := windows.GetAdaptersAddresses(windows.AF_UNSPEC,
			gaaFlagIncludeGateways|gaaFlagSkipAnycast|gaaFlagSkipMulticast,
			0, (*windows.IpAdapterAddresses)(unsafe.Pointer(&buf[0])), &size)
		if errors.Is(err, windows.ERROR_BUFFER_OVERFLOW) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "GetAdaptersAddresses")
		}
		var out []adapter
		for aa := (*adapterAddresses)(unsafe.Pointer(&buf[0])); aa != nil; aa = aa.Next {
			out = append(out, adapter{
				index:      int(aa.IfIndex),
				up:         aa.OperStatus == ifOperStatusUp,
				hasGateway: aa.FirstGatewayAddress != 0,
				hasDNS:     aa.FirstDnsServerAddress != 0,
			})
		}
		return out, nil
	}
	return nil, errors.New("GetAdaptersAddresses: buffer kept growing")
}

func anyDNS(adapters []adapter) bool {
	for _, a := range adapters {
		if a.hasDNS {
			return true
		}
	}
	return false
}

func bestInterfaceFor(dst net.IP) string {
	var sa unsafe.Pointer
	if v4 := dst.To4(); v4 != nil {
		var in windows.RawSockaddrInet4
		in.Family = windows.AF_INET
		copy(in.Addr[:], v4)
		sa = unsafe.Pointer(&in)
	} else {
		var in6 windows.RawSockaddrInet6
		in6.Family = windows.AF_INET6
		copy(in6.Addr[:], dst.To16())
		sa = unsafe.Pointer(&in6)
	}
	var idx uint32
	if r, _, _ := procGetBestInterfaceEx.Call(uintptr(sa), uintptr(unsafe.Pointer(&idx))); r != 0 || idx == 0 {
		return ""
	}
	ifi, err := net.InterfaceByIndex(int(idx))
	if err != nil || ifi.Flags&net.FlagLoopback != 0 {
		return ""
	}
	return ifi.Name
}
