package linkwatch

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func cidr(s string) net.Addr {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func TestHasUsableAddr(t *testing.T) {
	tests := []struct {
		name   string
		addrs  []net.Addr
		expect bool
	}{
		{name: "none", expect: false},
		{name: "loopback only", addrs: []net.Addr{cidr("127.0.0.1/8"), cidr("::1/128")}, expect: false},
		{name: "link-local v6", addrs: []net.Addr{cidr("fe80::1/64")}, expect: false},
		{name: "private v4", addrs: []net.Addr{cidr("fe80::1/64"), cidr("192.168.1.20/24")}, expect: true},
		{name: "global v6", addrs: []net.Addr{&net.IPAddr{IP: net.ParseIP("2001:db8::5")}}, expect: true},
		{name: "unspecified", addrs: []net.Addr{cidr("0.0.0.0/0")}, expect: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, hasUsableAddr(tt.addrs))
		})
	}
}
