//go:build !windows

package linkwatch

import (
	"bufio"
	"io"
	"net"
	"os"
	"strings"
)

func hasDNSResolver() bool {
	for _, p := range resolvConfPaths {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		found := hasNameserver(f, skipLoopbackResolvers)
		f.Close()
		if found {
			return true
		}
	}
	return false
}

func hasNameserver(r io.Reader, skipLoopback bool) bool {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "nameserver" {
			continue
		}
		host := fields[1]
		if i := strings.IndexByte(host, '%'); i >= 0 {
			host = host[:i]
		}
		ip := net.ParseIP(host)
		if ip == nil {
			continue
		}
		if skipLoopback && ip.IsLoopback() {
			continue
		}
		return true
	}
	return false
}
