//go:build !windows

package linkwatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasNameserver(t *testing.T) {
	const stub = "# managed by resolved\nnameserver 127.0.0.53\noptions edns0\n"
	assert.False(t, hasNameserver(strings.NewReader(stub), true))
	assert.True(t, hasNameserver(strings.NewReader(stub), false))

	const upstream = "search lan\nnameserver   192.168.1.1\n"
	assert.True(t, hasNameserver(strings.NewReader(upstream), true))

	const zoned = "nameserver fe80::1%en0\n"
	assert.True(t, hasNameserver(strings.NewReader(zoned), true))

	assert.False(t, hasNameserver(strings.NewReader("nameserver\nnameserver not-an-ip\n"), false))
	assert.False(t, hasNameserver(strings.NewReader(""), false))
}
