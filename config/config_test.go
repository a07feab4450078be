package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/checkconnectivity/linkwatch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.Probe.Timeout)
	assert.Equal(t, "8.8.8.8", cfg.Probe.Ping.Target)
	assert.Equal(t, "radar.arvancloud.com", cfg.Probe.DNS.Hostname)
}

func TestLoadOverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
probe:
  timeout: 1500ms
  ping:
    method: EXEC
    privileged: true
  dns:
    nameserver: 1.1.1.1
observer:
  mode: poll
  poll_interval: 10s
log:
  level: debug
  format: json
listen: 127.0.0.1:9100
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.Probe.Timeout)
	assert.Equal(t, PingMethodExec, cfg.Probe.Ping.Method)
	assert.Equal(t, "ping", cfg.Probe.Ping.Command)
	assert.True(t, cfg.Probe.Ping.Privileged)
	assert.Equal(t, "8.8.8.8", cfg.Probe.Ping.Target)
	assert.Equal(t, "1.1.1.1", cfg.Probe.DNS.Nameserver)
	assert.Equal(t, "radar.arvancloud.com", cfg.Probe.DNS.Hostname)
	assert.Equal(t, linkwatch.ModePoll, cfg.Observer.Mode)
	assert.Equal(t, 10*time.Second, cfg.Observer.PollInterval)
	assert.Equal(t, linkwatch.DefaultDebounce, cfg.Observer.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9100", cfg.Listen)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "zero timeout", body: "probe:\n  timeout: 0s\n", msg: "probe.timeout"},
		{name: "bad method", body: "probe:\n  ping:\n    method: tcp\n", msg: "probe.ping.method"},
		{name: "empty target", body: "probe:\n  ping:\n    target: \"\"\n", msg: "probe.ping.target"},
		{name: "empty hostname", body: "probe:\n  dns:\n    hostname: \"\"\n", msg: "probe.dns.hostname"},
		{name: "bad mode", body: "observer:\n  mode: push\n", msg: "observer.mode"},
		{name: "bad format", body: "log:\n  format: xml\n", msg: "log.format"},
		{name: "malformed", body: "probe: [", msg: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
