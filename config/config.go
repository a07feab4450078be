// Package config loads the settings for the connectivity checker.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"example.com/checkconnectivity/connectivity"
	"example.com/checkconnectivity/linkwatch"
)

const (
	PingMethodICMP = "icmp"
	PingMethodExec = "exec"
)

// Config mirrors the YAML file layout.
type Config struct {
	Probe    Probe    `yaml:"probe"`
	Observer Observer `yaml:"observer"`
	Log      Log      `yaml:"log"`
	Listen   string   `yaml:"listen"`
}

type Probe struct {
	Timeout time.Duration `yaml:"timeout"`
	Ping    Ping          `yaml:"ping"`
	DNS     DNS           `yaml:"dns"`
}

// Ping selects the echo implementation. Privileged skips the unprivileged
// datagram socket and opens a raw ICMP socket directly.
type Ping struct {
	Target     string `yaml:"target"`
	Method     string `yaml:"method"`
	Command    string `yaml:"command"`
	Privileged bool   `yaml:"privileged"`
}

// DNS selects the name used for the reachability probe. An empty Nameserver
// means the system resolver.
type DNS struct {
	Hostname   string `yaml:"hostname"`
	Nameserver string `yaml:"nameserver"`
}

type Observer struct {
	Mode         linkwatch.Mode `yaml:"mode"`
	Debounce     time.Duration  `yaml:"debounce"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	WakeSample   time.Duration  `yaml:"wake_sample"`
	WakeGap      time.Duration  `yaml:"wake_gap"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the settings used when no file is provided.
func DefaultConfig() Config {
	return Config{
		Probe: Probe{
			Timeout: connectivity.DefaultTimeout,
			Ping: Ping{
				Target:  connectivity.DefaultPingTarget,
				Method:  PingMethodICMP,
				Command: "ping",
			},
			DNS: DNS{Hostname: connectivity.DefaultHostname},
		},
		Observer: Observer{
			Mode:         linkwatch.ModeAuto,
			Debounce:     linkwatch.DefaultDebounce,
			PollInterval: linkwatch.DefaultPollInterval,
			WakeSample:   linkwatch.DefaultWakeSample,
			WakeGap:      linkwatch.DefaultWakeGap,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file. A missing file or empty path
// yields the defaults; fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	c.Probe.Ping.Method = strings.ToLower(strings.TrimSpace(c.Probe.Ping.Method))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	if c.Probe.Timeout <= 0 {
		return errors.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if strings.TrimSpace(c.Probe.Ping.Target) == "" {
		return errors.New("probe.ping.target is required")
	}
	switch c.Probe.Ping.Method {
	case PingMethodICMP:
	case PingMethodExec:
		if c.Probe.Ping.Command == "" {
			return errors.New("probe.ping.command is required for the exec method")
		}
	default:
		return errors.Errorf("probe.ping.method must be %q or %q, got %q", PingMethodICMP, PingMethodExec, c.Probe.Ping.Method)
	}
	if strings.TrimSpace(c.Probe.DNS.Hostname) == "" {
		return errors.New("probe.dns.hostname is required")
	}
	switch c.Observer.Mode {
	case linkwatch.ModeAuto, linkwatch.ModePoll:
	default:
		return errors.Errorf("observer.mode must be %q or %q, got %q", linkwatch.ModeAuto, linkwatch.ModePoll, c.Observer.Mode)
	}
	if c.Observer.Debounce < 0 {
		return errors.New("observer.debounce must not be negative")
	}
	if c.Observer.PollInterval <= 0 {
		return errors.Errorf("observer.poll_interval must be positive, got %s", c.Observer.PollInterval)
	}
	if c.Observer.WakeSample < 0 || c.Observer.WakeGap < 0 {
		return errors.New("observer.wake_sample and observer.wake_gap must not be negative")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
