package main

import (
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"example.com/checkconnectivity/config"
	"example.com/checkconnectivity/linkwatch"
)

type appConfig struct {
	config.Config
	Path string
}

// parseFlags loads the config file named by --config and applies any flag
// given explicitly on top of it.
func parseFlags(args []string) (appConfig, error) {
	fs := flag.NewFlagSet("checkconnectivity-demo", flag.ContinueOnError)

	path := fs.String("config", "config.yaml", "path to configuration file (YAML)")
	timeout := fs.Duration("timeout", 0, "bound for one Internet check")
	pingTarget := fs.String("ping-target", "", "address pinged by the ping probe")
	pingMethod := fs.String("ping-method", "", "ping implementation: icmp or exec")
	privileged := fs.Bool("privileged", false, "use a raw ICMP socket instead of a datagram socket")
	dnsHost := fs.String("dns-host", "", "hostname resolved by the reachability probe")
	nameserver := fs.String("nameserver", "", "query this nameserver directly instead of the system resolver")
	observer := fs.String("observer", "", "link observer mode: auto or poll")
	logLevel := fs.String("log-level", "", "log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "log format: text or json")
	listen := fs.String("listen", "", "serve /state, /transitions and /metrics on this address")

	if err := fs.Parse(args); err != nil {
		return appConfig{}, err
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return appConfig{}, errors.Wrapf(err, "load %s", *path)
	}

	overrides := map[string]func(){
		"timeout":     func() { cfg.Probe.Timeout = *timeout },
		"ping-target": func() { cfg.Probe.Ping.Target = *pingTarget },
		"ping-method": func() { cfg.Probe.Ping.Method = *pingMethod },
		"privileged":  func() { cfg.Probe.Ping.Privileged = *privileged },
		"dns-host":    func() { cfg.Probe.DNS.Hostname = *dnsHost },
		"nameserver":  func() { cfg.Probe.DNS.Nameserver = *nameserver },
		"observer":    func() { cfg.Observer.Mode = linkwatch.Mode(*observer) },
		"log-level":   func() { cfg.Log.Level = *logLevel },
		"log-format":  func() { cfg.Log.Format = *logFormat },
		"listen":      func() { cfg.Listen = *listen },
	}
	fs.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
	if err := cfg.Validate(); err != nil {
		return appConfig{}, err
	}
	return appConfig{Config: cfg, Path: *path}, nil
}
