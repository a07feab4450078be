package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"example.com/checkconnectivity/config"
	"example.com/checkconnectivity/connectivity"
	"example.com/checkconnectivity/linkwatch"
)

func newLogger(c config.Log) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	level := c.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	log.SetLevel(lvl)
	if c.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log, nil
}

func newPinger(c config.Ping) connectivity.Pinger {
	if c.Method == config.PingMethodExec {
		return connectivity.ExecPinger{Command: c.Command}
	}
	return connectivity.ICMPPinger{Privileged: c.Privileged}
}

func newResolver(c config.DNS) connectivity.Resolver {
	if c.Nameserver != "" {
		return &connectivity.NameserverResolver{Server: c.Nameserver}
	}
	return connectivity.SystemResolver{}
}

// newMachine wires the probes, arbiter and state machine. The ping probe
// falls back to the machine's own link signal.
func newMachine(cfg config.Config, log logrus.FieldLogger, rec connectivity.Recorder) *connectivity.Machine {
	ping := &connectivity.PingProbe{Pinger: newPinger(cfg.Probe.Ping), Log: log.WithField("probe", "ping")}
	arbiter := &connectivity.Arbiter{
		Ping:       ping,
		Reach:      &connectivity.ReachabilityProbe{Resolver: newResolver(cfg.Probe.DNS), Log: log.WithField("probe", "dns")},
		PingTarget: cfg.Probe.Ping.Target,
		Hostname:   cfg.Probe.DNS.Hostname,
		Recorder:   rec,
	}
	m := connectivity.NewMachine(arbiter,
		connectivity.WithTimeout(cfg.Probe.Timeout),
		connectivity.WithLogger(log),
		connectivity.WithRecorder(rec),
	)
	ping.LinkSignal = m.LinkSignal
	return m
}

func newWatcher(cfg config.Config, log logrus.FieldLogger) *linkwatch.Watcher {
	return linkwatch.New(
		linkwatch.WithMode(cfg.Observer.Mode),
		linkwatch.WithDebounce(cfg.Observer.Debounce),
		linkwatch.WithPollInterval(cfg.Observer.PollInterval),
		linkwatch.WithWakeDetection(cfg.Observer.WakeSample, cfg.Observer.WakeGap),
		linkwatch.WithLogger(log.WithField("component", "linkwatch")),
	)
}
