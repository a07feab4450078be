// Package metrics exports connectivity observations to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/checkconnectivity/connectivity"
)

const namespace = "checkconnectivity"

var states = []connectivity.State{connectivity.NoConnection, connectivity.NoInternet, connectivity.HasInternet}

// Collector implements connectivity.Recorder. A nil *Collector is a valid
// no-op recorder.
type Collector struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	probes      *prometheus.CounterVec
	arbitration *prometheus.HistogramVec
}

var _ connectivity.Recorder = (*Collector)(nil)

// New registers the collectors with reg. The state gauge starts at the
// optimistic default.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the current connectivity state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Connectivity state changes.",
		}, []string{"from", "to"}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_results_total",
			Help:      "Completed probe attempts by probe and outcome.",
		}, []string{"probe", "result"}),
		arbitration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "arbiter_duration_seconds",
			Help:      "Time taken to decide whether the Internet is reachable.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"internet"}),
	}
	for _, col := range []prometheus.Collector{c.state, c.transitions, c.probes, c.arbitration} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	c.setState(connectivity.HasInternet)
	return c, nil
}

func (c *Collector) ProbeResult(probe string, ok bool) {
	if c == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	c.probes.WithLabelValues(probe, result).Inc()
}

func (c *Collector) Arbitration(d time.Duration, ok bool) {
	if c == nil {
		return
	}
	c.arbitration.WithLabelValues(strconv.FormatBool(ok)).Observe(d.Seconds())
}

func (c *Collector) StateChanged(from, to connectivity.State) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
	c.setState(to)
}

func (c *Collector) setState(current connectivity.State) {
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}
