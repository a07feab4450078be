package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"example.com/checkconnectivity/connectivity"
	"example.com/checkconnectivity/linkwatch"
	"example.com/checkconnectivity/metrics"
	"example.com/checkconnectivity/statusapi"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("checkconnectivity")
	}
}

func run(ctx context.Context, cfg appConfig, log *logrus.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}

	machine := newMachine(cfg.Config, log, rec)
	watcher := newWatcher(cfg.Config, log)
	log.WithFields(logrus.Fields{
		"source":  watcher.Source(),
		"timeout": cfg.Probe.Timeout,
		"ping":    cfg.Probe.Ping.Target,
		"dns":     cfg.Probe.DNS.Hostname,
	}).Info("starting connectivity checker")
	if online, why, err := linkwatch.Evaluate(); err != nil {
		log.WithError(err).Warn("initial link evaluation failed")
	} else {
		log.WithFields(logrus.Fields{"online": online, "why": why}).Info("link state at startup")
	}

	transitions, unsubscribe := machine.Subscribe(16)
	defer unsubscribe()
	if err := machine.Start(ctx, watcher); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case t := <-transitions:
				printTransition(t)
			}
		}
	})
	if cfg.Listen != "" {
		g.Go(func() error {
			return statusapi.New(machine, reg, log).Run(ctx, cfg.Listen)
		})
	}
	return g.Wait()
}

func printTransition(t connectivity.Transition) {
	fmt.Printf("[%s] state=%s link=%v previous=%s cause=%s\n",
		t.At.Format("2006-01-02T15:04:05Z07:00"), t.To, t.Link, t.From, t.Cause)
}
