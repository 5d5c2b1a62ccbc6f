package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"github.com/kpelzel/kinet/internal/client"
	"github.com/kpelzel/kinet/internal/metrics"
)

func newClient(ctx context.Context) (*client.Client, error) {
	ep, err := cfg.Network.Resolve()
	if err != nil {
		return nil, err
	}

	c, err := client.New(ctx, client.Config{
		LocalAddress:      ep.Address,
		SubnetMask:        ep.Netmask,
		BindAddress:       ep.Bind,
		Port:              ep.Port,
		StaleAfter:        cfg.Client.StaleAfter,
		SlowSendThreshold: cfg.Client.SlowSend,
		QueueSize:         cfg.Client.QueueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start kinet client: %w", err)
	}

	go func() {
		for err := range c.Errors() {
			log.Warnf("kinet: %v", err)
		}
	}()
	return c, nil
}

func startMetrics(ctx context.Context, c *client.Client) (func(), error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := metrics.NewSampler(c, reg, cfg.Metrics.Interval, nil)
	go s.Run(ctx)

	if cfg.Metrics.Addr == "" {
		return func() {}, nil
	}
	srv := metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, reg)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return func() {
		if err := srv.Stop(context.Background()); err != nil {
			log.Warnf("%v", err)
		}
	}, nil
}
