// Package metrics exports kinet client statistics to Prometheus.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/kpelzel/kinet/internal/client"
)

// Source yields statistics samples. Each call resets the source counters.
type Source interface {
	Statistics() client.Statistics
}

// Sampler periodically reads a Source, accumulates the samples into
// Prometheus metrics and logs them.
type Sampler struct {
	src      Source
	interval time.Duration
	log      log.FieldLogger

	dropped      prometheus.Counter
	slowSends    prometheus.Counter
	queueLength  prometheus.Gauge
	destinations prometheus.Gauge
}

// NewSampler registers the kinet metrics with reg.
func NewSampler(src Source, reg prometheus.Registerer, interval time.Duration, logger log.FieldLogger) *Sampler {
	if logger == nil {
		logger = log.WithField("component", "metrics")
	}
	f := promauto.With(reg)
	return &Sampler{
		src:      src,
		interval: interval,
		log:      logger,
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "kinet_send_dropped_total",
			Help: "Packets dropped by the send pipeline, stale or queue full",
		}),
		slowSends: f.NewCounter(prometheus.CounterOpts{
			Name: "kinet_send_slow_total",
			Help: "Transmissions slower than the slow send threshold",
		}),
		queueLength: f.NewGauge(prometheus.GaugeOpts{
			Name: "kinet_send_queue_max_length",
			Help: "Deepest send queue seen during the last sample interval",
		}),
		destinations: f.NewGauge(prometheus.GaugeOpts{
			Name: "kinet_send_destinations",
			Help: "Distinct destinations sent to during the last sample interval",
		}),
	}
}

func (s *Sampler) Sample() client.Statistics {
	st := s.src.Statistics()

	s.dropped.Add(float64(st.DroppedPackets))
	s.slowSends.Add(float64(st.SlowSends))
	s.queueLength.Set(float64(st.QueueLength))
	s.destinations.Set(float64(st.DestinationCount))

	entry := s.log.WithFields(log.Fields{
		"dropped":      st.DroppedPackets,
		"queue":        st.QueueLength,
		"slow_sends":   st.SlowSends,
		"destinations": st.DestinationCount,
	})
	if st.DroppedPackets > 0 || st.SlowSends > 0 {
		entry.Warn("send pipeline under pressure")
	} else {
		entry.Debug("send pipeline statistics")
	}
	return st
}

// Run samples every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sample()
		}
	}
}
