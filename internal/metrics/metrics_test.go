package metrics

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpelzel/kinet/internal/client"
)

type fakeSource struct {
	mu      sync.Mutex
	samples []client.Statistics
}

func (f *fakeSource) Statistics() client.Statistics {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.samples) == 0 {
		return client.Statistics{}
	}
	s := f.samples[0]
	f.samples = f.samples[1:]
	return s
}

func TestSampler_Accumulates(t *testing.T) {
	src := &fakeSource{samples: []client.Statistics{
		{DroppedPackets: 3, QueueLength: 10, SlowSends: 1, DestinationCount: 2},
		{DroppedPackets: 2, QueueLength: 4},
	}}
	reg := prometheus.NewRegistry()
	s := NewSampler(src, reg, time.Second, nil)

	s.Sample()
	s.Sample()

	assert.Equal(t, 5.0, testutil.ToFloat64(s.dropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.slowSends))
	assert.Equal(t, 4.0, testutil.ToFloat64(s.queueLength), "gauges hold the latest sample")
	assert.Equal(t, 0.0, testutil.ToFloat64(s.destinations))
}

func TestSampler_Run(t *testing.T) {
	src := &fakeSource{samples: []client.Statistics{{DroppedPackets: 1}, {DroppedPackets: 1}}}
	s := NewSampler(src, prometheus.NewRegistry(), 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return testutil.ToFloat64(s.dropped) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSampler(&fakeSource{samples: []client.Statistics{{SlowSends: 7}}}, reg, time.Second, nil)
	s.Sample()

	srv := NewServer("127.0.0.1:0", "", reg)
	require.NoError(t, srv.Start())
	defer srv.Stop(context.Background())

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "kinet_send_slow_total 7")
}
